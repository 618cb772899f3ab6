// Package config は通知サービスの設定読み込みを提供する。
//
// 設定は以下の優先順位で解決する。
//   - 環境変数（NOTIFY_ プレフィックス。.env ファイルの内容も含む）
//   - YAML設定ファイル
//   - デフォルト値
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix は環境変数のプレフィックス。
const envPrefix = "NOTIFY"

// Config は通知サービスの設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `mapstructure:"port"`
	// DataDir はテナントごとのSQLiteデータベースを配置するディレクトリ。
	DataDir string `mapstructure:"data_dir"`
	// LogDir はログファイルの出力先。空の場合は標準出力のみ。
	LogDir string `mapstructure:"log_dir"`
	// LogLevel はログレベル（debug, info, notice, warning, error, critical）。
	LogLevel string `mapstructure:"log_level"`
	// EventStoreURL は変更イベントの送信先。空の場合は送信しない。
	EventStoreURL string `mapstructure:"eventstore_url"`
	// DefaultLimit は一覧取得でlimit未指定時の件数。
	DefaultLimit int `mapstructure:"default_limit"`
	// MaxLimit は一覧取得で指定できるlimitの上限。
	MaxLimit int `mapstructure:"max_limit"`
	// CORSOrigins はクロスオリジンを許可するオリジンの一覧。
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// Load は設定を読み込む。
// pathが空、またはファイルが存在しない場合はデフォルト値と環境変数のみを使用する。
func Load(path string) (*Config, error) {
	// .env はなくてもよい
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".envの読み込みに失敗: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			var pathErr *os.PathError
			if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
				return nil, fmt.Errorf("設定ファイル %s の読み込みに失敗: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("設定の解析に失敗: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8081")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("log_dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("eventstore_url", "")
	v.SetDefault("default_limit", 10)
	v.SetDefault("max_limit", 1000)
	v.SetDefault("cors_origins", []string{})
}

// validate は設定値の整合性を検証する。
func (c *Config) validate() error {
	if c.Port == "" {
		return errors.New("portが指定されていません")
	}
	if c.DataDir == "" {
		return errors.New("data_dirが指定されていません")
	}
	if c.DefaultLimit <= 0 {
		return fmt.Errorf("default_limitは正の値である必要があります: %d", c.DefaultLimit)
	}
	if c.MaxLimit < c.DefaultLimit {
		return fmt.Errorf("max_limit(%d)はdefault_limit(%d)以上である必要があります", c.MaxLimit, c.DefaultLimit)
	}
	return nil
}
