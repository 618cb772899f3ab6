// Package logging はサービス全体で使用するログ出力の初期化を提供する。
//
// 各パッケージは logging.MustGetLogger でモジュール名付きのロガーを取得し、
// 出力先とレベルはエントリポイントで Setup を呼び出して一度だけ設定する。
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/lumberjack"
	gologging "github.com/op/go-logging"
)

// defaultLogFilename はログディレクトリ内のログファイル名。
const defaultLogFilename = "notify.log"

var (
	fileLogFormat   = gologging.MustStringFormatter(`%{time:2006-01-02T15:04:05} [%{level}] [%{module}] %{message}`)
	stdoutLogFormat = gologging.MustStringFormatter(`%{color:reset}%{color}%{time:15:04:05.000} [%{level}] [%{module}] %{message}`)
)

// Logger はモジュール名付きのロガー。
type Logger = gologging.Logger

// MustGetLogger は指定モジュール名のロガーを返す。
func MustGetLogger(module string) *Logger {
	return gologging.MustGetLogger(module)
}

// Setup はログの出力先とレベルを設定する。
// logDirが空の場合は標準出力のみに出力し、指定された場合はローテーション付きのファイルにも出力する。
// 戻り値のio.Closerはファイル出力を閉じるために使用する。
func Setup(logDir, logLevel string) io.Closer {
	return setup(os.Stdout, logDir, logLevel)
}

func setup(stdout io.Writer, logDir, logLevel string) io.Closer {
	backendStdout := gologging.NewLogBackend(stdout, "", 0)
	backendStdoutFormatter := gologging.NewBackendFormatter(backendStdout, stdoutLogFormat)

	var closer io.Closer = nopCloser{}
	var leveled gologging.LeveledBackend
	if logDir != "" {
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(logDir, defaultLogFilename),
			MaxSize:    10, // Megabytes
			MaxBackups: 3,
			MaxAge:     30, // Days
		}
		closer = rotator

		backendFile := gologging.NewLogBackend(rotator, "", 0)
		backendFileFormatter := gologging.NewBackendFormatter(backendFile, fileLogFormat)
		leveled = gologging.SetBackend(backendStdoutFormatter, backendFileFormatter)
	} else {
		leveled = gologging.SetBackend(backendStdoutFormatter)
	}

	leveled.SetLevel(ParseLevel(logLevel), "")
	return closer
}

// ParseLevel はログレベル名をgo-loggingのレベルに変換する。
// 不明な名前はINFOとして扱う。
func ParseLevel(logLevel string) gologging.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return gologging.DEBUG
	case "info":
		return gologging.INFO
	case "notice":
		return gologging.NOTICE
	case "warning":
		return gologging.WARNING
	case "error":
		return gologging.ERROR
	case "critical":
		return gologging.CRITICAL
	default:
		return gologging.INFO
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
