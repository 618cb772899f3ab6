// 通知レコードサービスのエントリポイント。
// テナントごとに分離された通知レコードの作成・検索・更新・削除をHTTPで提供する。
package main

import (
	"os"

	"github.com/nao1215/notify/internal/config"
	"github.com/nao1215/notify/internal/notify"
	"github.com/nao1215/notify/pkg/logging"
)

var log = logging.MustGetLogger("main")

func main() {
	cfg, err := config.Load(os.Getenv("NOTIFY_CONFIG"))
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	closer := logging.Setup(cfg.LogDir, cfg.LogLevel)
	defer closer.Close()

	server, err := notify.NewServer(cfg)
	if err != nil {
		log.Fatalf("通知サーバーの初期化に失敗: %v", err)
	}
	defer server.Close()

	if cfg.EventStoreURL == "" {
		log.Notice("eventstore_urlが未設定のため変更イベントは送信しません")
	}
	log.Infof("通知サービスを起動します: :%s (data_dir=%s)", cfg.Port, cfg.DataDir)
	if err := server.Run(); err != nil {
		log.Fatalf("通知サービスの起動に失敗: %v", err)
	}
}
