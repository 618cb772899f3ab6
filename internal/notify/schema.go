package notify

import (
	"database/sql"
	"fmt"
)

// tableName はテナントの名前空間内で通知を保存するテーブル。
const tableName = "notify_data"

// スキーマ定義。日時はUTCの固定長文字列で保存し、文字列比較で順序が保たれるようにする。
const schema = `
CREATE TABLE IF NOT EXISTS notify_data (
    -- 挿入順。一覧のデフォルトの並び順に使用する
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    -- 通知の一意識別子（UUID）
    id TEXT NOT NULL UNIQUE,
    -- 受信者のユーザーID（UUID）
    recipient_id TEXT NOT NULL,
    -- 関連リソースへの参照
    link TEXT NOT NULL DEFAULT '',
    -- 通知の本文
    text TEXT NOT NULL,
    -- 既読状態
    seen INTEGER NOT NULL DEFAULT 0,
    -- 作成者と作成日時
    created_by_user_id TEXT NOT NULL DEFAULT '',
    created_date TEXT NOT NULL,
    -- 最終更新者と更新日時
    updated_by_user_id TEXT NOT NULL DEFAULT '',
    updated_date TEXT NOT NULL
);

-- 受信者での検索（_self）を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_notify_data_recipient_id
    ON notify_data(recipient_id);
`

// initSchema はテナントのデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
