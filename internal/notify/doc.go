// Package notify は通知レコードサービスの内部実装を提供する。
//
// テナントごとに分離された通知レコードを受け付け、検証し、保存・検索・更新・削除する。
// 1リクエストは次の順に処理され、途中で失敗した場合は何も書き込まずに終了する。
//
//   - テナントの検査（すべての操作で最初に行う）
//   - 構造検証（Content-Type、JSONの構文）
//   - 意味検証（未知のフィールド、必須フィールド、UUID構文、IDの不変性）
//   - 検索条件の変換（一覧取得のみ）
//   - テナント専用ストアへの読み書き
//
// テナントの名前空間はテナントごとのSQLiteデータベースであり、
// 1つのStoreが複数のテナントにまたがることはない。
package notify
