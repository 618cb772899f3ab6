// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// Okapiヘッダーからのテナント・操作ユーザーの取り出し、パニックリカバリ、
// CORS設定を含む。
package middleware
