// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// 通知サービスが変更イベントをEvent Storeへ送信する際に使用する。
// コンテキストに設定したテナントと操作ユーザーはOkapiヘッダーとして伝播する。
package httpclient
