// Package event は通知レコードの変更イベントを表す型を提供する。
//
// 通知の作成・更新・削除が成功するたびにイベントを生成し、
// Event Storeへ送信することで外部サービスが変更を追跡できるようにする。
package event

import (
	"encoding/json"
	"time"
)

// AggregateType はイベントの対象となるエンティティの種類を表す。
type AggregateType string

// AggregateTypeNotification は通知エンティティを表す。
const AggregateTypeNotification AggregateType = "Notification"

// Type はイベントの種類を表す。
type Type string

const (
	// TypeNotificationCreated は通知が作成されたことを表す。
	TypeNotificationCreated Type = "NotificationCreated"
	// TypeNotificationUpdated は通知が置き換えられたことを表す。
	TypeNotificationUpdated Type = "NotificationUpdated"
	// TypeNotificationDeleted は通知が削除されたことを表す。
	TypeNotificationDeleted Type = "NotificationDeleted"
)

// Event は不変のイベントレコードを表す。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// AggregateID は対象エンティティの識別子。テナントと通知IDを "tenant:id" 形式で連結する。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType AggregateType `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// AggregateID はテナントと通知IDからAggregateIDを組み立てる。
func AggregateID(tenant, notificationID string) string {
	return tenant + ":" + notificationID
}

// NotificationChangedData はNotificationCreated/NotificationUpdatedイベントのデータ。
type NotificationChangedData struct {
	// Tenant は通知が属するテナント。
	Tenant string `json:"tenant"`
	// NotificationID は変更された通知のID。
	NotificationID string `json:"notification_id"`
	// RecipientID は通知の受信者のユーザーID。
	RecipientID string `json:"recipient_id"`
	// Seen は変更後の既読状態。
	Seen bool `json:"seen"`
	// ActingUserID は変更を行ったユーザーのID。
	ActingUserID string `json:"acting_user_id,omitempty"`
}

// NotificationDeletedData はNotificationDeletedイベントのデータ。
type NotificationDeletedData struct {
	// Tenant は通知が属していたテナント。
	Tenant string `json:"tenant"`
	// NotificationID は削除された通知のID。
	NotificationID string `json:"notification_id"`
	// ActingUserID は削除を行ったユーザーのID。
	ActingUserID string `json:"acting_user_id,omitempty"`
}
