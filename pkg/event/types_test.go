package event

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// TestTypeConstants はType定数の値を検証する。
func TestTypeConstants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  Type
		want string
	}{
		{name: "TypeNotificationCreatedの値が正しいこと", got: TypeNotificationCreated, want: "NotificationCreated"},
		{name: "TypeNotificationUpdatedの値が正しいこと", got: TypeNotificationUpdated, want: "NotificationUpdated"},
		{name: "TypeNotificationDeletedの値が正しいこと", got: TypeNotificationDeleted, want: "NotificationDeleted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if string(tt.got) != tt.want {
				t.Errorf("Type = %q, want %q", tt.got, tt.want)
			}
		})
	}

	if string(AggregateTypeNotification) != "Notification" {
		t.Errorf("AggregateTypeNotification = %q, want %q", AggregateTypeNotification, "Notification")
	}
}

// TestAggregateID はテナントと通知IDの連結を検証する。
func TestAggregateID(t *testing.T) {
	t.Parallel()

	got := AggregateID("testlib", "11111111-1111-1111-1111-111111111111")
	want := "testlib:11111111-1111-1111-1111-111111111111"
	if got != want {
		t.Errorf("AggregateID = %q, want %q", got, want)
	}
}

// TestEventJSON はEventのJSONフィールド名を検証する。
func TestEventJSON(t *testing.T) {
	t.Parallel()

	ev := Event{
		ID:            "event-1",
		AggregateID:   "testlib:n-1",
		AggregateType: AggregateTypeNotification,
		EventType:     TypeNotificationDeleted,
		Data:          json.RawMessage(`{"tenant":"testlib"}`),
		CreatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("シリアライズに失敗: %v", err)
	}

	for _, key := range []string{`"aggregate_id":"testlib:n-1"`, `"aggregate_type":"Notification"`, `"event_type":"NotificationDeleted"`, `"data":{"tenant":"testlib"}`} {
		if !strings.Contains(string(b), key) {
			t.Errorf("JSONに %s が含まれていない: %s", key, b)
		}
	}
}

// TestNotificationChangedDataOmitEmpty は操作ユーザーが空の場合に省略されることを検証する。
func TestNotificationChangedDataOmitEmpty(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(NotificationChangedData{Tenant: "testlib", NotificationID: "n-1"})
	if err != nil {
		t.Fatalf("シリアライズに失敗: %v", err)
	}
	if strings.Contains(string(b), "acting_user_id") {
		t.Errorf("acting_user_idは省略されるべき: %s", b)
	}
}
