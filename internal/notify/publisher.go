package notify

import (
	"context"
	"fmt"

	"github.com/nao1215/notify/pkg/event"
	"github.com/nao1215/notify/pkg/httpclient"
)

// eventsPath はEvent Storeのイベント登録エンドポイント。
const eventsPath = "/api/v1/events"

// Publisher は通知の変更イベントを外部へ送信する。
type Publisher interface {
	Publish(ctx context.Context, e *event.Event) error
}

// NewPublisher はEvent Storeへイベントを送信するPublisherを生成する。
// eventStoreURLが空の場合は何も送信しないPublisherを返す。
func NewPublisher(eventStoreURL string) Publisher {
	if eventStoreURL == "" {
		return nopPublisher{}
	}
	return &eventStorePublisher{client: httpclient.New(eventStoreURL)}
}

type eventStorePublisher struct {
	client *httpclient.Client
}

func (p *eventStorePublisher) Publish(ctx context.Context, e *event.Event) error {
	if err := p.client.PostJSON(ctx, eventsPath, e, nil); err != nil {
		return fmt.Errorf("Event Store %s への送信に失敗: %w", p.client.BaseURL(), err)
	}
	return nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, *event.Event) error {
	return nil
}
