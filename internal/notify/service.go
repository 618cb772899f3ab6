package notify

import (
	"context"
	"strconv"

	"github.com/nao1215/notify/pkg/event"
	"github.com/nao1215/notify/pkg/httpclient"
	"github.com/nao1215/notify/pkg/logging"
)

var log = logging.MustGetLogger("notify")

// Request は操作を呼び出したクライアントの文脈。
type Request struct {
	// Tenant はX-Okapi-Tenantで指定されたテナント。
	Tenant string
	// UserID は操作ユーザーのID。不明な場合は空。
	UserID string
}

// ListParams は一覧取得のパラメーター。未指定の値は空文字。
type ListParams struct {
	Query  string
	Offset string
	Limit  string
}

// Service は通知レコードに対する操作を提供する。
// リクエストごとの状態は持たず、テナントの検査、検証、保存の順に処理する。
// 検証に失敗した場合はストアに一切アクセスしない。
type Service struct {
	registry     *Registry
	validator    *Validator
	publisher    Publisher
	defaultLimit int
	maxLimit     int
}

// NewService は新しいServiceを生成する。
func NewService(registry *Registry, publisher Publisher, defaultLimit, maxLimit int) *Service {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &Service{
		registry:     registry,
		validator:    NewValidator(),
		publisher:    publisher,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// Create は通知を検証して保存し、保存したレコードを返す。
func (s *Service) Create(ctx context.Context, req Request, contentType string, body []byte) (Notification, error) {
	tenant, err := CheckTenant(req.Tenant)
	if err != nil {
		return Notification{}, err
	}
	n, err := s.validate(contentType, body)
	if err != nil {
		return Notification{}, err
	}

	store, err := s.registry.Store(tenant)
	if err != nil {
		return Notification{}, asServiceError(err)
	}
	stored, err := store.Insert(ctx, n, req.UserID)
	if err != nil {
		return Notification{}, asServiceError(err)
	}

	s.publish(ctx, tenant, req.UserID, event.TypeNotificationCreated, stored)
	return stored, nil
}

// Get は指定IDの通知を返す。
func (s *Service) Get(ctx context.Context, req Request, id string) (Notification, error) {
	tenant, err := CheckTenant(req.Tenant)
	if err != nil {
		return Notification{}, err
	}
	id, err = CheckID(id)
	if err != nil {
		return Notification{}, err
	}

	store, err := s.registry.Store(tenant)
	if err != nil {
		return Notification{}, asServiceError(err)
	}
	n, err := store.Get(ctx, id)
	if err != nil {
		return Notification{}, asServiceError(err)
	}
	return n, nil
}

// List は検索条件に一致する通知を返す。
func (s *Service) List(ctx context.Context, req Request, params ListParams) (Collection, error) {
	tenant, err := CheckTenant(req.Tenant)
	if err != nil {
		return Collection{}, err
	}
	pred, err := TranslateQuery(params.Query)
	if err != nil {
		return Collection{}, err
	}
	return s.list(ctx, tenant, pred, params)
}

// ListSelf は操作ユーザー宛ての通知を返す。queryパラメーターは無視する。
func (s *Service) ListSelf(ctx context.Context, req Request, params ListParams) (Collection, error) {
	tenant, err := CheckTenant(req.Tenant)
	if err != nil {
		return Collection{}, err
	}
	return s.list(ctx, tenant, SelfPredicate(req.UserID), params)
}

func (s *Service) list(ctx context.Context, tenant string, pred Predicate, params ListParams) (Collection, error) {
	page, err := s.page(params)
	if err != nil {
		return Collection{}, err
	}

	store, err := s.registry.Store(tenant)
	if err != nil {
		return Collection{}, asServiceError(err)
	}
	cursor, err := store.List(ctx, pred, page)
	if err != nil {
		return Collection{}, asServiceError(err)
	}
	defer cursor.Close()

	notifications, err := cursor.Collect()
	if err != nil {
		return Collection{}, asServiceError(err)
	}
	return Collection{Notifications: notifications, TotalRecords: cursor.Total()}, nil
}

// Update は指定IDの通知を置き換える。
// ボディのIDはパスのIDと一致しなければならず、この検査はレコードの存在確認より先に行う。
func (s *Service) Update(ctx context.Context, req Request, id, contentType string, body []byte) error {
	tenant, err := CheckTenant(req.Tenant)
	if err != nil {
		return err
	}
	n, err := s.validate(contentType, body)
	if err != nil {
		return err
	}
	if err := CheckIdentity(id, &n); err != nil {
		return err
	}
	id, err = CheckID(id)
	if err != nil {
		return err
	}

	store, err := s.registry.Store(tenant)
	if err != nil {
		return asServiceError(err)
	}
	if err := store.Replace(ctx, id, n, req.UserID); err != nil {
		return asServiceError(err)
	}

	s.publish(ctx, tenant, req.UserID, event.TypeNotificationUpdated, n)
	return nil
}

// Delete は指定IDの通知を削除する。
func (s *Service) Delete(ctx context.Context, req Request, id string) error {
	tenant, err := CheckTenant(req.Tenant)
	if err != nil {
		return err
	}
	id, err = CheckID(id)
	if err != nil {
		return err
	}

	store, err := s.registry.Store(tenant)
	if err != nil {
		return asServiceError(err)
	}
	if err := store.Delete(ctx, id); err != nil {
		return asServiceError(err)
	}

	s.publish(ctx, tenant, req.UserID, event.TypeNotificationDeleted, Notification{ID: id})
	return nil
}

// ProvisionTenant はテナントの名前空間を作成する。作成済みの場合も成功する。
func (s *Service) ProvisionTenant(_ context.Context, req Request) error {
	tenant, err := CheckTenant(req.Tenant)
	if err != nil {
		return err
	}
	if err := s.registry.Provision(tenant); err != nil {
		return asServiceError(err)
	}
	log.Infof("テナント %s の名前空間 %s を作成しました", tenant, SchemaName(tenant))
	return nil
}

// DeprovisionTenant はテナントの名前空間とすべての通知を削除する。
func (s *Service) DeprovisionTenant(_ context.Context, req Request) error {
	tenant, err := CheckTenant(req.Tenant)
	if err != nil {
		return err
	}
	if err := s.registry.Deprovision(tenant); err != nil {
		return asServiceError(err)
	}
	log.Infof("テナント %s の名前空間 %s を削除しました", tenant, SchemaName(tenant))
	return nil
}

// validate は構造検証と意味検証を順に行う。
func (s *Service) validate(contentType string, body []byte) (Notification, error) {
	c, err := ParseBody(contentType, body)
	if err != nil {
		return Notification{}, err
	}
	return s.validator.Validate(c)
}

// page はoffsetとlimitを解釈する。
func (s *Service) page(params ListParams) (Page, error) {
	page := Page{Offset: 0, Limit: s.defaultLimit}
	if params.Offset != "" {
		v, err := strconv.Atoi(params.Offset)
		if err != nil || v < 0 {
			return Page{}, newError(KindInvalidQuery, "offset must be a non-negative integer: %q", params.Offset)
		}
		page.Offset = v
	}
	if params.Limit != "" {
		v, err := strconv.Atoi(params.Limit)
		if err != nil || v < 0 {
			return Page{}, newError(KindInvalidQuery, "limit must be a non-negative integer: %q", params.Limit)
		}
		if v > s.maxLimit {
			return Page{}, newError(KindInvalidQuery, "limit must not exceed %d: %d", s.maxLimit, v)
		}
		page.Limit = v
	}
	return page, nil
}

// publish は変更イベントを送信する。送信の失敗は操作の結果に影響させず、ログに残すだけにする。
func (s *Service) publish(ctx context.Context, tenant, userID string, eventType event.Type, n Notification) {
	var data any
	switch eventType {
	case event.TypeNotificationDeleted:
		data = event.NotificationDeletedData{Tenant: tenant, NotificationID: n.ID, ActingUserID: userID}
	default:
		data = event.NotificationChangedData{
			Tenant:         tenant,
			NotificationID: n.ID,
			RecipientID:    n.recipient(),
			Seen:           n.Seen,
			ActingUserID:   userID,
		}
	}

	e, err := event.New(event.AggregateID(tenant, n.ID), event.AggregateTypeNotification, eventType, data)
	if err != nil {
		log.Warningf("イベントの生成に失敗: %v", err)
		return
	}
	ctx = httpclient.WithUserID(httpclient.WithTenant(ctx, tenant), userID)
	if err := s.publisher.Publish(ctx, e); err != nil {
		log.Warningf("イベント %s (%s) の送信に失敗: %v", e.EventType, e.AggregateID, err)
	}
}
