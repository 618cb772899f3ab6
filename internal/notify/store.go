package notify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// timeLayout は日時の保存形式。常にUTCで保存する。
const timeLayout = "2006-01-02T15:04:05.000Z"

const columns = "seq, id, recipient_id, link, text, seen, created_by_user_id, created_date, updated_by_user_id, updated_date"

// errCursorConsumed は読み終えたCursorを再度読もうとしたことを表す。
var errCursorConsumed = errors.New("cursor has already been consumed")

// Store は1つのテナントの名前空間に対する通知の永続化を担う。
// Storeが他のテナントのレコードを読み書きすることはない。
type Store struct {
	tenant string
	db     *sqlx.DB
	now    func() time.Time
}

// Page は一覧取得のページング指定。
type Page struct {
	Offset int
	Limit  int
}

// row はnotify_dataテーブルの1行。
type row struct {
	Seq             int64  `db:"seq"`
	ID              string `db:"id"`
	RecipientID     string `db:"recipient_id"`
	Link            string `db:"link"`
	Text            string `db:"text"`
	Seen            bool   `db:"seen"`
	CreatedByUserID string `db:"created_by_user_id"`
	CreatedDate     string `db:"created_date"`
	UpdatedByUserID string `db:"updated_by_user_id"`
	UpdatedDate     string `db:"updated_date"`
}

func toRow(n Notification) row {
	r := row{
		ID:          n.ID,
		RecipientID: n.recipient(),
		Link:        n.Link,
		Seen:        n.Seen,
	}
	if n.Text != nil {
		r.Text = *n.Text
	}
	return r
}

func (r row) toNotification() Notification {
	return Notification{
		ID:          r.ID,
		RecipientID: ptrTo(r.RecipientID),
		Link:        r.Link,
		Text:        ptrTo(r.Text),
		Seen:        r.Seen,
		Metadata: &Metadata{
			CreatedDate:     parseTime(r.CreatedDate),
			CreatedByUserID: r.CreatedByUserID,
			UpdatedDate:     parseTime(r.UpdatedDate),
			UpdatedByUserID: r.UpdatedByUserID,
		},
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Tenant はStoreが属するテナントを返す。
func (s *Store) Tenant() string {
	return s.tenant
}

// Insert は通知を保存する。IDが空の場合は新しいUUIDを割り当てる。
// 同じIDのレコードが既に存在する場合は上書きせずにKindConflictのエラーを返す。
func (s *Store) Insert(ctx context.Context, n Notification, actingUserID string) (Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := formatTime(s.now())
	r := toRow(n)
	r.CreatedByUserID, r.CreatedDate = actingUserID, now
	r.UpdatedByUserID, r.UpdatedDate = actingUserID, now

	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO notify_data (
			id, recipient_id, link, text, seen,
			created_by_user_id, created_date, updated_by_user_id, updated_date
		) VALUES (
			:id, :recipient_id, :link, :text, :seen,
			:created_by_user_id, :created_date, :updated_by_user_id, :updated_date
		)
		ON CONFLICT(id) DO NOTHING`, r)
	if err != nil {
		return Notification{}, fmt.Errorf("通知 %s の保存に失敗: %w", n.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Notification{}, fmt.Errorf("保存件数の取得に失敗: %w", err)
	}
	if affected == 0 {
		return Notification{}, newError(KindConflict, "Notification with id %s already exists", n.ID)
	}
	return r.toNotification(), nil
}

// Get は指定IDの通知を返す。
func (s *Store) Get(ctx context.Context, id string) (Notification, error) {
	var r row
	err := s.db.GetContext(ctx, &r, "SELECT "+columns+" FROM notify_data WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Notification{}, notFound(id)
	}
	if err != nil {
		return Notification{}, fmt.Errorf("通知 %s の取得に失敗: %w", id, err)
	}
	return r.toNotification(), nil
}

// List は条件に一致する通知を返すCursorを生成する。
// 件数と行は同じ読み取りトランザクションで取得するため、互いに矛盾しない。
// 呼び出し側は必ずCursor.Closeを呼び出す必要がある。
func (s *Store) List(ctx context.Context, pred Predicate, page Page) (*Cursor, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクションの開始に失敗: %w", err)
	}

	var total int
	if err := tx.GetContext(ctx, &total, "SELECT COUNT(*) FROM notify_data WHERE "+pred.Where, pred.Args...); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("件数の取得に失敗: %w", err)
	}

	orderBy := pred.OrderBy
	if orderBy == "" {
		orderBy = "seq ASC"
	}
	args := make([]any, 0, len(pred.Args)+2)
	args = append(args, pred.Args...)
	args = append(args, page.Limit, page.Offset)

	rows, err := tx.QueryxContext(ctx,
		"SELECT "+columns+" FROM notify_data WHERE "+pred.Where+" ORDER BY "+orderBy+" LIMIT ? OFFSET ?",
		args...)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("一覧の取得に失敗: %w", err)
	}
	return &Cursor{tx: tx, rows: rows, total: total}, nil
}

// Replace は指定IDの通知の可変フィールドを置き換える。
// 作成者と作成日時は保持し、更新者と更新日時を付け直す。
func (s *Store) Replace(ctx context.Context, id string, n Notification, actingUserID string) error {
	r := toRow(n)
	r.ID = id
	r.UpdatedByUserID, r.UpdatedDate = actingUserID, formatTime(s.now())

	res, err := s.db.NamedExecContext(ctx, `
		UPDATE notify_data SET
			recipient_id = :recipient_id,
			link = :link,
			text = :text,
			seen = :seen,
			updated_by_user_id = :updated_by_user_id,
			updated_date = :updated_date
		WHERE id = :id`, r)
	if err != nil {
		return fmt.Errorf("通知 %s の更新に失敗: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	if affected == 0 {
		return notFound(id)
	}
	return nil
}

// Delete は指定IDの通知を削除する。
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM notify_data WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("通知 %s の削除に失敗: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	if affected == 0 {
		return notFound(id)
	}
	return nil
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

func notFound(id string) *Error {
	return newError(KindNotFound, "Notification %s not found", id)
}

// Cursor は一覧取得の結果。行は読み出すときに1件ずつ取得する。
type Cursor struct {
	tx       *sqlx.Tx
	rows     *sqlx.Rows
	total    int
	consumed bool
	closed   bool
}

// Total はページング前の一致件数を返す。
func (c *Cursor) Total() int {
	return c.total
}

// All は結果を1件ずつ返すイテレーターを返す。
// 一度しか読み出せず、2回目以降はエラーを1件返して終了する。読み終えるとCursorは閉じられる。
func (c *Cursor) All() iter.Seq2[Notification, error] {
	return func(yield func(Notification, error) bool) {
		if c.consumed || c.closed {
			yield(Notification{}, errCursorConsumed)
			return
		}
		c.consumed = true
		defer c.Close()

		for c.rows.Next() {
			var r row
			if err := c.rows.StructScan(&r); err != nil {
				yield(Notification{}, fmt.Errorf("行の読み込みに失敗: %w", err))
				return
			}
			if !yield(r.toNotification(), nil) {
				return
			}
		}
		if err := c.rows.Err(); err != nil {
			yield(Notification{}, fmt.Errorf("一覧の読み込みに失敗: %w", err))
		}
	}
}

// Collect はすべての結果をスライスとして返す。該当なしの場合は空のスライスを返す。
func (c *Cursor) Collect() ([]Notification, error) {
	notifications := make([]Notification, 0)
	for n, err := range c.All() {
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

// Close は読み取りトランザクションを終了する。複数回呼び出してもよい。
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.rows.Close(); err != nil {
		_ = c.tx.Rollback()
		return fmt.Errorf("結果セットのクローズに失敗: %w", err)
	}
	return c.tx.Commit()
}
