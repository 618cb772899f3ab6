package notify

import "time"

// Notification は受信者ユーザー宛ての通知レコード。
type Notification struct {
	// ID は通知の一意識別子（UUID）。作成後は変更できない。
	ID string `json:"id"`
	// RecipientID は通知の受信者のユーザーID（UUID）。
	RecipientID *string `json:"recipientId"`
	// Link は関連リソースへの参照。
	Link string `json:"link,omitempty"`
	// Text は通知の本文。
	Text *string `json:"text"`
	// Seen は既読状態。
	Seen bool `json:"seen"`
	// Metadata はストアが付与する監査情報。
	Metadata *Metadata `json:"metadata,omitempty"`
}

// Metadata は作成・更新の監査情報。クライアントからは書き込めない。
type Metadata struct {
	CreatedDate     time.Time `json:"createdDate"`
	CreatedByUserID string    `json:"createdByUserId,omitempty"`
	UpdatedDate     time.Time `json:"updatedDate"`
	UpdatedByUserID string    `json:"updatedByUserId,omitempty"`
}

// Collection は一覧取得のレスポンス。
type Collection struct {
	// Notifications は条件に一致した通知。該当なしの場合も空配列になる。
	Notifications []Notification `json:"notifications"`
	// TotalRecords はページング前の一致件数。
	TotalRecords int `json:"totalRecords"`
}

// recipient はnilを許容してRecipientIDを返す。
func (n *Notification) recipient() string {
	if n.RecipientID == nil {
		return ""
	}
	return *n.RecipientID
}
