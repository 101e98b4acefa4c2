// Package model はドメインモデルを定義する。
package model

import "time"

// InterestStatus は興味リクエストの状態を表す。
// pendingからaccepted/rejectedへの一方向遷移のみが定義され、両者は終端状態。
type InterestStatus string

const (
	// StatusPending は売り手の応答待ち状態。
	StatusPending InterestStatus = "pending"
	// StatusAccepted は売り手が承認した終端状態。
	StatusAccepted InterestStatus = "accepted"
	// StatusRejected は売り手が却下した終端状態。
	StatusRejected InterestStatus = "rejected"
)

// Valid は既知の状態かどうかを返す。
func (s InterestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// Terminal は終端状態（それ以上遷移しない状態）かどうかを返す。
func (s InterestStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Interest は買い手による特定Cropへの構造化された問い合わせを表す。
// CropName/OwnerName/OwnerEmailは買い手ビューの表示用に
// データサービスが付与する非正規化フィールド。
type Interest struct {
	ID         string         `json:"_id"`
	CropID     string         `json:"cropId"`
	CropName   string         `json:"cropName,omitempty"`
	OwnerName  string         `json:"ownerName,omitempty"`
	OwnerEmail string         `json:"ownerEmail,omitempty"`
	UserEmail  string         `json:"userEmail"`
	UserName   string         `json:"userName"`
	Quantity   float64        `json:"quantity"`
	Message    string         `json:"message,omitempty"`
	Status     InterestStatus `json:"status"`
	CreatedAt  time.Time      `json:"createdAt"`
}
