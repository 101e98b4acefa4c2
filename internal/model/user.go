// Package model はドメインモデルを定義する。
package model

import "time"

// User は外部IDプロバイダーが保持するユーザースナップショットを表す。
// EmailはアカウントのキーでありID作成後は不変。DisplayNameとPhotoURLは可変。
type User struct {
	UID            string     `json:"uid"`
	Email          string     `json:"email"`
	DisplayName    string     `json:"displayName"`
	PhotoURL       string     `json:"photoURL,omitempty"`
	EmailVerified  bool       `json:"emailVerified"`
	ProviderID     string     `json:"providerId"`
	CreationTime   time.Time  `json:"creationTime"`
	LastSignInTime *time.Time `json:"lastSignInTime,omitempty"`
}

// プロバイダー種別。ProviderIDに設定される。
const (
	// ProviderPassword はメール+パスワード認証を表す。
	ProviderPassword = "password"
	// ProviderFederated はフェデレーテッド（対話型）認証を表す。
	ProviderFederated = "federated"
)

// Session はこのアプリケーションインスタンスが保持する認証状態を表す。
// ProviderTokenはIDプロバイダーが発行したトークンで、
// 再起動後のセッション復元（再検証）に使用する。
type Session struct {
	ID            string
	User          *User
	ProviderToken string
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// Expired はセッションが有効期限切れかどうかを返す。
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
