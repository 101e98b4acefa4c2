// Package identity は外部IDプロバイダーとの連携を提供する。
// アカウント作成、資格情報検証、対話型サインイン、プロファイル更新の
// 型付きクライアントを含む。
package identity

import (
	"context"

	"github.com/md-abdullah-al-ahad/krishilink-client/internal/model"
)

// Credential はプロバイダーが発行したユーザースナップショットとトークンの組を表す。
// Tokenは後続のプロファイル更新・セッション復元・サインアウトに使用する。
type Credential struct {
	User  *model.User
	Token string
}

// ProfileUpdate はプロファイル更新のフィールド集合を表す。
// nilのフィールドは変更しない。
type ProfileUpdate struct {
	DisplayName *string
	PhotoURL    *string
}

// Provider はIDプロバイダーの操作インターフェース。
// セッションストアから利用され、テストではモック実装に差し替える。
type Provider interface {
	// CreateAccount はメール+パスワードでアカウントを作成し、表示名を設定する。
	CreateAccount(ctx context.Context, email, password, displayName string) (*Credential, error)
	// SignIn は資格情報を検証しセッショントークンを発行する。
	SignIn(ctx context.Context, email, password string) (*Credential, error)
	// BeginInteractive は対話型（フェデレーテッド）サインインの認可URLを生成する。
	BeginInteractive(state string) string
	// ExchangeInteractiveCode は対話型フローの認可コードをトークンに交換する。
	ExchangeInteractiveCode(ctx context.Context, code string) (*Credential, error)
	// Refresh はプロバイダートークンを再検証し、最新のユーザースナップショットを返す。
	// アプリケーション再起動後のセッション復元に使用する。
	Refresh(ctx context.Context, token string) (*Credential, error)
	// UpdateProfile はプロバイダー側の表示名・写真URLを更新する。
	UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (*model.User, error)
	// SignOut はプロバイダー側のトークンを失効させる。
	SignOut(ctx context.Context, token string) error
}
