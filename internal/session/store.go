// Package session はアプリケーションレベルのセッションストアを提供する。
// 「誰がログインしているか」の単一の信頼できる情報源であり、
// 依存するビューはグローバル参照ではなくこのストアの注入を受け、
// Subscribeで現在ユーザーのスナップショット変化を購読する。
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/md-abdullah-al-ahad/krishilink-client/internal/identity"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/model"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/validation"
)

// interactiveStateTTL は対話型サインインのstate有効期間。
const interactiveStateTTL = 10 * time.Minute

// Subscriber はセッション変化の通知を受け取るコールバック。
// userはサインイン・プロファイル更新時は新しいスナップショット、サインアウト時はnil。
// ストアの状態更新が完了した後に呼び出されるため、
// コールバック内でCurrentを読んでも古い値（torn read）は観測されない。
type Subscriber func(sessionID string, user *model.User)

// StoreConfig はセッションストアの設定。
type StoreConfig struct {
	SessionMaxAge time.Duration
}

// Store はセッションの発行・参照・破棄とプロバイダー操作の仲介を行う。
type Store struct {
	provider identity.Provider
	config   StoreConfig

	mu       sync.RWMutex
	sessions map[string]*model.Session

	subMu       sync.RWMutex
	subscribers []Subscriber

	// 対話型フローの未完了state。二重フロー開始の検出に使う。
	stateMu       sync.Mutex
	pendingStates map[string]time.Time
}

// NewStore はStoreを生成する。
func NewStore(provider identity.Provider, config StoreConfig) *Store {
	if config.SessionMaxAge <= 0 {
		config.SessionMaxAge = 24 * time.Hour
	}
	return &Store{
		provider:      provider,
		config:        config,
		sessions:      make(map[string]*model.Session),
		pendingStates: make(map[string]time.Time),
	}
}

// Subscribe はセッション変化の購読を登録する。
// 登録解除用の関数を返す。
func (s *Store) Subscribe(fn Subscriber) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.subscribers = append(s.subscribers, fn)
	idx := len(s.subscribers) - 1

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		s.subscribers[idx] = nil
	}
}

// notify は登録済みの購読者へ順に通知する。
// ストアの状態更新が確定した後に呼び出すこと。
func (s *Store) notify(sessionID string, user *model.User) {
	s.subMu.RLock()
	subs := make([]Subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.subMu.RUnlock()

	for _, fn := range subs {
		if fn != nil {
			fn(sessionID, user)
		}
	}
}

// Register はメール+パスワードでアカウントを作成し、セッションを発行する。
// パスワードポリシーはプロバイダー呼び出しの前にローカルで検証し、
// 違反時はメッセージを集約したValidationErrorで即座に失敗する。
func (s *Store) Register(ctx context.Context, email, password, displayName string) (*model.Session, error) {
	if !validation.ValidateEmail(email) {
		return nil, model.NewAuthError("auth/invalid-email", validation.AuthErrorMessage("auth/invalid-email"))
	}

	if result := validation.ValidatePassword(password); !result.IsValid {
		return nil, model.NewValidationError(strings.Join(result.Errors, ", "))
	}

	cred, err := s.provider.CreateAccount(ctx, email, password, displayName)
	if err != nil {
		return nil, err
	}

	sess, err := s.establish(cred)
	if err != nil {
		return nil, err
	}

	slog.Info("user registered",
		slog.String("uid", cred.User.UID),
		slog.String("email", cred.User.Email),
	)
	return sess, nil
}

// SignIn は資格情報を検証し、セッションを発行する。
func (s *Store) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	cred, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	sess, err := s.establish(cred)
	if err != nil {
		return nil, err
	}

	slog.Info("user signed in", slog.String("uid", cred.User.UID))
	return sess, nil
}

// BeginInteractive は対話型サインインフローを開始し、認可URLとstateを返す。
// 未完了のフローが既に存在する場合はauth/cancelled-popup-requestで失敗する。
func (s *Store) BeginInteractive() (loginURL, state string, err error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	now := time.Now()
	for st, expires := range s.pendingStates {
		if now.After(expires) {
			delete(s.pendingStates, st)
			continue
		}
		return "", "", model.NewAuthError("auth/cancelled-popup-request",
			validation.AuthErrorMessage("auth/cancelled-popup-request"))
	}

	state, err = generateToken(16)
	if err != nil {
		return "", "", err
	}
	s.pendingStates[state] = now.Add(interactiveStateTTL)

	return s.provider.BeginInteractive(state), state, nil
}

// CompleteInteractive は対話型フローの認可コードを交換し、セッションを発行する。
// stateは一度だけ消費できる。ユーザーがフローを閉じた場合は
// codeが空で呼び出され、auth/popup-closed-by-userで失敗する。
func (s *Store) CompleteInteractive(ctx context.Context, state, code string) (*model.Session, error) {
	s.stateMu.Lock()
	expires, ok := s.pendingStates[state]
	delete(s.pendingStates, state)
	s.stateMu.Unlock()

	if !ok || time.Now().After(expires) {
		return nil, model.NewAuthError("auth/cancelled-popup-request",
			validation.AuthErrorMessage("auth/cancelled-popup-request"))
	}

	if code == "" {
		return nil, model.NewAuthError("auth/popup-closed-by-user",
			validation.AuthErrorMessage("auth/popup-closed-by-user"))
	}

	cred, err := s.provider.ExchangeInteractiveCode(ctx, code)
	if err != nil {
		return nil, err
	}

	sess, err := s.establish(cred)
	if err != nil {
		return nil, err
	}

	slog.Info("user signed in (federated)", slog.String("uid", cred.User.UID))
	return sess, nil
}

// Resume はプロバイダートークンを再検証してセッションを復元する。
// アプリケーション再起動後、Cookieのトークンだけが残っている場合に使用する。
func (s *Store) Resume(ctx context.Context, providerToken string) (*model.Session, error) {
	cred, err := s.provider.Refresh(ctx, providerToken)
	if err != nil {
		return nil, err
	}

	sess, err := s.establish(cred)
	if err != nil {
		return nil, err
	}

	slog.Info("session resumed", slog.String("uid", cred.User.UID))
	return sess, nil
}

// Current はセッションIDから現在のユーザーを返す。
// 未知または期限切れのセッションは「ユーザーなし」としてnilを返す。
func (s *Store) Current(sessionID string) *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.Expired(time.Now()) {
		return nil
	}
	return sess.User
}

// Find はセッションIDからセッションを返す。存在しない・期限切れの場合はnil。
func (s *Store) Find(sessionID string) *model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.Expired(time.Now()) {
		return nil
	}
	return sess
}

// Logout はセッションを破棄する。以後のCurrentは「ユーザーなし」を返す。
// プロバイダー側のトークン失効に失敗してもローカルのセッションは必ず破棄する。
func (s *Store) Logout(ctx context.Context, sessionID string) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return
	}

	if err := s.provider.SignOut(ctx, sess.ProviderToken); err != nil {
		slog.Warn("provider sign-out failed", slog.String("error", err.Error()))
	}

	s.notify(sessionID, nil)
	slog.Info("user logged out", slog.String("session_id", sessionID))
}

// UpdateProfile はプロバイダー側のプロファイルを更新し、
// ローカルのユーザースナップショットを差し替えて購読者へ通知する。
// 認証済みユーザーが存在しない場合は失敗する。
func (s *Store) UpdateProfile(ctx context.Context, sessionID string, update identity.ProfileUpdate) (*model.User, error) {
	sess := s.Find(sessionID)
	if sess == nil {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.provider.UpdateProfile(ctx, sess.ProviderToken, update)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if cur, ok := s.sessions[sessionID]; ok {
		cur.User = user
	}
	s.mu.Unlock()

	s.notify(sessionID, user)
	return user, nil
}

// establish は新しいセッションを作成して保存し、購読者へ通知する。
func (s *Store) establish(cred *identity.Credential) (*model.Session, error) {
	id, err := generateToken(32)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &model.Session{
		ID:            id,
		User:          cred.User,
		ProviderToken: cred.Token,
		ExpiresAt:     now.Add(s.config.SessionMaxAge),
		CreatedAt:     now,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.notify(id, cred.User)
	return sess, nil
}

// generateToken は暗号的に安全なランダムトークンを生成する。
func generateToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
