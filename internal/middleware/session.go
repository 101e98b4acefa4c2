// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/md-abdullah-al-ahad/krishilink-client/internal/model"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/session"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
	userContextKey = contextKey("user")
	// sessionIDContextKey はリクエストコンテキストにセッションIDを格納するためのキー。
	sessionIDContextKey = contextKey("session_id")
)

// SessionResolver はCookieトークンからセッションを解決するのに必要なインターフェース。
// session.Storeの部分集合として定義する。
type SessionResolver interface {
	Find(sessionID string) *model.Session
	Resume(ctx context.Context, providerToken string) (*model.Session, error)
}

// SessionMiddleware はセッションCookieの解決と認証チェックを提供する。
type SessionMiddleware struct {
	resolver     SessionResolver
	codec        *session.TokenCodec
	cookieSecure bool
	cookieDomain string
}

// NewSessionMiddleware はSessionMiddlewareの新しいインスタンスを生成する。
func NewSessionMiddleware(resolver SessionResolver, codec *session.TokenCodec, cookieSecure bool, cookieDomain string) *SessionMiddleware {
	return &SessionMiddleware{
		resolver:     resolver,
		codec:        codec,
		cookieSecure: cookieSecure,
		cookieDomain: cookieDomain,
	}
}

// WithUser はセッションCookieを読み取り、有効であれば認証済みユーザーを
// リクエストコンテキストに注入するミドルウェアを返す。
// インメモリのセッションが見つからない場合（再起動後など）は、
// Cookieに保存されたプロバイダートークンを再検証してセッションを復元する。
// Cookieが無い・無効なリクエストもそのまま通す（匿名アクセス可能なAPI向け）。
func (m *SessionMiddleware) WithUser() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Cookieからセッショントークンを取得
			cookie, err := r.Cookie(session.CookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			// 2. トークンを検証してセッションIDとプロバイダートークンを取得
			sessionID, providerToken, err := m.codec.Parse(cookie.Value)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			// 3. インメモリのセッションを検索
			sess := m.resolver.Find(sessionID)

			// 4. 見つからない場合はプロバイダートークンを再検証して復元
			if sess == nil && providerToken != "" {
				sess, err = m.resolver.Resume(r.Context(), providerToken)
				if err != nil {
					slog.Warn("session resume failed", slog.String("error", err.Error()))
					next.ServeHTTP(w, r)
					return
				}
				// 復元された新しいセッションIDでCookieを張り替える
				m.SetCookie(w, sess)
			}
			if sess == nil {
				next.ServeHTTP(w, r)
				return
			}

			// 5. 認証済みユーザーをコンテキストに注入
			ctx := ContextWithUser(r.Context(), sess.User)
			ctx = context.WithValue(ctx, sessionIDContextKey, sess.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser は認証済みユーザーの存在を必須とするミドルウェアを返す。
// WithUserの後に配置すること。未認証リクエストには401を返す。
func (m *SessionMiddleware) RequireUser() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := UserFromContext(r.Context()); err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetCookie はセッショントークンをHTTP Only Cookieに設定する。
func (m *SessionMiddleware) SetCookie(w http.ResponseWriter, sess *model.Session) {
	token, err := m.codec.Issue(sess)
	if err != nil {
		slog.Error("failed to issue session token", slog.String("error", err.Error()))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		Domain:   m.cookieDomain,
		MaxAge:   int(session.Lifetime(sess, time.Now()).Seconds()),
		HttpOnly: true,
		Secure:   m.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie はセッションCookieを削除する。
func (m *SessionMiddleware) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.cookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// WithUserミドルウェアを通過した認証済みリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// SessionIDFromContext はリクエストコンテキストからセッションIDを取得する。
func SessionIDFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(sessionIDContextKey).(string)
	if !ok || id == "" {
		return "", fmt.Errorf("session ID not found in context")
	}
	return id, nil
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// ContextWithSessionID はコンテキストにセッションIDを注入する。テスト用。
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey, sessionID)
}
