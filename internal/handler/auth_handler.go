package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/md-abdullah-al-ahad/krishilink-client/internal/identity"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/middleware"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/model"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
// session.Storeが実装する。
type AuthServiceInterface interface {
	Register(ctx context.Context, email, password, displayName string) (*model.Session, error)
	SignIn(ctx context.Context, email, password string) (*model.Session, error)
	BeginInteractive() (loginURL, state string, err error)
	CompleteInteractive(ctx context.Context, state, code string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string)
	UpdateProfile(ctx context.Context, sessionID string, update identity.ProfileUpdate) (*model.User, error)
}

// AuthMetrics は認証試行の計測インターフェース。
type AuthMetrics interface {
	RecordAuthAttempt(operation string, success bool)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieSecure bool
	// FrontendURL はフェデレーテッドサインイン完了後のリダイレクト先。
	FrontendURL string
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	sessions *middleware.SessionMiddleware
	metrics  AuthMetrics
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, sessions *middleware.SessionMiddleware, metrics AuthMetrics, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		sessions: sessions,
		metrics:  metrics,
		config:   config,
	}
}

func (h *AuthHandler) recordAttempt(operation string, success bool) {
	if h.metrics != nil {
		h.metrics.RecordAuthAttempt(operation, success)
	}
}

// registerRequest はアカウント登録リクエストのボディ。
type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// updateProfileRequest はプロファイル更新リクエストのボディ。
// nilのフィールドは変更しない。
type updateProfileRequest struct {
	DisplayName *string `json:"displayName"`
	PhotoURL    *string `json:"photoURL"`
}

// userResponse は認証済みユーザーのAPIレスポンス。
type userResponse struct {
	User *model.User `json:"user"`
}

// Register はメール+パスワードでのアカウント登録を処理する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	sess, err := h.service.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		h.recordAttempt("register", false)
		handleServiceError(w, err)
		return
	}
	h.recordAttempt("register", true)

	h.sessions.SetCookie(w, sess)
	writeJSON(w, http.StatusCreated, userResponse{User: sess.User})
}

// Login はメール+パスワードでのログインを処理する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}

	sess, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.recordAttempt("login", false)
		handleServiceError(w, err)
		return
	}
	h.recordAttempt("login", true)

	h.sessions.SetCookie(w, sess)
	writeJSON(w, http.StatusOK, userResponse{User: sess.User})
}

// FederatedLogin はフェデレーテッド（対話型）サインインフローを開始する。
// GET /auth/federated/login
func (h *AuthHandler) FederatedLogin(w http.ResponseWriter, r *http.Request) {
	loginURL, state, err := h.service.BeginInteractive()
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, loginURL, http.StatusTemporaryRedirect)
}

// FederatedCallback はフェデレーテッドサインインのコールバックを処理する。
// GET /auth/federated/callback?code=xxx&state=yyy
// ユーザーがプロバイダー側でキャンセルした場合はerror=access_deniedが付与される。
func (h *AuthHandler) FederatedCallback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value != state {
		slog.Warn("federated sign-in state mismatch",
			slog.String("query_state", state),
		)
		writeAppErrorResponse(w, http.StatusBadRequest, &model.AppError{
			Code:     "INVALID_STATE",
			Message:  "The sign-in request could not be verified.",
			Category: "auth",
			Action:   "Please start the sign-in again.",
		})
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得（キャンセル時はcodeが空のまま渡す）
	code := r.URL.Query().Get("code")
	if r.URL.Query().Get("error") == "access_denied" {
		code = ""
	}

	// 3. コード交換とセッション確立
	sess, err := h.service.CompleteInteractive(r.Context(), state, code)
	if err != nil {
		h.recordAttempt("federated", false)
		handleServiceError(w, err)
		return
	}
	h.recordAttempt("federated", true)

	// 4. セッションCookieを設定しフロントエンドへリダイレクト
	h.sessions.SetCookie(w, sess)
	redirectTo := h.config.FrontendURL
	if redirectTo == "" {
		redirectTo = "/"
	}
	http.Redirect(w, r, redirectTo, http.StatusTemporaryRedirect)
}

// Logout はログアウトを処理する。
// POST /auth/logout
// セッションが無い場合もCookieを消去し204を返す。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID, err := middleware.SessionIDFromContext(r.Context()); err == nil {
		h.service.Logout(r.Context(), sessionID)
	}

	h.sessions.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザーを返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAppErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, userResponse{User: user})
}

// UpdateProfile は表示名・写真URLの更新を処理する。
// PATCH /auth/profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	sessionID, err := middleware.SessionIDFromContext(r.Context())
	if err != nil {
		writeAppErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppErrorResponse(w, http.StatusBadRequest, invalidRequestBodyError())
		return
	}
	if req.DisplayName == nil && req.PhotoURL == nil {
		writeAppErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Nothing to update"))
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), sessionID, identity.ProfileUpdate{
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{User: user})
}

// invalidRequestBodyError はリクエストボディの解析失敗エラーを生成する。
func invalidRequestBodyError() *model.AppError {
	return &model.AppError{
		Code:     "INVALID_REQUEST",
		Message:  "The request body could not be parsed.",
		Category: "validation",
		Action:   "Send the request in valid JSON format.",
	}
}
