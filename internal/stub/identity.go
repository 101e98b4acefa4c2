// Package stub はローカル開発用のスタブサーバーを提供する。
// 外部IDプロバイダーとデータサービスをインメモリで模倣し、
// 本体をそれらのSaaSなしで起動できるようにする。
package stub

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/md-abdullah-al-ahad/krishilink-client/internal/model"
)

// account はスタブが保持するアカウント情報。
type account struct {
	UID            string
	Email          string
	PasswordHash   []byte
	DisplayName    string
	PhotoURL       string
	ProviderID     string
	CreationTime   time.Time
	LastSignInTime *time.Time
}

// IdentityServer はIDプロバイダーのインメモリスタブ。
// 本物のプロバイダーと同じエラーコード（auth/*）を返す。
type IdentityServer struct {
	mu       sync.Mutex
	accounts map[string]*account // key: email
	tokens   map[string]string   // token -> email
	codes    map[string]string   // authorization code -> email
	router   chi.Router
}

// NewIdentityServer はIdentityServerを生成する。
func NewIdentityServer() *IdentityServer {
	s := &IdentityServer{
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
		codes:    make(map[string]string),
	}

	r := chi.NewRouter()
	r.Post("/v1/accounts", s.handleCreateAccount)
	r.Post("/v1/sessions", s.handleSignIn)
	r.Post("/v1/sessions/refresh", s.handleRefresh)
	r.Delete("/v1/sessions", s.handleSignOut)
	r.Patch("/v1/profile", s.handleUpdateProfile)
	r.Get("/v1/oauth/authorize", s.handleAuthorize)
	r.Post("/v1/oauth/token", s.handleExchangeCode)
	s.router = r

	return s
}

// Handler はスタブのHTTPハンドラーを返す。
func (s *IdentityServer) Handler() http.Handler {
	return s.router
}

// identityErrorResponse はプロバイダーのエラーレスポンス形式。
type identityErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeIdentityError(w http.ResponseWriter, statusCode int, code, message string) {
	var resp identityErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// credentialResponse はアカウント操作の成功レスポンス。
type credentialResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

type userResponse struct {
	UID            string     `json:"uid"`
	Email          string     `json:"email"`
	DisplayName    string     `json:"displayName"`
	PhotoURL       string     `json:"photoURL"`
	EmailVerified  bool       `json:"emailVerified"`
	ProviderID     string     `json:"providerId"`
	CreationTime   time.Time  `json:"creationTime"`
	LastSignInTime *time.Time `json:"lastSignInTime"`
}

func toUserResponse(a *account) userResponse {
	return userResponse{
		UID:            a.UID,
		Email:          a.Email,
		DisplayName:    a.DisplayName,
		PhotoURL:       a.PhotoURL,
		EmailVerified:  true,
		ProviderID:     a.ProviderID,
		CreationTime:   a.CreationTime,
		LastSignInTime: a.LastSignInTime,
	}
}

// issueToken はアカウントに紐づくトークンを発行する。呼び出し元でロックを取ること。
func (s *IdentityServer) issueToken(email string) string {
	token := uuid.NewString()
	s.tokens[token] = email
	return token
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}

// handleCreateAccount はアカウント作成を処理する。
// POST /v1/accounts
func (s *IdentityServer) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeIdentityError(w, http.StatusBadRequest, "auth/invalid-email", "malformed request body")
		return
	}

	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeIdentityError(w, http.StatusBadRequest, "auth/invalid-email", "email address is badly formatted")
		return
	}
	if req.Password == "" {
		writeIdentityError(w, http.StatusBadRequest, "auth/missing-password", "password is required")
		return
	}
	if len(req.Password) < 6 {
		writeIdentityError(w, http.StatusBadRequest, "auth/weak-password", "password should be at least 6 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeIdentityError(w, http.StatusInternalServerError, "auth/internal-error", "failed to hash password")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(req.Email)
	if _, exists := s.accounts[email]; exists {
		writeIdentityError(w, http.StatusConflict, "auth/email-already-in-use", "email address is already in use")
		return
	}

	now := time.Now()
	a := &account{
		UID:            uuid.NewString(),
		Email:          email,
		PasswordHash:   hash,
		DisplayName:    req.DisplayName,
		ProviderID:     model.ProviderPassword,
		CreationTime:   now,
		LastSignInTime: &now,
	}
	s.accounts[email] = a

	writeJSON(w, http.StatusCreated, credentialResponse{
		User:  toUserResponse(a),
		Token: s.issueToken(email),
	})
}

// handleSignIn は資格情報の検証を処理する。
// POST /v1/sessions
func (s *IdentityServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeIdentityError(w, http.StatusBadRequest, "auth/invalid-credential", "malformed request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[strings.ToLower(req.Email)]
	if !ok {
		writeIdentityError(w, http.StatusNotFound, "auth/user-not-found", "no account found for this email")
		return
	}
	if err := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(req.Password)); err != nil {
		writeIdentityError(w, http.StatusUnauthorized, "auth/wrong-password", "password is invalid")
		return
	}

	now := time.Now()
	a.LastSignInTime = &now

	writeJSON(w, http.StatusOK, credentialResponse{
		User:  toUserResponse(a),
		Token: s.issueToken(a.Email),
	})
}

// handleRefresh はトークンの再検証を処理する。
// POST /v1/sessions/refresh
func (s *IdentityServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.tokens[bearerToken(r)]
	if !ok {
		writeIdentityError(w, http.StatusUnauthorized, "auth/invalid-credential", "token is expired or revoked")
		return
	}
	a := s.accounts[email]

	writeJSON(w, http.StatusOK, credentialResponse{
		User:  toUserResponse(a),
		Token: bearerToken(r),
	})
}

// handleSignOut はトークンの失効を処理する。
// DELETE /v1/sessions
func (s *IdentityServer) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, bearerToken(r))
	w.WriteHeader(http.StatusNoContent)
}

// handleUpdateProfile は表示名・写真URLの更新を処理する。
// PATCH /v1/profile
func (s *IdentityServer) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName *string `json:"displayName"`
		PhotoURL    *string `json:"photoURL"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeIdentityError(w, http.StatusBadRequest, "auth/invalid-credential", "malformed request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	token := bearerToken(r)
	email, ok := s.tokens[token]
	if !ok {
		writeIdentityError(w, http.StatusUnauthorized, "auth/invalid-credential", "token is expired or revoked")
		return
	}
	a := s.accounts[email]

	if req.DisplayName != nil {
		a.DisplayName = *req.DisplayName
	}
	if req.PhotoURL != nil {
		a.PhotoURL = *req.PhotoURL
	}

	writeJSON(w, http.StatusOK, credentialResponse{
		User:  toUserResponse(a),
		Token: token,
	})
}

// handleAuthorize はフェデレーテッドサインインの認可画面を模倣する。
// 同意画面は出さず、デモユーザーを自動承認してリダイレクトする。
// GET /v1/oauth/authorize?redirect_uri=...&state=...
func (s *IdentityServer) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	redirectURI := r.URL.Query().Get("redirect_uri")
	state := r.URL.Query().Get("state")
	if redirectURI == "" {
		writeIdentityError(w, http.StatusBadRequest, "auth/invalid-credential", "redirect_uri is required")
		return
	}

	s.mu.Lock()

	// デモ用のフェデレーテッドアカウントを用意する
	email := "demo.federated@example.com"
	if _, exists := s.accounts[email]; !exists {
		now := time.Now()
		s.accounts[email] = &account{
			UID:            uuid.NewString(),
			Email:          email,
			DisplayName:    "Demo Federated User",
			ProviderID:     model.ProviderFederated,
			CreationTime:   now,
			LastSignInTime: &now,
		}
	}
	code := uuid.NewString()
	s.codes[code] = email
	s.mu.Unlock()

	target, err := url.Parse(redirectURI)
	if err != nil {
		writeIdentityError(w, http.StatusBadRequest, "auth/invalid-credential", "redirect_uri is invalid")
		return
	}
	q := target.Query()
	q.Set("code", code)
	q.Set("state", state)
	target.RawQuery = q.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}

// handleExchangeCode は認可コードをトークンに交換する。
// POST /v1/oauth/token
func (s *IdentityServer) handleExchangeCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeIdentityError(w, http.StatusBadRequest, "auth/invalid-credential", "malformed request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.codes[req.Code]
	if !ok {
		writeIdentityError(w, http.StatusUnauthorized, "auth/invalid-credential", "authorization code is invalid or used")
		return
	}
	delete(s.codes, req.Code)
	a := s.accounts[email]

	now := time.Now()
	a.LastSignInTime = &now

	writeJSON(w, http.StatusOK, credentialResponse{
		User:  toUserResponse(a),
		Token: s.issueToken(email),
	})
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
