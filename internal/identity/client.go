package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/md-abdullah-al-ahad/krishilink-client/internal/model"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/validation"
)

// ClientConfig はIDプロバイダーHTTPクライアントの設定。
type ClientConfig struct {
	// BaseURL はIDプロバイダーAPIのベースURL。
	BaseURL string

	// 対話型サインイン用
	ClientID    string
	RedirectURL string

	// HTTPClient はテスト用に差し替え可能。未指定時はタイムアウト付きのデフォルト。
	HTTPClient *http.Client
}

// Client はIDプロバイダーREST APIの型付きクライアント。
// すべての失敗はauth/*コードを保持するmodel.AppErrorとして返す。
type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

// NewClient はClientを生成する。
func NewClient(config ClientConfig) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		config:     config,
		httpClient: httpClient,
	}
}

// userPayload はプロバイダーのユーザースナップショット表現。
type userPayload struct {
	UID            string     `json:"uid"`
	Email          string     `json:"email"`
	DisplayName    string     `json:"displayName"`
	PhotoURL       string     `json:"photoURL"`
	EmailVerified  bool       `json:"emailVerified"`
	ProviderID     string     `json:"providerId"`
	CreationTime   time.Time  `json:"creationTime"`
	LastSignInTime *time.Time `json:"lastSignInTime"`
}

// credentialPayload はアカウント操作のレスポンスボディ。
type credentialPayload struct {
	User  userPayload `json:"user"`
	Token string      `json:"token"`
}

// errorPayload はプロバイダーのエラーレスポンスボディ。
type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateAccount はアカウントを作成し、表示名を設定する。
func (c *Client) CreateAccount(ctx context.Context, email, password, displayName string) (*Credential, error) {
	body := map[string]string{
		"email":       email,
		"password":    password,
		"displayName": displayName,
	}
	return c.credentialRequest(ctx, http.MethodPost, "/v1/accounts", body, "")
}

// SignIn は資格情報を検証しセッショントークンを発行する。
func (c *Client) SignIn(ctx context.Context, email, password string) (*Credential, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	return c.credentialRequest(ctx, http.MethodPost, "/v1/sessions", body, "")
}

// BeginInteractive は対話型サインインの認可URLを生成する。
func (c *Client) BeginInteractive(state string) string {
	params := url.Values{
		"client_id":     {c.config.ClientID},
		"redirect_uri":  {c.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"state":         {state},
		"prompt":        {"select_account"},
	}
	return c.config.BaseURL + "/v1/oauth/authorize?" + params.Encode()
}

// ExchangeInteractiveCode は認可コードをトークンに交換し、ユーザー情報を取得する。
func (c *Client) ExchangeInteractiveCode(ctx context.Context, code string) (*Credential, error) {
	body := map[string]string{
		"code":         code,
		"client_id":    c.config.ClientID,
		"redirect_uri": c.config.RedirectURL,
		"grant_type":   "authorization_code",
	}
	return c.credentialRequest(ctx, http.MethodPost, "/v1/oauth/token", body, "")
}

// Refresh はトークンを再検証し、最新のユーザースナップショットを返す。
func (c *Client) Refresh(ctx context.Context, token string) (*Credential, error) {
	return c.credentialRequest(ctx, http.MethodPost, "/v1/sessions/refresh", nil, token)
}

// UpdateProfile はプロバイダー側の表示名・写真URLを更新する。
// nilのフィールドはリクエストに含めず、プロバイダー側で変更されない。
func (c *Client) UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (*model.User, error) {
	body := map[string]string{}
	if update.DisplayName != nil {
		body["displayName"] = *update.DisplayName
	}
	if update.PhotoURL != nil {
		body["photoURL"] = *update.PhotoURL
	}

	cred, err := c.credentialRequest(ctx, http.MethodPatch, "/v1/profile", body, token)
	if err != nil {
		return nil, err
	}
	return cred.User, nil
}

// SignOut はプロバイダー側のトークンを失効させる。
func (c *Client) SignOut(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.config.BaseURL+"/v1/sessions", nil)
	if err != nil {
		return fmt.Errorf("failed to create sign-out request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return networkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return decodeProviderError(resp)
	}
	return nil
}

// credentialRequest はCredentialを返すプロバイダー呼び出しの共通処理。
func (c *Client) credentialRequest(ctx context.Context, method, path string, body any, token string) (*Credential, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeProviderError(resp)
	}

	var payload credentialPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse provider response: %w", err)
	}

	return &Credential{
		User:  payload.User.toModel(),
		Token: payload.Token,
	}, nil
}

// toModel はプロバイダー表現をドメインモデルに変換する。
func (p userPayload) toModel() *model.User {
	return &model.User{
		UID:            p.UID,
		Email:          p.Email,
		DisplayName:    p.DisplayName,
		PhotoURL:       p.PhotoURL,
		EmailVerified:  p.EmailVerified,
		ProviderID:     p.ProviderID,
		CreationTime:   p.CreationTime,
		LastSignInTime: p.LastSignInTime,
	}
}

// decodeProviderError はプロバイダーのエラーレスポンスをAppErrorに変換する。
// ボディが解析できない場合もコード付きの認証エラーとして返す（呼び出し元を壊さない）。
func decodeProviderError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil {
		var payload errorPayload
		if jsonErr := json.Unmarshal(body, &payload); jsonErr == nil && payload.Error.Code != "" {
			code := payload.Error.Code
			return model.NewAuthError(code, validation.AuthErrorMessage(code))
		}
	}
	code := fmt.Sprintf("auth/http-%d", resp.StatusCode)
	return model.NewAuthError(code, validation.AuthErrorMessage(code))
}

// networkError はトランスポート失敗をauth/network-request-failedに変換する。
func networkError(err error) error {
	slog.Warn("identity provider request failed", slog.String("error", err.Error()))
	code := "auth/network-request-failed"
	return model.NewAuthError(code, validation.AuthErrorMessage(code))
}

// compile-time interface check
var _ Provider = (*Client)(nil)
