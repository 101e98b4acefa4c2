package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/md-abdullah-al-ahad/krishilink-client/internal/middleware"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/model"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/news"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/session"
)

// mockNewsService はNewsServiceInterfaceのモック実装。
type mockNewsService struct {
	articlesFn func(ctx context.Context) []news.Article
}

func (m *mockNewsService) Articles(ctx context.Context) []news.Article {
	if m.articlesFn != nil {
		return m.articlesFn(ctx)
	}
	return news.FallbackArticles()
}

// newTestRouter はルーター統合テスト用の依存関係一式を組み立てるヘルパー。
func newTestRouter(t *testing.T, resolver middleware.SessionResolver) http.Handler {
	t.Helper()

	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(limiter.Stop)

	deps := &RouterDeps{
		Sessions:          newTestSessions(resolver),
		CORSAllowedOrigin: "http://localhost:5173",
		CSRFConfig:        middleware.CSRFConfig{},
		RateLimiter:       limiter,
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		AuthService:       &mockAuthService{},
		CropService: &mockCropService{
			searchFn: func(ctx context.Context, query string) ([]model.Crop, error) {
				return []model.Crop{testCrop("c1", "Tomato")}, nil
			},
		},
		InterestService: &mockInterestService{},
		NewsService:     &mockNewsService{},
	}
	return NewRouter(deps)
}

// sessionRequest はセッションCookie付きのリクエストを生成するヘルパー。
func sessionRequest(t *testing.T, method, target string, body *bytes.Buffer) *http.Request {
	t.Helper()

	codec := session.NewTokenCodec("test-secret")
	token, err := codec.Issue(testSession(testUser()))
	if err != nil {
		t.Fatalf("failed to issue session token: %v", err)
	}

	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, body)
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	r.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	return r
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t, &mockResolver{})

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %s, want ok", resp["status"])
	}
}

func TestRouter_PublicCropListing(t *testing.T) {
	// 作物一覧は認証なしで閲覧できる
	router := newTestRouter(t, &mockResolver{})

	r := httptest.NewRequest(http.MethodGet, "/api/crops", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp cropsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Crops) != 1 {
		t.Errorf("crops = %d, want 1", len(resp.Crops))
	}
}

func TestRouter_ProtectedRouteRequiresSession(t *testing.T) {
	router := newTestRouter(t, &mockResolver{})

	r := httptest.NewRequest(http.MethodGet, "/api/crops/mine", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRouter_ProtectedRouteWithSession(t *testing.T) {
	sess := testSession(testUser())
	resolver := &mockResolver{
		findFn: func(sessionID string) *model.Session {
			if sessionID == sess.ID {
				return sess
			}
			return nil
		},
	}
	router := newTestRouter(t, resolver)

	r := sessionRequest(t, http.MethodGet, "/api/crops/mine", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_CSRFProtectsStateChangingRequests(t *testing.T) {
	sess := testSession(testUser())
	resolver := &mockResolver{
		findFn: func(sessionID string) *model.Session { return sess },
	}
	router := newTestRouter(t, resolver)

	// CSRFトークンなしのPOSTは403
	body := bytes.NewBufferString(`{"cropId":"c1","quantity":10}`)
	r := sessionRequest(t, http.MethodPost, "/api/interests", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status without CSRF token = %d, want %d", w.Code, http.StatusForbidden)
	}

	// Cookie+ヘッダーが揃っていれば通過する
	body = bytes.NewBufferString(`{"cropId":"c1","quantity":10}`)
	r = sessionRequest(t, http.MethodPost, "/api/interests", body)
	r.AddCookie(&http.Cookie{Name: "csrf_token", Value: "tok-1"})
	r.Header.Set("X-CSRF-Token", "tok-1")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code == http.StatusForbidden {
		t.Errorf("status with CSRF token = %d, should not be forbidden", w.Code)
	}
}

func TestRouter_News(t *testing.T) {
	router := newTestRouter(t, &mockResolver{})

	r := httptest.NewRequest(http.MethodGet, "/api/news", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp newsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Articles) == 0 {
		t.Error("articles should not be empty")
	}
}

func TestRouter_CSRFTokenEndpoint(t *testing.T) {
	router := newTestRouter(t, &mockResolver{})

	r := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["token"] == "" {
		t.Error("token should not be empty")
	}
}
