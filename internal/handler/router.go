package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/md-abdullah-al-ahad/krishilink-client/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Sessions          *middleware.SessionMiddleware
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	StatusRecorder    middleware.StatusRecorder
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthMetrics AuthMetrics
	AuthConfig  AuthHandlerConfig

	// 作物リスティング
	CropService CropServiceInterface

	// 興味リクエスト
	InterestService InterestServiceInterface

	// 農業ニュース
	NewsService NewsServiceInterface

	// メトリクス公開エンドポイント（nilの場合は公開しない）
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Logging → Metrics → Recovery → CSRF → WithUser → RateLimit(General)
//
// /health と /metrics はチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	authHandler := NewAuthHandler(deps.AuthService, deps.Sessions, deps.AuthMetrics, deps.AuthConfig)
	cropHandler := NewCropHandler(deps.CropService)
	interestHandler := NewInterestHandler(deps.InterestService)
	newsHandler := NewNewsHandler(deps.NewsService)

	// --- 運用系エンドポイント（ミドルウェアチェーン外） ---
	r.Get("/health", handleHealth)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		r.Use(middleware.NewSecurityHeadersMiddleware())
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
		if deps.StatusRecorder != nil {
			r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
		}
		r.Use(middleware.NewRecoveryMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.Sessions.WithUser())
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// CSRFトークン取得
		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		// 認証ルート
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Get("/federated/login", authHandler.FederatedLogin)
			r.Get("/federated/callback", authHandler.FederatedCallback)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)

			r.With(deps.Sessions.RequireUser()).Patch("/profile", authHandler.UpdateProfile)
		})

		// 作物リスティング（閲覧は認証不要）
		r.Route("/api/crops", func(r chi.Router) {
			r.Get("/", cropHandler.Search)
			r.Get("/latest", cropHandler.Latest)

			r.With(deps.Sessions.RequireUser()).Get("/mine", cropHandler.Mine)
			r.With(deps.Sessions.RequireUser()).Post("/", cropHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cropHandler.Get)

				r.Group(func(r chi.Router) {
					r.Use(deps.Sessions.RequireUser())
					r.Patch("/", cropHandler.Update)
					r.Delete("/", cropHandler.Delete)
					r.Get("/interests", interestHandler.ListForCrop)
				})
			})
		})

		// 興味リクエスト（すべて認証必須）
		r.Route("/api/interests", func(r chi.Router) {
			r.Use(deps.Sessions.RequireUser())

			// POST /api/interests - 興味送信（送信専用レート制限を追加）
			r.With(deps.RateLimiter.InterestSubmissionMiddleware()).Post("/", interestHandler.Express)

			r.Get("/", interestHandler.ListMine)
			r.Patch("/{id}/status", interestHandler.UpdateStatus)
		})

		// 農業ニュース（認証不要）
		r.Get("/api/news", newsHandler.List)
	})

	return r
}

// handleHealth はヘルスチェックを処理する。
// GET /health
func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
