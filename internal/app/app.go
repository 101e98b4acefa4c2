// Package app はアプリケーションの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/md-abdullah-al-ahad/krishilink-client/internal/config"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/crop"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/dataservice"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/handler"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/identity"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/interest"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/logger"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/metrics"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/middleware"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/model"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/news"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/security"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/session"
	"github.com/md-abdullah-al-ahad/krishilink-client/internal/stub"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	// stub は外部コラボレーターのURL設定を必要としないため、ログだけ初期化する
	if cmd == CommandStub {
		logger.SetupDefault(w)
		return runStub()
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	return runServe(cfg)
}

// runServe はAPIサーバーモードで起動する。
// 外部コラボレーターのクライアントと全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 2. 外部コラボレーターのクライアント初期化
	// 外向きHTTPクライアントはリクエスト数とレイテンシを計測する
	identityClient := identity.NewClient(identity.ClientConfig{
		BaseURL:     cfg.IdentityBaseURL,
		ClientID:    cfg.FederatedClientID,
		RedirectURL: cfg.FederatedRedirectURL,
		HTTPClient: metrics.NewInstrumentedClient(
			&http.Client{Timeout: 10 * time.Second}, "identity", collector,
		),
	})

	dataClient := dataservice.NewClient(
		cfg.DataServiceBaseURL,
		metrics.NewInstrumentedClient(
			&http.Client{Timeout: 10 * time.Second}, "dataservice", collector,
		),
	)

	// 3. セッションストアの初期化
	sessionStore := session.NewStore(identityClient, session.StoreConfig{
		SessionMaxAge: time.Duration(cfg.SessionMaxAge) * time.Second,
	})
	unsubscribe := sessionStore.Subscribe(func(sessionID string, user *model.User) {
		if user == nil {
			slog.Info("session ended", slog.String("session_id", sessionID))
			return
		}
		slog.Info("session established",
			slog.String("session_id", sessionID),
			slog.String("user", user.Email),
		)
	})
	defer unsubscribe()

	codec := session.NewTokenCodec(cfg.SessionSecret)
	sessions := middleware.NewSessionMiddleware(sessionStore, codec, cfg.CookieSecure, cfg.CookieDomain)

	// 4. ドメインサービスの初期化
	cropService := crop.NewService(dataClient)
	interestService := interest.NewService(dataClient, func(in *model.Interest) {
		collector.RecordInterestTransition(string(in.Status))
	})

	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()
	newsService := news.NewService(news.ServiceConfig{
		FeedURL: cfg.NewsFeedURL,
		SiteURL: cfg.NewsSiteURL,
		Timeout: cfg.NewsFetchTimeout,
		MaxSize: cfg.NewsMaxFetchSize,
	}, ssrfGuard, sanitizer)

	// 5. レート制限の初期化（configはreq/min単位、rate.Limitはreq/sec単位）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitInterest > 0 {
		rateLimiterCfg.InterestSubRate = rate.Limit(float64(cfg.RateLimitInterest) / 60.0)
		rateLimiterCfg.InterestSubBurst = cfg.RateLimitInterest
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 6. ルーターの構築
	deps := &handler.RouterDeps{
		Sessions:          sessions,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter:    rateLimiter,
		StatusRecorder: collector,
		Logger:         slog.Default(),

		AuthService: sessionStore,
		AuthMetrics: collector,
		AuthConfig: handler.AuthHandlerConfig{
			CookieSecure: cfg.CookieSecure,
			FrontendURL:  cfg.CORSAllowedOrigin,
		},

		CropService:     cropService,
		InterestService: interestService,
		NewsService:     newsService,

		MetricsHandler: metrics.Handler(registry),
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveWithGracefulShutdown(server, "API server")
}

// runStub はローカル開発用のスタブサーバーモードで起動する。
// IDプロバイダー（/v1/*）とデータサービス（/crops, /interests）を
// 1つのサーバーに同居させ、デモデータを投入する。
func runStub() error {
	port := os.Getenv("STUB_PORT")
	if port == "" {
		port = "9090"
	}

	identityStub := stub.NewIdentityServer()
	dataStub := stub.NewDataServer()
	dataStub.SeedDemoData()

	// 両スタブのルートはフルパスで定義済みのため、プレフィックスを剥がさず振り分ける
	mux := http.NewServeMux()
	mux.Handle("/v1/", identityStub.Handler())
	mux.Handle("/crops", dataStub.Handler())
	mux.Handle("/crops/", dataStub.Handler())
	mux.Handle("/interests", dataStub.Handler())
	mux.Handle("/interests/", dataStub.Handler())

	slog.Info("stub collaborators starting",
		slog.String("port", port),
		slog.String("identity_base_url", "http://localhost:"+port),
		slog.String("data_service_base_url", "http://localhost:"+port),
	)

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveWithGracefulShutdown(server, "stub server")
}

// serveWithGracefulShutdown はHTTPサーバーを起動し、
// SIGINT/SIGTERMを受信したらグレースフルシャットダウンする。
func serveWithGracefulShutdown(server *http.Server, name string) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down " + name + "...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
