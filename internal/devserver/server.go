package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/campuslink/internal/metrics"
	"github.com/hitoshi/campuslink/internal/middleware"
	"github.com/hitoshi/campuslink/internal/security"
)

// Config は開発用バックエンドの設定。
type Config struct {
	JWTSecret         string
	TokenTTL          time.Duration
	IdentityAPIKey    string
	RateLimitPerMin   int
	CORSAllowedOrigin string
}

// Server は開発用バックエンド。ストアとIdPスタブをまとめて保持する。
type Server struct {
	Store    *Store
	Identity *IdentityStub
	Tokens   *TokenIssuer

	limiter *middleware.RateLimiter
	handler http.Handler
	logger  *slog.Logger
}

// New はServerを生成する。gathererがnilでない場合は/metricsで公開する。
func New(cfg Config, collector metrics.MetricsCollector, gatherer prometheus.Gatherer, logger *slog.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("devserver requires a JWT secret")
	}
	if collector == nil {
		collector = metrics.Noop{}
	}

	s := &Server{
		Store:    NewStore(),
		Identity: NewIdentityStub(cfg.IdentityAPIKey, logger),
		Tokens:   NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		limiter:  middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitPerMin), logger),
		logger:   logger,
	}
	s.handler = s.routes(cfg, collector, gatherer)
	return s, nil
}

// Handler はルーティング済みのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Close はバックグラウンド処理を停止する。
func (s *Server) Close() {
	s.limiter.Stop()
}

// routes は全エンドポイントのルーティングとミドルウェアチェーンを構成する。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → (Bearer → RateLimit)
//
// 認証ルート（/api/auth/*）とIdPスタブ（/identity/v1/*）はベアラー認証の外に置き、
// IP単位でレート制限する。
func (s *Server) routes(cfg Config, collector metrics.MetricsCollector, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(s.logger))
	r.Use(middleware.NewLoggingMiddleware(s.logger, collector))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(cfg.CORSAllowedOrigin))

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))
	}

	authHandler := &AuthHandler{store: s.Store, tokens: s.Tokens, logger: s.logger}
	res := &ResourceHandler{store: s.Store, sanitizer: security.NewTextSanitizer(0), logger: s.logger}

	// --- 認証不要のルート ---
	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware())

		r.Post("/identity/v1/{method}", s.Identity.ServeAccounts)
		r.Post("/api/auth/login", authHandler.Login)
		r.Post("/api/auth/signup", authHandler.Signup)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewBearerMiddleware(s.Tokens))
		r.Use(s.limiter.Middleware())

		r.Route("/api/announcements", func(r chi.Router) {
			r.Get("/getann", res.ListAnnouncements)
			r.Post("/createann", res.CreateAnnouncement)
		})

		r.Route("/api/complaints", func(r chi.Router) {
			r.Get("/", res.ListComplaints)
			r.Post("/", res.CreateComplaint)
			r.With(middleware.RequireAdmin).Patch("/{id}/status", res.UpdateComplaintStatus)
		})

		r.Route("/api/lost-found", func(r chi.Router) {
			r.Get("/", res.ListLostFound)
			r.Post("/", res.CreateLostFound)
			r.Put("/{id}", res.UpdateLostFound)
			r.Delete("/{id}", res.DeleteLostFound)
		})

		r.Route("/api/timetable", func(r chi.Router) {
			r.Get("/", res.ListTimetable)
			r.Post("/", res.CreateTimetable)
			r.Put("/{id}", res.UpdateTimetable)
			r.Delete("/{id}", res.DeleteTimetable)
		})

		r.Route("/api/polls", func(r chi.Router) {
			r.Get("/", res.ListPolls)
			r.Get("/category/{category}", res.ListPolls)
			r.With(middleware.RequireAdmin).Post("/", res.CreatePoll)
			r.Post("/{id}/vote", res.Vote)
			r.Get("/{id}/results", res.PollResults)
			r.With(middleware.RequireAdmin).Delete("/{id}", res.DeletePoll)
		})

		r.Route("/api/tech-news", func(r chi.Router) {
			r.Get("/", res.ListTechNews)
			r.Get("/type/{type}", res.ListTechNews)
			r.With(middleware.RequireAdmin).Post("/", res.CreateTechNews)
			r.With(middleware.RequireAdmin).Delete("/{id}", res.DeleteTechNews)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Route not found")
	})

	return r
}

// ListenAndServe はaddrで待ち受け、ctxがキャンセルされるとグレースフルシャットダウンする。
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("devserver starting", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("devserver listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down devserver...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("devserver shutdown failed: %w", err)
	}
	s.logger.Info("devserver stopped")
	return nil
}
