// Package app はCLIのコマンドツリーと依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/campuslink/internal/auth"
	"github.com/hitoshi/campuslink/internal/config"
	"github.com/hitoshi/campuslink/internal/database"
	"github.com/hitoshi/campuslink/internal/gateway"
	"github.com/hitoshi/campuslink/internal/identity"
	"github.com/hitoshi/campuslink/internal/logger"
	"github.com/hitoshi/campuslink/internal/metrics"
	"github.com/hitoshi/campuslink/internal/portal"
	"github.com/hitoshi/campuslink/internal/session"
	"github.com/hitoshi/campuslink/internal/storage"
	"github.com/hitoshi/campuslink/internal/technews"
)

// Run はCLIのメインエントリーポイント。argsにはos.Args[1:]を渡す。
// 結果はwに、ログは標準エラー出力に書き込む。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(&Env{Out: w, LogOut: os.Stderr})
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// Env はコマンドの実行環境。テストでは出力先やHTTPクライアントを差し替える。
type Env struct {
	Out    io.Writer
	LogOut io.Writer
	// HTTPClient が nil の場合はHTTP_TIMEOUTに従ったクライアントを使う。
	HTTPClient *http.Client
	// FeedClient が nil の場合はSSRF対策済みのクライアントを使う。
	FeedClient *http.Client
	// FeedGuard が nil の場合はsecurity.GuardでフィードURLを検証する。
	FeedGuard technews.URLGuard
}

// Init は設定を読み込み、JSON構造化ログをセットアップする。
func Init(env *Env) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.SetupDefault(env.LogOut, logger.ParseLevel(cfg.LogLevel))
	return cfg, log, nil
}

// Client はハイドレート済みのセッションを中心に組み立てたクライアント一式。
type Client struct {
	Config    *config.Config
	Logger    *slog.Logger
	Registry  *prometheus.Registry
	Collector *metrics.Collector
	Session   *session.Store
	Gateway   *gateway.Gateway
	Auth      *auth.Service
	Portal    *portal.Client

	closers []func() error
}

// NewClient は設定に従ってストレージを開き、セッションをハイドレートしてから
// ゲートウェイ・認証・ポータルクライアントを組み立てる。
// ハイドレートが完了するまで認証状態に依存する処理は行わない。
func NewClient(ctx context.Context, env *Env, cfg *config.Config, log *slog.Logger) (*Client, error) {
	c := &Client{
		Config:   cfg,
		Logger:   log,
		Registry: prometheus.NewRegistry(),
	}
	c.Collector = metrics.NewCollector(c.Registry)

	store, err := c.openStorage(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Session = session.NewStore(store, log)
	state := c.Session.Hydrate(ctx)
	log.Debug("session hydrated",
		slog.String("state", state.String()),
		slog.String("backend", backendLabel(cfg)),
	)

	httpClient := env.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	c.Gateway = gateway.New(cfg.APIBaseURL, httpClient, c.Session, c.Collector, log)
	c.Gateway.OnInvalidate(func(context.Context) {
		log.Info("session expired, please login again")
	})

	idp := identity.NewToolkitClient(httpClient, cfg.IdentityBaseURL, cfg.IdentityAPIKey, log)
	c.Auth = auth.NewService(idp, c.Gateway, c.Session, log)
	c.Portal = portal.NewClient(c.Gateway, log)

	return c, nil
}

// openStorage はSESSION_BACKENDに応じた永続ストレージを開く。
func (c *Client) openStorage(ctx context.Context) (storage.Store, error) {
	cfg := c.Config
	switch cfg.SessionBackend {
	case config.SessionBackendMemory:
		return storage.NewMemoryStore(), nil

	case config.SessionBackendPostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, db.Close)
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return storage.NewPostgresStore(db, cfg.SessionKeyPrefix), nil

	case config.SessionBackendRedis:
		client, err := storage.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, client.Close)
		return storage.NewRedisStore(client, cfg.SessionKeyPrefix), nil

	default:
		return storage.NewFileStore(cfg.SessionFile), nil
	}
}

// Close はメトリクスをtextfileに書き出し、開いた接続を閉じる。
func (c *Client) Close() error {
	var errs []error
	if c.Config != nil && c.Config.MetricsTextfile != "" && c.Registry != nil {
		if err := metrics.WriteTextfile(c.Config.MetricsTextfile, c.Registry); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// runMigrate はセッション保存用テーブルのマイグレーションを実行する。
func runMigrate(cfg *config.Config, log *slog.Logger) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrate")
	}

	log.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info("database migrations completed successfully")
	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
