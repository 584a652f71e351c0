package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/apigate-dev/restgateway/internal/access"
	"github.com/apigate-dev/restgateway/internal/config"
	"github.com/apigate-dev/restgateway/internal/db"
	gatewayhttp "github.com/apigate-dev/restgateway/internal/http"
	"github.com/apigate-dev/restgateway/internal/http/api"
	"github.com/apigate-dev/restgateway/internal/http/api/admin"
	"github.com/apigate-dev/restgateway/internal/http/api/front"
	v1 "github.com/apigate-dev/restgateway/internal/http/api/v1"
	"github.com/apigate-dev/restgateway/internal/integrations"
	"github.com/apigate-dev/restgateway/internal/logging"
	"github.com/apigate-dev/restgateway/internal/metrics"
	"github.com/apigate-dev/restgateway/internal/quota"
	"github.com/apigate-dev/restgateway/internal/ratelimit"
	"github.com/apigate-dev/restgateway/internal/security"
	"github.com/apigate-dev/restgateway/internal/store"
	"github.com/apigate-dev/restgateway/internal/usage"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server.
const shutdownTimeout = 15 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, appCfg config.AppConfig) error {
	cfg, err := config.Load(appCfg.ConfigPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer closeDB(conn)
	return db.Migrate(conn.WithContext(ctx))
}

// RunServer boots the gateway and blocks until ctx is cancelled.
func RunServer(ctx context.Context, appCfg config.AppConfig) error {
	cfg, err := config.Load(appCfg.ConfigPath)
	if err != nil {
		return err
	}
	logCloser, errLog := logging.Setup(cfg.Log)
	if errLog != nil {
		return errLog
	}
	defer func() { _ = logCloser.Close() }()

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer closeDB(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	var counter ratelimit.Counter
	if redisCounter := ratelimit.NewRedisCounter(cfg.Redis); redisCounter != nil {
		defer func() { _ = redisCounter.Close() }()
		if errPing := redisCounter.Ping(ctx); errPing != nil {
			log.WithError(errPing).Warn("redis unreachable, burst limiter fails open until it recovers")
		}
		counter = redisCounter
	}

	deps, errDeps := NewDeps(cfg, conn, counter, nowUTC)
	if errDeps != nil {
		return errDeps
	}
	defer deps.Recorder.Close()

	usage.NewRetentionCleaner(deps.Store, cfg.Usage.RetentionDays, cfg.Auth.SessionRetention, cfg.Usage.RetentionInterval).Start(ctx)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := NewRouter(deps, conn)
	if !cfg.Server.TrustProxy {
		if errProxies := engine.SetTrustedProxies(nil); errProxies != nil {
			return fmt.Errorf("app: trusted proxies: %w", errProxies)
		}
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	errServe := make(chan error, 1)
	go func() {
		log.Infof("gateway listening on %s", server.Addr)
		if errListen := server.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
			errServe <- errListen
		}
		close(errServe)
	}()

	select {
	case errListen := <-errServe:
		if errListen != nil {
			return fmt.Errorf("app: serve: %w", errListen)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("app: shutdown: %w", errShutdown)
	}
	return nil
}

// NewDeps builds every request-path component over conn. counter may be nil,
// which disables the burst limiter.
func NewDeps(cfg config.Config, conn *gorm.DB, counter ratelimit.Counter, now func() time.Time) (api.Deps, error) {
	if now == nil {
		now = nowUTC
	}
	s := store.New(conn)
	ledger := quota.NewLedger(s, now)
	gate := access.NewGate(s, ledger, access.Options{
		JWTSecret:        cfg.JWT.Secret,
		EnforceSessions:  cfg.Auth.EnforceSessions,
		SessionRetention: cfg.Auth.SessionRetention,
		Now:              now,
	})

	var limiter *ratelimit.Limiter
	if counter != nil {
		l, errLimiter := ratelimit.NewLimiter(counter, cfg.Redis.RequestsPerMinute, now)
		if errLimiter != nil {
			return api.Deps{}, fmt.Errorf("app: burst limiter: %w", errLimiter)
		}
		limiter = l
	}

	return api.Deps{
		Config:      cfg,
		Store:       s,
		Ledger:      ledger,
		Gate:        gate,
		Resp:        gatewayhttp.NewResponder(cfg.Response, now),
		Recorder:    usage.NewRecorder(s, cfg.Usage.QueueSize, now),
		Limiter:     limiter,
		Downloader:  integrations.NewHTTPDownloader(cfg.Integrations),
		Chat:        integrations.NewHTTPChat(cfg.Integrations),
		Payments:    integrations.NewStripePayments(cfg.Stripe),
		PendingTOTP: security.NewPendingTOTPSecrets(now),
		Now:         now,
	}, nil
}

// NewRouter builds the gin engine with every route group registered.
func NewRouter(deps api.Deps, conn *gorm.DB) *gin.Engine {
	engine := gin.New()
	engine.Use(
		logging.GinRequestID(),
		logging.GinLogger(),
		metrics.Middleware(),
		gin.Recovery(),
	)

	health := gatewayhttp.NewHealthHandler(conn, deps.Resp)
	engine.GET("/healthz", health.Healthz)
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	front.RegisterFrontRoutes(engine, deps)
	v1.RegisterV1Routes(engine, deps)
	admin.RegisterAdminRoutes(engine, deps)

	engine.NoRoute(func(c *gin.Context) {
		deps.Resp.Error(c, http.StatusNotFound, "NotFound", "route not found")
	})
	return engine
}

func closeDB(conn *gorm.DB) {
	if sqlDB, errDB := conn.DB(); errDB == nil {
		_ = sqlDB.Close()
	}
}

// nowUTC returns the current UTC time.
func nowUTC() time.Time { return time.Now().UTC() }
