package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	goAccounts "github.com/MrEthical07/goAccounts"
	"github.com/MrEthical07/goAccounts/internal/httpapi"
	"github.com/MrEthical07/goAccounts/mail"
	"github.com/MrEthical07/goAccounts/metrics/export/prometheus"
	"github.com/MrEthical07/goAccounts/pgstore"
	"github.com/MrEthical07/goAccounts/redisstore"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type serveOptions struct {
	addr          string
	redisAddr     string
	redisPrefix   string
	settingsFile  string
	migrate       bool
	trustProxy    bool
	smtpHost      string
	smtpPort      int
	smtpUser      string
	smtpPassword  string
	shutdownGrace time.Duration
}

var serveOpts serveOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, serveOpts)
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveOpts.addr, "addr", ":8080", "HTTP listen address")
	f.StringVar(&serveOpts.redisAddr, "redis-addr", "localhost:6379", "Redis address")
	f.StringVar(&serveOpts.redisPrefix, "redis-prefix", "acc:", "Redis key prefix")
	f.StringVar(&serveOpts.settingsFile, "settings-file", "", "YAML settings written to Redis at startup")
	f.BoolVar(&serveOpts.migrate, "migrate", false, "Apply migrations before serving")
	f.BoolVar(&serveOpts.trustProxy, "trust-proxy", false, "Take the client address from X-Forwarded-For")
	f.StringVar(&serveOpts.smtpHost, "smtp-host", "", "SMTP relay host; empty logs mail instead")
	f.IntVar(&serveOpts.smtpPort, "smtp-port", 587, "SMTP relay port")
	f.StringVar(&serveOpts.smtpUser, "smtp-user", "", "SMTP username")
	f.StringVar(&serveOpts.smtpPassword, "smtp-password", "", "SMTP password")
	f.DurationVar(&serveOpts.shutdownGrace, "shutdown-grace", 15*time.Second, "Graceful shutdown timeout")
}

func runServe(ctx context.Context, opts serveOptions) error {
	if databaseURL == "" {
		return errors.New("--database-url is required")
	}

	base := goAccounts.DefaultConfig()
	base.Metrics.Enabled = true
	base.Audit.Enabled = true
	cfg, err := goAccounts.LoadEnvConfig(base)
	if err != nil {
		return err
	}
	cfg.LoginThrottle.RedisPrefix = opts.redisPrefix
	for _, w := range cfg.Lint() {
		logger.Warn("config lint", zap.String("code", w.Code), zap.String("message", w.Message))
	}

	db, err := pgstore.Open(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if opts.migrate {
		if err := pgstore.Migrate(ctx, db); err != nil {
			return err
		}
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{opts.redisAddr}})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	settings := redisstore.NewSettings(rdb, opts.redisPrefix)
	if opts.settingsFile != "" {
		s, err := goAccounts.LoadSettingsFile(opts.settingsFile)
		if err != nil {
			return err
		}
		if err := settings.Store(ctx, s); err != nil {
			return err
		}
	}

	var mailer goAccounts.Mailer = mail.NewLogSender(logger)
	if opts.smtpHost != "" {
		mailer = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     opts.smtpHost,
			Port:     opts.smtpPort,
			Username: opts.smtpUser,
			Password: opts.smtpPassword,
		})
	}

	users := pgstore.NewUsers(db)
	rooms := pgstore.NewRooms(db)

	engine, err := goAccounts.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithRedis(rdb).
		WithSettings(settings).
		WithUserStore(users).
		WithRoleStore(users).
		WithResumeTokenStore(redisstore.NewResumeTokens(rdb, opts.redisPrefix)).
		WithRooms(rooms, rooms).
		WithMailer(mailer).
		WithAuditSink(goAccounts.NewZapSink(logger)).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer func() {
		engine.Close()
		if n := engine.AuditDropped(); n > 0 {
			logger.Warn("audit events dropped during run", zap.Uint64("count", n))
		}
	}()

	router := httpapi.NewRouter(httpapi.Deps{
		Accounts:   engine,
		Metrics:    prometheus.NewPrometheusExporter(engine).Handler(),
		Log:        logger,
		TrustProxy: opts.trustProxy,
	})

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", opts.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.shutdownGrace)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
