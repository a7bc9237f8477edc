// rollauth-server runs the roll-in engine behind the inbound event API.
//
// Configuration comes from the environment and an optional .env file (see
// internal/config). The chat gateway authenticates each event with a bearer
// token and receives outbound messages on NOTIFY_WEBHOOK_URL. Without a
// webhook URL, messages are only logged.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	rollAuth "github.com/MrEthical07/rollAuth"
	"github.com/MrEthical07/rollAuth/httpapi"
	"github.com/MrEthical07/rollAuth/internal/config"
	"github.com/MrEthical07/rollAuth/jwt"
	"github.com/MrEthical07/rollAuth/metrics/export/prometheus"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var envFile string
	var addr string

	flagSet := pflag.NewFlagSet("rollauth-server", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "env-file", ".env", "dotenv file to read before the environment")
	flagSet.StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.LoadFile(envFile)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.HTTPAddr = addr
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		return err
	}

	engineCfg := cfg.Engine()
	for _, w := range engineCfg.Lint().BySeverity(rollAuth.LintWarn) {
		logger.Warn("config lint", "code", w.Code, "severity", w.Severity.String(), "msg", w.Message)
	}

	builder := rollAuth.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithLogger(logger).
		WithNotifier(notifier)
	if cfg.AuditEnabled {
		builder = builder.WithAuditSink(rollAuth.NewSlogSink(logger.With("component", "audit")))
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}
	owners, err := cfg.Owners()
	if err != nil {
		return err
	}

	opts := httpapi.Options{
		Verifier: verifier,
		Owners:   owners,
		Logger:   logger,
	}
	if cfg.MetricsEnabled {
		opts.Metrics = prometheus.NewPrometheusExporter(engine).Handler()
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewHandler(engine, opts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down", "active_polls", engine.ActivePolls())
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func newNotifier(cfg *config.Config, logger *slog.Logger) (rollAuth.Notifier, error) {
	catalog := rollAuth.NewCatalog()
	if cfg.NotifyWebhookURL == "" {
		logger.Warn("NOTIFY_WEBHOOK_URL not set; messages are only logged")
		return rollAuth.NewLogNotifier(logger.With("component", "notify"), catalog), nil
	}
	n, err := rollAuth.NewWebhookNotifier(rollAuth.WebhookConfig{
		URL:    cfg.NotifyWebhookURL,
		Secret: cfg.NotifyWebhookSecret,
	}, catalog)
	if err != nil {
		return nil, fmt.Errorf("notify webhook: %w", err)
	}
	return n, nil
}

func newVerifier(cfg *config.Config) (*jwt.Manager, error) {
	jc := jwt.Config{
		TTL:      time.Hour,
		Issuer:   cfg.GatewayIssuer,
		Audience: cfg.GatewayAudience,
		Leeway:   30 * time.Second,
	}
	if cfg.GatewayPublicKey != "" {
		jc.SigningMethod = jwt.MethodEd25519
		jc.PublicKey = []byte(cfg.GatewayPublicKey)
	} else {
		jc.SigningMethod = jwt.MethodHS256
		jc.PrivateKey = []byte(cfg.GatewaySecret)
	}
	m, err := jwt.NewManager(jc)
	if err != nil {
		return nil, fmt.Errorf("gateway jwt: %w", err)
	}
	return m, nil
}
