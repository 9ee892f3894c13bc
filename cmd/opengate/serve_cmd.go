package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/deskiziarecords/OpenGate/pkg/admission"
	"github.com/deskiziarecords/OpenGate/pkg/api"
	"github.com/deskiziarecords/OpenGate/pkg/attest"
	"github.com/deskiziarecords/OpenGate/pkg/config"
	"github.com/deskiziarecords/OpenGate/pkg/ledger"
	"github.com/deskiziarecords/OpenGate/pkg/observability"
	"github.com/deskiziarecords/OpenGate/pkg/receipts"
)

// runServeCmd implements `opengate serve`. Configuration comes from the
// environment; --addr and --profile override it.
func runServeCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("serve", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	cfg := config.Load()
	cmd.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	cmd.StringVar(&cfg.ProfilePath, "profile", cfg.ProfilePath, "Gate profile (YAML or JSON)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	logger := newLogger(cfg.LogFormat, cfg.LogLevel, stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, _ = fmt.Fprintf(stdout, "%sOpen Gate %s starting...%s\n", ColorBold+ColorBlue, config.Version, ColorReset)

	deps, err := buildServer(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 2
	}
	defer deps.close(logger)

	_, _ = fmt.Fprintf(stdout, "🔑 Receipt key: %s%s%s\n", ColorBold+ColorGreen, deps.signer.PublicKeyHex(), ColorReset)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           deps.handler,
		ReadHeaderTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	logger.Info("listening", "addr", cfg.Addr, "profile", deps.gate.Profile().Name)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server", "error", err)
		return 2
	}
	return 0
}

type serverDeps struct {
	gate    *admission.Gate
	handler http.Handler
	signer  *attest.Ed25519Signer
	closers []func() error
	metrics *observability.Provider
}

func (d *serverDeps) close(logger *slog.Logger) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			logger.Warn("close", "error", err)
		}
	}
	if d.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.metrics.Shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}
}

// buildServer wires storage, signing, telemetry and the HTTP surface from cfg.
// The rate limiter sweeper stops when ctx is done.
func buildServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*serverDeps, error) {
	deps := &serverDeps{}
	fail := func(err error) (*serverDeps, error) {
		deps.close(logger)
		return nil, err
	}

	profile := config.DefaultProfile()
	if cfg.ProfilePath != "" {
		p, err := config.LoadProfile(cfg.ProfilePath)
		if err != nil {
			return fail(err)
		}
		profile = p
	}

	store, closeStore, err := openReceiptStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fail(err)
	}
	if closeStore != nil {
		deps.closers = append(deps.closers, closeStore)
	}

	var signer *attest.Ed25519Signer
	if cfg.SigningSeed != "" {
		signer, err = attest.NewEd25519SignerFromHexSeed(cfg.SigningSeed, "receipts")
	} else {
		signer, err = attest.NewEd25519Signer("receipts")
		logger.Warn("OPENGATE_SIGNING_SEED not set; receipts are signed with an ephemeral key")
	}
	if err != nil {
		return fail(fmt.Errorf("receipt signer: %w", err))
	}
	deps.signer = signer

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = config.Version
	obsCfg.Enabled = cfg.OTLPEndpoint != ""
	if obsCfg.Enabled {
		obsCfg.OTLPEndpoint = strings.TrimPrefix(strings.TrimPrefix(cfg.OTLPEndpoint, "http://"), "https://")
		obsCfg.Insecure = !strings.HasPrefix(cfg.OTLPEndpoint, "https://")
	}
	metrics, err := observability.New(ctx, obsCfg)
	if err != nil {
		return fail(fmt.Errorf("telemetry: %w", err))
	}
	deps.metrics = metrics

	opts := []admission.Option{
		admission.WithRecorder(receipts.NewRecorder(store, signer)),
		admission.WithMetrics(metrics),
		admission.WithSLO(observability.NewSLOTracker(observability.DefaultTargets()...)),
		admission.WithLogger(logger),
	}
	if cfg.RedisAddr != "" {
		rl := ledger.NewRedisLedger(cfg.RedisAddr, os.Getenv("REDIS_PASSWORD"), 0)
		deps.closers = append(deps.closers, rl.Close)
		opts = append(opts, admission.WithLedger(rl))
		logger.Info("ledger: redis", "addr", cfg.RedisAddr)
	}

	g, err := admission.New(profile, opts...)
	if err != nil {
		return fail(err)
	}
	deps.gate = g

	limiter := api.NewRateLimiter(cfg.RateRPS, cfg.RateBurst)
	go limiter.Run(ctx)

	validator := api.NewTokenValidator(cfg.JWTSecret)
	if validator == nil {
		logger.Warn("OPENGATE_JWT_SECRET not set; admission endpoints are unauthenticated")
	}

	deps.handler = api.NewServer(g, api.Options{Validator: validator, Limiter: limiter})
	return deps, nil
}

// openReceiptStore picks the receipt store from a DATABASE_URL. Empty selects
// memory, sqlite://path selects SQLite, postgres:// selects PostgreSQL.
func openReceiptStore(ctx context.Context, url string) (receipts.Store, func() error, error) {
	switch {
	case url == "":
		return receipts.NewMemoryStore(), nil, nil
	case strings.HasPrefix(url, "sqlite://"):
		s, err := receipts.OpenSQLite(ctx, strings.TrimPrefix(url, "sqlite://"))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		s, err := receipts.OpenPostgres(ctx, url)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported DATABASE_URL scheme: %q", url)
	}
}
