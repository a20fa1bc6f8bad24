// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/ticket-checkin/internal/config"
	"github.com/Shivanand-hulikatti/ticket-checkin/internal/database"
	"github.com/Shivanand-hulikatti/ticket-checkin/internal/handler"
	"github.com/Shivanand-hulikatti/ticket-checkin/internal/logger"
	"github.com/Shivanand-hulikatti/ticket-checkin/internal/metrics"
	"github.com/Shivanand-hulikatti/ticket-checkin/internal/repository"
	"github.com/Shivanand-hulikatti/ticket-checkin/internal/service"
	"github.com/Shivanand-hulikatti/ticket-checkin/internal/token"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

type stores struct {
	events  service.EventStore
	tickets service.TicketStore
	grants  service.GrantStore
}

func main() {
	configPath := flag.StringP("config", "c", "", "path to a YAML config file")
	migrate := flag.Bool("migrate", false, "apply the database schema before serving")
	inMemory := flag.Bool("in-memory", false, "keep all state in process memory instead of PostgreSQL")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.IsProduction())

	if err := run(cfg, log, *migrate, *inMemory); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

func run(cfg *config.Config, log *logrus.Logger, migrate, inMemory bool) error {
	ctx := context.Background()

	// ── 1. Storage ────────────────────────────────────────────────────────
	var st stores
	if inMemory {
		log.Warn("using in-memory stores; state is lost on exit")
		st = stores{
			events:  repository.NewMemoryEventStore(),
			tickets: repository.NewMemoryTicketStore(),
			grants:  repository.NewMemoryGrantStore(),
		}
	} else {
		pool, err := database.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		log.Info("connected to PostgreSQL")

		if migrate {
			if err := database.Migrate(ctx, pool); err != nil {
				return err
			}
			log.Info("schema applied")
		}
		st = stores{
			events:  repository.NewEventRepository(pool, log),
			tickets: repository.NewTicketRepository(pool, log),
			grants:  repository.NewGrantRepository(pool, log),
		}
	}

	if cfg.AuthzCacheTTL > 0 {
		rdb, err := database.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		st.grants = repository.NewGrantCache(st.grants, rdb, cfg.AuthzCacheTTL, log)
		log.WithField("ttl", cfg.AuthzCacheTTL).Info("authorization cache enabled")
	}

	// ── 2. Token codec ────────────────────────────────────────────────────
	codec, err := newCodec(cfg.Token)
	if err != nil {
		return err
	}

	// ── 3. Wire up layers ─────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	gate := service.NewGate(st.events, st.grants, rec, log)
	api := handler.New(
		service.NewEventService(st.events),
		service.NewIssuanceService(st.events, st.tickets, gate, codec, rec, log),
		service.NewValidationService(codec, gate, st.tickets, rec, log, cfg.RequestTimeout),
		service.NewStaffService(st.grants, gate, log),
		log,
	)

	// ── 4. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(handler.Logger(log))
	r.Use(handler.CORS(cfg.CORSAllowedOrigins))

	if cfg.EnableMetrics {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}
	api.Routes(r)

	// ── 5. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func newCodec(cfg config.Token) (*token.Codec, error) {
	primary, err := token.NewKey(cfg.SigningKeyID, []byte(cfg.SigningKey))
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	opts := []token.Option{token.WithMaxAge(cfg.MaxAge)}
	if cfg.RetiredKeys != "" {
		retired, err := token.ParseKeys(cfg.RetiredKeys)
		if err != nil {
			return nil, fmt.Errorf("retired keys: %w", err)
		}
		opts = append(opts, token.WithRetiredKeys(retired...))
	}
	return token.NewCodec(primary, opts...), nil
}
