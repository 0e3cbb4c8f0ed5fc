// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/campus-events/internal/auth"
	"github.com/Shivanand-hulikatti/campus-events/internal/config"
	"github.com/Shivanand-hulikatti/campus-events/internal/database"
	"github.com/Shivanand-hulikatti/campus-events/internal/handler"
	"github.com/Shivanand-hulikatti/campus-events/internal/lock"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository/memory"
	"github.com/Shivanand-hulikatti/campus-events/internal/repository/mongostore"
	"github.com/Shivanand-hulikatti/campus-events/internal/service"
)

// stores is the set of store implementations selected by STORE_DRIVER.
type stores struct {
	events        service.EventStore
	registrations service.RegistrationStore
	users         service.UserStore
	close         func()
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ── 1. Connect to the configured store ───────────────────────────────
	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer st.close()
	slog.Info("store_ready", "driver", cfg.StoreDriver)

	// ── 2. Wire up layers ────────────────────────────────────────────────
	eventSvc := service.NewEventService(st.events, st.registrations, st.users, loc)
	eventHandler := handler.NewEventHandler(eventSvc)
	limiter := handler.NewRateLimiter(handler.LimiterConfig{
		RPS:     cfg.JoinRateRPS,
		Burst:   cfg.JoinRateBurst,
		IdleTTL: 10 * time.Minute,
	})

	// ── 3. Completion sweep worker ───────────────────────────────────────
	if cfg.RedisAddr != "" {
		rdb, err := database.OpenRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		eventSvc.Sweeper().UseLocker(lock.NewRedisLocker(rdb))
		slog.Info("sweep_lease_enabled", "addr", cfg.RedisAddr)
	}
	var sweepDone <-chan struct{}
	if cfg.SweepInterval > 0 {
		sweepDone = eventSvc.Sweeper().Start(ctx, cfg.SweepInterval)
		slog.Info("sweep_worker_started", "interval", cfg.SweepInterval.String())
	}

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handler.NewRouter(eventHandler, auth.NewVerifier(cfg.JWTSecret), limiter),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	slog.Info("server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful_shutdown_failed", "error", err.Error())
	}
	if sweepDone != nil {
		select {
		case <-sweepDone:
		case <-shutdownCtx.Done():
			slog.Warn("sweep_worker_shutdown_timeout")
		}
	}
	slog.Info("server_stopped")
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		s := memory.New()
		return &stores{events: s.Events(), registrations: s.Registrations(), users: s.Users(), close: func() {}}, nil

	case config.DriverMongo:
		client, err := database.OpenMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		s := mongostore.New(client.Database(cfg.MongoDatabase))
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return &stores{
			events:        s.Events(),
			registrations: s.Registrations(),
			users:         s.Users(),
			close:         func() { _ = client.Disconnect(context.Background()) },
		}, nil

	default:
		pool, err := database.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &stores{
			events:        repository.NewEventRepository(pool),
			registrations: repository.NewRegistrationRepository(pool),
			users:         repository.NewUserRepository(pool),
			close:         pool.Close,
		}, nil
	}
}
