package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/taskhub/internal/auth"
	"github.com/geocoder89/taskhub/internal/cache"
	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/db"
	httpx "github.com/geocoder89/taskhub/internal/http"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/geocoder89/taskhub/internal/repo/memory"
	"github.com/geocoder89/taskhub/internal/repo/postgres"
	"github.com/geocoder89/taskhub/internal/security"
	"github.com/geocoder89/taskhub/internal/services"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		slog.Error("startup failed", "err", err)
		os.Exit(1)
	}
}

type stores struct {
	users services.UserStore
	tasks services.TaskStore
	ping  func(ctx context.Context) error
	close func()
}

func openStores(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (stores, error) {
	if cfg.StoreDriver == "memory" {
		log.Warn("using in-memory store, data is lost on restart")
		users := memory.NewUsersRepo()
		tasks := memory.NewTasksRepo().ReferenceUsers(users)
		return stores{users: users, tasks: tasks, ping: tasks.Ping, close: func() {}}, nil
	}

	pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DBURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		return stores{}, fmt.Errorf("open db pool: %w", err)
	}

	if err := db.EnsureSchema(ctx, pool, cfg.SchemaBootstrapMaxElapsed(), log); err != nil {
		pool.Close()
		return stores{}, err
	}

	return stores{
		users: postgres.NewUsersRepo(pool, prom),
		tasks: postgres.NewTasksRepo(pool, prom),
		ping:  pool.Ping,
		close: pool.Close,
	}, nil
}

func openCacheBackend(ctx context.Context, cfg config.Config, log *slog.Logger) (cache.Backend, func()) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(), func() {}
	}

	rc := cache.NewRedis(cache.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	// the list cache degrades to misses, so an unreachable redis is not fatal
	if err := rc.Ping(pingCtx); err != nil {
		log.Warn("redis not reachable at startup", "addr", cfg.RedisAddr, "err", err)
	}

	return rc, func() { _ = rc.Close() }
}

func run() error {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	// Load the config set up
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if cfg.UsesDevSecret() {
		log.Warn("JWT_SECRET not set, using the built-in dev secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.ServiceName, cfg.OTELEndpoint)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		sctx, cancel := config.WithTimeout(5 * time.Second)
		defer cancel()
		_ = shutdownTracer(sctx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	st, err := openStores(ctx, cfg, prom, log)
	if err != nil {
		return err
	}
	defer st.close()

	backend, closeCache := openCacheBackend(ctx, cfg, log)
	defer closeCache()

	hasher := security.NewHasher(security.Params{
		MemoryKiB: cfg.Argon2MemoryKiB,
		Time:      cfg.Argon2Time,
		Threads:   cfg.Argon2Threads,
	})
	tokens := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL())

	authSvc := services.NewAuthService(st.users, hasher, tokens, prom, log)
	taskSvc := services.NewTaskService(st.tasks, cache.NewTaskLists(backend, cfg.TaskListCacheTTL(), log))

	seedCtx, cancelSeed := context.WithTimeout(ctx, 10*time.Second)
	err = db.EnsureSeedUser(seedCtx, authSvc, cfg.SeedEmail, cfg.SeedPassword, log)
	cancelSeed()
	if err != nil {
		return fmt.Errorf("seed user: %w", err)
	}

	// set up routers with the log
	router := httpx.NewRouter(httpx.RouterDeps{
		Log:      log,
		Config:   cfg,
		Prom:     prom,
		Gatherer: reg,
		Auth:     authSvc,
		Tasks:    taskSvc,
		Ping:     st.ping,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Graceful shutdown
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	log.Info("server shutting down")

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
		return err
	}

	log.Info("shutdown complete")

	return nil
}
