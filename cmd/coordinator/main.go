package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homecall/internal/auth"
	"homecall/internal/config"
	"homecall/internal/history"
	"homecall/internal/httpapi"
	"homecall/internal/ringer"
	"homecall/internal/session"
	"homecall/internal/signaling/ws"
	"homecall/pkg/logger"
	"homecall/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	repo, cleanup, err := openHistoryRepo(rootCtx, cfg)
	if err != nil {
		log.Error("history backend init failed", "backend", string(cfg.History.Backend), "err", err)
		os.Exit(1)
	}
	defer cleanup()
	ledger := history.NewLedger(repo)

	machine := session.NewMachine(session.Options{
		RingTimeout: cfg.Call.RingTimeout,
		EndedGrace:  cfg.Call.EndedGrace,
	}, nil, ringer.Slog{Log: log}, ledger, log)

	authManager, err := auth.NewManager(cfg.Signaling)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}
	token, err := authManager.IssueDeviceToken(time.Now(), cfg.Signaling.UserID, cfg.Signaling.DeviceID)
	if err != nil {
		log.Error("device token issuance failed", "err", err)
		os.Exit(1)
	}

	client, err := ws.Dial(rootCtx, ws.Options{URL: cfg.Signaling.URL, Token: token}, machine, log)
	if err != nil {
		log.Error("signaling dial failed", "url", cfg.Signaling.URL, "err", err)
		os.Exit(1)
	}
	defer client.Close()
	machine.SetChannel(client)
	log.Info("signaling connected", "url", cfg.Signaling.URL, "user_id", cfg.Signaling.UserID)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, httpapi.Handlers{Machine: machine, Ledger: ledger})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("coordinator listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	// A dropped signaling connection is fatal: the process restarts and
	// redials rather than serving call intents it cannot relay.
	go func() {
		<-client.Done()
		log.Warn("signaling connection lost")
		stop()
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

// openHistoryRepo selects the call history backend. Memory is the default and
// needs no external service; redis and postgres survive restarts.
func openHistoryRepo(ctx context.Context, cfg config.Config) (history.Repository, func(), error) {
	switch cfg.History.Backend {
	case config.HistoryBackendRedis:
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			return nil, nil, err
		}
		return history.NewRedisRepo(rdb), func() { rdb.Close() }, nil

	case config.HistoryBackendPostgres:
		db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			return nil, nil, err
		}
		repo := history.NewPostgresRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repo, func() { db.Close() }, nil

	default:
		return history.NewMemoryRepo(), func() {}, nil
	}
}
