package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"cashbattle-backend/internal/config"
	"cashbattle-backend/internal/handlers"
	"cashbattle-backend/internal/logger"
	"cashbattle-backend/internal/middleware"
	"cashbattle-backend/internal/services"
	"cashbattle-backend/internal/store"
)

func openBackend(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	switch cfg.StoreDriver {
	case "memory":
		return store.NewMemoryBackend(), nil
	case "redis":
		return store.NewRedisBackend(ctx, store.RedisOptions{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
	case "sqlite":
		return store.NewSQLiteBackend(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Env)
	defer log.Sync()

	backend, err := openBackend(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	st := store.New(backend)
	defer st.Close()

	clock := clockwork.NewRealClock()
	seed := time.Now().UnixNano()

	ledger := services.NewLedger(st, clock, log)
	lobby := services.NewLobby(st, clock, rand.New(rand.NewSource(seed)), cfg.BotChance, log)
	engine := services.NewEngine(ledger, lobby, clock, rand.New(rand.NewSource(seed+1)), log)
	rewards := services.NewRewards(ledger, st, clock, rand.New(rand.NewSource(seed+2)), log)
	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JWTExpiry, clock)
	accounts := services.NewAccounts(ledger, st, jwtService, clock, rand.New(rand.NewSource(seed+3)), log)

	if cfg.SeedLobbyOnStart {
		seeded, err := lobby.Seed(context.Background())
		if err != nil {
			log.Fatal("Failed to seed lobby", zap.Error(err))
		}
		if seeded {
			log.Info("Lobby seeded with starter challenges")
		}
	}

	wsHandler := handlers.NewWebSocketHandler(ledger, lobby, st, clock, log)
	defer wsHandler.Close()
	ledger.SetBroadcaster(wsHandler)
	engine.SetBroadcaster(wsHandler)

	scheduler, err := services.NewScheduler(services.SchedulerConfig{
		BotInterval:     cfg.BotInterval,
		CleanupInterval: cfg.CleanupInterval,
		SessionMaxIdle:  cfg.SessionMaxIdle,
	}, clock, lobby, engine, log)
	if err != nil {
		log.Fatal("Failed to create scheduler", zap.Error(err))
	}
	scheduler.Start()

	h := &handlers.Handlers{
		Auth:      handlers.NewAuthHandler(accounts),
		User:      handlers.NewUserHandler(accounts, ledger, engine),
		Wallet:    handlers.NewWalletHandler(ledger),
		Rewards:   handlers.NewRewardsHandler(rewards),
		Game:      handlers.NewGameHandler(engine, lobby, ledger),
		WebSocket: wsHandler,
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(middleware.CORS())
	h.Register(router, middleware.AuthMiddleware(jwtService, accounts))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Server starting",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.StoreDriver),
			zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
	if err := scheduler.Shutdown(); err != nil {
		log.Error("Scheduler shutdown failed", zap.Error(err))
	}
	engine.Shutdown()
	log.Info("Server stopped")
}
