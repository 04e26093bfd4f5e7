// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/wsglobby/internal/auth"
	"github.com/jason-s-yu/wsglobby/internal/cache"
	"github.com/jason-s-yu/wsglobby/internal/config"
	"github.com/jason-s-yu/wsglobby/internal/database"
	"github.com/jason-s-yu/wsglobby/internal/handlers"
	"github.com/jason-s-yu/wsglobby/internal/lobby"
	"github.com/jason-s-yu/wsglobby/internal/provision"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	logger.SetLevel(cfg.Level())

	ttl, err := cfg.TokenTTL()
	if err != nil {
		logger.Fatal(err)
	}
	if cfg.HasTokenKeys() {
		err = auth.InitFromPath(cfg.TokenPrivateKey, cfg.TokenPublicKey, ttl)
	} else {
		logger.Warn("no token key pair configured; lobby tokens will not survive a restart")
		err = auth.Init(ttl)
	}
	if err != nil {
		logger.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cleaner lobby.IdentityCleaner = database.LogCleaner{Log: logger}
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal(err)
		}
		defer pool.Close()
		cleaner = database.NewIdentityStore(pool, logger)
		logger.Info("connected to database")
	} else {
		logger.Warn("DATABASE_URL not set; expired lobby accounts will not be deleted")
	}

	var engine provision.Engine = provision.NewMemoryEngine()
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatal(err)
		}
		defer rdb.Close()
		engine = provision.NewRedisEngine(rdb, cfg.QueueName)
		logger.WithField("queue", cfg.QueueName).Info("provisioning through Redis")
	} else {
		logger.Warn("REDIS_ADDR not set; instances are only tracked in memory")
	}

	registry := lobby.NewRegistry(
		cfg.LobbySettings(),
		provision.NewBridge(engine, logger.WithField("component", "provision")),
		cleaner,
		lobby.WithLogger(logger.WithField("component", "lobby")),
	)

	sweeper := lobby.NewSweeper(registry, cfg.SweepInterval, logger.WithField("component", "sweeper"))
	go sweeper.Run(ctx)

	api := handlers.NewAPIServer(registry, logger, cfg.TokensEnabled)
	if cfg.ServiceToken == "" {
		logger.Warn("LOBBY_SERVICE_TOKEN not set; account assignment is refused")
	}
	api.SetServiceToken(cfg.ServiceToken)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("server shutdown")
		}
	}()

	logger.WithFields(logrus.Fields{
		"addr":        cfg.Addr(),
		"enabled":     cfg.Enabled,
		"max_lobbies": cfg.MaxLobbies,
		"min_players": cfg.MinPlayers,
		"max_players": cfg.MaxPlayers,
	}).Info("lobby service running")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
}
