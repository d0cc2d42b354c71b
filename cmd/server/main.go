package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Oliversrensen/TCG-TBD/internal/auth"
	"github.com/Oliversrensen/TCG-TBD/internal/card"
	"github.com/Oliversrensen/TCG-TBD/internal/config"
	"github.com/Oliversrensen/TCG-TBD/internal/game"
	"github.com/Oliversrensen/TCG-TBD/internal/repository"
	"github.com/Oliversrensen/TCG-TBD/internal/server"
	"github.com/Oliversrensen/TCG-TBD/internal/session"
	"github.com/Oliversrensen/TCG-TBD/internal/user"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting TCG server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	catalog, err := card.NewCatalog(card.DefaultTemplates())
	if err != nil {
		logger.Fatal("failed to build card catalog", zap.Error(err))
	}
	logger.Info("card catalog loaded", zap.Int("cards", catalog.Len()))

	var userRepo user.Repository
	if cfg.Database.Enabled {
		db, err := repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		userRepo = repository.NewUserRepository(db)
	} else {
		logger.Warn("database disabled; using in-memory user store")
		userRepo = user.NewMemoryRepository()
	}
	userSvc := user.NewService(userRepo, logger)

	var verifier auth.Verifier
	if cfg.Auth.JWTSecret != "" {
		verifier, err = auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		if err != nil {
			logger.Fatal("failed to initialize token verifier", zap.Error(err))
		}
		logger.Info("token verifier initialized")
	} else {
		logger.Warn("jwt secret not configured; authentication disabled")
	}

	rules := game.Rules{
		HeroHealth:  cfg.Game.HeroHealth,
		ManaPerTurn: cfg.Game.ManaPerTurn,
		InitialDraw: cfg.Game.InitialDraw,
		MaxHandSize: cfg.Game.MaxHandSize,
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	engine := game.NewEngine(catalog, card.NewIDGenerator(), rules, rng, logger)

	registry := session.NewRegistry(logger)
	hub := server.NewHub(engine, catalog, registry, verifier, userSvc, rng, logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: hub.Router(),
	}

	go func() {
		logger.Info("listening", zap.String("address", cfg.Server.Address))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error("http server error", zap.Error(serveErr))
		}
	}()

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	hub.CloseAll()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", zap.Error(err))
	}

	logger.Info("TCG server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
