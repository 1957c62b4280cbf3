// Command flowchart-store is the reference HTTP store for flowcharts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"flowchart/internal/codec"
	"flowchart/internal/config"
	"flowchart/internal/handler"
	"flowchart/internal/hub"
	"flowchart/internal/logging"
	"flowchart/internal/repository/sqlite"
	"flowchart/internal/service"
	"flowchart/internal/watcher"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Config file path (default: search standard locations)")
	addr := flag.String("addr", "", "HTTP listen address (overrides server.addr)")
	dbPath := flag.String("db", "", "SQLite database path (overrides server.database)")
	seedPath := flag.String("seed", "", "YAML or JSON seed file (overrides server.seed)")
	createUser := flag.String("create-user", "", "Create or reset a login user and exit")
	password := flag.String("password", "", "Password for -create-user")
	flag.Parse()

	cfg, usedPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Server.Database = *dbPath
	}
	if *seedPath != "" {
		cfg.Server.SeedPath = *seedPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Must(cfg.Log, "store")
	defer logger.Sync()

	if usedPath != "" {
		logger.Info("Loaded config", zap.String("path", usedPath))
	}

	if err := run(cfg, logger, *createUser, *password); err != nil {
		logger.Error("Store failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func run(cfg *config.Config, logger *zap.Logger, createUser, password string) error {
	repo, err := sqlite.New(cfg.Server.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repo.Close()
	logger.Info("Database opened", zap.String("path", cfg.Server.Database))

	secret := cfg.Server.Auth.Secret
	if secret == "" {
		// Tokens from an ephemeral secret do not survive a restart
		secret = uuid.NewString()
		logger.Warn("No JWT secret configured, using an ephemeral one", zap.String("env", config.EnvJWTSecret))
	}
	authSvc := service.NewAuthService(repo, secret, cfg.Server.Auth.TokenTTL.Duration())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if createUser != "" {
		if password == "" {
			return errors.New("-create-user needs -password")
		}
		if err := authSvc.Register(ctx, createUser, password); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		logger.Info("User saved", zap.String("email", createUser))
		return nil
	}

	eventBus := service.NewEventBus()
	sseHub := hub.New(logger.Named("hub"))
	go sseHub.Run(ctx)

	// Connect event bus to SSE hub
	eventChan := make(chan service.Event, 100)
	eventBus.Subscribe(eventChan)
	go func() {
		for {
			select {
			case event := <-eventChan:
				sseHub.Broadcast(event)
			case <-ctx.Done():
				return
			}
		}
	}()

	flowchartSvc := service.NewFlowchartService(repo, eventBus, logger.Named("service"))

	if cfg.Server.SeedPath != "" {
		if err := seedIfEmpty(ctx, flowchartSvc, cfg.Server.SeedPath, logger); err != nil {
			return err
		}
		if cfg.Server.WatchSeed {
			w := watcher.New(cfg.Server.SeedPath, func() {
				if _, err := importSeed(ctx, flowchartSvc, cfg.Server.SeedPath, logger); err != nil {
					logger.Error("Seed reload failed", zap.Error(err))
				}
			}, logger.Named("watcher"))
			go func() {
				if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Seed watcher stopped", zap.Error(err))
				}
			}()
		}
	}

	metrics := handler.NewMetrics("flowchart", sseHub.ClientCount)
	router := handler.NewRouter(
		handler.NewFlowchartHandler(flowchartSvc, metrics, logger.Named("http")),
		handler.NewAuthHandler(authSvc, metrics, logger.Named("http")),
		metrics,
		logger.Named("http"),
		handler.RouterOptions{
			CORSOrigins: cfg.Server.CORSOrigins,
			RequireAuth: cfg.Server.Auth.Required,
			Events:      sseHub,
		},
	)

	server := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     router.Setup(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
		// No write timeout: /events streams stay open
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", zap.String("addr", cfg.Server.Addr), zap.Bool("auth_required", cfg.Server.Auth.Required))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
	return nil
}

// seedIfEmpty imports the seed file only into an empty database so that
// appended nodes survive a restart
func seedIfEmpty(ctx context.Context, svc *service.FlowchartService, path string, logger *zap.Logger) error {
	existing, err := svc.ListFlowcharts(ctx)
	if err != nil {
		return fmt.Errorf("check database: %w", err)
	}
	if len(existing) > 0 {
		logger.Info("Database already populated, skipping seed", zap.Int("flowcharts", len(existing)))
		return nil
	}
	_, err = importSeed(ctx, svc, path, logger)
	return err
}

func importSeed(ctx context.Context, svc *service.FlowchartService, path string, logger *zap.Logger) (*service.ImportResult, error) {
	importer, err := codec.ImporterFor(filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()

	result, err := svc.Import(ctx, f, importer)
	if err != nil {
		return nil, fmt.Errorf("import seed %s: %w", path, err)
	}

	logger.Info("Seed imported",
		zap.String("path", path),
		zap.Int("flowcharts", result.Flowcharts),
		zap.Int("nodes", result.Nodes),
		zap.Int("edges", result.Edges),
	)
	return result, nil
}
