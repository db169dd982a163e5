// Package main is the entry point for the security gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vyrodovalexey/avsecgw/internal/admin"
	"github.com/vyrodovalexey/avsecgw/internal/config"
	"github.com/vyrodovalexey/avsecgw/internal/crypto"
	"github.com/vyrodovalexey/avsecgw/internal/guard"
	"github.com/vyrodovalexey/avsecgw/internal/keyvault"
	"github.com/vyrodovalexey/avsecgw/internal/middleware"
	"github.com/vyrodovalexey/avsecgw/internal/monitor"
	"github.com/vyrodovalexey/avsecgw/internal/observability"
	"github.com/vyrodovalexey/avsecgw/internal/ratelimit"
	"github.com/vyrodovalexey/avsecgw/internal/ratelimit/store"
	"github.com/vyrodovalexey/avsecgw/internal/token"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", getEnvOrDefault("SECGW_CONFIG_PATH", "configs/secgw.yaml"),
		"Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		printVersion()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.LogConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	observability.SetGlobalLogger(logger)

	logger.Info("starting avsecgw",
		observability.String("version", version),
		observability.String("config", *configPath),
	)

	app := initApplication(cfg, logger)
	run(app, *configPath, logger)
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("avsecgw version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// application holds all application components.
type application struct {
	vault      *keyvault.Vault
	blockStore store.BlockStore
	limiter    *ratelimit.Limiter
	monitor    *monitor.Monitor
	guard      *guard.Guard
	server     *admin.Server
	flood      *middleware.FloodLimiter
	config     *config.Config
}

// initApplication builds every component of the gateway. Key material
// errors are fatal: the process must not serve traffic without keys.
func initApplication(cfg *config.Config, logger observability.Logger) *application {
	vault := keyvault.New(cfg.VaultConfig(), keyvault.WithLogger(logger))
	if err := vault.Init(); err != nil {
		logger.Fatal("failed to initialize key vault", observability.Error(err))
	}

	blockStore := newBlockStore(cfg, logger)
	limiter := ratelimit.NewLimiter(
		ratelimit.WithLogger(logger),
		ratelimit.WithBlockStore(blockStore),
		ratelimit.WithPenaltyCap(cfg.RateLimit.PenaltyCap.Duration()),
	)

	monitorOpts := append(cfg.MonitorOptions(),
		monitor.WithLogger(logger),
		monitor.WithDetectionHook(autoBlockHook(cfg, limiter, logger)),
	)
	mon := monitor.New(monitorOpts...)

	cryptoSvc := crypto.NewService(vault, crypto.WithLogger(logger))
	tokens := token.NewService(cfg.TokenConfig(), vault, cryptoSvc,
		token.WithLogger(logger),
		token.WithMonitor(mon),
	)
	g := guard.New(cfg.GuardConfig(), limiter, tokens,
		guard.WithLogger(logger),
		guard.WithMonitor(mon),
	)

	middleware.SetGlobalIPExtractor(middleware.NewClientIPExtractor(cfg.Server.TrustedProxies))
	pipeline, flood := middleware.Pipeline(cfg.PipelineConfig(), g, cryptoSvc, mon, logger)

	server := admin.NewServer(cfg.AdminConfig(), admin.Deps{
		Monitor: mon,
		Limiter: limiter,
		Crypto:  cryptoSvc,
		Tokens:  tokens,
		Vault:   vault,
	}, logger)
	server.WrapHandler(pipeline)

	return &application{
		vault:      vault,
		blockStore: blockStore,
		limiter:    limiter,
		monitor:    mon,
		guard:      g,
		server:     server,
		flood:      flood,
		config:     cfg,
	}
}

// newBlockStore builds the configured blocklist backend.
func newBlockStore(cfg *config.Config, logger observability.Logger) store.BlockStore {
	if cfg.RateLimit.Store != config.StoreRedis {
		return store.NewMemoryStore()
	}

	redisStore, err := store.NewRedisStore(cfg.RedisStoreConfig())
	if err != nil {
		logger.Fatal("failed to connect to redis block store", observability.Error(err))
	}

	logger.Info("using redis block store",
		observability.String("address", cfg.RateLimit.Redis.Address),
	)
	return redisStore
}

// autoBlockHook blocks a client address when brute force is detected,
// if auto blocking is enabled.
func autoBlockHook(cfg *config.Config, limiter *ratelimit.Limiter, logger observability.Logger) monitor.DetectionHook {
	return func(ctx context.Context, event *monitor.Event) {
		if !cfg.Monitor.AutoBlock {
			return
		}
		if event.Type != monitor.EventBruteForceDetected || event.ClientAddr == "" {
			return
		}

		duration := cfg.Monitor.AutoBlockDuration.Duration()
		if err := limiter.Block(ctx, event.ClientAddr, duration); err != nil {
			logger.Error("failed to auto block client address",
				observability.String("client_addr", event.ClientAddr),
				observability.Error(err),
			)
			return
		}

		logger.Warn("client address auto blocked after brute force detection",
			observability.String("client_addr", event.ClientAddr),
			observability.Duration("duration", duration),
		)
	}
}

// run starts the server and blocks until shutdown.
func run(app *application, configPath string, logger observability.Logger) {
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.server.Start(context.Background())
	}()

	watcher := startConfigWatcher(app, configPath, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", observability.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", observability.Error(err))
		}
	}

	shutdown(app, watcher, logger)
}

// startConfigWatcher starts the configuration watcher. Reloads apply
// the tunable rate limit windows; structural changes need a restart.
func startConfigWatcher(app *application, configPath string, logger observability.Logger) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
		app.guard.UpdateConfig(newCfg.GuardConfig())
		logger.Info("applied reloaded rate limit configuration",
			observability.Int("addr_per_minute", newCfg.RateLimit.AddrPerMinute),
			observability.Int("subject_per_minute", newCfg.RateLimit.SubjectPerMinute),
		)
	}, config.WithWatcherLogger(logger))
	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
	}

	return watcher
}

// shutdown stops all components gracefully.
func shutdown(app *application, watcher *config.Watcher, logger observability.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	if err := app.server.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop server gracefully", observability.Error(err))
	}

	app.flood.Stop()

	if err := app.blockStore.Close(); err != nil {
		logger.Error("failed to close block store", observability.Error(err))
	}

	logger.Info("gateway stopped")
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
