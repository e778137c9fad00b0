package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cwa-verification/tanserver/internal/core/service"
	"github.com/cwa-verification/tanserver/internal/infra/buildinfo"
	"github.com/cwa-verification/tanserver/internal/infra/confloader"
	"github.com/cwa-verification/tanserver/internal/infra/shutdown"
	"github.com/cwa-verification/tanserver/internal/labclient"
	"github.com/cwa-verification/tanserver/internal/server/cleanup"
	"github.com/cwa-verification/tanserver/internal/server/config"
	"github.com/cwa-verification/tanserver/internal/server/httpserver"
	"github.com/cwa-verification/tanserver/internal/server/httpserver/handler"
	"github.com/cwa-verification/tanserver/internal/server/localserver"
	"github.com/cwa-verification/tanserver/internal/storage"
	"github.com/cwa-verification/tanserver/internal/telemetry/logger"
	"github.com/cwa-verification/tanserver/internal/telemetry/metric"
	"github.com/cwa-verification/tanserver/pkg/token"
)

// readinessProbeHash is looked up by /ready to confirm the store answers.
var readinessProbeHash = strings.Repeat("0", 64)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		envFile     = flag.String("env-file", "", "Path to a .env file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		info := buildinfo.Get()
		fmt.Printf("tan-server %s (commit: %s, built: %s, %s)\n",
			info.Version, info.Commit, info.BuildTime, info.GoVersion)
		return nil
	}

	cfg, keys, err := loadConfig(*configFile, *envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	log.Info("starting tan-server",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"config", *configFile)
	log.Debug("effective configuration", "overridden_keys", keys, "config", config.Sanitize(cfg))

	ctx := context.Background()
	registry := metric.NewRegistry()

	store, err := storage.Open(ctx, cfg.StorageConfig(log, registry.Registerer()))
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	services, err := initServices(cfg, store, registry, log)
	if err != nil {
		store.Close()
		return fmt.Errorf("init services: %w", err)
	}

	handlerOpts := []handler.Option{
		handler.WithReadyCheck(func(ctx context.Context) error {
			_, err := store.Exists(ctx, readinessProbeHash)
			return err
		}),
	}
	if services.Lab != nil {
		handlerOpts = append(handlerOpts, handler.WithLabResultService(services.Lab))
	}
	api := handler.New(services.Tan, log, handlerOpts...)

	httpCfg := cfg.Server.HTTP
	router := httpserver.NewRouter(&httpserver.RouterConfig{
		API:            api,
		Metrics:        registry.Handler(),
		Observer:       registry,
		Logger:         log,
		AdminAllowList: httpCfg.AdminAllowList,
		TrustProxy:     httpCfg.TrustProxy,
		AccessLog:      httpCfg.AccessLog,
	})
	httpServer := httpserver.New(httpserver.Config{
		Addr:         httpCfg.Addr,
		ReadTimeout:  httpCfg.ReadTimeout,
		WriteTimeout: httpCfg.WriteTimeout,
	}, router)

	// Hooks run in reverse order of registration.
	shutdownHandler := shutdown.NewHandler(httpCfg.ShutdownTimeout, log)
	shutdownHandler.OnShutdown("storage", func(ctx context.Context) error {
		log.Info("closing storage engine", "engine", store.Name())
		return store.Close()
	})

	if cfg.Cleanup.Enabled {
		runner, err := cleanup.New(services.Tan, cleanup.Config{
			Interval:  cfg.Cleanup.Interval,
			Retention: cfg.Cleanup.Retention,
		}, log)
		if err != nil {
			shutdownHandler.Shutdown()
			return fmt.Errorf("init cleanup: %w", err)
		}
		runner.Start()
		shutdownHandler.OnShutdown("cleanup", runner.Stop)
	}

	if *configFile != "" {
		watcher, err := watchConfig(*configFile, *envFile, log)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown("config-watcher", func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	serveCtx, stop := context.WithCancelCause(ctx)
	defer stop(nil)

	if path := cfg.Server.Local.SocketPath; path != "" {
		// Socket access is governed by file permissions, not the IP allowlist.
		local := localserver.New(path, 0, httpserver.NewRouter(&httpserver.RouterConfig{
			API:       api,
			Metrics:   registry.Handler(),
			Observer:  registry,
			Logger:    log,
			AccessLog: httpCfg.AccessLog,
		}), log)
		if err := local.Listen(); err != nil {
			shutdownHandler.Shutdown()
			return fmt.Errorf("local socket: %w", err)
		}
		shutdownHandler.OnShutdown("local-socket", local.Shutdown)
		go func() {
			if err := local.Serve(); err != nil {
				log.Error("local socket error", "error", err)
				stop(err)
			}
		}()
	}

	shutdownHandler.OnShutdown("http", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return httpServer.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening", "addr", httpCfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil {
			log.Error("HTTP server error", "error", err)
			stop(err)
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(serveCtx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	if cause := context.Cause(serveCtx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from defaults, file and environment. It
// also returns the keys that the file or environment set.
func loadConfig(configFile, envFile string) (*config.ServerConfig, []string, error) {
	cfg := config.Default()

	var opts []confloader.Option
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	if envFile != "" {
		opts = append(opts, confloader.WithDotEnv(envFile))
	}

	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, loader.Keys(), nil
}

// initLogger builds the logger and installs it as the slog default.
func initLogger(cfg *config.ServerConfig) (*slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}

	slog.SetDefault(log)
	return log, nil
}

// Services holds all initialized services.
type Services struct {
	Tan *service.TanService
	Lab *service.LabResultService // nil when no lab is configured
}

// initServices wires the domain services onto the store.
func initServices(cfg *config.ServerConfig, store storage.Engine, registry *metric.Registry, log *slog.Logger) (*Services, error) {
	generator, err := token.NewGenerator(cfg.Tan.Tele.Alphabet, cfg.Tan.Tele.Length)
	if err != nil {
		return nil, fmt.Errorf("teletan generator: %w", err)
	}

	opts := []service.Option{
		service.WithGenerator(generator),
		service.WithLogger(log),
		service.WithRecorder(registry),
	}

	if limiter := cfg.NewTeleTanLimiter(log); limiter != nil {
		opts = append(opts, service.WithTeleTanLimiter(limiter))
		gauges := metric.NewCollector().Gauge("teletan_budget_remaining",
			"TeleTAN issuances left in the current window",
			func() (float64, bool) {
				return float64(limiter.Remaining(time.Now())), true
			})
		if err := registry.Register(gauges); err != nil {
			return nil, fmt.Errorf("register gauges: %w", err)
		}
	}

	services := &Services{
		Tan: service.NewTanService(store, cfg.TanServiceConfig(), opts...),
	}

	if cfg.Lab.BaseURL != "" {
		client, err := labclient.New(labclient.Config{
			BaseURL: cfg.Lab.BaseURL,
			Timeout: cfg.Lab.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("lab client: %w", err)
		}
		services.Lab = service.NewLabResultService(client, log, registry)
	}

	log.Info("services initialized",
		"engine", store.Name(),
		"teletan_rate_limit", cfg.Tan.Tele.RateLimit.Count > 0,
		"lab_results", services.Lab != nil)

	return services, nil
}

// watchConfig reloads the file on change and applies log.level. Other
// settings need a restart.
func watchConfig(configFile, envFile string, log *slog.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(configFile); err != nil {
		watcher.Stop()
		return nil, err
	}

	watcher.OnChange(func(path string) {
		cfg, _, err := loadConfig(configFile, envFile)
		if err != nil {
			log.Warn("config reload rejected", "path", path, "error", err)
			return
		}
		prev := logger.GetLevel()
		logger.SetLevel(cfg.Log.Level)
		if now := logger.GetLevel(); now != prev {
			log.Info("log level changed", "from", prev, "to", now)
		}
	})
	watcher.StartAsync()
	return watcher, nil
}
