package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/yndnr/boxstore-go/internal/infra/buildinfo"
	"github.com/yndnr/boxstore-go/internal/infra/confloader"
	"github.com/yndnr/boxstore-go/internal/infra/shutdown"
	"github.com/yndnr/boxstore-go/internal/infra/tlsroots"
	"github.com/yndnr/boxstore-go/internal/server/config"
	"github.com/yndnr/boxstore-go/internal/server/httpserver"
	"github.com/yndnr/boxstore-go/internal/server/kvserver"
	"github.com/yndnr/boxstore-go/internal/storage"
	"github.com/yndnr/boxstore-go/internal/telemetry/logger"
	"github.com/yndnr/boxstore-go/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		backendType = flag.String("backend", "", "Backend type (memory, badger)")
		redisAddr   = flag.String("redis-addr", "", "RESP listen address")
		httpAddr    = flag.String("http-addr", "", "HTTP listen address, empty string keeps the configured value")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("boxstore-server " + buildinfo.String())
		return nil
	}

	overrides := map[string]any{}
	if *backendType != "" {
		overrides["backend.type"] = *backendType
	}
	if *redisAddr != "" {
		overrides["server.redis.addr"] = *redisAddr
	}
	if *httpAddr != "" {
		overrides["server.http.addr"] = *httpAddr
	}

	cfg, err := loadConfig(*configFile, overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, slogLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	log.Info("starting boxstore-server",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	shutdownHandler := shutdown.NewHandler(cfg.Server.ShutdownTimeout, slogLogger)

	// Hooks run in reverse, so the backend registered first closes last.
	backend, err := config.OpenBackend(cfg, slogLogger)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	shutdownHandler.OnShutdown("backend", func(context.Context) error {
		return backend.Close()
	})

	registry := metric.NewRegistry()
	if bb, ok := backend.(*storage.BadgerBackend); ok {
		bb.RegisterMetrics(registry.Registerer())
	}

	kvCfg, certWatcher, err := kvServerConfig(cfg, slogLogger)
	if err != nil {
		_ = shutdownHandler.Shutdown()
		return err
	}
	if certWatcher != nil {
		if err := certWatcher.Start(); err != nil {
			_ = shutdownHandler.Shutdown()
			return fmt.Errorf("watch tls certificate: %w", err)
		}
		shutdownHandler.OnShutdown("tls-watcher", func(context.Context) error {
			certWatcher.Stop()
			return nil
		})
	}

	kv := kvserver.New(kvCfg, backend, slogLogger, kvserver.WithMetrics(registry))
	if err := kv.Start(context.Background()); err != nil {
		_ = shutdownHandler.Shutdown()
		return err
	}
	shutdownHandler.OnShutdown("kvserver", kv.Shutdown)

	if cfg.Server.HTTP.Addr != "" {
		router := httpserver.NewRouter(&httpserver.RouterConfig{
			Backend: backend,
			Metrics: registry.Handler(),
			Logger:  slogLogger,
		})
		httpServer := httpserver.New(cfg.Server.HTTP.Addr, router)
		go func() {
			log.Info("HTTP server listening", "addr", cfg.Server.HTTP.Addr)
			if err := httpServer.ListenAndServe(); err != nil {
				log.Error("HTTP server error", "error", err)
			}
		}()
		shutdownHandler.OnShutdown("http", httpServer.Shutdown)
	}

	if *configFile != "" {
		stop, err := watchLogLevel(*configFile, slogLogger)
		if err != nil {
			log.Warn("config watcher disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown("config-watcher", func(context.Context) error {
				return stop()
			})
		}
	}

	log.Info("server started, press Ctrl+C to stop")
	shutdownHandler.WaitForSignal(context.Background())

	if err := shutdownHandler.Shutdown(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads defaults, then the file, environment and flag overrides.
func loadConfig(configFile string, overrides map[string]any) (*config.Config, error) {
	cfg := config.ServerDefault()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	loader := confloader.NewLoader(opts...)

	if err := loader.LoadFile(loader.FilePath()); err != nil {
		return nil, err
	}
	if err := loader.LoadEnv(); err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		if err := loader.LoadMap(overrides); err != nil {
			return nil, err
		}
	}
	if err := loader.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if err := config.VerifyServer(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg *config.Config) (logger.Logger, *slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.SetDefault(log)

	slogLogger := logger.Slog(log)
	slog.SetDefault(slogLogger)
	return log, slogLogger, nil
}

// kvServerConfig maps server.redis onto kvserver.Config. The returned
// watcher is non-nil when TLS is enabled and must be started.
func kvServerConfig(cfg *config.Config, log *slog.Logger) (kvserver.Config, *tlsroots.Watcher, error) {
	r := cfg.Server.Redis
	kvCfg := kvserver.DefaultConfig()
	kvCfg.Address = r.Addr
	kvCfg.Password = r.Password
	kvCfg.RateLimit = r.RateLimit
	kvCfg.ReadTimeout = r.ReadTimeout
	kvCfg.WriteTimeout = r.WriteTimeout
	kvCfg.IdleTimeout = r.IdleTimeout

	if r.TLSCertFile == "" {
		return kvCfg, nil, nil
	}

	w, err := tlsroots.NewWatcher(r.TLSCertFile, r.TLSKeyFile, tlsroots.WithLogger(log))
	if err != nil {
		return kvserver.Config{}, nil, fmt.Errorf("load tls certificate: %w", err)
	}
	kvCfg.TLSConfig = w.ServerConfig()
	return kvCfg, w, nil
}

// watchLogLevel re-reads log.level whenever the config file changes.
func watchLogLevel(configFile string, log *slog.Logger) (func() error, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(configFile); err != nil {
		_ = w.Stop()
		return nil, err
	}

	w.OnChange(func(path string) {
		loader := confloader.NewLoader(confloader.WithConfigFile(path))
		cfg := config.ServerDefault()
		if err := loader.Load(cfg); err != nil {
			log.Warn("config reload failed", "file", path, "error", err)
			return
		}
		if cfg.Log.Level == logger.GetLevel() {
			return
		}
		logger.SetLevel(cfg.Log.Level)
		log.Info("log level changed", "level", cfg.Log.Level)
	})
	w.StartAsync()

	return w.Stop, nil
}
