package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	go2tvadapters "mediahub.app/sessioncore/internal/adapters/go2tv"
	"mediahub.app/sessioncore/internal/auth"
	"mediahub.app/sessioncore/internal/buildinfo"
	"mediahub.app/sessioncore/internal/config"
	"mediahub.app/sessioncore/internal/controllers/castbridge"
	"mediahub.app/sessioncore/internal/controllers/factory"
	"mediahub.app/sessioncore/internal/controllers/wsctrl"
	"mediahub.app/sessioncore/internal/discovery"
	"mediahub.app/sessioncore/internal/events"
	"mediahub.app/sessioncore/internal/lifecycle"
	"mediahub.app/sessioncore/internal/ports"
	"mediahub.app/sessioncore/internal/remotecontrol"
	"mediahub.app/sessioncore/internal/sessioncore"
	"mediahub.app/sessioncore/internal/store/memory"
	"mediahub.app/sessioncore/internal/store/postgres"
	"mediahub.app/sessioncore/internal/store/rediscache"
	"mediahub.app/sessioncore/internal/transport/httpapi"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.Version)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	runCtx, stopSignals := signal.NotifyContext(context.Background(), lifecycle.TerminationSignals()...)
	defer stopSignals()

	logLevel := parseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	logger.Info("sessionhubd_start",
		slog.String("version", buildinfo.Version),
		slog.String("log_level", logLevel.String()),
		slog.String("http_addr", cfg.HTTPAddr),
	)

	users := memory.NewUsers()
	userData := memory.NewUserData()
	library := memory.NewLibrary()
	music := memory.NewMusic()
	mediaSources := memory.NewMediaSources()
	devices := memory.NewDevices()

	var deviceManager ports.DeviceManager = devices
	if cfg.RedisAddr != "" {
		redisClient, err := rediscache.Connect(runCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("redis_connect_failed", slog.String("error", err.Error()))
		} else {
			deviceManager = rediscache.New(devices, redisClient)
			logger.Info("capabilities_cache_wired", slog.String("redis_addr", cfg.RedisAddr))
		}
	}

	var authRepo ports.AuthenticationRepository = memory.NewAuthTokens()
	if cfg.PostgresDSN != "" {
		if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
			logger.Warn("postgres_migrate_failed", slog.String("error", err.Error()))
		} else if pool, err := postgres.Connect(runCtx, cfg.PostgresDSN); err != nil {
			logger.Warn("postgres_connect_failed", slog.String("error", err.Error()))
		} else {
			authRepo = postgres.NewAuthTokens(pool)
			defer pool.Close()
			logger.Info("auth_repository_wired", slog.String("backend", "postgres"))
		}
	}

	bundle := go2tvadapters.NewBundle()
	discoverySvc := discovery.NewService(bundle.Discovery, runCtx)
	go discoverySvc.RefreshLoop(runCtx, cfg.ChromecastDiscoveryInterval, cfg.ChromecastScanTimeoutMS)

	wsFactory := wsctrl.NewFactory()
	castFactory := castbridge.NewFactory(discoverySvc, bundle.CastFactory, logger)
	controllerChain := factory.NewChain(wsFactory, castFactory)

	bus := events.NewBus(logger)

	manager := sessioncore.NewManager(sessioncore.Config{
		Logger:               logger,
		Bus:                  bus,
		UserManager:          users,
		UserDataManager:      userData,
		LibraryManager:       library,
		MediaSourceManager:   mediaSources,
		DeviceManager:        deviceManager,
		ControllerFactories:  []ports.SessionControllerFactory{controllerChain},
		AutoProgressInterval: cfg.AutoProgressInterval,
		IdleSweepInterval:    cfg.IdleSweepInterval,
		IdleThreshold:        cfg.IdleThreshold,
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := manager.Close(shutdownCtx); err != nil {
			logger.Error("manager_close_failed", slog.String("error", err.Error()))
		}
	}()

	dispatcher := remotecontrol.NewDispatcher(remotecontrol.Config{
		Sessions:       manager,
		UserManager:    users,
		LibraryManager: library,
		MusicManager:   music,
		Random:         ports.NewRealRandom(),
	})

	authenticator := auth.NewAuthenticator(auth.Config{
		Logger:      logger,
		Bus:         bus,
		UserManager: users,
		Repository:  authRepo,
		Activity:    manager,
	})

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.New(httpapi.Config{
			Factory:       wsFactory,
			Manager:       manager,
			Dispatcher:    dispatcher,
			Authenticator: authenticator,
			Logger:        logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case runErr = <-serveErrCh:
	case <-runCtx.Done():
		runErr = runCtx.Err()
	}

	if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) && !errors.Is(runErr, context.Canceled) {
		logger.Warn("sessionhubd_stopping", slog.String("reason", runErr.Error()))
	} else {
		logger.Info("sessionhubd_stopping", slog.String("reason", "signal_or_clean_shutdown"))
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "invalid SESSIONHUB_LOG_LEVEL=%q; defaulting to info\n", raw)
		return slog.LevelInfo
	}
}
