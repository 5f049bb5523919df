package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"telecare/internal/core/domain"
	"telecare/internal/core/ports"
	"telecare/internal/core/services"
	httphandlers "telecare/internal/handlers/http"
	"telecare/internal/infrastructure/auth"
	"telecare/internal/infrastructure/engine"
	"telecare/internal/infrastructure/middleware"
	"telecare/internal/infrastructure/monitoring"
	"telecare/internal/infrastructure/repositories/memory"
	redisrepo "telecare/internal/infrastructure/repositories/redis"
	signalinfra "telecare/internal/infrastructure/signal"
	"telecare/pkg/config"
	"telecare/pkg/logger"
	"telecare/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
)

func main() {
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/telecare/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "telecare-sessiond",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: os.Getenv("TELECARE_ENV"),
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	// Persistence: Redis when enabled, in-memory otherwise.
	var (
		redisClient *goredis.Client
		transitions ports.TransitionLog
		sink        ports.AnalyticsSink
	)
	if cfg.Redis.Enabled {
		redisClient, err = redisrepo.NewRedisClient(
			cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize, log,
		)
		if err != nil {
			log.Fatalw("failed to connect to Redis", "error", err)
		}
		transitions = redisrepo.NewTransitionLog(redisClient)
		sink = redisrepo.NewAnalyticsSink(redisClient)
	} else {
		transitions = memory.NewTransitionLog()
		sink = memory.NewAnalyticsSink()
	}

	analytics := services.NewAnalyticsService(sink, log)
	collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)
	tokens := auth.NewTokenProvider(cfg.Auth.JWTSecret, cfg.Auth.SessionTokenTTL.Std())

	var iceServers []webrtc.ICEServer
	for _, s := range cfg.WebRTC.ICEServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	if len(iceServers) == 0 {
		iceServers = []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}

	factory := func(ctx context.Context, sessionID domain.SessionID) (ports.SessionEngine, error) {
		sender, err := signalinfra.DialWebSocketSender(
			ctx, cfg.Signal.URL, sessionID,
			cfg.Signal.MessagesPerSecond, cfg.Signal.Burst, log,
		)
		if err != nil {
			return nil, err
		}
		return engine.New(sessionID, engine.Options{
			ICEServers:     iceServers,
			PortRangeMin:   cfg.WebRTC.PortRange.Min,
			PortRangeMax:   cfg.WebRTC.PortRange.Max,
			MaxRetries:     cfg.Recovery.MaxRetries,
			SampleInterval: cfg.Quality.SampleInterval.Std(),
			RecoveryDelay:  cfg.Recovery.BaseDelay.Std(),
			PresenceTick:   cfg.Presence.TickInterval.Std(),
			PresenceGrace:  cfg.Presence.DominantGrace.Std(),
			Sender:         sender,
			Credentials:    tokens,
			Transitions:    transitions,
			Analytics:      analytics,
			Collector:      collector,
		}, log), nil
	}
	sessionService := services.NewSessionService(factory, log)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	monitorHandler := httphandlers.NewMonitorHandler(sessionService)
	monitorHandler.SetupRoutes(router, middleware.AuthMiddleware(tokens))

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting session engine server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	}

	sessionService.Shutdown()

	if redisClient != nil {
		if err := redisrepo.CloseRedisClient(redisClient); err != nil {
			log.Errorw("Error closing Redis client", "error", err)
		}
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracer", "error", err)
	}

	log.Info("Session engine server stopped")
}
