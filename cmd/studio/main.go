package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"studiocast/internal/audio"
	"studiocast/internal/codec"
	"studiocast/internal/compositor"
	"studiocast/internal/core/domain"
	"studiocast/internal/core/ports"
	"studiocast/internal/core/services"
	httphandlers "studiocast/internal/handlers/http"
	"studiocast/internal/infrastructure/broadcastapi"
	"studiocast/internal/infrastructure/middleware"
	"studiocast/internal/infrastructure/monitoring"
	"studiocast/internal/infrastructure/repositories"
	"studiocast/internal/infrastructure/signaling"
	"studiocast/internal/output"
	"studiocast/internal/recording"
	"studiocast/internal/videofx"
	"studiocast/pkg/config"
	"studiocast/pkg/events"
	"studiocast/pkg/logger"
	"studiocast/pkg/retry"
	"studiocast/pkg/tracing"
)

func main() {
	startTime := time.Now()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/studiocast/config.yaml",
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

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	// Initialize tracing
	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "studiocast",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: "production",
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	// Initialize repository factory
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	destRepo := repoFactory.CreateDestinationRepository()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Session core
	bus := events.NewBus()
	cache := videofx.NewImageCache()

	mixer := audio.NewMixer(cfg.Audio.SampleRate, cfg.Audio.Channels, log)
	mixer.Run(ctx)
	defer mixer.Close()

	var renderer compositor.Renderer = compositor.InlineRenderer{}
	if cfg.Canvas.WorkerRenderer {
		renderer = compositor.NewWorkerRenderer()
	}

	comp := compositor.New(domain.CanvasSettings{
		Width:           cfg.Canvas.Width,
		Height:          cfg.Canvas.Height,
		FrameRate:       cfg.Canvas.FrameRate,
		BackgroundColor: cfg.Canvas.BackgroundColor,
		BackgroundImage: cfg.Canvas.BackgroundImage,
		ShowBadges:      cfg.Canvas.ShowBadges,
	}, mixer.OutputTrack(), cache, renderer, bus, log)
	if err := comp.Initialize(ctx, nil); err != nil {
		log.Fatalw("failed to initialize compositor", "error", err)
	}
	defer comp.Stop()

	// Output manager; WHIP sinks report ICE health back into failover
	var outputs *output.Manager
	factory := output.DefaultSinkFactory(cfg.Output.HealthInterval, func(id domain.DestinationID, s output.HealthSample) {
		outputs.ReportHealth(id, s)
	})
	outputs = output.NewManager(factory, output.ManagerConfig{
		ConnectTimeout: cfg.Output.ConnectTimeout,
		Thresholds: output.HealthThresholds{
			MinBitrateKbps:   cfg.Output.MinBitrateKbps,
			MaxPacketLossPct: cfg.Output.MaxPacketLossPct,
		},
	}, bus, log)
	defer outputs.StopAll()

	// Recording subsystems
	archiveDir := cfg.Recording.ArchiveDir
	clipBuffer := recording.NewClipBuffer(time.Duration(cfg.Recording.ClipBufferSeconds) * time.Second)
	clipper := recording.NewClipper(clipBuffer, filepath.Join(archiveDir, "clips"), bus, log)
	multiTrack := recording.NewMultiTrackRecorder(filepath.Join(archiveDir, "tracks"), log)
	localRec := recording.NewLocalRecorder(archiveDir, log)

	// External broadcast API
	api := broadcastapi.NewClient(cfg.Broadcast.APIBaseURL, cfg.Broadcast.RequestTimeout, log)

	credentialRetry := retry.DefaultConfig()
	credentialRetry.MaxAttempts = cfg.Output.CredentialAttempts
	credentialRetry.InitialDelay = cfg.Output.CredentialBackoff

	svc := services.NewStudioService(services.Deps{
		Logger:            log,
		Bus:               bus,
		Repo:              destRepo,
		API:               api,
		Mixer:             mixer,
		Compositor:        comp,
		Outputs:           outputs,
		Clipper:           clipper,
		MultiTrack:        multiTrack,
		Local:             localRec,
		VideoEncoder:      codec.NewRawVideoEncoder(cfg.Canvas.FrameRate),
		AudioEncoder:      codec.NewRawAudioEncoder(),
		Cache:             cache,
		FrameRate:         cfg.Canvas.FrameRate,
		BackupsPerPrimary: cfg.Output.BackupsPerPrimary,
		CredentialRetry:   credentialRetry,
		CountdownMax:      cfg.Broadcast.CountdownMax,
		IntroMax:          cfg.Broadcast.IntroMax,
	})
	go svc.Run(ctx)

	// Signaling: remote participants feed the service
	signalClient := signaling.NewClient(signaling.Config{
		URL:          cfg.Signaling.URL,
		PingInterval: cfg.Signaling.PingInterval,
		DialTimeout:  cfg.Signaling.DialTimeout,
	}, svc,
		func() ports.VideoDecoder { return codec.NewRawVideoDecoder(cfg.Canvas.Width, cfg.Canvas.Height) },
		func() ports.AudioDecoder { return codec.NewRawAudioDecoder(cfg.Audio.SampleRate, cfg.Audio.Channels) },
		log)
	go func() {
		for ctx.Err() == nil {
			if err := signalClient.Run(ctx); err != nil {
				log.Warnw("signaling connection lost, retrying", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}()

	// Monitoring
	collector := monitoring.NewPrometheusCollector()
	collector.Observe(bus)
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collector.UpdateAudioLevels(mixer.Levels())
			}
		}
	}()

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg.Control.RequestsPerSecond, cfg.Control.RequestBurst))

	studioHandler := httphandlers.NewStudioHandler(svc, comp, svc)
	studioHandler.SetupRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		rctx, rcancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer rcancel()

		if err := repoFactory.HealthCheck(rctx); err != nil {
			c.JSON(503, gin.H{
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(200, gin.H{"status": "ready"})
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:    cfg.Control.Address,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting StudioCast control server on %s", cfg.Control.Address)
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

	log.Info("Shutting down StudioCast...")

	// End any live broadcast so recordings finalize before teardown
	endCtx, endCancel := context.WithTimeout(context.Background(), cfg.Control.ShutdownTimeout)
	if err := svc.EndBroadcast(endCtx); err != nil {
		log.Debugw("no live broadcast to end", "error", err)
	}
	endCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Control.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	}

	cancel()
	comp.Stop()
	mixer.Close()
	outputs.StopAll()

	if err := tp.Shutdown(context.Background()); err != nil {
		log.Errorw("Error shutting down tracer", "error", err)
	}

	log.Info("StudioCast stopped")
}
