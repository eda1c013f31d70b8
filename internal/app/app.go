package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"sentinelvision/internal/config"
	"sentinelvision/internal/logger"
	"sentinelvision/internal/middleware"
	"sentinelvision/internal/repository"
	"sentinelvision/internal/repository/sqlite"
	"sentinelvision/internal/route"
	"sentinelvision/internal/service"
	"sentinelvision/internal/service/ai"
	"sentinelvision/internal/service/alert"
	"sentinelvision/internal/service/capture"
	"sentinelvision/internal/service/preview"
	"sentinelvision/internal/service/retention"
	"sentinelvision/internal/service/storage"
	"sentinelvision/internal/service/websocket"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config *config.Config
	logger *logger.Logger
	runID  string

	db         *sqlite.DB
	keyFrames  repository.KeyFrameRepository
	alerts     repository.AlertRepository
	source     capture.Source
	classifier *ai.NetClassifier
	hubService *websocket.HubService
	store      *storage.KeyFrameStore
	preview    preview.Preview
	mqtt       *alert.MQTTSink
	remote     []*alert.Async
	monitor    *service.Monitor
	session    *middleware.Session
}

// NewApp loads configuration and wires every component of the detection loop.
// Optional collaborators (catalog, upload, CloudWatch, MQTT) that fail to
// start are logged and left out.
func NewApp(ctx context.Context) (*App, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.NewLogger(cfg.LogDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &App{
		config:     cfg,
		logger:     log,
		runID:      uuid.NewString(),
		hubService: websocket.NewHubService(log),
		session:    middleware.NewSession(),
	}

	if err := a.openCatalog(); err != nil {
		log.Error("Catalog disabled: %v", err)
	}

	a.source, err = capture.Open(cfg.CaptureSource, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open capture source %q: %w", cfg.CaptureSource, err)
	}

	a.classifier, err = ai.NewNetClassifier(cfg.ModelPath, cfg.ModelConfigPath, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.store = storage.NewKeyFrameStore(cfg.KeyFrameDirectory, log)
	engine := retention.NewEngine(a.store, retention.NewTickSource())
	archiver := storage.NewArchiver(a.runID, a.keyFrames, a.newUploader(ctx), cfg.S3Prefix, log)

	surfaces := preview.Tee{preview.NewStream(a.hubService, log)}
	if !cfg.Headless {
		surfaces = append(surfaces, preview.NewWindow(cfg.WindowName, log))
	}
	a.preview = surfaces

	a.monitor = service.NewMonitor(cfg, a.source, a.classifier, engine, a.newSink(ctx), archiver, a.preview, log)
	return a, nil
}

func (a *App) openCatalog() error {
	if a.config.DatabasePath == "" {
		return errors.New("DB_PATH is empty")
	}
	db, err := sqlite.New(a.config.DatabasePath)
	if err != nil {
		return err
	}
	a.db = db
	a.keyFrames = sqlite.NewKeyFrameRepository(db)
	a.alerts = sqlite.NewAlertRepository(db)
	return nil
}

// newUploader returns nil when object storage is not configured or unreachable.
func (a *App) newUploader(ctx context.Context) storage.Uploader {
	if !a.config.UploadEnabled() {
		return nil
	}
	uploader, err := storage.NewS3Uploader(a.config)
	if err != nil {
		a.logger.Error("Upload disabled: %v", err)
		return nil
	}
	if err := uploader.EnsureBucket(ctx); err != nil {
		a.logger.Error("Upload disabled: %v", err)
		return nil
	}
	return uploader
}

func (a *App) newSink(ctx context.Context) alert.Sink {
	sinks := []alert.Sink{alert.NewLogSink(a.logger), alert.NewHubSink(a.hubService)}

	if a.alerts != nil {
		sinks = append(sinks, alert.NewCatalogSink(a.alerts, a.runID, a.logger))
	}

	if a.config.CloudWatchEnabled {
		cw, err := alert.NewCloudWatchSink(ctx, a.config.CloudWatchLogGroup, a.config.CloudWatchLogStream, a.logger)
		if err != nil {
			a.logger.Error("CloudWatch alerts disabled: %v", err)
		} else {
			if err := cw.EnsureStream(ctx); err != nil {
				a.logger.Warning("CloudWatch log stream not ready: %v", err)
			}
			sinks = append(sinks, a.queued("cloudwatch", cw))
		}
	}

	if a.config.MQTTBroker != "" {
		clientID := a.config.MQTTClientID
		if clientID == "" {
			clientID = "sentinel-" + uuid.NewString()
		}
		m, err := alert.NewMQTTSink(a.config.MQTTBroker, clientID, a.config.MQTTTopic, a.runID, a.logger)
		if err != nil {
			a.logger.Error("MQTT alerts disabled: %v", err)
		} else {
			a.mqtt = m
			sinks = append(sinks, a.queued("mqtt", m))
		}
	}

	return alert.NewMulti(sinks...)
}

// queued moves delivery to a remote sink off the detection goroutine.
func (a *App) queued(name string, sink alert.Sink) alert.Sink {
	q := alert.NewAsync(name, sink, alert.DefaultQueueSize, a.logger)
	a.remote = append(a.remote, q)
	return q
}

// Run serves the HTTP surface and drives the monitor loop on the calling
// goroutine until the source ends, the operator quits or a signal arrives.
func (a *App) Run() error {
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go a.hubService.Run(ctx)

	deps := route.Dependencies{
		Config:    a.config,
		Logger:    a.logger,
		Session:   a.session,
		KeyFrames: a.keyFrames,
		Alerts:    a.alerts,
		Hub:       a.hubService,
		Stats:     a.monitor,
		Store:     a.store,
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: route.SetupRoutes(deps),
	}
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			stop()
		}
	}()

	a.logger.Info("🚀 SentinelVision")
	a.logger.Info("📍 URL: http://localhost:%d", a.config.Port)
	a.logger.Info("🎥 Source: %s", a.config.CaptureSource)
	a.logger.Info("📁 Key frames: %s", a.config.KeyFrameDirectory)
	a.logger.Info("🤖 AI Model: %s", a.config.ModelPath)
	a.logger.Info("🆔 Run: %s", a.runID)

	// The preview window needs the goroutine that created it.
	runErr := a.monitor.Run(ctx)
	select {
	case err := <-serverErr:
		if runErr == nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	default:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warning("HTTP shutdown: %v", err)
	}

	stats := a.monitor.Stats()
	a.logger.Info("📊 Frames: %d, threats: %d, key frames saved: %d", stats.Frames, stats.Threats, stats.Saved)
	return runErr
}

// Close releases every resource NewApp acquired. It is safe on a partially built App.
func (a *App) Close() {
	if a.preview != nil {
		a.preview.Close()
	}
	if a.source != nil {
		if err := a.source.Close(); err != nil {
			a.logger.Warning("Closing capture source: %v", err)
		}
	}
	if a.classifier != nil {
		a.classifier.Close()
	}
	for _, q := range a.remote {
		q.Close()
	}
	if a.mqtt != nil {
		a.mqtt.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	a.logger.Close()
}

// RunResize serves only the resize endpoint.
func RunResize(port int) error {
	log := logger.NewWriterLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: route.SetupResizeRoutes(log),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Info("🚀 Resize endpoint on http://localhost:%d/resize", port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
