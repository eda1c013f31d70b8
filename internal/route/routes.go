package route

import (
	"net/http"

	"sentinelvision/internal/config"
	"sentinelvision/internal/handler"
	"sentinelvision/internal/logger"
	"sentinelvision/internal/middleware"
	"sentinelvision/internal/repository"
	"sentinelvision/internal/service/websocket"
)

// Dependencies groups what the HTTP surface needs. Hub, Stats and Store may be
// nil when the server runs without a monitor loop.
type Dependencies struct {
	Config    *config.Config
	Logger    *logger.Logger
	Session   *middleware.Session
	KeyFrames repository.KeyFrameRepository
	Alerts    repository.AlertRepository
	Hub       *websocket.HubService
	Stats     handler.StatsProvider
	Store     handler.StoreCounters
}

// SetupRoutes registers the API endpoints and wraps the mux with the authentication middleware.
func SetupRoutes(deps Dependencies) http.Handler {
	mux := http.NewServeMux()
	cfg, logger := deps.Config, deps.Logger

	mux.HandleFunc("/healthz", handler.HealthHandler)
	mux.HandleFunc("/resize", handler.ResizeHandler(logger))

	// API endpoints
	if deps.Hub != nil {
		mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(deps.Hub, logger))
	}
	if deps.KeyFrames != nil {
		mux.HandleFunc("/api/keyframes", handler.GetKeyFramesHandler(cfg, logger, deps.KeyFrames))
		mux.HandleFunc("/api/keyframes/info", handler.GetKeyFrameHandler(logger, deps.KeyFrames))
		mux.HandleFunc("/api/keyframes/stats", handler.KeyFrameStatsHandler(logger, deps.KeyFrames, deps.Stats, deps.Store))
	}
	mux.HandleFunc("/api/keyframes/view", handler.ViewKeyFrameHandler(cfg))
	if deps.Alerts != nil {
		mux.HandleFunc("/api/alerts", handler.GetAlertsHandler(logger, deps.Alerts))
	}

	// Log endpoints
	for path, file := range map[string]string{
		"/logs/info":    handler.InfoLogFile,
		"/logs/warning": handler.WarningLogFile,
		"/logs/error":   handler.ErrorLogFile,
	} {
		mux.HandleFunc(path, handler.ShowLogsHandler(cfg.LogDirectory, file))
		mux.HandleFunc(path+"/clear", handler.ClearLogsHandler(logger, file))
	}

	// Auth endpoints
	mux.HandleFunc("/auth/login", handler.LoginHandler(cfg, deps.Session, logger))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	return middleware.AuthMiddleware(deps.Session, mux)
}

// SetupResizeRoutes serves only the public resize endpoint and health check.
func SetupResizeRoutes(logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handler.HealthHandler)
	mux.HandleFunc("/resize", handler.ResizeHandler(logger))
	return mux
}
