package handler

import (
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"sentinelvision/internal/config"
	"sentinelvision/internal/dto"
	"sentinelvision/internal/logger"
	"sentinelvision/internal/model"
	"sentinelvision/internal/repository"
	"sentinelvision/internal/service"
)

const (
	defaultPageSize = 24
	maxPageSize     = 200
)

// StatsProvider exposes live counters of the detection loop.
type StatsProvider interface {
	Stats() service.MonitorStats
}

// StoreCounters exposes key-frame write counters.
type StoreCounters interface {
	Saved() int64
	Failed() int64
}

type storeStats struct {
	Saved  int64 `json:"saved"`
	Failed int64 `json:"failed"`
}

// GetKeyFramesHandler returns a filtered, paginated list of catalogued key frames.
func GetKeyFramesHandler(cfg *config.Config, logger *logger.Logger, keyFrames repository.KeyFrameRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := min(atoiDefault(q.Get("limit"), defaultPageSize), maxPageSize)
		// Keep (page-1)*limit within int32 so the offset never overflows.
		page := min(atoiDefault(q.Get("page"), 1), math.MaxInt32/limit)

		filter := &dto.KeyFrameFilters{
			RunID:      q.Get("run"),
			ForcedOnly: q.Get("forced") == "true",
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: parseDate(q.Get("dateBefore")),
			Limit:      limit,
			Offset:     (page - 1) * limit,
		}
		// dateBefore is inclusive of the whole day.
		if !filter.DateBefore.IsZero() {
			filter.DateBefore = filter.DateBefore.AddDate(0, 0, 1)
		}

		frames, err := keyFrames.GetAll(filter)
		if err != nil {
			logger.Error("Error querying key frames from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalSize, err := keyFrames.GetTotalSize()
		if err != nil {
			logger.Error("Error getting key frame size: %v", err)
			totalSize = 0
		}

		totalCount, err := keyFrames.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting key frames: %v", err)
			totalCount = len(frames)
		}

		infos := make([]dto.KeyFrameInfo, 0, len(frames))
		for _, kf := range frames {
			infos = append(infos, toKeyFrameInfo(kf))
		}

		writeJSON(w, logger, http.StatusOK, dto.KeyFramesData{
			KeyFrames:   infos,
			Directory:   cfg.KeyFrameDirectory,
			Size:        totalSize,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		})
	}
}

// ViewKeyFrameHandler serves a single key-frame file named by the "name" query parameter.
func ViewKeyFrameHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			http.Error(w, "Name parameter is required", http.StatusBadRequest)
			return
		}
		if filepath.Base(name) != name || name == "." || name == ".." {
			http.Error(w, "Invalid name", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, r, filepath.Join(cfg.KeyFrameDirectory, name))
	}
}

// GetKeyFrameHandler returns one catalogued key frame selected by "id" or "name".
func GetKeyFrameHandler(logger *logger.Logger, keyFrames repository.KeyFrameRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var kf *model.KeyFrame
		var err error
		switch {
		case q.Get("id") != "":
			id, convErr := strconv.ParseInt(q.Get("id"), 10, 64)
			if convErr != nil || id <= 0 {
				http.Error(w, "Invalid id", http.StatusBadRequest)
				return
			}
			kf, err = keyFrames.GetByID(id)
		case q.Get("name") != "":
			kf, err = keyFrames.GetByFilename(q.Get("name"))
		default:
			http.Error(w, "id or name parameter is required", http.StatusBadRequest)
			return
		}

		if err != nil {
			logger.Error("Error looking up key frame: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if kf == nil {
			http.Error(w, "Key frame not found", http.StatusNotFound)
			return
		}
		writeJSON(w, logger, http.StatusOK, toKeyFrameInfo(*kf))
	}
}

// KeyFrameStatsHandler returns catalog statistics and, when available, live
// loop and store counters.
func KeyFrameStatsHandler(logger *logger.Logger, keyFrames repository.KeyFrameRepository, live StatsProvider, store StoreCounters) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := keyFrames.GetStats()
		if err != nil {
			logger.Error("Error reading key frame stats: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		body := struct {
			*model.KeyFrameStats
			Monitor *service.MonitorStats `json:"monitor,omitempty"`
			Store   *storeStats           `json:"store,omitempty"`
		}{KeyFrameStats: stats}
		if live != nil {
			s := live.Stats()
			body.Monitor = &s
		}
		if store != nil {
			body.Store = &storeStats{Saved: store.Saved(), Failed: store.Failed()}
		}
		writeJSON(w, logger, http.StatusOK, body)
	}
}

// GetAlertsHandler returns the most recent alerts, newest first.
func GetAlertsHandler(logger *logger.Logger, alerts repository.AlertRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := atoiDefault(r.URL.Query().Get("limit"), 50)

		recent, err := alerts.GetRecent(limit)
		if err != nil {
			logger.Error("Error querying alerts: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if recent == nil {
			recent = []model.Alert{}
		}
		writeJSON(w, logger, http.StatusOK, recent)
	}
}

// HealthHandler reports that the server is up.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func toKeyFrameInfo(kf model.KeyFrame) dto.KeyFrameInfo {
	return dto.KeyFrameInfo{
		Name:          kf.Filename,
		RunID:         kf.RunID,
		Score:         kf.Score,
		Dissimilarity: kf.Dissimilarity,
		Forced:        kf.Forced,
		Timestamp:     kf.Timestamp,
		Size:          kf.FileSize,
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}
