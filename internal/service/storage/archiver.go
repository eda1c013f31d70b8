package storage

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"time"

	"sentinelvision/internal/logger"
	"sentinelvision/internal/model"
	"sentinelvision/internal/repository"
	"sentinelvision/internal/service/retention"
)

// UploadTimeout bounds a single object upload.
const UploadTimeout = 30 * time.Second

// Archiver records saved key frames in the catalog and optionally uploads them.
// Both steps run after the file is durable and failures are only logged.
type Archiver struct {
	runID     string
	keyFrames repository.KeyFrameRepository
	uploader  Uploader
	prefix    string
	logger    *logger.Logger
}

// NewArchiver creates an Archiver. keyFrames and uploader may be nil.
func NewArchiver(runID string, keyFrames repository.KeyFrameRepository, uploader Uploader, prefix string, logger *logger.Logger) *Archiver {
	return &Archiver{
		runID:     runID,
		keyFrames: keyFrames,
		uploader:  uploader,
		prefix:    prefix,
		logger:    logger,
	}
}

// Record catalogs and uploads the key frame described by d. Skipped decisions are ignored.
func (a *Archiver) Record(ctx context.Context, d retention.Decision, score float64) {
	if d.Outcome != retention.Saved || d.Location == "" {
		return
	}

	name := filepath.Base(d.Location)

	if a.keyFrames != nil {
		a.catalog(name, d, score)
	}

	if a.uploader != nil {
		uploadCtx, cancel := context.WithTimeout(ctx, UploadTimeout)
		defer cancel()

		key := ObjectKey(a.prefix, name)
		if err := a.uploader.Upload(uploadCtx, key, d.Location); err != nil {
			a.logger.Warning("Upload of %s failed: %v", name, err)
			return
		}
		a.logger.Info("Uploaded %s to %s", name, key)
	}
}

func (a *Archiver) catalog(name string, d retention.Decision, score float64) {
	ts := time.Now()
	if _, parsed, ok := ParseFilename(name); ok {
		ts = parsed
	}

	var size int64
	if info, err := os.Stat(d.Location); err == nil {
		size = info.Size()
	}

	dissimilarity := d.Dissimilarity
	if d.Forced {
		dissimilarity = 0
	}

	kf := &model.KeyFrame{
		Filename:      name,
		RunID:         a.runID,
		Score:         score,
		Dissimilarity: dissimilarity,
		Forced:        d.Forced,
		Timestamp:     ts,
		FilePath:      d.Location,
		FileSize:      size,
	}
	if _, err := a.keyFrames.Insert(kf); err != nil {
		a.logger.Error("Error saving key frame %s to database: %v", name, err)
	}
}

// ObjectKey returns the remote key for a key-frame file name.
func ObjectKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
