// Package storage persists accepted key frames and records them in the catalog.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"sentinelvision/internal/logger"
	"sentinelvision/internal/model"
	"sentinelvision/internal/service/vision"
)

// DefaultDirectory is the key-frame namespace used when none is configured.
const DefaultDirectory = "key_frames"

const (
	filenamePrefix = "frame_"
	filenameExt    = ".jpg"
)

// ErrExists is returned when a key frame with the same identifier is already stored.
var ErrExists = errors.New("key frame already exists")

// KeyFrameStore writes key frames as JPEG files into a single directory.
// Files are created exclusively and never overwritten or removed.
type KeyFrameStore struct {
	dir    string
	logger *logger.Logger
	saved  atomic.Int64
	failed atomic.Int64
}

// NewKeyFrameStore creates a store rooted at dir. The directory is created on first save.
func NewKeyFrameStore(dir string, logger *logger.Logger) *KeyFrameStore {
	if dir == "" {
		dir = DefaultDirectory
	}
	return &KeyFrameStore{dir: dir, logger: logger}
}

// Save encodes frame and writes it as frame_<id>.jpg, returning the file path.
func (s *KeyFrameStore) Save(id string, frame model.Frame) (string, error) {
	path, err := s.save(id, frame)
	if err != nil {
		s.failed.Add(1)
		s.logger.Error("Error saving key frame %s: %v", id, err)
		return "", err
	}
	s.saved.Add(1)
	return path, nil
}

func (s *KeyFrameStore) save(id string, frame model.Frame) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("invalid key frame id %q", id)
	}

	data, err := vision.EncodeJPEG(frame)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("error creating directory: %w", err)
	}

	path := filepath.Join(s.dir, Filename(id))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%s: %w", path, ErrExists)
		}
		return "", fmt.Errorf("error creating %s: %w", path, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("error writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("error closing %s: %w", path, err)
	}

	return path, nil
}

// Dir returns the key-frame directory.
func (s *KeyFrameStore) Dir() string {
	return s.dir
}

// Saved returns how many key frames were written successfully.
func (s *KeyFrameStore) Saved() int64 {
	return s.saved.Load()
}

// Failed returns how many save attempts failed.
func (s *KeyFrameStore) Failed() int64 {
	return s.failed.Load()
}

// Filename returns the file name used for identifier id.
func Filename(id string) string {
	return filenamePrefix + id + filenameExt
}

// ParseFilename extracts the identifier and capture time from a key-frame file name.
// Identifiers are Unix nanosecond ticks.
func ParseFilename(name string) (string, time.Time, bool) {
	if !strings.HasPrefix(name, filenamePrefix) || !strings.HasSuffix(name, filenameExt) {
		return "", time.Time{}, false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(name, filenamePrefix), filenameExt)
	ticks, err := strconv.ParseInt(id, 10, 64)
	if err != nil || ticks <= 0 {
		return "", time.Time{}, false
	}
	return id, time.Unix(0, ticks), true
}
