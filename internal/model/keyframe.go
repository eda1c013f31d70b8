package model

import "time"

// KeyFrame represents a catalog record for a stored key frame.
type KeyFrame struct {
	ID            int64     `json:"id"`
	Filename      string    `json:"filename"`
	RunID         string    `json:"run_id"`
	Score         float64   `json:"score"`
	Dissimilarity float64   `json:"dissimilarity"`
	Forced        bool      `json:"forced"` // no comparable reference existed
	Timestamp     time.Time `json:"timestamp"`
	FilePath      string    `json:"filepath"`
	FileSize      int64     `json:"filesize"`
}

// KeyFrameStats contains statistics about stored key frames.
type KeyFrameStats struct {
	TotalKeyFrames int            `json:"total_key_frames"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
	ForcedCount    int            `json:"forced_count"`
	PerRun         map[string]int `json:"per_run"`
	TotalAlerts    int            `json:"total_alerts"`
}
