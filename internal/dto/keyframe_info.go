package dto

import (
	"encoding/json"
	"time"
)

// KeyFrameInfo is the dashboard view of a stored key frame.
type KeyFrameInfo struct {
	Name          string    `json:"name"`
	RunID         string    `json:"runId"`
	Score         float64   `json:"score"`
	Dissimilarity float64   `json:"dissimilarity"`
	Forced        bool      `json:"forced"`
	Timestamp     time.Time `json:"timestamp"`
	Size          int64     `json:"size"`
}

// MarshalJSON formats the capture time as separate date and time-of-day fields.
func (k KeyFrameInfo) MarshalJSON() ([]byte, error) {
	type Alias KeyFrameInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      k.Timestamp.Format("02-01-2006"),
		TimeOfDay: k.Timestamp.Format("15:04:05"),
		Alias:     (Alias)(k),
	})
}
