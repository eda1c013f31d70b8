package model

import "time"

// Alert represents an alert message recorded in the catalog.
type Alert struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
