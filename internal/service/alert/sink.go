// Package alert delivers threat notifications. Delivery is best-effort:
// sinks log their own failures and never report them to the caller.
package alert

import (
	"fmt"
	"time"

	"sentinelvision/internal/logger"
	"sentinelvision/internal/model"
	"sentinelvision/internal/repository"
)

// DefaultMessage is the text sent for every threat frame.
const DefaultMessage = "Threat detected in current frame."

// Sink receives alert messages.
type Sink interface {
	Notify(message string)
}

// SinkDeliveryError reports a failed delivery to one sink.
type SinkDeliveryError struct {
	Sink string
	Err  error
}

func (e *SinkDeliveryError) Error() string {
	return fmt.Sprintf("alert delivery to %s failed: %v", e.Sink, e.Err)
}

func (e *SinkDeliveryError) Unwrap() error {
	return e.Err
}

// Multi fans a message out to several sinks in order.
type Multi []Sink

// NewMulti drops nil entries.
func NewMulti(sinks ...Sink) Multi {
	m := make(Multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m Multi) Notify(message string) {
	for _, s := range m {
		s.Notify(message)
	}
}

// LogSink writes alerts to the local log.
type LogSink struct {
	logger *logger.Logger
}

func NewLogSink(logger *logger.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(message string) {
	s.logger.Warning("ALERT: %s", message)
}

// AlertBroadcaster pushes alerts to live viewers.
type AlertBroadcaster interface {
	BroadcastAlert(message string)
}

// HubSink forwards alerts to connected websocket viewers.
type HubSink struct {
	hub AlertBroadcaster
}

func NewHubSink(hub AlertBroadcaster) *HubSink {
	return &HubSink{hub: hub}
}

func (s *HubSink) Notify(message string) {
	s.hub.BroadcastAlert(message)
}

// CatalogSink records alerts in the catalog.
type CatalogSink struct {
	alerts repository.AlertRepository
	runID  string
	logger *logger.Logger
	now    func() time.Time
}

func NewCatalogSink(alerts repository.AlertRepository, runID string, logger *logger.Logger) *CatalogSink {
	return &CatalogSink{alerts: alerts, runID: runID, logger: logger, now: time.Now}
}

func (s *CatalogSink) Notify(message string) {
	alert := &model.Alert{RunID: s.runID, Message: message, Timestamp: s.now()}
	if _, err := s.alerts.Insert(alert); err != nil {
		s.logger.Error("%v", &SinkDeliveryError{Sink: "catalog", Err: err})
	}
}
