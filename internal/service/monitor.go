package service

import (
	"context"
	"errors"
	"image"
	"sync/atomic"

	"sentinelvision/internal/config"
	"sentinelvision/internal/logger"
	"sentinelvision/internal/model"
	"sentinelvision/internal/service/ai"
	"sentinelvision/internal/service/alert"
	"sentinelvision/internal/service/capture"
	"sentinelvision/internal/service/preprocess"
	"sentinelvision/internal/service/preview"
	"sentinelvision/internal/service/retention"
)

// Archiver records key frames after they have been saved.
type Archiver interface {
	Record(ctx context.Context, d retention.Decision, score float64)
}

// Result is the outcome of processing one frame.
type Result struct {
	Score    float64
	Threat   bool
	Decision retention.Decision
}

// MonitorStats counts what the loop has done so far.
type MonitorStats struct {
	Frames          int64 `json:"frames"`
	Processed       int64 `json:"processed"`
	Invalid         int64 `json:"invalid"`
	Threats         int64 `json:"threats"`
	Saved           int64 `json:"saved"`
	Skipped         int64 `json:"skipped"`
	PersistFailures int64 `json:"persist_failures"`
}

// Monitor runs the capture → classify → alert → retain → preview loop on a single goroutine.
type Monitor struct {
	source     capture.Source
	classifier ai.Classifier
	engine     *retention.Engine
	sink       alert.Sink
	archiver   Archiver
	preview    preview.Preview
	logger     *logger.Logger

	inputSize          image.Point
	threatThreshold    float64
	retentionThreshold float64
	meanThreshold      float64
	alertMessage       string
	processEveryNth    int

	frameCount int
	lastThreat bool

	frames, processed, invalid, threats, saved, skipped, persistFailures atomic.Int64
}

// NewMonitor wires the loop. archiver and preview may be nil.
func NewMonitor(cfg *config.Config, source capture.Source, classifier ai.Classifier, engine *retention.Engine, sink alert.Sink, archiver Archiver, pv preview.Preview, logger *logger.Logger) *Monitor {
	if pv == nil {
		pv = preview.Headless{}
	}
	if sink == nil {
		sink = alert.NewLogSink(logger)
	}
	every := cfg.ProcessingInterval
	if every < 1 {
		every = 1
	}
	message := cfg.AlertMessage
	if message == "" {
		message = alert.DefaultMessage
	}

	return &Monitor{
		source:             source,
		classifier:         classifier,
		engine:             engine,
		sink:               sink,
		archiver:           archiver,
		preview:            pv,
		logger:             logger,
		inputSize:          image.Pt(cfg.InputWidth, cfg.InputHeight),
		threatThreshold:    cfg.ThreatThreshold,
		retentionThreshold: cfg.RetentionThreshold,
		meanThreshold:      cfg.RetentionMeanThreshold,
		alertMessage:       message,
		processEveryNth:    every,
	}
}

// Run reads frames until the source ends, the preview asks to quit or ctx is cancelled.
// Cancelling ctx closes the source so a Read blocked on a quiet feed returns.
// Per-frame failures are logged and never stop the loop.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("🎬 Monitor started - processing every %d frame(s)", m.processEveryNth)
	defer m.logger.Info("🛑 Monitor stopped after %d frame(s)", m.frames.Load())

	stopSource := context.AfterFunc(ctx, func() {
		if err := m.source.Close(); err != nil {
			m.logger.Warning("Closing capture source: %v", err)
		}
	})
	defer stopSource()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frame, err := m.source.Read()
		if err != nil {
			if errors.Is(err, capture.ErrEndOfStream) {
				if ctx.Err() == nil {
					m.logger.Info("Capture source ended")
				}
				return nil
			}
			var invalid *model.InvalidFrameError
			if errors.As(err, &invalid) {
				m.invalid.Add(1)
				m.logger.Warning("Skipping frame: %v", err)
				continue
			}
			return err
		}
		m.frames.Add(1)

		threat := m.lastThreat
		m.frameCount++
		if m.frameCount%m.processEveryNth == 0 {
			m.frameCount = 0
			result, err := m.ProcessFrame(ctx, frame)
			if !m.handleError(err) {
				continue
			}
			threat = result.Threat
			m.lastThreat = threat
		}

		if m.preview.Show(frame, threat) {
			m.logger.Info("Preview closed by operator")
			return nil
		}
	}
}

// handleError logs a per-frame error and reports whether the frame can still be shown.
func (m *Monitor) handleError(err error) bool {
	if err == nil {
		return true
	}

	var invalid *model.InvalidFrameError
	var persist *retention.PersistenceError
	switch {
	case errors.As(err, &invalid):
		m.logger.Warning("Skipping frame: %v", err)
		return false
	case errors.As(err, &persist):
		m.logger.Error("Key frame not retained: %v", err)
		return true
	default:
		m.logger.Error("Error processing frame: %v", err)
		return false
	}
}

// ProcessFrame classifies one frame, raises an alert for threats and offers
// threat frames to the retention engine. A PersistenceError still carries the
// classification in the returned Result.
func (m *Monitor) ProcessFrame(ctx context.Context, frame model.Frame) (Result, error) {
	tensor, err := preprocess.Preprocess(frame, m.inputSize)
	if err != nil {
		m.invalid.Add(1)
		return Result{}, err
	}

	score, err := m.classifier.Score(tensor)
	if err != nil {
		return Result{}, err
	}
	m.processed.Add(1)

	result := Result{Score: score, Threat: ai.IsThreat(score, m.threatThreshold)}
	if !result.Threat {
		return result, nil
	}

	m.threats.Add(1)
	m.sink.Notify(m.alertMessage)

	decision, err := m.engine.Consider(frame, m.thresholdFor(frame))
	if err != nil {
		var persist *retention.PersistenceError
		if errors.As(err, &persist) {
			m.persistFailures.Add(1)
		}
		return result, err
	}
	result.Decision = decision

	switch decision.Outcome {
	case retention.Saved:
		m.saved.Add(1)
		m.logger.Info("💾 Key frame saved: %s (score %.2f)", decision.Location, score)
		if m.archiver != nil {
			m.archiver.Record(ctx, decision, score)
		}
	case retention.Skipped:
		m.skipped.Add(1)
	}

	return result, nil
}

func (m *Monitor) thresholdFor(frame model.Frame) float64 {
	if m.meanThreshold > 0 {
		return retention.ThresholdFor(m.meanThreshold, frame.Width, frame.Height, frame.Channels)
	}
	return m.retentionThreshold
}

// Stats returns a snapshot of the loop counters. Safe to call from other goroutines.
func (m *Monitor) Stats() MonitorStats {
	return MonitorStats{
		Frames:          m.frames.Load(),
		Processed:       m.processed.Load(),
		Invalid:         m.invalid.Load(),
		Threats:         m.threats.Load(),
		Saved:           m.saved.Load(),
		Skipped:         m.skipped.Load(),
		PersistFailures: m.persistFailures.Load(),
	}
}
