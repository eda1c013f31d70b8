// Package preview shows classified frames to an operator.
package preview

import (
	"sync"

	"gocv.io/x/gocv"

	"sentinelvision/internal/logger"
	"sentinelvision/internal/model"
	"sentinelvision/internal/service/vision"
)

// DefaultWindowName is the title of the local preview window.
const DefaultWindowName = "SentinelVision - Live Feed"

const quitKey = 'q'

// Preview displays a frame with its classification. It reports true when
// the operator asked to stop.
type Preview interface {
	Show(frame model.Frame, threat bool) (quit bool)
	Close() error
}

// Headless discards frames.
type Headless struct{}

func (Headless) Show(model.Frame, bool) bool { return false }
func (Headless) Close() error { return nil }

// Window renders frames in a local gocv window. Pressing q quits.
type Window struct {
	window *gocv.Window
	logger *logger.Logger
	once   sync.Once
}

func NewWindow(name string, logger *logger.Logger) *Window {
	if name == "" {
		name = DefaultWindowName
	}
	return &Window{window: gocv.NewWindow(name), logger: logger}
}

func (w *Window) Show(frame model.Frame, threat bool) bool {
	mat, err := vision.ToMat(frame)
	if err != nil {
		w.logger.Warning("Preview skipped: %v", err)
		return false
	}
	defer mat.Close()

	if err := vision.Annotate(&mat, threat); err != nil {
		w.logger.Warning("Preview annotation failed: %v", err)
	}
	w.window.IMShow(mat)
	return w.window.WaitKey(1)&0xFF == quitKey
}

func (w *Window) Close() error {
	var err error
	w.once.Do(func() { err = w.window.Close() })
	return err
}

// FrameBroadcaster pushes encoded frames to remote viewers.
type FrameBroadcaster interface {
	BroadcastFrame(label string, jpeg []byte)
	GetClientCount() int
}

// Stream sends annotated frames to websocket viewers.
type Stream struct {
	hub    FrameBroadcaster
	logger *logger.Logger
}

func NewStream(hub FrameBroadcaster, logger *logger.Logger) *Stream {
	return &Stream{hub: hub, logger: logger}
}

func (s *Stream) Show(frame model.Frame, threat bool) bool {
	if s.hub.GetClientCount() == 0 {
		return false
	}
	data, err := vision.AnnotatedJPEG(frame, threat)
	if err != nil {
		s.logger.Warning("Stream frame skipped: %v", err)
		return false
	}
	s.hub.BroadcastFrame(vision.Label(threat), data)
	return false
}

func (s *Stream) Close() error { return nil }

// Tee shows every frame on each preview and quits when any of them does.
type Tee []Preview

func (t Tee) Show(frame model.Frame, threat bool) bool {
	quit := false
	for _, p := range t {
		if p.Show(frame, threat) {
			quit = true
		}
	}
	return quit
}

func (t Tee) Close() error {
	var firstErr error
	for _, p := range t {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
