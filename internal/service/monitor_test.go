package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinelvision/internal/config"
	"sentinelvision/internal/logger"
	"sentinelvision/internal/model"
	"sentinelvision/internal/service/ai"
	"sentinelvision/internal/service/capture"
	"sentinelvision/internal/service/retention"
)

type sliceSource struct {
	items  []interface{} // model.Frame or error
	closed bool
}

func (s *sliceSource) Read() (model.Frame, error) {
	if len(s.items) == 0 {
		return model.Frame{}, capture.ErrEndOfStream
	}
	item := s.items[0]
	s.items = s.items[1:]
	if err, ok := item.(error); ok {
		return model.Frame{}, err
	}
	return item.(model.Frame), nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

// quietSource never produces a frame; Read blocks until Close.
type quietSource struct {
	closed chan struct{}
	once   sync.Once
}

func newQuietSource() *quietSource {
	return &quietSource{closed: make(chan struct{})}
}

func (s *quietSource) Read() (model.Frame, error) {
	<-s.closed
	return model.Frame{}, capture.ErrEndOfStream
}

func (s *quietSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type memoryStore struct {
	mu    sync.Mutex
	saved map[string]model.Frame
	fail  bool
}

func (s *memoryStore) Save(id string, frame model.Frame) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return "", errors.New("disk full")
	}
	if s.saved == nil {
		s.saved = make(map[string]model.Frame)
	}
	s.saved[id] = frame.Clone()
	return "mem/frame_" + id + ".jpg", nil
}

type recordingSink struct {
	messages []string
}

func (s *recordingSink) Notify(message string) {
	s.messages = append(s.messages, message)
}

type recordingArchiver struct {
	decisions []retention.Decision
	scores    []float64
}

func (a *recordingArchiver) Record(_ context.Context, d retention.Decision, score float64) {
	a.decisions = append(a.decisions, d)
	a.scores = append(a.scores, score)
}

type recordingPreview struct {
	threats []bool
	quitAt  int
}

func (p *recordingPreview) Show(_ model.Frame, threat bool) bool {
	p.threats = append(p.threats, threat)
	return p.quitAt > 0 && len(p.threats) >= p.quitAt
}

func (p *recordingPreview) Close() error { return nil }

// brightness scores a tensor by its mean value, so white frames are threats.
var brightness = ai.ClassifierFunc(func(t model.Tensor) (float64, error) {
	var sum float64
	for _, v := range t.Data {
		sum += float64(v)
	}
	return sum / float64(len(t.Data)), nil
})

func solid(v byte) model.Frame {
	f := model.NewFrame(64, 64, 3)
	for i := range f.Data {
		f.Data[i] = v
	}
	return f
}

func testConfig() *config.Config {
	return &config.Config{
		InputWidth:         8,
		InputHeight:        8,
		ThreatThreshold:    0.5,
		RetentionThreshold: 5000,
		ProcessingInterval: 1,
		AlertMessage:       "Threat detected in current frame.",
	}
}

type harness struct {
	source   *sliceSource
	store    *memoryStore
	sink     *recordingSink
	archiver *recordingArchiver
	preview  *recordingPreview
	monitor  *Monitor
}

func newHarness(cfg *config.Config, classifier ai.Classifier, items ...interface{}) *harness {
	h := &harness{
		source:   &sliceSource{items: items},
		store:    &memoryStore{},
		sink:     &recordingSink{},
		archiver: &recordingArchiver{},
		preview:  &recordingPreview{},
	}
	engine := retention.NewEngine(h.store, nil)
	h.monitor = NewMonitor(cfg, h.source, classifier, engine, h.sink, h.archiver, h.preview, logger.Discard())
	return h
}

func TestMonitor_ThreatsAlertAndRetainDistinctFrames(t *testing.T) {
	h := newHarness(testConfig(), brightness, solid(255), solid(255), solid(0), solid(255), solid(128))

	require.NoError(t, h.monitor.Run(context.Background()))

	assert.Len(t, h.sink.messages, 4)
	assert.Equal(t, "Threat detected in current frame.", h.sink.messages[0])

	// First white is the bootstrap save; 128 differs enough from white to be saved too.
	require.Len(t, h.archiver.decisions, 2)
	assert.True(t, h.archiver.decisions[0].Forced)
	assert.False(t, h.archiver.decisions[1].Forced)
	assert.InDelta(t, 1.0, h.archiver.scores[0], 1e-6)
	assert.Len(t, h.store.saved, 2)

	assert.Equal(t, []bool{true, true, false, true, true}, h.preview.threats)

	stats := h.monitor.Stats()
	assert.EqualValues(t, 5, stats.Frames)
	assert.EqualValues(t, 5, stats.Processed)
	assert.EqualValues(t, 4, stats.Threats)
	assert.EqualValues(t, 2, stats.Saved)
	assert.EqualValues(t, 2, stats.Skipped)
}

func TestMonitor_NormalFramesAreNeverRetained(t *testing.T) {
	h := newHarness(testConfig(), brightness, solid(0), solid(10), solid(20))

	require.NoError(t, h.monitor.Run(context.Background()))

	assert.Empty(t, h.sink.messages)
	assert.Empty(t, h.store.saved)
	assert.Equal(t, []bool{false, false, false}, h.preview.threats)
}

func TestMonitor_ProcessesEveryNthFrame(t *testing.T) {
	cfg := testConfig()
	cfg.ProcessingInterval = 2

	calls := 0
	counting := ai.ClassifierFunc(func(t model.Tensor) (float64, error) {
		calls++
		return 0.9, nil
	})
	h := newHarness(cfg, counting, solid(1), solid(2), solid(3), solid(4))

	require.NoError(t, h.monitor.Run(context.Background()))

	assert.Equal(t, 2, calls)
	assert.Len(t, h.preview.threats, 4)
	// Unprocessed frames reuse the last classification.
	assert.Equal(t, []bool{false, true, true, true}, h.preview.threats)
}

func TestMonitor_PersistenceFailureKeepsRunning(t *testing.T) {
	h := newHarness(testConfig(), brightness, solid(255), solid(255), solid(255))
	h.store.fail = true

	require.NoError(t, h.monitor.Run(context.Background()))

	stats := h.monitor.Stats()
	assert.EqualValues(t, 3, stats.PersistFailures)
	assert.EqualValues(t, 0, stats.Saved)
	assert.Empty(t, h.archiver.decisions)
	assert.Len(t, h.sink.messages, 3)
	assert.Equal(t, []bool{true, true, true}, h.preview.threats)
}

func TestMonitor_InvalidFramesAreSkipped(t *testing.T) {
	bad := &model.InvalidFrameError{Reason: "corrupt jpeg"}
	h := newHarness(testConfig(), brightness, bad, model.Frame{Width: 2, Height: 2, Channels: 3}, solid(255))

	require.NoError(t, h.monitor.Run(context.Background()))

	assert.EqualValues(t, 2, h.monitor.Stats().Invalid)
	assert.Equal(t, []bool{true}, h.preview.threats)
}

func TestMonitor_ClassifierErrorSkipsFrame(t *testing.T) {
	failing := ai.ClassifierFunc(func(model.Tensor) (float64, error) {
		return 0, fmt.Errorf("forward failed")
	})
	h := newHarness(testConfig(), failing, solid(255), solid(255))

	require.NoError(t, h.monitor.Run(context.Background()))

	assert.Empty(t, h.preview.threats)
	assert.Empty(t, h.sink.messages)
}

func TestMonitor_PreviewQuitStopsLoop(t *testing.T) {
	h := newHarness(testConfig(), brightness, solid(0), solid(0), solid(0), solid(0))
	h.preview.quitAt = 2

	require.NoError(t, h.monitor.Run(context.Background()))

	assert.Len(t, h.preview.threats, 2)
	assert.Len(t, h.source.items, 2)
}

func TestMonitor_CancelledContextStops(t *testing.T) {
	h := newHarness(testConfig(), brightness, solid(0), solid(0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.monitor.Run(ctx))
	assert.Empty(t, h.preview.threats)
}

func TestMonitor_CancelWhileReadBlockedStops(t *testing.T) {
	source := newQuietSource()
	engine := retention.NewEngine(&memoryStore{}, nil)
	m := NewMonitor(testConfig(), source, brightness, engine, nil, nil, nil, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	select {
	case <-source.closed:
	default:
		t.Error("source was not closed")
	}
}

func TestMonitor_SourceErrorIsReturned(t *testing.T) {
	h := newHarness(testConfig(), brightness, errors.New("device unplugged"))
	assert.EqualError(t, h.monitor.Run(context.Background()), "device unplugged")
}

func TestMonitor_MeanThresholdScalesWithResolution(t *testing.T) {
	cfg := testConfig()
	cfg.RetentionThreshold = 1e12
	cfg.RetentionMeanThreshold = 10

	// A mean difference of 20 per value exceeds 10 whatever the absolute threshold says.
	h := newHarness(cfg, brightness, solid(255), solid(235))
	require.NoError(t, h.monitor.Run(context.Background()))
	assert.Len(t, h.store.saved, 2)

	assert.Equal(t, retention.ThresholdFor(10, 64, 64, 3), h.monitor.thresholdFor(solid(0)))
}
