// Package retention decides which threat frames become stored key frames.
//
// An Engine keeps a copy of the last frame it saved and accepts a new frame
// only when it differs from that reference by at least a threshold. Rejected
// frames never move the reference, so a slow drift of small changes is still
// measured against the last durable artifact.
package retention

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"sentinelvision/internal/model"
)

// ErrInvalidThreshold is returned for NaN or negative thresholds.
var ErrInvalidThreshold = errors.New("retention threshold must be a non-negative number")

// Outcome is the result kind of a retention decision.
type Outcome int

const (
	Skipped Outcome = iota
	Saved
)

func (o Outcome) String() string {
	if o == Saved {
		return "saved"
	}
	return "skipped"
}

// Decision describes what Consider did with a frame.
type Decision struct {
	Outcome       Outcome
	ID            string  // identifier of the stored frame, set when Saved
	Location      string  // where the store put it, set when Saved
	Dissimilarity float64 // +Inf when there was no comparable reference
	Forced        bool    // accepted without a comparable reference
}

// Store persists accepted frames. Save must not return until the frame is durable
// and must never overwrite an existing artifact.
type Store interface {
	Save(id string, frame model.Frame) (string, error)
}

// IDSource generates identifiers that are unique within a run.
type IDSource interface {
	Next() string
}

// PersistenceError reports an accepted frame the store failed to write.
type PersistenceError struct {
	ID  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist key frame %s: %v", e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Engine holds the last saved frame and makes accept/skip decisions against it.
// It is safe for concurrent use; each decision and its state update are atomic.
type Engine struct {
	store Store
	ids   IDSource

	mu        sync.Mutex
	lastSaved *model.Frame
}

// NewEngine creates an engine with an empty reference.
func NewEngine(store Store, ids IDSource) *Engine {
	if ids == nil {
		ids = NewTickSource()
	}
	return &Engine{store: store, ids: ids}
}

// Consider saves frame when there is no reference yet, when its shape differs
// from the reference, or when its dissimilarity to the reference reaches
// threshold. Otherwise it returns a Skipped decision without any I/O.
//
// If the store fails, a *PersistenceError is returned and the reference is left
// untouched.
func (e *Engine) Consider(frame model.Frame, threshold float64) (Decision, error) {
	if math.IsNaN(threshold) || threshold < 0 {
		return Decision{}, ErrInvalidThreshold
	}
	if err := frame.Validate(); err != nil {
		return Decision{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	decision := Decision{Dissimilarity: math.Inf(1), Forced: true}
	if e.lastSaved != nil {
		decision.Dissimilarity = Dissimilarity(frame, *e.lastSaved)
		decision.Forced = math.IsInf(decision.Dissimilarity, 1)
		if decision.Dissimilarity < threshold {
			return Decision{Outcome: Skipped, Dissimilarity: decision.Dissimilarity}, nil
		}
	}

	id := e.ids.Next()
	location, err := e.store.Save(id, frame)
	if err != nil {
		return Decision{}, &PersistenceError{ID: id, Err: err}
	}

	saved := frame.Clone()
	e.lastSaved = &saved

	decision.Outcome = Saved
	decision.ID = id
	decision.Location = location
	return decision, nil
}

// LastSaved returns a copy of the reference frame and whether one exists.
func (e *Engine) LastSaved() (model.Frame, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastSaved == nil {
		return model.Frame{}, false
	}
	return e.lastSaved.Clone(), true
}

// Reset forgets the reference; the next candidate is accepted unconditionally.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.lastSaved = nil
	e.mu.Unlock()
}

// Dissimilarity is the sum of absolute per-channel differences between two
// frames. Frames of different shape have no meaningful distance and yield +Inf.
func Dissimilarity(a, b model.Frame) float64 {
	if !a.SameShape(b) || len(a.Data) != len(b.Data) {
		return math.Inf(1)
	}
	var sum uint64
	for i, av := range a.Data {
		bv := b.Data[i]
		if av > bv {
			sum += uint64(av - bv)
		} else {
			sum += uint64(bv - av)
		}
	}
	return float64(sum)
}

// ThresholdFor converts a mean per-value difference into the equivalent sum
// threshold for frames of the given shape. The sum grows with resolution, so a
// fixed sum threshold only fits the resolution it was tuned for.
func ThresholdFor(meanPerValue float64, width, height, channels int) float64 {
	return meanPerValue * float64(width) * float64(height) * float64(channels)
}
