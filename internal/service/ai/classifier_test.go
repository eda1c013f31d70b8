package ai

import (
	"encoding/binary"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinelvision/internal/logger"
	"sentinelvision/internal/model"
)

func TestIsThreat(t *testing.T) {
	tests := []struct {
		score     float64
		threshold float64
		expected  bool
	}{
		{0.51, DefaultThreatThreshold, true},
		{0.5, DefaultThreatThreshold, false},
		{0.0, DefaultThreatThreshold, false},
		{1.0, DefaultThreatThreshold, true},
		{0.8, 0.9, false},
		{0.1, 0.05, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, IsThreat(tt.score, tt.threshold), "score=%v threshold=%v", tt.score, tt.threshold)
	}
}

func TestClassifierFunc(t *testing.T) {
	var seen model.Tensor
	c := ClassifierFunc(func(t model.Tensor) (float64, error) {
		seen = t
		return 0.7, nil
	})

	tensor := model.Tensor{Width: 1, Height: 1, Channels: 3, Data: []float32{0, 0, 1}}
	score, err := c.Score(tensor)

	require.NoError(t, err)
	assert.Equal(t, 0.7, score)
	assert.Equal(t, tensor, seen)

	failing := ClassifierFunc(func(model.Tensor) (float64, error) { return 0, errors.New("boom") })
	_, err = failing.Score(tensor)
	assert.Error(t, err)
}

func TestNewNetClassifier_MissingModel(t *testing.T) {
	_, err := NewNetClassifier(filepath.Join(t.TempDir(), "missing.onnx"), "", logger.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model file not found")
}

func TestNetClassifier_ScoreRejectsBadTensor(t *testing.T) {
	c := &NetClassifier{logger: logger.Discard()}

	_, err := c.Score(model.Tensor{Width: 2, Height: 2, Channels: 3, Data: make([]float32, 5)})
	var invalid *model.InvalidFrameError
	assert.ErrorAs(t, err, &invalid)
}

func TestNetClassifier_ScoreWithoutNetwork(t *testing.T) {
	c := &NetClassifier{logger: logger.Discard()}

	_, err := c.Score(model.Tensor{Width: 1, Height: 1, Channels: 3, Data: make([]float32, 3)})
	assert.ErrorIs(t, err, ErrNetworkNotLoaded)
}

func TestFloat32Bytes(t *testing.T) {
	out := float32Bytes([]float32{1, 0.5})
	require.Len(t, out, 8)
	assert.Equal(t, float32(1), math.Float32frombits(binary.NativeEndian.Uint32(out[0:])))
	assert.Equal(t, float32(0.5), math.Float32frombits(binary.NativeEndian.Uint32(out[4:])))
}
