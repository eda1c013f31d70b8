package ai

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"sentinelvision/internal/logger"
	"sentinelvision/internal/model"
)

// DefaultThreatThreshold is the score above which a frame counts as a threat.
const DefaultThreatThreshold = 0.5

// ErrNetworkNotLoaded is returned when scoring without a loaded network.
var ErrNetworkNotLoaded = errors.New("classification network not initialized")

// Classifier maps a preprocessed frame to a threat probability in [0,1].
type Classifier interface {
	Score(t model.Tensor) (float64, error)
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(t model.Tensor) (float64, error)

func (f ClassifierFunc) Score(t model.Tensor) (float64, error) {
	return f(t)
}

// IsThreat applies the decision threshold to a score.
func IsThreat(score, threshold float64) bool {
	return score > threshold
}

// NetClassifier scores tensors with a single-output binary network loaded through gocv DNN.
type NetClassifier struct {
	net        gocv.Net
	modelPath  string
	configPath string
	logger     *logger.Logger
	mu         sync.Mutex
}

// NewNetClassifier loads the network at modelPath. configPath is optional and
// only needed for frameworks that split graph and weights.
func NewNetClassifier(modelPath, configPath string, logger *logger.Logger) (*NetClassifier, error) {
	c := &NetClassifier{
		modelPath:  modelPath,
		configPath: configPath,
		logger:     logger,
	}
	if err := c.initializeNet(); err != nil {
		return nil, err
	}
	return c, nil
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (c *NetClassifier) initializeNet() error {
	if _, err := os.Stat(c.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", c.modelPath)
	}
	if c.configPath != "" {
		if _, err := os.Stat(c.configPath); os.IsNotExist(err) {
			return fmt.Errorf("model config file not found: %s", c.configPath)
		}
	}

	net := gocv.ReadNet(c.modelPath, c.configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network from %s", c.modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	c.net = net
	c.logger.Info("Classification network loaded from %s", c.modelPath)
	return nil
}

// Score runs one forward pass and returns the network's scalar output clamped into [0,1].
func (c *NetClassifier) Score(t model.Tensor) (float64, error) {
	if t.Width <= 0 || t.Height <= 0 || t.Channels != 3 || len(t.Data) != t.Width*t.Height*3 {
		return 0, &model.InvalidFrameError{Reason: fmt.Sprintf("tensor shape %dx%dx%d with %d values", t.Width, t.Height, t.Channels, len(t.Data))}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.net.Empty() {
		return 0, ErrNetworkNotLoaded
	}

	input, err := gocv.NewMatFromBytes(t.Height, t.Width, gocv.MatTypeCV32FC3, float32Bytes(t.Data))
	if err != nil {
		return 0, fmt.Errorf("failed to build input matrix: %w", err)
	}
	defer input.Close()

	// Values are already scaled and in RGB order.
	blob := gocv.BlobFromImage(input, 1.0, image.Pt(t.Width, t.Height), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	c.net.SetInput(blob, "")
	output := c.net.Forward("")
	defer output.Close()

	if output.Empty() || output.Total() < 1 {
		return 0, fmt.Errorf("network produced no output")
	}

	score := float64(output.GetFloatAt(0, 0))
	if math.IsNaN(score) {
		return 0, fmt.Errorf("network produced NaN")
	}
	return math.Min(1, math.Max(0, score)), nil
}

// Close releases the network.
func (c *NetClassifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.net.Empty() {
		c.net.Close()
	}
}

func float32Bytes(values []float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.NativeEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}
