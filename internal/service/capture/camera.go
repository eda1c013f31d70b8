package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"sentinelvision/internal/model"
	"sentinelvision/internal/service/vision"
)

// Camera reads frames from a device index, video file or stream URL.
type Camera struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	mu      sync.Mutex
	closed  bool
}

// OpenCamera opens source. Numeric sources are device indices.
func OpenCamera(source string) (*Camera, error) {
	vc, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture source %q: %w", source, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("capture source %q is not available", source)
	}
	return &Camera{capture: vc, mat: gocv.NewMat()}, nil
}

// Read grabs the next frame. A failed grab or an empty frame ends the stream.
func (c *Camera) Read() (model.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return model.Frame{}, ErrEndOfStream
	}
	if ok := c.capture.Read(&c.mat); !ok || c.mat.Empty() {
		return model.Frame{}, ErrEndOfStream
	}
	return vision.FromMat(c.mat)
}

func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.mat.Close()
	return c.capture.Close()
}
