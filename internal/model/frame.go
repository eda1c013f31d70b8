package model

import (
	"bytes"
	"fmt"
)

// Frame is a raw captured frame: interleaved BGR bytes in row-major order.
type Frame struct {
	Width    int
	Height   int
	Channels int
	Data     []byte
}

// Tensor is a preprocessed frame: RGB float32 values in [0,1], height x width x channels.
type Tensor struct {
	Width    int
	Height   int
	Channels int
	Data     []float32
}

// InvalidFrameError reports a frame that cannot be processed.
type InvalidFrameError struct {
	Reason string
}

func (e *InvalidFrameError) Error() string {
	return fmt.Sprintf("invalid frame: %s", e.Reason)
}

// NewFrame allocates a zeroed frame of the given shape.
func NewFrame(width, height, channels int) Frame {
	return Frame{
		Width:    width,
		Height:   height,
		Channels: channels,
		Data:     make([]byte, width*height*channels),
	}
}

// Validate checks that the frame is non-empty and its data matches its shape.
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 || f.Channels <= 0 {
		return &InvalidFrameError{Reason: fmt.Sprintf("zero dimension %dx%dx%d", f.Width, f.Height, f.Channels)}
	}
	if len(f.Data) == 0 {
		return &InvalidFrameError{Reason: "empty pixel data"}
	}
	if want := f.Width * f.Height * f.Channels; len(f.Data) != want {
		return &InvalidFrameError{Reason: fmt.Sprintf("data size %d does not match %dx%dx%d", len(f.Data), f.Width, f.Height, f.Channels)}
	}
	return nil
}

// SameShape reports whether both frames have identical dimensions.
func (f Frame) SameShape(other Frame) bool {
	return f.Width == other.Width && f.Height == other.Height && f.Channels == other.Channels
}

// Equal reports whether both frames have the same shape and pixel data.
func (f Frame) Equal(other Frame) bool {
	return f.SameShape(other) && bytes.Equal(f.Data, other.Data)
}

// Clone returns a deep copy. The capture loop reuses its buffers, so anything
// that outlives a loop iteration must hold a clone.
func (f Frame) Clone() Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	f.Data = data
	return f
}
