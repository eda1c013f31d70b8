// Package preprocess turns raw captured frames into classifier input tensors.
package preprocess

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"sentinelvision/internal/model"
	"sentinelvision/internal/service/vision"
)

// DefaultSize is the classifier input resolution.
var DefaultSize = image.Pt(64, 64)

// Preprocess resizes frame to size with bilinear interpolation, converts BGR to
// RGB and scales every value into [0,1]. Gray frames are expanded to three
// channels first. The input frame is not modified.
func Preprocess(frame model.Frame, size image.Point) (model.Tensor, error) {
	if size.X <= 0 || size.Y <= 0 {
		return model.Tensor{}, &model.InvalidFrameError{Reason: fmt.Sprintf("target size %dx%d", size.X, size.Y)}
	}
	if err := frame.Validate(); err != nil {
		return model.Tensor{}, err
	}

	src, err := vision.ToMat(frame)
	if err != nil {
		return model.Tensor{}, err
	}
	defer src.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	if err := gocv.Resize(src, &resized, size, 0, 0, gocv.InterpolationLinear); err != nil {
		return model.Tensor{}, fmt.Errorf("failed to resize frame: %w", err)
	}

	code := gocv.ColorBGRToRGB
	switch frame.Channels {
	case 1:
		code = gocv.ColorGrayToRGB
	case 4:
		code = gocv.ColorBGRAToRGB
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	if err := gocv.CvtColor(resized, &rgb, code); err != nil {
		return model.Tensor{}, fmt.Errorf("failed to convert color: %w", err)
	}

	return Normalize(rgb.ToBytes(), size.X, size.Y), nil
}

// Normalize scales 8-bit RGB values into a [0,1] tensor.
func Normalize(rgb []byte, width, height int) model.Tensor {
	data := make([]float32, len(rgb))
	for i, v := range rgb {
		data[i] = float32(v) / 255.0
	}
	return model.Tensor{Width: width, Height: height, Channels: 3, Data: data}
}
