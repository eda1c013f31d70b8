// Package resize scales JPEG images according to the amount of motion in them.
package resize

import (
	"encoding/base64"
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// HighMotionLevel is the motion level above which full resolution is kept.
const HighMotionLevel = 0.5

var (
	// ErrMissingImage is returned when no image data was supplied.
	ErrMissingImage = errors.New("no image_data provided")
	// ErrUndecodable is returned when the image data is not a decodable image.
	ErrUndecodable = errors.New("image_data is not a decodable image")
	// ErrEncode is returned when the scaled image cannot be encoded.
	ErrEncode = errors.New("failed to encode image")
)

// TargetSize returns the output size for an input of width×height. Low motion
// halves both sides with integer division, never going below one pixel.
func TargetSize(width, height int, motionLevel float64) image.Point {
	if motionLevel > HighMotionLevel {
		return image.Pt(width, height)
	}
	return image.Pt(max(width/2, 1), max(height/2, 1))
}

// Scale decodes an image, resizes it for motionLevel and re-encodes it as JPEG.
func Scale(data []byte, motionLevel float64) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrMissingImage
	}

	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, ErrUndecodable
	}

	size := TargetSize(img.Cols(), img.Rows(), motionLevel)

	scaled := gocv.NewMat()
	defer scaled.Close()
	if err := gocv.Resize(img, &scaled, size, 0, 0, gocv.InterpolationLinear); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, scaled)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// ScaleBase64 is Scale over base64 text, as carried by the HTTP endpoint.
func ScaleBase64(encoded string, motionLevel float64) (string, error) {
	if encoded == "" {
		return "", ErrMissingImage
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	out, err := Scale(data, motionLevel)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(out), nil
}
