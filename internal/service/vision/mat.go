// Package vision converts between model frames and gocv matrices.
package vision

import (
	"fmt"

	"gocv.io/x/gocv"

	"sentinelvision/internal/model"
)

// FromMat copies a 8-bit matrix into a Frame.
func FromMat(mat gocv.Mat) (model.Frame, error) {
	if mat.Empty() {
		return model.Frame{}, &model.InvalidFrameError{Reason: "empty matrix"}
	}
	if mat.Type() != gocv.MatTypeCV8UC1 && mat.Type() != gocv.MatTypeCV8UC3 && mat.Type() != gocv.MatTypeCV8UC4 {
		return model.Frame{}, &model.InvalidFrameError{Reason: fmt.Sprintf("unsupported matrix type %v", mat.Type())}
	}
	return model.Frame{
		Width:    mat.Cols(),
		Height:   mat.Rows(),
		Channels: mat.Channels(),
		Data:     mat.ToBytes(),
	}, nil
}

// ToMat builds a matrix owning a copy of the frame's pixels. The caller closes it.
func ToMat(f model.Frame) (gocv.Mat, error) {
	if err := f.Validate(); err != nil {
		return gocv.NewMat(), err
	}

	var matType gocv.MatType
	switch f.Channels {
	case 1:
		matType = gocv.MatTypeCV8UC1
	case 3:
		matType = gocv.MatTypeCV8UC3
	case 4:
		matType = gocv.MatTypeCV8UC4
	default:
		return gocv.NewMat(), &model.InvalidFrameError{Reason: fmt.Sprintf("unsupported channel count %d", f.Channels)}
	}

	view, err := gocv.NewMatFromBytes(f.Height, f.Width, matType, f.Data)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to wrap frame: %w", err)
	}
	defer view.Close()

	// view borrows f.Data; the clone owns its pixels.
	return view.Clone(), nil
}

// EncodeJPEG encodes a frame as JPEG.
func EncodeJPEG(f model.Frame) ([]byte, error) {
	mat, err := ToMat(f)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	return encodeMat(mat, gocv.JPEGFileExt)
}

// DecodeImage decodes JPEG/PNG bytes into a color frame.
func DecodeImage(data []byte) (model.Frame, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return model.Frame{}, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return model.Frame{}, &model.InvalidFrameError{Reason: "decoded image is empty"}
	}
	return FromMat(mat)
}

func encodeMat(mat gocv.Mat, ext gocv.FileExt) ([]byte, error) {
	buf, err := gocv.IMEncode(ext, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
