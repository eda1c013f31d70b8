package vision

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"sentinelvision/internal/model"
)

const (
	ThreatLabel = "Threat"
	NormalLabel = "Normal"
)

var (
	threatColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	normalColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
)

// Label returns the overlay text for a classification.
func Label(threat bool) string {
	if threat {
		return ThreatLabel
	}
	return NormalLabel
}

// Annotate draws the classification label in the top-left corner of mat.
func Annotate(mat *gocv.Mat, threat bool) error {
	c := normalColor
	if threat {
		c = threatColor
	}
	return gocv.PutText(mat, Label(threat), image.Pt(10, 30), gocv.FontHersheySimplex, 1, c, 2)
}

// AnnotatedJPEG returns a JPEG of the frame with its label drawn on it.
// The frame itself is not modified.
func AnnotatedJPEG(f model.Frame, threat bool) ([]byte, error) {
	mat, err := ToMat(f)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	if err := Annotate(&mat, threat); err != nil {
		return nil, err
	}
	return encodeMat(mat, gocv.JPEGFileExt)
}
