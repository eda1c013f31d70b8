package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"sentinelvision/internal/model"
)

func gradientFrame(width, height int) model.Frame {
	f := model.NewFrame(width, height, 3)
	for i := range f.Data {
		f.Data[i] = byte(i % 251)
	}
	return f
}

func TestToMatFromMat_RoundTrip(t *testing.T) {
	f := gradientFrame(7, 5)

	mat, err := ToMat(f)
	require.NoError(t, err)
	defer mat.Close()

	assert.Equal(t, 5, mat.Rows())
	assert.Equal(t, 7, mat.Cols())
	assert.Equal(t, gocv.MatTypeCV8UC3, mat.Type())

	back, err := FromMat(mat)
	require.NoError(t, err)
	assert.True(t, f.Equal(back))
}

func TestToMat_OwnsPixels(t *testing.T) {
	f := gradientFrame(4, 4)
	mat, err := ToMat(f)
	require.NoError(t, err)
	defer mat.Close()

	f.Data[0] = 200
	back, err := FromMat(mat)
	require.NoError(t, err)
	assert.Equal(t, byte(0), back.Data[0])
}

func TestToMat_RejectsInvalidFrames(t *testing.T) {
	_, err := ToMat(model.Frame{})
	var invalid *model.InvalidFrameError
	assert.ErrorAs(t, err, &invalid)

	_, err = ToMat(model.Frame{Width: 1, Height: 1, Channels: 2, Data: []byte{1, 2}})
	assert.ErrorAs(t, err, &invalid)
}

func TestEncodeDecodeJPEG(t *testing.T) {
	f := model.NewFrame(32, 16, 3)
	for i := range f.Data {
		f.Data[i] = 128
	}

	data, err := EncodeJPEG(f)
	require.NoError(t, err)
	require.True(t, len(data) > 2)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2])

	decoded, err := DecodeImage(data)
	require.NoError(t, err)
	assert.Equal(t, 32, decoded.Width)
	assert.Equal(t, 16, decoded.Height)
	assert.Equal(t, 3, decoded.Channels)
}

func TestDecodeImage_Garbage(t *testing.T) {
	_, err := DecodeImage([]byte("definitely not a jpeg"))
	assert.Error(t, err)
}

func TestAnnotatedJPEG_LeavesFrameUntouched(t *testing.T) {
	f := model.NewFrame(64, 48, 3)
	before := f.Clone()

	data, err := AnnotatedJPEG(f, true)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.True(t, before.Equal(f))

	assert.Equal(t, "Threat", Label(true))
	assert.Equal(t, "Normal", Label(false))
}
