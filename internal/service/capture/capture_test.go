package capture

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinelvision/internal/logger"
	"sentinelvision/internal/model"
	"sentinelvision/internal/service/vision"
)

func TestAssembler_SingleDatagram(t *testing.T) {
	a := &assembler{}
	frame, ok := a.feed([]byte{0xFF, 0xD8, 1, 2, 0xFF, 0xD9})
	require.True(t, ok)
	assert.Equal(t, []byte{0xFF, 0xD8, 1, 2, 0xFF, 0xD9}, frame)
}

func TestAssembler_MultipleDatagrams(t *testing.T) {
	a := &assembler{}

	_, ok := a.feed([]byte{0xFF, 0xD8, 1})
	assert.False(t, ok)
	_, ok = a.feed([]byte{2, 3})
	assert.False(t, ok)
	frame, ok := a.feed([]byte{4, 0xFF, 0xD9})
	require.True(t, ok)
	assert.Equal(t, []byte{0xFF, 0xD8, 1, 2, 3, 4, 0xFF, 0xD9}, frame)
}

func TestAssembler_IgnoresDataBeforeHeader(t *testing.T) {
	a := &assembler{}

	_, ok := a.feed([]byte{9, 9, 0xFF, 0xD9})
	assert.False(t, ok)

	frame, ok := a.feed([]byte{0xFF, 0xD8, 0xFF, 0xD9})
	require.True(t, ok)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xD9}, frame)
}

func TestAssembler_NewHeaderRestartsFrame(t *testing.T) {
	a := &assembler{}

	a.feed([]byte{0xFF, 0xD8, 1, 1, 1})
	frame, ok := a.feed([]byte{0xFF, 0xD8, 2, 0xFF, 0xD9})
	require.True(t, ok)
	assert.Equal(t, []byte{0xFF, 0xD8, 2, 0xFF, 0xD9}, frame)
}

func TestEvictIdle_DropsQuietSenders(t *testing.T) {
	now := time.Now()
	assemblers := map[string]*assembler{
		"10.0.0.1:5000": {seen: now.Add(-time.Minute)},
		"10.0.0.2:5000": {seen: now.Add(-time.Second)},
	}

	evictIdle(assemblers, now, 10*time.Second)

	assert.NotContains(t, assemblers, "10.0.0.1:5000")
	assert.Contains(t, assemblers, "10.0.0.2:5000")
}

func TestNextBackoff_DoublesUpToCap(t *testing.T) {
	d := nextBackoff(0)
	assert.Equal(t, minReadBackoff, d)

	d = nextBackoff(d)
	assert.Equal(t, 2*minReadBackoff, d)

	for i := 0; i < 20; i++ {
		d = nextBackoff(d)
	}
	assert.Equal(t, maxReadBackoff, d)
}

func TestUDPSource_ReceivesChunkedJPEG(t *testing.T) {
	src, err := Open("udp://127.0.0.1:0", logger.Discard())
	require.NoError(t, err)
	defer src.Close()

	udp, ok := src.(*UDPSource)
	require.True(t, ok)

	f := model.NewFrame(40, 30, 3)
	for i := range f.Data {
		f.Data[i] = 90
	}
	data, err := vision.EncodeJPEG(f)
	require.NoError(t, err)

	conn, err := net.Dial("udp", udp.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	const chunk = 100
	for start := 0; start < len(data); start += chunk {
		end := start + chunk
		if end > len(data) {
			end = len(data)
		}
		_, err := conn.Write(data[start:end])
		require.NoError(t, err)
	}

	result := make(chan model.Frame, 1)
	go func() {
		frame, err := src.Read()
		if err == nil {
			result <- frame
		}
	}()

	select {
	case frame := <-result:
		assert.Equal(t, 40, frame.Width)
		assert.Equal(t, 30, frame.Height)
		assert.Equal(t, 3, frame.Channels)
	case <-time.After(3 * time.Second):
		t.Fatal("no frame received")
	}
}

func TestUDPSource_CloseEndsStream(t *testing.T) {
	src, err := ListenUDP("127.0.0.1:0", logger.Discard())
	require.NoError(t, err)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	_, err = src.Read()
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestUDPSource_CloseUnblocksRead(t *testing.T) {
	src, err := ListenUDP("127.0.0.1:0", logger.Discard())
	require.NoError(t, err)

	readErr := make(chan error, 1)
	go func() {
		_, err := src.Read()
		readErr <- err
	}()

	// Nothing is sent, so Read stays blocked until Close.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, src.Close())

	select {
	case err := <-readErr:
		assert.ErrorIs(t, err, ErrEndOfStream)
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not return after Close")
	}
}

func TestOpenCamera_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.avi"), logger.Discard())
	assert.Error(t, err)
}
