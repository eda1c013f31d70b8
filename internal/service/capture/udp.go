package capture

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"sentinelvision/internal/logger"
	"sentinelvision/internal/model"
	"sentinelvision/internal/service/vision"
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

const (
	maxDatagram = 65536
	frameQueue  = 4

	// Senders that stay quiet this long lose their partial frame.
	assemblerIdle = 10 * time.Second

	minReadBackoff = 10 * time.Millisecond
	maxReadBackoff = time.Second
)

// UDPSource reassembles JPEG frames streamed over UDP by network cameras.
// A datagram starting with the JPEG SOI marker begins a frame and one ending
// with the EOI marker completes it. Frames are kept per sender.
type UDPSource struct {
	conn   *net.UDPConn
	frames chan []byte
	done   chan struct{}
	once   sync.Once
	logger *logger.Logger
}

// ListenUDP starts receiving on addr, e.g. ":5005".
func ListenUDP(addr string, logger *logger.Logger) (*UDPSource, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address %s: %w", addr, err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP %s: %w", addr, err)
	}

	s := &UDPSource{
		conn:   conn,
		frames: make(chan []byte, frameQueue),
		done:   make(chan struct{}),
		logger: logger,
	}
	go s.receive()

	logger.Info("UDP capture listening on %s", s.Addr())
	return s, nil
}

// Addr returns the bound local address.
func (s *UDPSource) Addr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *UDPSource) receive() {
	defer close(s.frames)

	buffer := make([]byte, maxDatagram)
	assemblers := make(map[string]*assembler)
	lastSweep := time.Now()
	var backoff time.Duration

	for {
		n, remoteAddr, err := s.conn.ReadFromUDP(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			backoff = nextBackoff(backoff)
			s.logger.Error("Error reading UDP packet, retrying in %v: %v", backoff, err)
			select {
			case <-time.After(backoff):
				continue
			case <-s.done:
				return
			}
		}
		backoff = 0

		now := time.Now()
		if now.Sub(lastSweep) >= assemblerIdle {
			evictIdle(assemblers, now, assemblerIdle)
			lastSweep = now
		}

		key := remoteAddr.String()
		a, ok := assemblers[key]
		if !ok {
			a = &assembler{}
			assemblers[key] = a
		}
		a.seen = now

		frame, complete := a.feed(buffer[:n])
		if !complete {
			continue
		}

		select {
		case s.frames <- frame:
		case <-s.done:
			return
		default:
			// Monitor is behind; keep the stream live by dropping the oldest frame.
			select {
			case <-s.frames:
			default:
			}
			select {
			case s.frames <- frame:
			default:
			}
		}
	}
}

// Read blocks for the next complete frame. Undecodable frames are reported
// as invalid so the caller can skip them.
// It returns ErrEndOfStream once the source is closed.
func (s *UDPSource) Read() (model.Frame, error) {
	select {
	case data, ok := <-s.frames:
		if !ok {
			return model.Frame{}, ErrEndOfStream
		}
		return vision.DecodeImage(data)
	case <-s.done:
		return model.Frame{}, ErrEndOfStream
	}
}

func (s *UDPSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

type assembler struct {
	buf    bytes.Buffer
	inside bool
	seen   time.Time
}

// evictIdle drops assemblers that have not received a datagram within idle.
func evictIdle(assemblers map[string]*assembler, now time.Time, idle time.Duration) {
	for key, a := range assemblers {
		if now.Sub(a.seen) >= idle {
			delete(assemblers, key)
		}
	}
}

// nextBackoff doubles the previous delay within [minReadBackoff, maxReadBackoff].
func nextBackoff(prev time.Duration) time.Duration {
	if prev < minReadBackoff {
		return minReadBackoff
	}
	return min(prev*2, maxReadBackoff)
}

// feed appends one datagram and returns a copy of the frame once it is complete.
func (a *assembler) feed(data []byte) ([]byte, bool) {
	if bytes.HasPrefix(data, jpegHeader) {
		a.buf.Reset()
		a.inside = true
	}
	if !a.inside {
		return nil, false
	}
	a.buf.Write(data)

	if !bytes.HasSuffix(data, jpegFooter) {
		return nil, false
	}

	frame := make([]byte, a.buf.Len())
	copy(frame, a.buf.Bytes())
	a.buf.Reset()
	a.inside = false
	return frame, true
}
