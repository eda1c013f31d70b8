// Package capture provides frame sources for the monitor loop.
package capture

import (
	"errors"
	"strings"

	"sentinelvision/internal/logger"
	"sentinelvision/internal/model"
)

// ErrEndOfStream is returned once a source can no longer produce frames.
var ErrEndOfStream = errors.New("end of stream")

// Source yields raw BGR frames one at a time.
type Source interface {
	Read() (model.Frame, error)
	Close() error
}

const udpScheme = "udp://"

// Open selects a source from its description: "udp://host:port" listens for
// JPEG datagrams, anything else (device index, file path or stream URL) is
// opened as a video capture.
func Open(source string, logger *logger.Logger) (Source, error) {
	if strings.HasPrefix(source, udpScheme) {
		return ListenUDP(strings.TrimPrefix(source, udpScheme), logger)
	}
	return OpenCamera(source)
}
