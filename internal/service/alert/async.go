package alert

import (
	"errors"
	"sync"
	"sync/atomic"

	"sentinelvision/internal/logger"
)

// DefaultQueueSize is the number of alerts an Async sink holds before dropping.
const DefaultQueueSize = 16

var errQueueFull = errors.New("queue full, alert dropped")

// Async delivers to a slow sink from its own goroutine so Notify never blocks
// the caller. Messages are dropped while the queue is full.
type Async struct {
	name    string
	sink    Sink
	queue   chan string
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
	logger  *logger.Logger
}

// NewAsync starts the delivery goroutine for sink. Call Close to stop it.
func NewAsync(name string, sink Sink, size int, logger *logger.Logger) *Async {
	if size < 1 {
		size = DefaultQueueSize
	}
	a := &Async{
		name:   name,
		sink:   sink,
		queue:  make(chan string, size),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for {
		select {
		case message := <-a.queue:
			a.sink.Notify(message)
		case <-a.stop:
			for {
				select {
				case message := <-a.queue:
					a.sink.Notify(message)
				default:
					return
				}
			}
		}
	}
}

func (a *Async) Notify(message string) {
	select {
	case <-a.stop:
		return
	default:
	}

	select {
	case a.queue <- message:
	default:
		a.dropped.Add(1)
		a.logger.Warning("%v", &SinkDeliveryError{Sink: a.name, Err: errQueueFull})
	}
}

// Dropped returns how many alerts were discarded because the queue was full.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close delivers what is already queued and stops the goroutine.
func (a *Async) Close() {
	a.once.Do(func() { close(a.stop) })
	<-a.done
}
