package eventlog

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/dudu/drowsewatch/internal/drowsiness"
	"github.com/dudu/drowsewatch/internal/sink"
)

var (
	// ErrQueueFull is returned by Async.Record when the queue has no room.
	ErrQueueFull = errors.New("event queue full")
	// ErrQueueClosed is returned by Async.Record after Close.
	ErrQueueClosed = errors.New("event queue closed")
)

// Multi fans a record out to several recorders.
type Multi []sink.Recorder

// Record writes to every recorder and joins their errors.
func (m Multi) Record(e drowsiness.Event) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Async moves writes off the caller's goroutine. Record never blocks: when
// the queue is full the event is dropped and ErrQueueFull returned.
type Async struct {
	next    sink.Recorder
	logger  *zap.Logger
	queue   chan drowsiness.Event
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	written atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// NewAsync starts a background writer with a queue of the given size.
func NewAsync(next sink.Recorder, size int, logger *zap.Logger) *Async {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Async{
		next:   next,
		logger: logger,
		queue:  make(chan drowsiness.Event, size),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

// Record enqueues the event.
func (a *Async) Record(e drowsiness.Event) error {
	if a.closed.Load() {
		return ErrQueueClosed
	}
	select {
	case a.queue <- e:
		return nil
	default:
		a.dropped.Add(1)
		return ErrQueueFull
	}
}

func (a *Async) run() {
	defer a.wg.Done()
	for e := range a.queue {
		if err := a.write(e); err != nil {
			a.failed.Add(1)
			a.logger.Warn("failed to write event",
				zap.String("kind", e.Kind.String()),
				zap.Error(err),
			)
			continue
		}
		a.written.Add(1)
	}
}

// write records one event, turning a recorder panic into an error so the
// writer keeps draining the queue.
func (a *Async) write(e drowsiness.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recorder panic: %v", r)
		}
	}()
	return a.next.Record(e)
}

// Counts returns written, failed and dropped totals.
func (a *Async) Counts() (written, failed, dropped uint64) {
	return a.written.Load(), a.failed.Load(), a.dropped.Load()
}

// Close stops accepting events and waits for queued ones to be written.
// The caller must not call Record concurrently with Close.
func (a *Async) Close() error {
	a.once.Do(func() {
		a.closed.Store(true)
		close(a.queue)
	})
	a.wg.Wait()
	return nil
}
