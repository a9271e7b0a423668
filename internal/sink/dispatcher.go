// Package sink delivers detector events to the event log and the alert output.
// Failures are logged and counted; they never reach the frame loop.
package sink

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dudu/drowsewatch/internal/drowsiness"
)

// Recorder appends an event to a durable log.
type Recorder interface {
	Record(event drowsiness.Event) error
}

// Alerter triggers a user-facing alert and returns without waiting for it.
type Alerter interface {
	Raise() error
}

// Stats counts sink activity since start.
type Stats struct {
	Recorded       uint64
	RecordFailures uint64
	Alerts         uint64
	AlertFailures  uint64
}

// Dispatcher stamps events and routes them to a Recorder and an Alerter.
type Dispatcher struct {
	recorder Recorder
	alerter  Alerter
	logger   *zap.Logger
	now      func() time.Time
	stats    Stats
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a dispatcher. A nil recorder or alerter disables that output.
func NewDispatcher(recorder Recorder, alerter Alerter, logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		recorder: recorder,
		alerter:  alerter,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch handles the events of one frame. Loggable kinds are recorded and
// an eye-closure alarm additionally raises an alert. Events are returned with
// their timestamps set.
func (d *Dispatcher) Dispatch(events []drowsiness.Event) []drowsiness.Event {
	for i := range events {
		ts := d.now()
		events[i].Time = ts
		if events[i].Kind.Logged() {
			d.RecordEvent(events[i], ts)
		}
		if events[i].Kind == drowsiness.EyesClosedAlarmRaised {
			d.RaiseAlert()
		}
	}
	return events
}

// RecordEvent writes one event. Errors are logged and swallowed.
func (d *Dispatcher) RecordEvent(event drowsiness.Event, ts time.Time) {
	if d.recorder == nil {
		return
	}
	event.Time = ts
	if err := d.guard(func() error { return d.recorder.Record(event) }); err != nil {
		d.stats.RecordFailures++
		d.logger.Warn("failed to record event",
			zap.String("kind", event.Kind.String()),
			zap.Int("face", event.Face),
			zap.Error(err),
		)
		return
	}
	d.stats.Recorded++
}

// RaiseAlert triggers the alerter. Errors are logged and swallowed.
func (d *Dispatcher) RaiseAlert() {
	if d.alerter == nil {
		return
	}
	if err := d.guard(d.alerter.Raise); err != nil {
		d.stats.AlertFailures++
		d.logger.Warn("could not play alarm", zap.Error(err))
		return
	}
	d.stats.Alerts++
}

// Stats returns the counters.
func (d *Dispatcher) Stats() Stats {
	return d.stats
}

// guard converts a panic in an output into an error.
func (d *Dispatcher) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
