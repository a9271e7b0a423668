package sink

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dudu/drowsewatch/internal/drowsiness"
)

type fakeRecorder struct {
	events []drowsiness.Event
	err    error
	panic  bool
}

func (f *fakeRecorder) Record(e drowsiness.Event) error {
	if f.panic {
		panic("disk on fire")
	}
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

type fakeAlerter struct {
	raised int
	err    error
}

func (f *fakeAlerter) Raise() error {
	f.raised++
	return f.err
}

var fixed = time.Date(2026, 3, 1, 22, 15, 0, 0, time.UTC)

func clock() time.Time { return fixed }

func TestDispatchRoutesEvents(t *testing.T) {
	rec := &fakeRecorder{}
	al := &fakeAlerter{}
	d := NewDispatcher(rec, al, nil, WithClock(clock))

	out := d.Dispatch([]drowsiness.Event{
		{Kind: drowsiness.EyesClosedAlarmRaised, Value: 0.1},
		{Kind: drowsiness.YawnDetected, Value: 0.8},
		{Kind: drowsiness.HeadNodDetected, Value: -21},
	})

	require.Len(t, rec.events, 3)
	assert.Equal(t, 1, al.raised)
	for _, e := range out {
		assert.Equal(t, fixed, e.Time)
	}
	assert.Equal(t, fixed, rec.events[0].Time)
	assert.Equal(t, Stats{Recorded: 3, Alerts: 1}, d.Stats())
}

func TestAlarmClearIsNotLogged(t *testing.T) {
	rec := &fakeRecorder{}
	al := &fakeAlerter{}
	d := NewDispatcher(rec, al, nil, WithClock(clock))

	out := d.Dispatch([]drowsiness.Event{{Kind: drowsiness.EyesClosedAlarmCleared, Value: 0.3}})

	assert.Empty(t, rec.events)
	assert.Zero(t, al.raised)
	require.Len(t, out, 1)
	assert.Equal(t, fixed, out[0].Time)
}

func TestRecordFailureIsSwallowed(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rec := &fakeRecorder{err: errors.New("read-only file system")}
	al := &fakeAlerter{}
	d := NewDispatcher(rec, al, zap.New(core), WithClock(clock))

	assert.NotPanics(t, func() {
		d.Dispatch([]drowsiness.Event{{Kind: drowsiness.EyesClosedAlarmRaised}})
	})

	assert.Equal(t, 1, al.raised, "alert still raised when logging fails")
	assert.Equal(t, uint64(1), d.Stats().RecordFailures)
	assert.Equal(t, 1, logs.FilterMessage("failed to record event").Len())
}

func TestRecorderPanicIsContained(t *testing.T) {
	d := NewDispatcher(&fakeRecorder{panic: true}, nil, nil, WithClock(clock))
	assert.NotPanics(t, func() {
		d.Dispatch([]drowsiness.Event{{Kind: drowsiness.YawnDetected}})
	})
	assert.Equal(t, uint64(1), d.Stats().RecordFailures)
}

func TestAlertFailureIsSwallowed(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rec := &fakeRecorder{}
	al := &fakeAlerter{err: errors.New("no audio device")}
	d := NewDispatcher(rec, al, zap.New(core), WithClock(clock))

	d.RaiseAlert()

	assert.Equal(t, uint64(1), d.Stats().AlertFailures)
	assert.Equal(t, 1, logs.FilterMessage("could not play alarm").Len())
}

func TestNilOutputsAreIgnored(t *testing.T) {
	d := NewDispatcher(nil, nil, nil)
	assert.NotPanics(t, func() {
		d.Dispatch([]drowsiness.Event{{Kind: drowsiness.EyesClosedAlarmRaised}})
	})
	assert.Equal(t, Stats{}, d.Stats())
}
