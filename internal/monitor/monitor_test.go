package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudu/drowsewatch/internal/drowsiness"
	"github.com/dudu/drowsewatch/internal/geometry"
	"github.com/dudu/drowsewatch/internal/sink"
)

// face builds a mesh with both eyes at the given aspect ratio, a closed
// mouth and a level head.
func face(ear float64) geometry.LandmarkSet {
	s := make(geometry.LandmarkSet, geometry.MeshSize)
	place := func(e geometry.EyeIndices, cx float64) {
		half := ear * 0.06 / 2
		s[e.P1] = geometry.Point{X: cx - 0.03, Y: 0.4}
		s[e.P4] = geometry.Point{X: cx + 0.03, Y: 0.4}
		s[e.P2] = geometry.Point{X: cx - 0.01, Y: 0.4 - half}
		s[e.P6] = geometry.Point{X: cx - 0.01, Y: 0.4 + half}
		s[e.P3] = geometry.Point{X: cx + 0.01, Y: 0.4 - half}
		s[e.P5] = geometry.Point{X: cx + 0.01, Y: 0.4 + half}
	}
	place(geometry.LeftEye, 0.4)
	place(geometry.RightEye, 0.6)
	s[geometry.MouthLeft] = geometry.Point{X: 0.45, Y: 0.7}
	s[geometry.MouthRight] = geometry.Point{X: 0.55, Y: 0.7}
	s[geometry.UpperInnerLip] = geometry.Point{X: 0.5, Y: 0.7}
	s[geometry.LowerInnerLip] = geometry.Point{X: 0.5, Y: 0.7}
	return s
}

type captured struct {
	events []drowsiness.Event
}

func (c *captured) Record(e drowsiness.Event) error {
	c.events = append(c.events, e)
	return nil
}

type countingAlerter struct{ n int }

func (c *countingAlerter) Raise() error {
	c.n++
	return nil
}

func newMonitor(t *testing.T, cfg Config) (*Monitor, *captured, *countingAlerter) {
	t.Helper()
	rec := &captured{}
	al := &countingAlerter{}
	d := sink.NewDispatcher(rec, al, nil, sink.WithClock(func() time.Time {
		return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	}))
	m, err := New(cfg, d, nil)
	require.NoError(t, err)
	return m, rec, al
}

func TestMonitorRaisesAlarmThroughSink(t *testing.T) {
	m, rec, al := newMonitor(t, Config{Thresholds: drowsiness.DefaultThresholds(), MaxFaces: 1})

	var last Report
	for i := 0; i < 15; i++ {
		last = m.Observe([]geometry.LandmarkSet{face(0.2)})
	}
	assert.True(t, last.AlarmActive())
	assert.True(t, last.Has(drowsiness.EyesClosedAlarmRaised))
	assert.Equal(t, 1, al.n)
	require.Len(t, rec.events, 1)
	assert.False(t, rec.events[0].Time.IsZero())

	last = m.Observe([]geometry.LandmarkSet{face(0.3)})
	assert.False(t, last.AlarmActive())
	assert.True(t, last.Has(drowsiness.EyesClosedAlarmCleared))
	assert.Len(t, rec.events, 1, "alarm clear is not logged")
	assert.Equal(t, uint64(16), m.Frames())
}

func TestMissingFaceKeepsCounterByDefault(t *testing.T) {
	m, _, _ := newMonitor(t, Config{Thresholds: drowsiness.DefaultThresholds(), MaxFaces: 1})

	for i := 0; i < 10; i++ {
		m.Observe([]geometry.LandmarkSet{face(0.2)})
	}
	report := m.Observe(nil)
	assert.Empty(t, report.Faces)
	assert.Equal(t, 10, m.State(0).ConsecutiveLowEyeFrames)

	for i := 0; i < 5; i++ {
		report = m.Observe([]geometry.LandmarkSet{face(0.2)})
	}
	assert.True(t, report.Has(drowsiness.EyesClosedAlarmRaised))
}

func TestResetOnFaceLoss(t *testing.T) {
	m, _, _ := newMonitor(t, Config{Thresholds: drowsiness.DefaultThresholds(), MaxFaces: 1, ResetOnFaceLoss: true})

	for i := 0; i < 20; i++ {
		m.Observe([]geometry.LandmarkSet{face(0.2)})
	}
	require.True(t, m.State(0).AlarmActive)

	m.Observe(nil)
	assert.Equal(t, drowsiness.State{}, m.State(0))
}

func TestFacesHaveIndependentState(t *testing.T) {
	m, rec, _ := newMonitor(t, Config{Thresholds: drowsiness.DefaultThresholds(), MaxFaces: 2})

	var report Report
	for i := 0; i < 15; i++ {
		report = m.Observe([]geometry.LandmarkSet{face(0.3), face(0.2)})
	}
	require.Len(t, report.Faces, 2)
	assert.False(t, report.Faces[0].State.AlarmActive)
	assert.True(t, report.Faces[1].State.AlarmActive)
	assert.Zero(t, m.State(0).ConsecutiveLowEyeFrames)

	require.Len(t, rec.events, 1)
	assert.Equal(t, 1, rec.events[0].Face)
}

func TestExtraFacesIgnored(t *testing.T) {
	m, _, _ := newMonitor(t, Config{Thresholds: drowsiness.DefaultThresholds(), MaxFaces: 1})
	report := m.Observe([]geometry.LandmarkSet{face(0.3), face(0.2), face(0.2)})
	assert.Len(t, report.Faces, 1)
}

func TestMissingLandmarksSkipFace(t *testing.T) {
	m, _, _ := newMonitor(t, Config{Thresholds: drowsiness.DefaultThresholds(), MaxFaces: 1})
	for i := 0; i < 5; i++ {
		m.Observe([]geometry.LandmarkSet{face(0.2)})
	}

	report := m.Observe([]geometry.LandmarkSet{make(geometry.LandmarkSet, 50)})
	require.Len(t, report.Faces, 1)
	assert.True(t, report.Faces[0].Skipped)
	assert.ErrorIs(t, report.Faces[0].Err, geometry.ErrMissingLandmark)
	assert.Equal(t, 5, m.State(0).ConsecutiveLowEyeFrames, "state untouched by skipped face")
}

func TestDegenerateFaceDoesNotCrash(t *testing.T) {
	m, rec, _ := newMonitor(t, Config{Thresholds: drowsiness.DefaultThresholds(), MaxFaces: 1})
	assert.NotPanics(t, func() {
		m.Observe([]geometry.LandmarkSet{make(geometry.LandmarkSet, geometry.MeshSize)})
	})
	assert.Empty(t, rec.events)
}

func TestNewRejectsBadThresholds(t *testing.T) {
	_, err := New(Config{}, nil, nil)
	assert.ErrorIs(t, err, drowsiness.ErrInvalidThresholds)
}

func TestNilDispatcher(t *testing.T) {
	m, err := New(Config{Thresholds: drowsiness.DefaultThresholds()}, nil, nil)
	require.NoError(t, err)
	report := m.Observe([]geometry.LandmarkSet{face(0.3)})
	require.Len(t, report.Faces, 1)
	assert.InDelta(t, 0.3, report.Faces[0].Ratios.EyeAspectRatio, 1e-9)
}
