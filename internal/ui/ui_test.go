package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dudu/drowsewatch/internal/drowsiness"
	"github.com/dudu/drowsewatch/internal/geometry"
	"github.com/dudu/drowsewatch/internal/monitor"
)

func TestFaceLines(t *testing.T) {
	f := monitor.FaceReport{
		Ratios: geometry.Ratios{EyeAspectRatio: 0.2123, MouthOpen: 0.654, TiltDegrees: -17.26},
		State:  drowsiness.State{AlarmActive: true},
		Events: []drowsiness.Event{
			{Kind: drowsiness.YawnDetected},
			{Kind: drowsiness.HeadNodDetected},
		},
	}

	assert.Equal(t, []Line{
		{Text: "EAR: 0.21"},
		{Text: "Mouth: 0.65"},
		{Text: "Tilt: -17.3"},
		{Text: AlarmBanner, Alert: true},
		{Text: YawnBanner, Alert: true},
		{Text: NodBanner, Alert: true},
	}, FaceLines(f))
}

func TestFaceLinesQuiet(t *testing.T) {
	lines := FaceLines(monitor.FaceReport{Ratios: geometry.Ratios{EyeAspectRatio: 0.3}})
	assert.Len(t, lines, 3)
	for _, l := range lines {
		assert.False(t, l.Alert)
	}

	assert.Equal(t, []Line{{Text: "Landmarks unavailable"}}, FaceLines(monitor.FaceReport{Skipped: true}))
}

func TestIsQuitKey(t *testing.T) {
	assert.True(t, IsQuitKey('q'))
	assert.True(t, IsQuitKey('Q'))
	assert.True(t, IsQuitKey(27))
	assert.True(t, IsQuitKey(0x100000|'q'))
	assert.False(t, IsQuitKey(-1))
	assert.False(t, IsQuitKey('a'))
}

func TestFPSCounter(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFPSCounter(start)

	for i := 1; i < 30; i++ {
		assert.Zero(t, c.Tick(start.Add(time.Duration(i)*time.Second/30)))
	}
	assert.InDelta(t, 30.0, c.Tick(start.Add(time.Second)), 1e-9)
	assert.InDelta(t, 30.0, c.Rate(), 1e-9)
}
