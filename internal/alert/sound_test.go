package alert

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func writeSilence(t *testing.T, samples int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alarm.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	format := beep.Format{SampleRate: 8000, NumChannels: 1, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Silence(samples), format))
	return path
}

func TestLoadClip(t *testing.T) {
	clip, err := loadClip(writeSilence(t, 800))
	require.NoError(t, err)
	assert.Equal(t, 800, clip.Len())
	assert.Equal(t, beep.SampleRate(8000), clip.Format().SampleRate)
}

func TestLoadClipErrors(t *testing.T) {
	_, err := loadClip(filepath.Join(t.TempDir(), "nope.wav"))
	assert.ErrorContains(t, err, "failed to open alarm sound")

	junk := filepath.Join(t.TempDir(), "junk.wav")
	require.NoError(t, os.WriteFile(junk, []byte("definitely not RIFF"), 0o644))
	_, err = loadClip(junk)
	assert.ErrorContains(t, err, "failed to decode alarm sound")
}

func TestRaiseIgnoredWhilePlaying(t *testing.T) {
	clip, err := loadClip(writeSilence(t, 80))
	require.NoError(t, err)

	var queued []beep.Streamer
	s := &SoundAlerter{
		clip:   clip,
		logger: zap.NewNop(),
		play:   func(st ...beep.Streamer) { queued = append(queued, st...) },
	}

	require.NoError(t, s.Raise())
	require.NoError(t, s.Raise())
	require.Len(t, queued, 1)

	// drain the queued streamer; the trailing callback re-arms the alerter
	buf := make([][2]float64, 256)
	for {
		n, ok := queued[0].Stream(buf)
		if !ok || n == 0 {
			break
		}
	}
	require.NoError(t, s.Raise())
	assert.Len(t, queued, 2)
}

func TestLogAlerter(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	l := NewLogAlerter(zap.New(core))

	require.NoError(t, l.Raise())
	require.NoError(t, l.Raise())

	assert.Equal(t, uint64(2), l.Count())
	assert.Equal(t, 2, logs.FilterMessage("DROWSINESS ALERT").Len())
}
