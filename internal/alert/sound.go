// Package alert provides the user-facing alarm outputs.
package alert

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
	"go.uber.org/zap"
)

// SoundAlerter plays a WAV clip asynchronously.
type SoundAlerter struct {
	clip    *beep.Buffer
	logger  *zap.Logger
	playing atomic.Bool
	play    func(...beep.Streamer)
}

// NewSoundAlerter loads the clip at path and opens the audio device.
func NewSoundAlerter(path string, logger *zap.Logger) (*SoundAlerter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	clip, err := loadClip(path)
	if err != nil {
		return nil, err
	}
	format := clip.Format()
	if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("failed to open audio device: %w", err)
	}
	logger.Info("alarm sound loaded",
		zap.String("path", path),
		zap.Duration("length", format.SampleRate.D(clip.Len())),
	)
	return &SoundAlerter{clip: clip, logger: logger, play: speaker.Play}, nil
}

// loadClip decodes a WAV file fully into memory.
func loadClip(path string) (*beep.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open alarm sound: %w", err)
	}
	streamer, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode alarm sound %s: %w", path, err)
	}
	defer streamer.Close()

	clip := beep.NewBuffer(format)
	clip.Append(streamer)
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("failed to read alarm sound %s: %w", path, err)
	}
	return clip, nil
}

// Raise starts playback and returns at once. A raise while the clip is
// still playing is ignored.
func (s *SoundAlerter) Raise() error {
	if !s.playing.CompareAndSwap(false, true) {
		return nil
	}
	s.play(beep.Seq(
		s.clip.Streamer(0, s.clip.Len()),
		beep.Callback(func() { s.playing.Store(false) }),
	))
	return nil
}

// Close stops playback and releases the audio device.
func (s *SoundAlerter) Close() error {
	speaker.Clear()
	speaker.Close()
	return nil
}

// LogAlerter is the fallback when no audio output is available.
type LogAlerter struct {
	logger *zap.Logger
	raised atomic.Uint64
}

// NewLogAlerter creates a LogAlerter.
func NewLogAlerter(logger *zap.Logger) *LogAlerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogAlerter{logger: logger}
}

// Raise writes a warning line.
func (l *LogAlerter) Raise() error {
	n := l.raised.Add(1)
	l.logger.Warn("DROWSINESS ALERT", zap.Uint64("count", n))
	return nil
}

// Count returns how many alerts were raised.
func (l *LogAlerter) Count() uint64 {
	return l.raised.Load()
}
