package drowsiness

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidThresholds is returned by Thresholds.Validate.
var ErrInvalidThresholds = errors.New("invalid thresholds")

// Thresholds configures the detector. Set once at startup.
type Thresholds struct {
	EyeAspectRatio       float64 // below this the eyes count as closed
	EyeConsecutiveFrames int     // closed frames needed to raise the alarm
	MouthOpen            float64 // above this a yawn is reported
	HeadNodDegrees       float64 // |tilt| above this a nod is reported
}

// DefaultThresholds returns the stock detector configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		EyeAspectRatio:       0.25,
		EyeConsecutiveFrames: 15,
		MouthOpen:            0.6,
		HeadNodDegrees:       15.0,
	}
}

// Validate checks that every threshold is usable.
func (t Thresholds) Validate() error {
	if t.EyeConsecutiveFrames < 1 {
		return fmt.Errorf("%w: eye consecutive frames must be >= 1, got %d", ErrInvalidThresholds, t.EyeConsecutiveFrames)
	}
	for name, v := range map[string]float64{
		"eye aspect ratio": t.EyeAspectRatio,
		"mouth open":       t.MouthOpen,
		"head nod degrees": t.HeadNodDegrees,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number, got %v", ErrInvalidThresholds, name, v)
		}
	}
	return nil
}

// State is the per-face detector state. The frame loop owns it exclusively.
type State struct {
	ConsecutiveLowEyeFrames int
	AlarmActive             bool
}

// Reset returns the state to idle.
func (s *State) Reset() {
	s.ConsecutiveLowEyeFrames = 0
	s.AlarmActive = false
}

// Kind identifies an event.
type Kind int

const (
	EyesClosedAlarmRaised Kind = iota + 1
	EyesClosedAlarmCleared
	YawnDetected
	HeadNodDetected
)

// String returns the event name.
func (k Kind) String() string {
	switch k {
	case EyesClosedAlarmRaised:
		return "eyes_closed_alarm_raised"
	case EyesClosedAlarmCleared:
		return "eyes_closed_alarm_cleared"
	case YawnDetected:
		return "yawn_detected"
	case HeadNodDetected:
		return "head_nod_detected"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Description is the log line text for the event kind. Kinds that are not
// written to the event log return "".
func (k Kind) Description() string {
	switch k {
	case EyesClosedAlarmRaised:
		return "Drowsiness detected (eyes closed)"
	case YawnDetected:
		return "Yawn detected"
	case HeadNodDetected:
		return "Head nod detected"
	default:
		return ""
	}
}

// Logged reports whether events of this kind go to the event log.
func (k Kind) Logged() bool {
	return k.Description() != ""
}

// Event is emitted by ProcessFrame. Value carries the mouth ratio for
// YawnDetected and the tilt angle for HeadNodDetected. Time is zero until
// the sink stamps it.
type Event struct {
	Kind  Kind
	Value float64
	Face  int
	Time  time.Time
}
