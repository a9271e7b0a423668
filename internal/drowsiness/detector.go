// Package drowsiness turns per-frame facial ratios into fatigue events.
//
// The eye-closure alarm is edge-triggered: it fires once when the closed-eye
// counter reaches the configured number of frames and clears once when the
// eye ratio rises above the threshold again. Yawn and nod detection are
// level-triggered and report every qualifying frame.
package drowsiness

import (
	"math"

	"github.com/dudu/drowsewatch/internal/geometry"
)

// ProcessFrame advances state by one frame and returns the events it produced.
// A non-finite ratio skips its metric for this frame; the eye counter is
// neither advanced nor reset by a non-finite eye ratio.
func ProcessFrame(state *State, r geometry.Ratios, t Thresholds) []Event {
	var events []Event

	if ear := r.EyeAspectRatio; geometry.Finite(ear) {
		if ear < t.EyeAspectRatio {
			state.ConsecutiveLowEyeFrames++
		} else {
			state.ConsecutiveLowEyeFrames = 0
		}

		if state.ConsecutiveLowEyeFrames >= t.EyeConsecutiveFrames && !state.AlarmActive {
			state.AlarmActive = true
			events = append(events, Event{Kind: EyesClosedAlarmRaised, Value: ear})
		}

		// Clearing uses a strict comparison: a ratio equal to the threshold
		// neither accumulates nor clears.
		if ear > t.EyeAspectRatio && state.AlarmActive {
			state.AlarmActive = false
			events = append(events, Event{Kind: EyesClosedAlarmCleared, Value: ear})
		}
	}

	if m := r.MouthOpen; geometry.Finite(m) && m > t.MouthOpen {
		events = append(events, Event{Kind: YawnDetected, Value: m})
	}

	if a := r.TiltDegrees; geometry.Finite(a) && math.Abs(a) > t.HeadNodDegrees {
		events = append(events, Event{Kind: HeadNodDetected, Value: a})
	}

	return events
}
