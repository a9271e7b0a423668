// Package monitor runs the drowsiness detector over the faces of each frame.
package monitor

import (
	"errors"

	"go.uber.org/zap"

	"github.com/dudu/drowsewatch/internal/drowsiness"
	"github.com/dudu/drowsewatch/internal/geometry"
)

// Dispatcher receives the events of one frame and returns them stamped.
type Dispatcher interface {
	Dispatch(events []drowsiness.Event) []drowsiness.Event
}

// Config holds monitor configuration.
type Config struct {
	Thresholds drowsiness.Thresholds
	// MaxFaces caps how many faces per frame are tracked.
	MaxFaces int
	// ResetOnFaceLoss resets a face slot's state on frames where it has no face.
	ResetOnFaceLoss bool
}

// FaceReport is the outcome for one face in one frame.
type FaceReport struct {
	Slot      int
	Landmarks geometry.LandmarkSet
	Ratios    geometry.Ratios
	Events    []drowsiness.Event
	State     drowsiness.State
	// Skipped is set when the landmarks could not be measured; Err says why.
	Skipped bool
	Err     error
}

// Report is the outcome for one frame.
type Report struct {
	Frame uint64
	Faces []FaceReport
}

// AlarmActive reports whether any face is in the eye-closure alarm state.
func (r Report) AlarmActive() bool {
	for _, f := range r.Faces {
		if f.State.AlarmActive {
			return true
		}
	}
	return false
}

// Has reports whether any face emitted an event of kind k this frame.
func (r Report) Has(k drowsiness.Kind) bool {
	for _, f := range r.Faces {
		for _, e := range f.Events {
			if e.Kind == k {
				return true
			}
		}
	}
	return false
}

// Monitor owns one detector state per face slot. A slot is the face's
// position in the landmark provider's output; faces are not re-identified
// across frames. Not safe for concurrent use.
type Monitor struct {
	config     Config
	dispatcher Dispatcher
	logger     *zap.Logger
	states     []drowsiness.State
	frames     uint64
}

// New creates a monitor. A nil dispatcher discards events after detection.
func New(config Config, dispatcher Dispatcher, logger *zap.Logger) (*Monitor, error) {
	if err := config.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if config.MaxFaces < 1 {
		config.MaxFaces = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		config:     config,
		dispatcher: dispatcher,
		logger:     logger,
		states:     make([]drowsiness.State, config.MaxFaces),
	}, nil
}

// Observe processes the landmark sets of one frame. An empty slice means no
// face was detected, which is not an error.
func (m *Monitor) Observe(sets []geometry.LandmarkSet) Report {
	m.frames++
	if len(sets) > len(m.states) {
		sets = sets[:len(m.states)]
	}

	report := Report{Frame: m.frames, Faces: make([]FaceReport, 0, len(sets))}
	for slot, set := range sets {
		report.Faces = append(report.Faces, m.observeFace(slot, set))
	}

	if m.config.ResetOnFaceLoss {
		for slot := len(sets); slot < len(m.states); slot++ {
			if m.states[slot] != (drowsiness.State{}) {
				m.logger.Debug("face lost, resetting state", zap.Int("face", slot))
				m.states[slot].Reset()
			}
		}
	}
	return report
}

func (m *Monitor) observeFace(slot int, set geometry.LandmarkSet) FaceReport {
	fr := FaceReport{Slot: slot, Landmarks: set}

	ratios, err := geometry.Measure(set)
	if err != nil {
		if !errors.Is(err, geometry.ErrMissingLandmark) {
			m.logger.Warn("failed to measure face", zap.Int("face", slot), zap.Error(err))
		} else {
			m.logger.Debug("skipping face without usable landmarks", zap.Int("face", slot), zap.Error(err))
		}
		fr.Skipped = true
		fr.Err = err
		fr.State = m.states[slot]
		return fr
	}

	events := drowsiness.ProcessFrame(&m.states[slot], ratios, m.config.Thresholds)
	for i := range events {
		events[i].Face = slot
	}
	if m.dispatcher != nil && len(events) > 0 {
		events = m.dispatcher.Dispatch(events)
	}
	for _, e := range events {
		m.logger.Info("fatigue event",
			zap.String("kind", e.Kind.String()),
			zap.Int("face", slot),
			zap.Float64("value", e.Value),
		)
	}

	fr.Ratios = ratios
	fr.Events = events
	fr.State = m.states[slot]
	return fr
}

// State returns a copy of the state for a face slot.
func (m *Monitor) State(slot int) drowsiness.State {
	if slot < 0 || slot >= len(m.states) {
		return drowsiness.State{}
	}
	return m.states[slot]
}

// Frames returns how many frames have been observed.
func (m *Monitor) Frames() uint64 {
	return m.frames
}
