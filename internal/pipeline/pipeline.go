package pipeline

import (
	"errors"
	"fmt"
	"io"
	"time"

	"gocv.io/x/gocv"

	"github.com/dudu/drowsewatch/internal/monitor"
)

// Timing holds performance timing information
type Timing struct {
	Detection time.Duration
	Analysis  time.Duration
	Total     time.Duration
}

// Pipeline runs landmark detection and drowsiness analysis on frames
type Pipeline struct {
	provider   LandmarkProvider
	monitor    FrameMonitor
	closers    []io.Closer
	lastTiming Timing
}

// New creates a pipeline. Extra closers (recorders, alerters) are closed
// after the provider, in order.
func New(provider LandmarkProvider, mon FrameMonitor, closers ...io.Closer) *Pipeline {
	return &Pipeline{
		provider: provider,
		monitor:  mon,
		closers:  closers,
	}
}

// Process analyzes one frame. A provider error still advances the monitor
// with no faces, so frames without landmarks are accounted for.
func (p *Pipeline) Process(frame gocv.Mat) (monitor.Report, error) {
	totalStart := time.Now()
	var timing Timing

	detectStart := time.Now()
	sets, err := p.provider.Detect(frame)
	timing.Detection = time.Since(detectStart)
	if err != nil {
		err = fmt.Errorf("landmark detection failed: %w", err)
		sets = nil
	}

	analysisStart := time.Now()
	report := p.monitor.Observe(sets)
	timing.Analysis = time.Since(analysisStart)

	timing.Total = time.Since(totalStart)
	p.lastTiming = timing

	return report, err
}

// LastTiming returns timing from last Process call
func (p *Pipeline) LastTiming() Timing {
	return p.lastTiming
}

// Close releases pipeline resources
func (p *Pipeline) Close() error {
	var errs []error

	if p.provider != nil {
		if err := p.provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close provider: %w", err))
		}
	}
	for _, c := range p.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
