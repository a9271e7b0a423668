package pipeline

import (
	"gocv.io/x/gocv"

	"github.com/dudu/drowsewatch/internal/geometry"
	"github.com/dudu/drowsewatch/internal/monitor"
)

// LandmarkProvider finds the dense landmarks of every face in a BGR frame.
// Sets are ordered by the provider and may be empty.
type LandmarkProvider interface {
	Detect(img gocv.Mat) ([]geometry.LandmarkSet, error)
	Close() error
}

// FrameMonitor turns the landmarks of one frame into a report.
type FrameMonitor interface {
	Observe(sets []geometry.LandmarkSet) monitor.Report
}
