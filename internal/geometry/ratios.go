package geometry

import (
	"fmt"
	"math"
)

// Ratios are the per-frame measures for one face.
type Ratios struct {
	EyeAspectRatio float64
	MouthOpen      float64
	TiltDegrees    float64
}

// Distance returns the 3-D Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// EyeAspectRatio computes (|p2-p6| + |p3-p5|) / (2|p1-p4|).
// A zero-width eye yields +Inf or NaN rather than an error.
func EyeAspectRatio(s LandmarkSet, eye EyeIndices) (float64, error) {
	if !s.Has(eye.All()...) {
		return 0, fmt.Errorf("%w: eye contour needs %v, set size %d", ErrMissingLandmark, eye.All(), len(s))
	}
	a := Distance(s[eye.P2], s[eye.P6])
	b := Distance(s[eye.P3], s[eye.P5])
	c := Distance(s[eye.P1], s[eye.P4])
	return (a + b) / (2.0 * c), nil
}

// CombinedEyeAspectRatio is the mean of the left and right eye ratios.
func CombinedEyeAspectRatio(s LandmarkSet) (float64, error) {
	left, err := EyeAspectRatio(s, LeftEye)
	if err != nil {
		return 0, fmt.Errorf("left eye: %w", err)
	}
	right, err := EyeAspectRatio(s, RightEye)
	if err != nil {
		return 0, fmt.Errorf("right eye: %w", err)
	}
	return (left + right) / 2, nil
}

// MouthOpenRatio is the inner-lip gap divided by the mouth-corner width.
func MouthOpenRatio(s LandmarkSet) (float64, error) {
	if !s.Has(UpperInnerLip, LowerInnerLip, MouthLeft, MouthRight) {
		return 0, fmt.Errorf("%w: mouth, set size %d", ErrMissingLandmark, len(s))
	}
	vertical := Distance(s[UpperInnerLip], s[LowerInnerLip])
	horizontal := Distance(s[MouthLeft], s[MouthRight])
	return vertical / horizontal, nil
}

// HeadTiltDegrees returns the roll angle of the line through the outer eye
// corners, in degrees within (-180, 180]. Only X and Y are used.
func HeadTiltDegrees(s LandmarkSet) (float64, error) {
	left, err := s.At(LeftEyeOuter)
	if err != nil {
		return 0, err
	}
	right, err := s.At(RightEyeOuter)
	if err != nil {
		return 0, err
	}
	dy := right.Y - left.Y
	dx := right.X - left.X
	deg := math.Atan2(dy, dx) * 180 / math.Pi
	if deg == -180 {
		deg = 180
	}
	return deg, nil
}

// Measure computes all three ratios for one face.
func Measure(s LandmarkSet) (Ratios, error) {
	ear, err := CombinedEyeAspectRatio(s)
	if err != nil {
		return Ratios{}, err
	}
	mouth, err := MouthOpenRatio(s)
	if err != nil {
		return Ratios{}, err
	}
	tilt, err := HeadTiltDegrees(s)
	if err != nil {
		return Ratios{}, err
	}
	return Ratios{EyeAspectRatio: ear, MouthOpen: mouth, TiltDegrees: tilt}, nil
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
