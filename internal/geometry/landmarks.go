// Package geometry computes scale-invariant facial ratios from face-mesh landmarks.
package geometry

import (
	"errors"
	"fmt"
)

// Face mesh landmark indices used by the fatigue measures.
// Numbering follows the 468-point MediaPipe face mesh topology.
const (
	LeftEyeOuter  = 33
	LeftEyeInner  = 133
	RightEyeInner = 362
	RightEyeOuter = 263

	UpperInnerLip = 13
	LowerInnerLip = 14
	MouthLeft     = 78
	MouthRight    = 308

	// MeshSize is the number of points in a face mesh without iris refinement.
	MeshSize = 468
)

// ErrMissingLandmark is returned when a required index is absent from a LandmarkSet.
var ErrMissingLandmark = errors.New("landmark index out of range")

// Point is a single landmark. X and Y are normalized to the frame size,
// Z is depth relative to the face.
type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

// Scale returns the point with every coordinate multiplied by k.
func (p Point) Scale(k float64) Point {
	return Point{X: p.X * k, Y: p.Y * k, Z: p.Z * k}
}

// LandmarkSet holds the landmarks of one detected face, indexed by topology.
type LandmarkSet []Point

// At returns the landmark at index i.
func (s LandmarkSet) At(i int) (Point, error) {
	if i < 0 || i >= len(s) {
		return Point{}, fmt.Errorf("%w: index %d, set size %d", ErrMissingLandmark, i, len(s))
	}
	return s[i], nil
}

// Has reports whether every index is present in the set.
func (s LandmarkSet) Has(indices ...int) bool {
	for _, i := range indices {
		if i < 0 || i >= len(s) {
			return false
		}
	}
	return true
}

// EyeIndices names the six-point eye contour.
// P1 and P4 are the horizontal corners, P2/P3 the upper lid, P5/P6 the lower lid.
type EyeIndices struct {
	P1, P2, P3, P4, P5, P6 int
}

// All returns the indices in contour order.
func (e EyeIndices) All() []int {
	return []int{e.P1, e.P2, e.P3, e.P4, e.P5, e.P6}
}

// LeftEye and RightEye are the six-point contours in the face mesh topology.
var (
	LeftEye  = EyeIndices{P1: LeftEyeOuter, P2: 160, P3: 158, P4: LeftEyeInner, P5: 153, P6: 144}
	RightEye = EyeIndices{P1: RightEyeInner, P2: 385, P3: 387, P4: RightEyeOuter, P5: 373, P6: 380}
)

// RequiredIndices lists every landmark Measure reads.
func RequiredIndices() []int {
	idx := append(LeftEye.All(), RightEye.All()...)
	return append(idx, UpperInnerLip, LowerInnerLip, MouthLeft, MouthRight)
}
