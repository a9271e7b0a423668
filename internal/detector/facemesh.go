package detector

import (
	"fmt"
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/drowsewatch/internal/geometry"
	"github.com/dudu/drowsewatch/internal/inference"
)

// Face mesh model defaults, matching the ONNX export of MediaPipe's
// face_landmark model.
const (
	FaceMeshInputSize      = 192
	FaceMeshInputName      = "input_1"
	FaceMeshLandmarkOutput = "conv2d_21"
	FaceMeshPresenceOutput = "conv2d_31"

	// cropExpansion grows the detector box so the whole face fits the crop
	cropExpansion = 1.5
)

// FaceMeshConfig configures the dense landmark model.
type FaceMeshConfig struct {
	ModelPath      string
	InputName      string
	LandmarkOutput string
	PresenceOutput string
}

func (c *FaceMeshConfig) applyDefaults() {
	if c.InputName == "" {
		c.InputName = FaceMeshInputName
	}
	if c.LandmarkOutput == "" {
		c.LandmarkOutput = FaceMeshLandmarkOutput
	}
	if c.PresenceOutput == "" {
		c.PresenceOutput = FaceMeshPresenceOutput
	}
}

// FaceMesh predicts 468 landmarks for a detected face
type FaceMesh struct {
	session   *inference.Session
	inputSize int
}

// NewFaceMesh creates a new face mesh detector
func NewFaceMesh(cfg FaceMeshConfig, opts inference.SessionOptions) (*FaceMesh, error) {
	cfg.applyDefaults()

	session, err := inference.NewSession(cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.LandmarkOutput, cfg.PresenceOutput},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create face mesh session: %w", err)
	}

	return &FaceMesh{
		session:   session,
		inputSize: FaceMeshInputSize,
	}, nil
}

// Detect fills face.Mesh and face.Presence. Mesh points are normalized to
// the frame: x by width, y by height, z by width.
func (m *FaceMesh) Detect(img gocv.Mat, face *Face) error {
	crop := newCropTransform(face.BoundingBox, face.Keypoints, m.inputSize)

	M := crop.mat()
	aligned := gocv.NewMat()
	defer aligned.Close()
	gocv.WarpAffine(img, &aligned, M, image.Pt(m.inputSize, m.inputSize))
	M.Close()

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(aligned, &rgb, gocv.ColorBGRToRGB)

	// NHWC in [0, 1]; the float Mat is already in that layout
	floatMat := gocv.NewMat()
	defer floatMat.Close()
	rgb.ConvertToWithParams(&floatMat, gocv.MatTypeCV32FC3, 1.0/255.0, 0)

	inputTensor, err := inference.CreateTensor(
		[]int64{1, int64(m.inputSize), int64(m.inputSize), 3},
		bytesToFloat32(floatMat.ToBytes()),
	)
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	landmarkTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, 1, 1, geometry.MeshSize * 3})
	if err != nil {
		return fmt.Errorf("failed to create landmark tensor: %w", err)
	}
	defer landmarkTensor.Destroy()

	presenceTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, 1, 1, 1})
	if err != nil {
		return fmt.Errorf("failed to create presence tensor: %w", err)
	}
	defer presenceTensor.Destroy()

	err = m.session.Run([]ort.Value{inputTensor}, []ort.Value{landmarkTensor, presenceTensor})
	if err != nil {
		return fmt.Errorf("face mesh inference failed: %w", err)
	}

	face.Mesh = crop.project(landmarkTensor.GetData(), img.Cols(), img.Rows())
	face.Presence = sigmoid(presenceTensor.GetData()[0])
	return nil
}

// Close releases detector resources
func (m *FaceMesh) Close() error {
	return m.session.Destroy()
}

// cropTransform maps frame pixels into the square model input:
// a square crop around the face, rotated so the eyes are level.
type cropTransform struct {
	cx, cy   float64
	scale    float64
	cos, sin float64
	size     int
}

func newCropTransform(box BoundingBox, kps Keypoints, size int) cropTransform {
	c := box.Center()
	side := float64(max(box.Width(), box.Height())) * cropExpansion
	if side <= 0 {
		side = 1
	}
	angle := math.Atan2(float64(kps.RightEye.Y-kps.LeftEye.Y), float64(kps.RightEye.X-kps.LeftEye.X))
	if kps == (Keypoints{}) {
		angle = 0
	}
	return cropTransform{
		cx:    float64(c.X),
		cy:    float64(c.Y),
		scale: float64(size) / side,
		cos:   math.Cos(angle),
		sin:   math.Sin(angle),
		size:  size,
	}
}

// forward maps a frame pixel into crop pixels
func (t cropTransform) forward(x, y float64) (float64, float64) {
	h := float64(t.size) / 2
	dx, dy := x-t.cx, y-t.cy
	return t.scale*(t.cos*dx+t.sin*dy) + h, t.scale*(-t.sin*dx+t.cos*dy) + h
}

// inverse maps a crop pixel back into the frame
func (t cropTransform) inverse(u, v float64) (float64, float64) {
	h := float64(t.size) / 2
	du, dv := (u-h)/t.scale, (v-h)/t.scale
	return t.cx + t.cos*du - t.sin*dv, t.cy + t.sin*du + t.cos*dv
}

// mat returns the 2x3 forward matrix for WarpAffine
func (t cropTransform) mat() gocv.Mat {
	h := float64(t.size) / 2
	a, b := t.scale*t.cos, t.scale*t.sin

	M := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	M.SetDoubleAt(0, 0, a)
	M.SetDoubleAt(0, 1, b)
	M.SetDoubleAt(0, 2, h-a*t.cx-b*t.cy)
	M.SetDoubleAt(1, 0, -b)
	M.SetDoubleAt(1, 1, a)
	M.SetDoubleAt(1, 2, h+b*t.cx-a*t.cy)
	return M
}

// project converts raw [x, y, z] crop-pixel output to normalized frame points
func (t cropTransform) project(raw []float32, frameWidth, frameHeight int) geometry.LandmarkSet {
	n := len(raw) / 3
	set := make(geometry.LandmarkSet, n)
	fw, fh := float64(frameWidth), float64(frameHeight)
	for i := 0; i < n; i++ {
		x, y := t.inverse(float64(raw[i*3]), float64(raw[i*3+1]))
		set[i] = geometry.Point{
			X: x / fw,
			Y: y / fh,
			Z: float64(raw[i*3+2]) / t.scale / fw,
		}
	}
	return set
}
