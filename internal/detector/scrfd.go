package detector

import (
	"fmt"
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/drowsewatch/internal/inference"
)

// SCRFD output names: 3 levels × 3 outputs each (score, bbox, kps)
var scrfdOutputNames = []string{
	"score_8", "score_16", "score_32",
	"bbox_8", "bbox_16", "bbox_32",
	"kps_8", "kps_16", "kps_32",
}

// SCRFDConfig configures the face box detector.
type SCRFDConfig struct {
	ModelPath     string
	InputSize     int
	ConfThreshold float32
	NMSThreshold  float32
	// MaxFaces caps the faces returned per frame; 0 means no cap.
	MaxFaces int
}

// SCRFD implements the SCRFD face detector
type SCRFD struct {
	session        *inference.Session
	inputSize      int
	confThreshold  float32
	nmsThreshold   float32
	maxFaces       int
	featureStrides []int
	numAnchors     int
}

// NewSCRFD creates a new SCRFD detector
func NewSCRFD(cfg SCRFDConfig, opts inference.SessionOptions) (*SCRFD, error) {
	if cfg.InputSize <= 0 || cfg.InputSize%32 != 0 {
		return nil, fmt.Errorf("SCRFD input size must be a positive multiple of 32, got %d", cfg.InputSize)
	}

	session, err := inference.NewSession(cfg.ModelPath, []string{"input.1"}, scrfdOutputNames, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create SCRFD session: %w", err)
	}

	return &SCRFD{
		session:        session,
		inputSize:      cfg.InputSize,
		confThreshold:  cfg.ConfThreshold,
		nmsThreshold:   cfg.NMSThreshold,
		maxFaces:       cfg.MaxFaces,
		featureStrides: []int{8, 16, 32},
		numAnchors:     2, // anchors per position
	}, nil
}

// Detect finds faces in a BGR image, highest score first
func (s *SCRFD) Detect(img gocv.Mat) ([]Face, error) {
	if img.Empty() {
		return nil, nil
	}
	origHeight := img.Rows()
	origWidth := img.Cols()

	inputBlob, scale := s.preprocess(img)
	defer inputBlob.Close()

	inputTensor, err := inference.CreateTensor(
		[]int64{1, 3, int64(s.inputSize), int64(s.inputSize)},
		bytesToFloat32(inputBlob.ToBytes()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.Value, 9)
	outputTensors := make([]*ort.Tensor[float32], 9)
	defer func() { inference.DestroyAll(outputTensors...) }()

	for i, stride := range s.featureStrides {
		numAnchors := int64((s.inputSize / stride) * (s.inputSize / stride) * s.numAnchors)
		for j, width := range []int64{1, 4, 10} {
			t, err := inference.CreateEmptyTensor[float32]([]int64{numAnchors, width})
			if err != nil {
				return nil, fmt.Errorf("failed to create output tensor %s: %w", scrfdOutputNames[i+3*j], err)
			}
			outputs[i+3*j] = t
			outputTensors[i+3*j] = t
		}
	}

	if err := s.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("SCRFD inference failed: %w", err)
	}

	levels := make([]levelOutput, len(s.featureStrides))
	for i := range levels {
		levels[i] = levelOutput{
			scores: outputTensors[i].GetData(),
			bboxes: outputTensors[i+3].GetData(),
			kps:    outputTensors[i+6].GetData(),
		}
	}

	faces := s.decode(levels, scale, origWidth, origHeight)
	return nms(faces, s.nmsThreshold, s.maxFaces), nil
}

// preprocess letterboxes the image into the square input and normalizes it
func (s *SCRFD) preprocess(img gocv.Mat) (gocv.Mat, float32) {
	height := img.Rows()
	width := img.Cols()

	scale := float32(s.inputSize) / float32(max(height, width))

	newWidth := int(float32(width) * scale)
	newHeight := int(float32(height) * scale)

	resized := gocv.NewMat()
	gocv.Resize(img, &resized, image.Pt(newWidth, newHeight), 0, 0, gocv.InterpolationLinear)

	padded := gocv.NewMatWithSize(s.inputSize, s.inputSize, gocv.MatTypeCV8UC3)
	padded.SetTo(gocv.NewScalar(0, 0, 0, 0))

	roi := padded.Region(image.Rect(0, 0, newWidth, newHeight))
	resized.CopyTo(&roi)
	roi.Close()
	resized.Close()

	rgb := gocv.NewMat()
	gocv.CvtColor(padded, &rgb, gocv.ColorBGRToRGB)
	padded.Close()

	// (x - 127.5) / 128.0
	blob := gocv.NewMat()
	rgb.ConvertTo(&blob, gocv.MatTypeCV32FC3)
	rgb.Close()
	gocv.AddWeighted(blob, 1.0/128.0, blob, 0, -127.5/128.0, &blob)

	// HWC to NCHW
	blobNCHW := gocv.BlobFromImage(blob, 1.0, image.Pt(s.inputSize, s.inputSize),
		gocv.NewScalar(0, 0, 0, 0), false, false)
	blob.Close()

	return blobNCHW, scale
}

type levelOutput struct {
	scores, bboxes, kps []float32
}

// decode turns raw per-level outputs into faces in original image coordinates
func (s *SCRFD) decode(levels []levelOutput, scale float32, origWidth, origHeight int) []Face {
	var faces []Face

	for level, out := range levels {
		stride := s.featureStrides[level]
		fmSize := s.inputSize / stride
		fs := float32(stride)

		anchorIdx := 0
		for y := 0; y < fmSize; y++ {
			for x := 0; x < fmSize; x++ {
				for a := 0; a < s.numAnchors; a++ {
					if anchorIdx >= len(out.scores) {
						break
					}
					score := out.scores[anchorIdx]
					// some exports emit logits
					if score < 0 || score > 1 {
						score = sigmoid(score)
					}

					if score > s.confThreshold && (anchorIdx+1)*10 <= len(out.kps) && (anchorIdx+1)*4 <= len(out.bboxes) {
						cx := (float32(x) + 0.5) * fs
						cy := (float32(y) + 0.5) * fs

						b := out.bboxes[anchorIdx*4 : anchorIdx*4+4]
						box := BoundingBox{
							X1: clamp((cx-b[0]*fs)/scale, 0, float32(origWidth)),
							Y1: clamp((cy-b[1]*fs)/scale, 0, float32(origHeight)),
							X2: clamp((cx+b[2]*fs)/scale, 0, float32(origWidth)),
							Y2: clamp((cy+b[3]*fs)/scale, 0, float32(origHeight)),
						}

						k := out.kps[anchorIdx*10 : anchorIdx*10+10]
						kp := func(i int) Point {
							return Point{(cx + k[i*2]*fs) / scale, (cy + k[i*2+1]*fs) / scale}
						}

						faces = append(faces, Face{
							BoundingBox: box,
							Keypoints: Keypoints{
								LeftEye:    kp(0),
								RightEye:   kp(1),
								Nose:       kp(2),
								LeftMouth:  kp(3),
								RightMouth: kp(4),
							},
							Score: score,
						})
					}
					anchorIdx++
				}
			}
		}
	}

	return faces
}

// Close releases detector resources
func (s *SCRFD) Close() error {
	return s.session.Destroy()
}

func sigmoid(x float32) float32 {
	return 1.0 / (1.0 + float32(math.Exp(float64(-x))))
}

func clamp(x, lo, hi float32) float32 {
	return min(max(x, lo), hi)
}

func bytesToFloat32(data []byte) []float32 {
	result := make([]float32, len(data)/4)
	for i := range result {
		bits := uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
		result[i] = math.Float32frombits(bits)
	}
	return result
}
