package camera

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// ErrClosed is returned when reading from a closed capture.
var ErrClosed = errors.New("capture closed")

// Config describes the capture source.
type Config struct {
	// Source is a device index (int) or a video file path (string).
	Source    any
	TargetFPS int
	Width     int
	Height    int
}

// Capture manages webcam or video file capture
type Capture struct {
	source any
	webcam *gocv.VideoCapture
	isFile bool
	fps    float64
	width  int
	height int
	seq    uint64
	mu     sync.Mutex
}

// Open opens the configured source. Resolution and frame rate are only
// requested from devices; files keep their own.
func Open(cfg Config) (*Capture, error) {
	var (
		webcam *gocv.VideoCapture
		err    error
		isFile bool
	)
	switch src := cfg.Source.(type) {
	case int:
		webcam, err = gocv.OpenVideoCapture(src)
	case string:
		if src == "" {
			return nil, fmt.Errorf("empty video file path")
		}
		webcam, err = gocv.VideoCaptureFile(src)
		isFile = true
	default:
		return nil, fmt.Errorf("unsupported capture source %T", cfg.Source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open capture source %v: %w", cfg.Source, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return nil, fmt.Errorf("failed to open capture source %v", cfg.Source)
	}

	if !isFile {
		if cfg.Width > 0 && cfg.Height > 0 {
			webcam.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
			webcam.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
		}
		if cfg.TargetFPS > 0 {
			webcam.Set(gocv.VideoCaptureFPS, float64(cfg.TargetFPS))
		}
	}

	// Get actual dimensions (camera may not support requested resolution)
	return &Capture{
		source: cfg.Source,
		webcam: webcam,
		isFile: isFile,
		fps:    webcam.Get(gocv.VideoCaptureFPS),
		width:  int(webcam.Get(gocv.VideoCaptureFrameWidth)),
		height: int(webcam.Get(gocv.VideoCaptureFrameHeight)),
	}, nil
}

// Read captures the next frame into frame and returns its sequence number,
// starting at 1. ok is false when no frame could be read; for a video file
// that means the end of the file.
func (c *Capture) Read(frame *gocv.Mat) (seq uint64, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam == nil {
		return 0, false, ErrClosed
	}

	if !c.webcam.Read(frame) || frame.Empty() {
		return c.seq, false, nil
	}
	c.seq++
	return c.seq, true, nil
}

// IsFile reports whether the source is a video file.
func (c *Capture) IsFile() bool {
	return c.isFile
}

// Source returns the configured source.
func (c *Capture) Source() any {
	return c.source
}

// FPS returns the frame rate reported by the source, 0 if unknown.
func (c *Capture) FPS() float64 {
	return c.fps
}

// Width returns frame width
func (c *Capture) Width() int {
	return c.width
}

// Height returns frame height
func (c *Capture) Height() int {
	return c.height
}

// Close releases the capture
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam != nil {
		err := c.webcam.Close()
		c.webcam = nil
		return err
	}
	return nil
}
