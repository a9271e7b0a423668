package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/dudu/drowsewatch/internal/drowsiness"
)

// Prefix is the environment variable prefix, e.g. DROWSE_EAR_THRESHOLD.
const Prefix = "DROWSE"

// Landmark provider backends.
const (
	ProviderONNX      = "onnx"
	ProviderMediaPipe = "mediapipe"
)

// Config holds every startup setting.
type Config struct {
	// Detector thresholds
	EyeARThreshold     float64 `envconfig:"EAR_THRESHOLD" default:"0.25"`
	EyeARConsecFrames  int     `envconfig:"EAR_CONSEC_FRAMES" default:"15"`
	MouthThreshold     float64 `envconfig:"MOUTH_THRESHOLD" default:"0.6"`
	NodThresholdDegree float64 `envconfig:"NOD_THRESHOLD" default:"15"`
	ResetOnFaceLoss    bool    `envconfig:"RESET_ON_FACE_LOSS" default:"false"`
	MaxFaces           int     `envconfig:"MAX_FACES" default:"1"`

	// Capture
	CameraIndex int    `envconfig:"CAMERA" default:"0"`
	VideoFile   string `envconfig:"VIDEO_FILE"`
	TargetFPS   int    `envconfig:"FPS" default:"30"`
	FrameWidth  int    `envconfig:"FRAME_WIDTH" default:"1280"`
	FrameHeight int    `envconfig:"FRAME_HEIGHT" default:"720"`
	Preview     bool   `envconfig:"PREVIEW" default:"true"`
	DrawMesh    bool   `envconfig:"DRAW_MESH" default:"true"`

	// Landmark provider
	Provider          string  `envconfig:"PROVIDER" default:"onnx"`
	ORTLibraryPath    string  `envconfig:"ORT_LIBRARY" default:"lib/libonnxruntime.so"`
	UseCoreML         bool    `envconfig:"COREML" default:"false"`
	SCRFDModelPath    string  `envconfig:"SCRFD_MODEL" default:"models/scrfd_500m.onnx"`
	FaceMeshModelPath string  `envconfig:"FACEMESH_MODEL" default:"models/face_landmark.onnx"`
	DetectionSize     int     `envconfig:"DETECTION_SIZE" default:"640"`
	ConfThreshold     float32 `envconfig:"CONF_THRESHOLD" default:"0.5"`
	NMSThreshold      float32 `envconfig:"NMS_THRESHOLD" default:"0.4"`
	PresenceThreshold float32 `envconfig:"PRESENCE_THRESHOLD" default:"0.5"`
	WorkerCommand     string  `envconfig:"WORKER_COMMAND" default:"python3"`
	WorkerScript      string  `envconfig:"WORKER_SCRIPT" default:"scripts/facemesh_worker.py"`
	WorkerTimeoutMS   int     `envconfig:"WORKER_TIMEOUT_MS" default:"2000"`

	// Outputs
	LogFile    string `envconfig:"LOG_FILE" default:"fatigue_log.csv"`
	EventDB    string `envconfig:"EVENT_DB"`
	AlarmSound string `envconfig:"ALARM_SOUND" default:"alarm.wav"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat  string `envconfig:"LOG_FORMAT" default:"console"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// Thresholds returns the detector thresholds.
func (c *Config) Thresholds() drowsiness.Thresholds {
	return drowsiness.Thresholds{
		EyeAspectRatio:       c.EyeARThreshold,
		EyeConsecutiveFrames: c.EyeARConsecFrames,
		MouthOpen:            c.MouthThreshold,
		HeadNodDegrees:       c.NodThresholdDegree,
	}
}

// Validate checks settings that cannot be fixed up later.
func (c *Config) Validate() error {
	if err := c.Thresholds().Validate(); err != nil {
		return err
	}
	if c.Provider != ProviderONNX && c.Provider != ProviderMediaPipe {
		return fmt.Errorf("invalid provider: %s (use '%s' or '%s')", c.Provider, ProviderONNX, ProviderMediaPipe)
	}
	if c.MaxFaces < 1 {
		return fmt.Errorf("max faces must be >= 1, got %d", c.MaxFaces)
	}
	if c.TargetFPS < 1 {
		return fmt.Errorf("fps must be >= 1, got %d", c.TargetFPS)
	}
	return nil
}

// VideoSource returns the capture source: the video file when set,
// otherwise the camera index.
func (c *Config) VideoSource() any {
	if c.VideoFile != "" {
		return c.VideoFile
	}
	return c.CameraIndex
}
