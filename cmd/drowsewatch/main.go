package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/dudu/drowsewatch/internal/camera"
	"github.com/dudu/drowsewatch/internal/config"
	"github.com/dudu/drowsewatch/internal/logger"
	"github.com/dudu/drowsewatch/internal/ui"
)

// maxFailedReads is how many consecutive empty camera reads end the session.
const maxFailedReads = 30

func init() {
	// Lock the main goroutine to the main OS thread.
	// This is required on macOS for OpenCV's highgui (window creation).
	runtime.LockOSThread()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	parseFlags(cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "drowsewatch")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("drowsewatch stopped", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

// parseFlags overrides environment settings with command line flags.
func parseFlags(cfg *config.Config) {
	flag.IntVar(&cfg.CameraIndex, "camera", cfg.CameraIndex, "Camera device index")
	flag.IntVar(&cfg.CameraIndex, "c", cfg.CameraIndex, "Camera device index (shorthand)")
	flag.StringVar(&cfg.VideoFile, "video", cfg.VideoFile, "Read frames from a video file instead of a camera")
	flag.StringVar(&cfg.Provider, "provider", cfg.Provider, "Landmark provider: onnx or mediapipe")
	flag.Float64Var(&cfg.EyeARThreshold, "ear", cfg.EyeARThreshold, "Eye aspect ratio threshold")
	flag.IntVar(&cfg.EyeARConsecFrames, "frames", cfg.EyeARConsecFrames, "Consecutive low-EAR frames before the alarm")
	flag.Float64Var(&cfg.MouthThreshold, "mouth", cfg.MouthThreshold, "Mouth open ratio threshold")
	flag.Float64Var(&cfg.NodThresholdDegree, "nod", cfg.NodThresholdDegree, "Head tilt threshold in degrees")
	flag.BoolVar(&cfg.ResetOnFaceLoss, "reset-on-face-loss", cfg.ResetOnFaceLoss, "Reset the eye counter on frames without a face")
	flag.IntVar(&cfg.MaxFaces, "max-faces", cfg.MaxFaces, "Maximum faces tracked per frame")
	flag.BoolVar(&cfg.Preview, "preview", cfg.Preview, "Show preview window")
	flag.BoolVar(&cfg.Preview, "p", cfg.Preview, "Show preview window (shorthand)")
	flag.BoolVar(&cfg.DrawMesh, "mesh", cfg.DrawMesh, "Draw landmark points in the preview")
	flag.IntVar(&cfg.TargetFPS, "fps", cfg.TargetFPS, "Target frames per second")
	flag.StringVar(&cfg.LogFile, "log", cfg.LogFile, "CSV event log path (empty disables)")
	flag.StringVar(&cfg.EventDB, "db", cfg.EventDB, "SQLite event database path (empty disables)")
	flag.StringVar(&cfg.AlarmSound, "alarm", cfg.AlarmSound, "WAV file played on the drowsiness alarm")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "drowsewatch - Real-time driver drowsiness monitor\n\n")
		fmt.Fprintf(os.Stderr, "Usage: drowsewatch [options]\n\n")
		fmt.Fprintf(os.Stderr, "Every option can also be set with a %s_ environment variable or a .env file.\n\n", config.Prefix)
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  drowsewatch\n")
		fmt.Fprintf(os.Stderr, "  drowsewatch --provider mediapipe --db events.db\n")
		fmt.Fprintf(os.Stderr, "  drowsewatch --video drive.mp4 --preview=false\n")
	}

	flag.Parse()
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("drowsewatch starting",
		zap.String("provider", cfg.Provider),
		zap.Any("source", cfg.VideoSource()),
		zap.Any("thresholds", cfg.Thresholds()),
	)

	p, err := buildPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Warn("cleanup errors", zap.Error(err))
		}
	}()

	cam, err := camera.Open(camera.Config{
		Source:    cfg.VideoSource(),
		TargetFPS: cfg.TargetFPS,
		Width:     cfg.FrameWidth,
		Height:    cfg.FrameHeight,
	})
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer cam.Close()
	log.Info("capture opened",
		zap.Any("source", cam.Source()),
		zap.Int("width", cam.Width()),
		zap.Int("height", cam.Height()),
		zap.Float64("fps", cam.FPS()),
	)

	var window *ui.Window
	if cfg.Preview {
		window = ui.NewWindow("Fatigue Detection", cam.Width(), cam.Height())
		defer window.Close()
	}

	frame := gocv.NewMat()
	defer frame.Close()

	log.Info("running, press 'q' to quit")

	failedReads := 0
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return nil
		default:
		}

		seq, ok, err := cam.Read(&frame)
		if errors.Is(err, camera.ErrClosed) {
			return nil
		}
		if !ok {
			if cam.IsFile() {
				log.Info("end of video", zap.Uint64("frames", seq))
				return nil
			}
			failedReads++
			if failedReads >= maxFailedReads {
				return fmt.Errorf("camera stopped delivering frames after %d attempts", failedReads)
			}
			continue
		}
		failedReads = 0

		report, err := p.Process(frame)
		if err != nil {
			log.Warn("frame analysis failed", zap.Uint64("frame", seq), zap.Error(err))
		}

		if timing := p.LastTiming(); seq%uint64(cfg.TargetFPS*5) == 0 {
			log.Debug("timing",
				zap.Uint64("frame", seq),
				zap.Duration("detection", timing.Detection),
				zap.Duration("analysis", timing.Analysis),
				zap.Duration("total", timing.Total),
				zap.Int("faces", len(report.Faces)),
			)
		}

		if window != nil {
			ui.Annotate(&frame, report, cfg.DrawMesh)
			window.Show(&frame)
			// WaitKey must be called to process window events
			if ui.IsQuitKey(window.WaitKey(1)) {
				log.Info("quit requested")
				return nil
			}
		}
	}
}
