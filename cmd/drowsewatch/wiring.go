package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dudu/drowsewatch/internal/alert"
	"github.com/dudu/drowsewatch/internal/config"
	"github.com/dudu/drowsewatch/internal/detector"
	"github.com/dudu/drowsewatch/internal/eventlog"
	"github.com/dudu/drowsewatch/internal/inference"
	"github.com/dudu/drowsewatch/internal/monitor"
	"github.com/dudu/drowsewatch/internal/pipeline"
	"github.com/dudu/drowsewatch/internal/sink"
)

const eventQueueSize = 64

// buildPipeline wires provider, monitor, recorders and alerter. Everything
// it opens is closed by the returned pipeline.
func buildPipeline(ctx context.Context, cfg *config.Config, log *zap.Logger) (*pipeline.Pipeline, error) {
	var closers []io.Closer
	fail := func(err error) (*pipeline.Pipeline, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i].Close()
		}
		return nil, err
	}

	recorder, recClosers, err := buildRecorder(cfg, log)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, recClosers...)

	alerter := buildAlerter(cfg, log)
	if c, ok := alerter.(io.Closer); ok {
		closers = append(closers, c)
	}

	dispatcher := sink.NewDispatcher(recorder, alerter, log.Named("sink"))
	mon, err := monitor.New(monitor.Config{
		Thresholds:      cfg.Thresholds(),
		MaxFaces:        cfg.MaxFaces,
		ResetOnFaceLoss: cfg.ResetOnFaceLoss,
	}, dispatcher, log.Named("monitor"))
	if err != nil {
		return fail(err)
	}

	provider, err := buildProvider(ctx, cfg, log.Named("provider"))
	if err != nil {
		return fail(err)
	}

	return pipeline.New(provider, mon, closers...), nil
}

// buildRecorder returns the event recorder and the closers in the order
// they must run: the async queue first so it drains into open files.
func buildRecorder(cfg *config.Config, log *zap.Logger) (sink.Recorder, []io.Closer, error) {
	var (
		targets eventlog.Multi
		closers []io.Closer
	)

	if cfg.LogFile != "" {
		csvRec, err := eventlog.NewCSVRecorder(cfg.LogFile)
		if err != nil {
			return nil, nil, err
		}
		targets = append(targets, csvRec)
		closers = append(closers, csvRec)
		log.Info("logging events to CSV", zap.String("path", csvRec.Path()))
	}

	if cfg.EventDB != "" {
		dbRec, err := eventlog.NewSQLiteRecorder(cfg.EventDB)
		if err != nil {
			for _, c := range closers {
				c.Close()
			}
			return nil, nil, err
		}
		targets = append(targets, dbRec)
		closers = append(closers, dbRec)
		log.Info("logging events to SQLite",
			zap.String("path", cfg.EventDB),
			zap.String("session_id", dbRec.SessionID()),
		)
	}

	if len(targets) == 0 {
		return nil, nil, nil
	}

	async := eventlog.NewAsync(targets, eventQueueSize, log.Named("eventlog"))
	return async, append([]io.Closer{async}, closers...), nil
}

// buildAlerter prefers the sound alarm and falls back to a log line when
// the clip or the audio device is unavailable.
func buildAlerter(cfg *config.Config, log *zap.Logger) sink.Alerter {
	if cfg.AlarmSound != "" {
		sound, err := alert.NewSoundAlerter(cfg.AlarmSound, log.Named("alert"))
		if err == nil {
			return sound
		}
		log.Warn("could not load alarm sound, alerts will only be logged", zap.Error(err))
	}
	return alert.NewLogAlerter(log.Named("alert"))
}

func buildProvider(ctx context.Context, cfg *config.Config, log *zap.Logger) (pipeline.LandmarkProvider, error) {
	switch cfg.Provider {
	case config.ProviderMediaPipe:
		args := strings.Fields(cfg.WorkerScript)
		provider, err := detector.StartMediaPipe(ctx, detector.WorkerConfig{
			Command:  cfg.WorkerCommand,
			Args:     args,
			Timeout:  time.Duration(cfg.WorkerTimeoutMS) * time.Millisecond,
			MaxFaces: cfg.MaxFaces,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to start mediapipe provider: %w", err)
		}
		return provider, nil

	default:
		if err := inference.Initialize(cfg.ORTLibraryPath); err != nil {
			return nil, err
		}
		log.Info("ONNX Runtime ready", zap.String("version", inference.Version()))

		provider, err := detector.NewONNXProvider(detector.ONNXConfig{
			SCRFD: detector.SCRFDConfig{
				ModelPath:     cfg.SCRFDModelPath,
				InputSize:     cfg.DetectionSize,
				ConfThreshold: cfg.ConfThreshold,
				NMSThreshold:  cfg.NMSThreshold,
				MaxFaces:      cfg.MaxFaces,
			},
			FaceMesh:          detector.FaceMeshConfig{ModelPath: cfg.FaceMeshModelPath},
			PresenceThreshold: cfg.PresenceThreshold,
			UseCoreML:         cfg.UseCoreML,
		}, log)
		if err != nil {
			inference.Shutdown()
			return nil, fmt.Errorf("failed to create onnx provider: %w", err)
		}
		return &shutdownProvider{LandmarkProvider: provider}, nil
	}
}

// shutdownProvider tears down ONNX Runtime after the sessions are gone.
type shutdownProvider struct {
	pipeline.LandmarkProvider
}

func (p *shutdownProvider) Close() error {
	err := p.LandmarkProvider.Close()
	if shutdownErr := inference.Shutdown(); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	return err
}
