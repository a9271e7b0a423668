package detector

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/dudu/drowsewatch/internal/geometry"
	"github.com/dudu/drowsewatch/internal/inference"
)

// ONNXConfig configures the in-process landmark provider.
type ONNXConfig struct {
	SCRFD             SCRFDConfig
	FaceMesh          FaceMeshConfig
	PresenceThreshold float32
	UseCoreML         bool
}

// ONNXProvider runs SCRFD for face boxes and the face mesh model on each box.
type ONNXProvider struct {
	scrfd             *SCRFD
	mesh              *FaceMesh
	presenceThreshold float32
	logger            *zap.Logger
}

// NewONNXProvider loads both models. inference.Initialize must have been called.
func NewONNXProvider(cfg ONNXConfig, logger *zap.Logger) (*ONNXProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := inference.SessionOptions{UseCoreML: cfg.UseCoreML, Logger: logger}

	scrfd, err := NewSCRFD(cfg.SCRFD, opts)
	if err != nil {
		return nil, err
	}
	mesh, err := NewFaceMesh(cfg.FaceMesh, opts)
	if err != nil {
		scrfd.Close()
		return nil, err
	}

	logger.Info("face models loaded",
		zap.String("detector", scrfd.session.ModelPath()),
		zap.String("detector_provider", scrfd.session.Provider()),
		zap.String("mesh", mesh.session.ModelPath()),
		zap.String("mesh_provider", mesh.session.Provider()),
	)

	return &ONNXProvider{
		scrfd:             scrfd,
		mesh:              mesh,
		presenceThreshold: cfg.PresenceThreshold,
		logger:            logger,
	}, nil
}

// Detect returns one landmark set per face, highest detector score first.
// Faces whose mesh presence falls below the threshold are dropped.
func (p *ONNXProvider) Detect(img gocv.Mat) ([]geometry.LandmarkSet, error) {
	faces, err := p.scrfd.Detect(img)
	if err != nil {
		return nil, err
	}

	sets := make([]geometry.LandmarkSet, 0, len(faces))
	for i := range faces {
		if err := p.mesh.Detect(img, &faces[i]); err != nil {
			return sets, fmt.Errorf("face %d: %w", i, err)
		}
		if faces[i].Presence < p.presenceThreshold {
			p.logger.Debug("dropping face below presence threshold",
				zap.Int("face", i),
				zap.Float32("presence", faces[i].Presence),
			)
			continue
		}
		sets = append(sets, faces[i].Mesh)
	}
	return sets, nil
}

// Close releases both sessions
func (p *ONNXProvider) Close() error {
	return errors.Join(p.scrfd.Close(), p.mesh.Close())
}
