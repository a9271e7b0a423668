package ui

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/dudu/drowsewatch/internal/drowsiness"
	"github.com/dudu/drowsewatch/internal/monitor"
)

// Banner texts.
const (
	AlarmBanner = "DROWSINESS ALERT!"
	YawnBanner  = "YAWNING DETECTED!"
	NodBanner   = "HEAD NOD DETECTED!"
)

var (
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	red   = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	green = color.RGBA{R: 0, G: 255, B: 0, A: 255}
)

const (
	lineHeight  = 30
	columnWidth = 320
	leftMargin  = 30
	topMargin   = 60
)

// Line is one piece of overlay text.
type Line struct {
	Text  string
	Alert bool
}

// FaceLines returns the overlay text for one face: the three readouts
// followed by any banners raised this frame.
func FaceLines(f monitor.FaceReport) []Line {
	if f.Skipped {
		return []Line{{Text: "Landmarks unavailable"}}
	}
	lines := []Line{
		{Text: fmt.Sprintf("EAR: %.2f", f.Ratios.EyeAspectRatio)},
		{Text: fmt.Sprintf("Mouth: %.2f", f.Ratios.MouthOpen)},
		{Text: fmt.Sprintf("Tilt: %.1f", f.Ratios.TiltDegrees)},
	}
	if f.State.AlarmActive {
		lines = append(lines, Line{Text: AlarmBanner, Alert: true})
	}
	for _, e := range f.Events {
		switch e.Kind {
		case drowsiness.YawnDetected:
			lines = append(lines, Line{Text: YawnBanner, Alert: true})
		case drowsiness.HeadNodDetected:
			lines = append(lines, Line{Text: NodBanner, Alert: true})
		}
	}
	return lines
}

// Annotate draws every face's readouts, banners and, when drawMesh is set,
// its landmark points onto frame.
func Annotate(frame *gocv.Mat, report monitor.Report, drawMesh bool) {
	width, height := frame.Cols(), frame.Rows()

	for i, f := range report.Faces {
		x := leftMargin + i*columnWidth
		for j, line := range FaceLines(f) {
			c, scale := white, 0.7
			if line.Alert {
				c, scale = red, 0.8
			}
			gocv.PutText(frame, line.Text, image.Pt(x, topMargin+j*lineHeight),
				gocv.FontHersheySimplex, scale, c, 2)
		}

		if drawMesh {
			for _, p := range f.Landmarks {
				pt := image.Pt(int(p.X*float64(width)), int(p.Y*float64(height)))
				gocv.Circle(frame, pt, 1, green, -1)
			}
		}
	}
}
