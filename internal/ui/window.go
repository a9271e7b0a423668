package ui

import (
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"
)

// Window manages the preview display
type Window struct {
	window *gocv.Window
	name   string
	fps    *FPSCounter
}

// NewWindow creates a new preview window sized to the capture
func NewWindow(name string, width, height int) *Window {
	window := gocv.NewWindow(name)
	if width > 0 && height > 0 {
		window.ResizeWindow(width, height)
	}
	return &Window{
		window: window,
		name:   name,
		fps:    NewFPSCounter(time.Now()),
	}
}

// Show displays a frame and updates FPS counter
func (w *Window) Show(frame *gocv.Mat) {
	fps := w.fps.Tick(time.Now())

	gocv.PutText(frame, fmt.Sprintf("FPS: %.1f", fps), image.Pt(10, 30),
		gocv.FontHersheyPlain, 2, green, 2)

	w.window.IMShow(*frame)
}

// WaitKey waits for key press, returns key code or -1
func (w *Window) WaitKey(delayMs int) int {
	return w.window.WaitKey(delayMs)
}

// FPS returns current frames per second
func (w *Window) FPS() float64 {
	return w.fps.Rate()
}

// Close closes the window
func (w *Window) Close() error {
	if w.window != nil {
		err := w.window.Close()
		w.window = nil
		return err
	}
	return nil
}

// IsQuitKey reports whether a WaitKey result asks to quit: q, Q or ESC.
func IsQuitKey(key int) bool {
	if key < 0 {
		return false
	}
	switch key & 0xFF {
	case 'q', 'Q', 27:
		return true
	}
	return false
}

// FPSCounter measures frames per second over one-second windows.
type FPSCounter struct {
	start  time.Time
	frames int
	rate   float64
}

// NewFPSCounter starts counting at now.
func NewFPSCounter(now time.Time) *FPSCounter {
	return &FPSCounter{start: now}
}

// Tick records a frame and returns the latest rate.
func (c *FPSCounter) Tick(now time.Time) float64 {
	c.frames++
	if elapsed := now.Sub(c.start); elapsed >= time.Second {
		c.rate = float64(c.frames) / elapsed.Seconds()
		c.frames = 0
		c.start = now
	}
	return c.rate
}

// Rate returns the last measured rate.
func (c *FPSCounter) Rate() float64 {
	return c.rate
}
