package detector

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/dudu/drowsewatch/internal/geometry"
	"github.com/dudu/drowsewatch/internal/meshproto"
)

var (
	// ErrWorkerTimeout is returned when the worker does not answer in time.
	ErrWorkerTimeout = errors.New("face mesh worker timed out")
	// ErrWorkerExited is returned once the worker's output stream has ended.
	ErrWorkerExited = errors.New("face mesh worker exited")
)

// WorkerConfig configures the external face mesh worker.
type WorkerConfig struct {
	// Command and Args start the worker, e.g. python3 scripts/facemesh_worker.py.
	Command  string
	Args     []string
	Timeout  time.Duration
	MaxFaces int
}

type workerResult struct {
	resp meshproto.Response
	err  error
}

// MediaPipeProvider delegates landmark detection to a worker process that
// speaks meshproto over its stdin and stdout.
type MediaPipeProvider struct {
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	stdin   io.WriteCloser
	results chan workerResult
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	seq    uint64
	closed bool
	// stalled is set after a write timed out; the stream can no longer be framed
	stalled error
	wg      sync.WaitGroup
}

// StartMediaPipe spawns the worker process.
func StartMediaPipe(ctx context.Context, cfg WorkerConfig, logger *zap.Logger) (*MediaPipeProvider, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("worker command is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	args := append([]string{}, cfg.Args...)
	if cfg.MaxFaces > 0 {
		args = append(args, "--max-faces", fmt.Sprint(cfg.MaxFaces))
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, cfg.Command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start face mesh worker: %w", err)
	}

	logger.Info("face mesh worker started",
		zap.String("command", cfg.Command),
		zap.Strings("args", args),
		zap.Int("pid", cmd.Process.Pid),
	)

	p := newMediaPipeProvider(stdin, stdout, cfg.Timeout, logger)
	p.cmd = cmd
	p.cancel = cancel

	p.wg.Add(1)
	go p.logStderr(stderr)

	return p, nil
}

// newMediaPipeProvider wires the protocol to an already running worker.
func newMediaPipeProvider(stdin io.WriteCloser, stdout io.Reader, timeout time.Duration, logger *zap.Logger) *MediaPipeProvider {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	p := &MediaPipeProvider{
		stdin:   stdin,
		results: make(chan workerResult, 1),
		timeout: timeout,
		logger:  logger,
	}
	p.wg.Add(1)
	go p.readResults(stdout)
	return p
}

// Detect sends the frame to the worker and waits for its landmarks.
func (p *MediaPipeProvider) Detect(img gocv.Mat) ([]geometry.LandmarkSet, error) {
	if img.Empty() {
		return nil, nil
	}
	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(img, &rgb, gocv.ColorBGRToRGB)

	return p.detectRGB(rgb.Cols(), rgb.Rows(), rgb.ToBytes())
}

func (p *MediaPipeProvider) detectRGB(width, height int, data []byte) ([]geometry.LandmarkSet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrWorkerExited
	}
	if p.stalled != nil {
		return nil, p.stalled
	}

	p.seq++
	req := meshproto.Request{Seq: p.seq, Width: width, Height: height, Data: data}

	deadline := time.NewTimer(p.timeout)
	defer deadline.Stop()

	writeErr := make(chan error, 1)
	go func() {
		writeErr <- meshproto.Write(p.stdin, req)
	}()

	select {
	case err := <-writeErr:
		if err != nil {
			return nil, fmt.Errorf("failed to send frame %d: %w", req.Seq, err)
		}
	case <-deadline.C:
		p.stalled = fmt.Errorf("%w: sending frame %d", ErrWorkerTimeout, req.Seq)
		return nil, p.stalled
	}

	for {
		select {
		case r, ok := <-p.results:
			if !ok {
				return nil, ErrWorkerExited
			}
			if r.err != nil {
				return nil, r.err
			}
			if r.resp.Seq < req.Seq {
				// answer to a frame that already timed out
				p.logger.Debug("discarding stale worker response",
					zap.Uint64("seq", r.resp.Seq),
					zap.Uint64("want", req.Seq),
				)
				continue
			}
			if r.resp.Error != "" {
				return nil, fmt.Errorf("face mesh worker error on frame %d: %s", r.resp.Seq, r.resp.Error)
			}
			return r.resp.LandmarkSets(), nil
		case <-deadline.C:
			return nil, fmt.Errorf("%w: waiting for frame %d", ErrWorkerTimeout, req.Seq)
		}
	}
}

// readResults forwards worker responses until its stdout closes
func (p *MediaPipeProvider) readResults(stdout io.Reader) {
	defer p.wg.Done()
	defer close(p.results)

	r := bufio.NewReader(stdout)
	for {
		var resp meshproto.Response
		err := meshproto.Read(r, &resp)
		if err == io.EOF {
			p.logger.Debug("face mesh worker stdout closed")
			return
		}
		if err != nil {
			p.logger.Error("failed to read face mesh worker response", zap.Error(err))
			p.results <- workerResult{err: err}
			return
		}
		p.results <- workerResult{resp: resp}
	}
}

// logStderr forwards worker log lines, mapping Python log levels
func (p *MediaPipeProvider) logStderr(stderr io.Reader) {
	defer p.wg.Done()

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "ERROR"), strings.Contains(line, "CRITICAL"), strings.Contains(line, "Traceback"):
			p.logger.Error("worker", zap.String("line", line))
		case strings.Contains(line, "WARNING"), strings.Contains(line, "WARN"):
			p.logger.Warn("worker", zap.String("line", line))
		default:
			p.logger.Debug("worker", zap.String("line", line))
		}
	}
}

// Close stops the worker. Closing stdin lets it exit on its own; it is
// killed if it has not exited within the timeout.
func (p *MediaPipeProvider) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := p.stdin.Close()

	// drain so the reader can reach EOF
	go func() {
		for range p.results {
		}
	}()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.timeout):
		p.logger.Warn("face mesh worker did not exit, killing it")
		if p.cancel != nil {
			p.cancel()
		}
		<-done
	}

	if p.cmd != nil {
		if waitErr := p.cmd.Wait(); waitErr != nil {
			p.logger.Debug("face mesh worker exited", zap.Error(waitErr))
		}
		p.cancel()
	}

	if err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("failed to close worker stdin: %w", err)
	}
	return nil
}
