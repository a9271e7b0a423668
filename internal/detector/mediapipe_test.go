package detector

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dudu/drowsewatch/internal/meshproto"
)

// fakeWorker answers each request with the handler's response until its
// stdin closes.
func fakeWorker(t *testing.T, handle func(meshproto.Request) *meshproto.Response) (io.WriteCloser, io.Reader) {
	t.Helper()
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	go func() {
		defer respW.Close()
		for {
			var req meshproto.Request
			if err := meshproto.Read(reqR, &req); err != nil {
				return
			}
			resp := handle(req)
			if resp == nil {
				continue
			}
			if err := meshproto.Write(respW, resp); err != nil {
				return
			}
		}
	}()
	return reqW, respR
}

func TestMediaPipeProviderRoundTrip(t *testing.T) {
	var got meshproto.Request
	stdin, stdout := fakeWorker(t, func(req meshproto.Request) *meshproto.Response {
		got = req
		return &meshproto.Response{
			Seq:   req.Seq,
			Faces: [][][3]float64{{{0.25, 0.5, 0}}, {{0.75, 0.5, 0}}},
		}
	})

	p := newMediaPipeProvider(stdin, stdout, time.Second, zaptest.NewLogger(t))
	defer p.Close()

	sets, err := p.detectRGB(2, 1, []byte{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.InDelta(t, 0.75, sets[1][0].X, 1e-9)

	assert.Equal(t, uint64(1), got.Seq)
	assert.Equal(t, 2, got.Width)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, got.Data)

	_, err = p.detectRGB(1, 1, []byte{0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Seq)
}

func TestMediaPipeProviderWorkerError(t *testing.T) {
	stdin, stdout := fakeWorker(t, func(req meshproto.Request) *meshproto.Response {
		return &meshproto.Response{Seq: req.Seq, Error: "bad frame"}
	})
	p := newMediaPipeProvider(stdin, stdout, time.Second, zaptest.NewLogger(t))
	defer p.Close()

	_, err := p.detectRGB(1, 1, []byte{0, 0, 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad frame")
}

func TestMediaPipeProviderTimeoutThenStaleResponse(t *testing.T) {
	release := make(chan struct{})
	stdin, stdout := fakeWorker(t, func(req meshproto.Request) *meshproto.Response {
		if req.Seq == 1 {
			<-release
		}
		return &meshproto.Response{Seq: req.Seq, Faces: [][][3]float64{{{float64(req.Seq), 0, 0}}}}
	})
	p := newMediaPipeProvider(stdin, stdout, 50*time.Millisecond, zaptest.NewLogger(t))
	defer p.Close()

	_, err := p.detectRGB(1, 1, []byte{0, 0, 0})
	assert.ErrorIs(t, err, ErrWorkerTimeout)
	close(release)

	sets, err := p.detectRGB(1, 1, []byte{0, 0, 0})
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, 2.0, sets[0][0].X, "late answer for frame 1 is discarded")
}

func TestMediaPipeProviderWorkerExit(t *testing.T) {
	stdin, stdout := fakeWorker(t, func(req meshproto.Request) *meshproto.Response {
		return nil
	})
	p := newMediaPipeProvider(stdin, stdout, time.Second, zaptest.NewLogger(t))

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err := p.detectRGB(1, 1, []byte{0, 0, 0})
	assert.ErrorIs(t, err, ErrWorkerExited)
}

func TestMediaPipeProviderOutputClosed(t *testing.T) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	go func() {
		var req meshproto.Request
		_ = meshproto.Read(reqR, &req)
		respW.Close()
	}()

	p := newMediaPipeProvider(reqW, respR, time.Second, zaptest.NewLogger(t))
	defer p.Close()

	_, err := p.detectRGB(1, 1, []byte{0, 0, 0})
	assert.ErrorIs(t, err, ErrWorkerExited)
}
