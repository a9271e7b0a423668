package meshproto

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dudu/drowsewatch/internal/geometry"
)

func TestFramingStreamsSeveralMessages(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Request{Seq: 1, Width: 2, Height: 1, Data: []byte{1, 2, 3, 4, 5, 6}}))
	require.NoError(t, Write(&buf, Request{Seq: 2, Width: 1, Height: 1, Data: []byte{7, 8, 9}}))

	var first, second Request
	require.NoError(t, Read(&buf, &first))
	require.NoError(t, Read(&buf, &second))
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, []byte{7, 8, 9}, second.Data)

	assert.Equal(t, io.EOF, Read(&buf, &first))
}

func TestWireKeys(t *testing.T) {
	// the worker reads plain maps; keep the short keys stable
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Request{Seq: 9, Width: 4, Height: 3}))

	body := buf.Bytes()[4:]
	var m map[string]any
	require.NoError(t, msgpack.Unmarshal(body, &m))
	assert.Contains(t, m, "seq")
	assert.Contains(t, m, "w")
	assert.Contains(t, m, "h")
	assert.Contains(t, m, "d")
}

func TestResponseFromWorkerMap(t *testing.T) {
	body, err := msgpack.Marshal(map[string]any{
		"seq":          uint64(5),
		"faces":        [][][]float64{{{0.1, 0.2, -0.01}, {0.3, 0.4, 0.02}}},
		"inference_ms": 11.5,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, uint32(len(body))))
	buf.Write(body)

	var resp Response
	require.NoError(t, Read(&buf, &resp))
	assert.Equal(t, uint64(5), resp.Seq)

	sets := resp.LandmarkSets()
	require.Len(t, sets, 1)
	assert.Equal(t, geometry.LandmarkSet{{X: 0.1, Y: 0.2, Z: -0.01}, {X: 0.3, Y: 0.4, Z: 0.02}}, sets[0])
}

func TestReadRejectsOversizedPrefix(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, uint32(MaxMessageSize+1)))
	var resp Response
	assert.ErrorIs(t, Read(&buf, &resp), ErrFrameTooLarge)
}

func TestReadTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Response{Seq: 3}))
	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-1])

	var resp Response
	err := Read(truncated, &resp)
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	// a partial prefix is not a clean EOF either
	err = Read(bytes.NewReader([]byte{0, 0}), &resp)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestEmptyResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Response{Seq: 1}))
	var resp Response
	require.NoError(t, Read(&buf, &resp))
	assert.Empty(t, resp.LandmarkSets())
}
