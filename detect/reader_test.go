package detect

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

const jsonStream = `{"frame":0,"ts":0,"width":640,"height":480,"detections":[{"class_id":32,"confidence":0.9,"box":[95,95,105,105]}]}
{"frame":1,"ts":0.04,"detections":[]}
`

func TestReaderJSONLines(t *testing.T) {
	t.Parallel()

	r, err := NewReader(strings.NewReader(jsonStream), JSONLines)
	require.NoError(t, err)

	f, err := r.Next()
	require.NoError(t, err)

	want := Frame{
		Index:  0,
		Width:  640,
		Height: 480,
		Detections: []Raw{
			{ClassID: 32, Confidence: 0.9, Box: BoxRect{95, 95, 105, 105}},
		},
	}

	if diff := cmp.Diff(want, f); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}

	f, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, f.Index)
	assert.Equal(t, 40*time.Millisecond, f.Timestamp)
	assert.Empty(t, f.Detections)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderMsgpack(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)

	for i := 0; i < 3; i++ {
		require.NoError(t, enc.Encode(frameRecord{
			Index:     i,
			Timestamp: float64(i) * 0.5,
			Detections: []rawRecord{
				{ClassID: 0, Confidence: 0.75, Box: [4]float32{10, 20, 30, 60}},
			},
		}))
	}

	r, err := NewReader(&buf, Msgpack)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		f, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, i, f.Index)
		assert.Equal(t, time.Duration(i)*500*time.Millisecond, f.Timestamp)
		require.Len(t, f.Detections, 1)
		assert.Equal(t, BoxRect{10, 20, 30, 60}, f.Detections[0].Box)
	}

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderMalformed(t *testing.T) {
	t.Parallel()

	r, err := NewReader(strings.NewReader(`{"frame":0,"ts":-1}`+"\n"+`{"frame":`), JSONLines)
	require.NoError(t, err)

	_, err = r.Next()
	assert.Error(t, err)

	_, err = r.Next()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestOpenFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "match.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(jsonStream), 0o644))

	r, err := OpenFile(path)
	require.NoError(t, err)
	defer r.Close()

	f, err := r.Next()
	require.NoError(t, err)
	assert.Len(t, f.Detections, 1)

	_, err = OpenFile(filepath.Join(dir, "match.csv"))
	assert.Error(t, err)
}

func TestFormatFromPath(t *testing.T) {
	t.Parallel()

	f, err := FormatFromPath("a/b/c.MSGPACK")
	require.NoError(t, err)
	assert.Equal(t, Msgpack, f)

	f, err = FormatFromPath("c.ndjson")
	require.NoError(t, err)
	assert.Equal(t, JSONLines, f)
}
