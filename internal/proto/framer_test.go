package proto

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineReaderSplitsFrames(t *testing.T) {
	r := NewLineReader(strings.NewReader("first\r\n\n  \nsecond\nthird"), 64)

	frame, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "first", string(frame))

	frame, err = r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "second", string(frame))

	// "third" has no terminator before EOF and is dropped.
	_, err = r.ReadFrame()
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineReaderRecoversAfterOversizedFrame(t *testing.T) {
	long := strings.Repeat("x", 100)
	r := NewLineReader(strings.NewReader(long+"\nok\n"), 16)

	_, err := r.ReadFrame()
	require.True(t, errors.Is(err, ErrFrameTooLarge), "expected ErrFrameTooLarge, got %v", err)

	frame, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "ok", string(frame))
}

func TestLineReaderLimitIsInclusive(t *testing.T) {
	exact := strings.Repeat("a", 16)
	r := NewLineReader(strings.NewReader(exact+"\r\n"+exact+"b\n"), 16)

	frame, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, exact, string(frame))

	_, err = r.ReadFrame()
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestWriteLineAppendsNewline(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLine(&buf, []byte(`{"type":"notice"}`)))
	assert.Equal(t, "{\"type\":\"notice\"}\n", buf.String())
}
