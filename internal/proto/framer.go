package proto

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// ErrFrameTooLarge is returned when a line exceeds the reader's limit. The
// oversized line is consumed, so the stream stays usable.
var ErrFrameTooLarge = errors.New("frame too large")

// DefaultMaxFrameSize bounds a single frame when no limit is configured.
const DefaultMaxFrameSize = 4096

// LineReader splits a byte stream into newline-delimited frames.
type LineReader struct {
	r   *bufio.Reader
	max int
}

// NewLineReader wraps r. maxFrameSize <= 0 selects DefaultMaxFrameSize.
func NewLineReader(r io.Reader, maxFrameSize int) *LineReader {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &LineReader{
		r:   bufio.NewReaderSize(r, min(maxFrameSize+2, 64*1024)),
		max: maxFrameSize,
	}
}

// ReadFrame returns the next non-empty line without its terminator.
// A partial line followed by EOF is dropped and io.EOF returned.
func (l *LineReader) ReadFrame() ([]byte, error) {
	for {
		frame, err := l.readLine()
		if err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace(frame)) == 0 {
			continue
		}
		return frame, nil
	}
}

func (l *LineReader) readLine() ([]byte, error) {
	var (
		line     []byte
		tooLarge bool
	)
	for {
		chunk, err := l.r.ReadSlice('\n')
		if !tooLarge {
			// +2 leaves room for the "\r\n" terminator.
			if len(line)+len(chunk) > l.max+2 {
				tooLarge = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return nil, err
	}

	if tooLarge {
		return nil, ErrFrameTooLarge
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) > l.max {
		return nil, ErrFrameTooLarge
	}
	return line, nil
}

// WriteLine writes frame followed by a newline in a single call.
func WriteLine(w io.Writer, frame []byte) error {
	buf := make([]byte, 0, len(frame)+1)
	buf = append(buf, frame...)
	buf = append(buf, '\n')
	_, err := w.Write(buf)
	return err
}
