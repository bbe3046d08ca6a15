package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Alfaashh/P2PChat/internal/pool"
)

// DefaultMaxFrameSize bounds a single line, newline excluded.
const DefaultMaxFrameSize = 1 << 20

var (
	// ErrMalformedFrame marks a line that is not a JSON object. The stream
	// is still usable and the next line can be read.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrFrameTooLarge marks a line longer than the reader's limit. The
	// stream is no longer in sync and must be closed.
	ErrFrameTooLarge = errors.New("frame too large")
)

// Reader reads newline-delimited frames. It is not safe for concurrent use.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader creates a Reader. maxFrameSize <= 0 selects DefaultMaxFrameSize.
func NewReader(r io.Reader, maxFrameSize int) *Reader {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	s := bufio.NewScanner(r)
	initial := 4096
	if initial > maxFrameSize+1 {
		initial = maxFrameSize + 1
	}
	// Scanner counts the delimiter against the limit.
	s.Buffer(make([]byte, 0, initial), maxFrameSize+1)
	return &Reader{scanner: s}
}

// ReadFrame returns the next frame and the size of its line in bytes.
//
// io.EOF is returned at a clean end of stream. An error wrapping
// ErrMalformedFrame is recoverable; any other error is terminal.
func (r *Reader) ReadFrame() (Frame, int, error) {
	if !r.scanner.Scan() {
		err := r.scanner.Err()
		switch {
		case err == nil:
			return Frame{}, 0, io.EOF
		case errors.Is(err, bufio.ErrTooLong):
			return Frame{}, 0, fmt.Errorf("%w: %v", ErrFrameTooLarge, err)
		default:
			return Frame{}, 0, err
		}
	}

	line := bytes.TrimSuffix(r.scanner.Bytes(), []byte("\r"))
	var f Frame
	if err := json.Unmarshal(line, &f); err != nil {
		return Frame{}, len(line), fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if bytes.HasPrefix(bytes.TrimSpace(line), []byte("null")) {
		return Frame{}, len(line), fmt.Errorf("%w: null", ErrMalformedFrame)
	}
	return f, len(line), nil
}

// Writer writes newline-delimited frames through a buffered writer and
// flushes after each one. It is not safe for concurrent use; callers
// serialize writes per connection.
type Writer struct {
	w *bufio.Writer
}

// NewWriter creates a Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteFrame encodes f as one line, writes it and flushes. It returns the
// number of bytes put on the wire, newline included.
func (w *Writer) WriteFrame(f Frame) (int, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return 0, fmt.Errorf("encode frame: %w", err)
	}

	buf := pool.GetBuffer(len(data) + 1)
	defer pool.PutBuffer(buf)
	*buf = append(*buf, data...)
	*buf = append(*buf, '\n')

	n, err := w.w.Write(*buf)
	if err != nil {
		return n, err
	}
	if err := w.w.Flush(); err != nil {
		return n, err
	}
	return n, nil
}
