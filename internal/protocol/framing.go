package protocol

import (
	"bufio"
	"io"
)

// LineReader splits a byte stream into newline-delimited frames with a hard
// per-frame byte cap. A frame whose raw length, terminator included, reaches
// the cap is rejected with FrameTooLargeError; the remainder of the oversize
// line is consumed so the stream stays in sync and reading can continue.
type LineReader struct {
	r   *bufio.Reader
	max int
}

// NewLineReader wraps r with the given frame cap. The internal buffer is
// sized to the cap so a conforming frame never needs a second read.
func NewLineReader(r io.Reader, max int) *LineReader {
	size := max
	if size < 16 {
		size = 16
	}
	return &LineReader{
		r:   bufio.NewReaderSize(r, size),
		max: max,
	}
}

// ReadFrame returns the next frame without its trailing newline. At EOF a
// non-empty partial line is returned as a final frame; an empty read returns
// io.EOF.
func (lr *LineReader) ReadFrame() (string, error) {
	var (
		buf  []byte
		size int
	)
	for {
		chunk, err := lr.r.ReadSlice('\n')
		size += len(chunk)
		if size >= lr.max {
			extra, _ := lr.discard(err)
			return "", &FrameTooLargeError{Size: size + extra, Max: lr.max}
		}
		buf = append(buf, chunk...)

		switch err {
		case nil:
			// Complete line; strip the terminator.
			return string(buf[:len(buf)-1]), nil
		case bufio.ErrBufferFull:
			continue
		case io.EOF:
			if len(buf) == 0 {
				return "", io.EOF
			}
			return string(buf), nil
		default:
			return "", err
		}
	}
}

// discard consumes the rest of an oversize line so the next frame starts
// clean. lastErr is the error from the read that crossed the cap.
func (lr *LineReader) discard(lastErr error) (int, error) {
	if lastErr == nil || lastErr == io.EOF {
		// The terminator (or EOF) was already reached.
		return 0, nil
	}
	var total int
	for {
		chunk, err := lr.r.ReadSlice('\n')
		total += len(chunk)
		switch err {
		case nil, io.EOF:
			return total, nil
		case bufio.ErrBufferFull:
			continue
		default:
			return total, err
		}
	}
}
