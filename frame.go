package peerpump

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// ErrFrameTooLarge is returned when a peer sends more than the maximum frame
// size without a delimiter.
var ErrFrameTooLarge = errors.New("frame too large")

// frameReader splits a byte stream into Delimiter-terminated frames.
// Frames split across several reads are reassembled; a frame may not
// grow beyond max bytes, delimiter included.
type frameReader struct {
	r    *bufio.Reader
	max  int
	buf  []byte
	done bool // buf holds a frame already returned
}

// maxFrameBuffer bounds the read buffer for very large frame limits; longer
// frames are accumulated across several buffer fills.
const maxFrameBuffer = 64 * 1024

func newFrameReader(r io.Reader, max int) *frameReader {
	// The buffer is no larger than max so an oversized frame is detected as
	// soon as more than max bytes have arrived, not when a larger buffer fills.
	size := max
	if size > maxFrameBuffer {
		size = maxFrameBuffer
	}
	return &frameReader{
		r:   bufio.NewReaderSize(r, size),
		max: max,
	}
}

// next returns the next frame including its delimiter. The returned slice
// is only valid until the following call.
//
// io.EOF means the stream ended on a frame boundary. io.ErrUnexpectedEOF
// means it ended inside a frame, which is returned alongside the error.
// Any other read error, such as a deadline expiring, keeps the bytes read so
// far and the following call resumes the same frame.
func (f *frameReader) next() ([]byte, error) {
	if f.done {
		f.buf = f.buf[:0]
		f.done = false
	}
	for {
		chunk, err := f.r.ReadSlice(Delimiter)
		if len(f.buf)+len(chunk) > f.max {
			return nil, ErrFrameTooLarge
		}
		f.buf = append(f.buf, chunk...)

		switch {
		case err == nil:
			f.done = true
			return f.buf, nil
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF:
			f.done = true
			if len(f.buf) > 0 {
				return f.buf, io.ErrUnexpectedEOF
			}
			return nil, io.EOF
		default:
			return nil, err
		}
	}
}
