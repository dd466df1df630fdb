package peerpump

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestFrameReader_OneByteAtATime(t *testing.T) {
	stream := "temperature;20;end,temperature;21;end,"
	r := newFrameReader(iotest.OneByteReader(strings.NewReader(stream)), DefaultMaxFrameSize)

	var codec TextCodec
	var got []Message
	for {
		frame, err := r.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next failed: %v", err)
		}
		msg, err := codec.Decode(frame)
		if err != nil {
			t.Fatalf("Decode(%q) failed: %v", frame, err)
		}
		got = append(got, msg)
	}

	want := []Message{{Key: "temperature", Value: 20}, {Key: "temperature", Value: 21}}
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestFrameReader_IncludesDelimiter(t *testing.T) {
	r := newFrameReader(strings.NewReader("a;1;end,"), DefaultMaxFrameSize)

	frame, err := r.next()
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if string(frame) != "a;1;end," {
		t.Errorf("frame = %q", frame)
	}
}

func TestFrameReader_TooLarge(t *testing.T) {
	r := newFrameReader(strings.NewReader(strings.Repeat("x", 100)+","), 32)

	_, err := r.next()
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestFrameReader_TooLargeAcrossBuffers(t *testing.T) {
	// The frame spans several buffer fills before the limit is crossed.
	r := newFrameReader(strings.NewReader(strings.Repeat("x", 10000)+","), 8192)

	_, err := r.next()
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestFrameReader_ExactlyMax(t *testing.T) {
	frame := strings.Repeat("x", 31) + ","
	r := newFrameReader(strings.NewReader(frame), 32)

	got, err := r.next()
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if string(got) != frame {
		t.Errorf("frame = %q, want %q", got, frame)
	}
}

func TestFrameReader_LongFrameWithinLimit(t *testing.T) {
	frame := strings.Repeat("y", 6000) + ","
	r := newFrameReader(strings.NewReader(frame), 8192)

	got, err := r.next()
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if len(got) != len(frame) {
		t.Errorf("frame length = %d, want %d", len(got), len(frame))
	}
}

func TestFrameReader_PartialAtEOF(t *testing.T) {
	r := newFrameReader(strings.NewReader("a;1;end,b;2"), DefaultMaxFrameSize)

	if _, err := r.next(); err != nil {
		t.Fatalf("first next failed: %v", err)
	}

	partial, err := r.next()
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
	if string(partial) != "b;2" {
		t.Errorf("partial = %q, want %q", partial, "b;2")
	}
}

func TestFrameReader_EOF(t *testing.T) {
	r := newFrameReader(strings.NewReader(""), DefaultMaxFrameSize)

	if _, err := r.next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestFrameReader_ReadError(t *testing.T) {
	readErr := errors.New("read failed")
	r := newFrameReader(iotest.ErrReader(readErr), DefaultMaxFrameSize)

	if _, err := r.next(); err != readErr {
		t.Errorf("expected read error, got %v", err)
	}
}

// timeoutError is what a net.Conn returns when its read deadline expires.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// scriptedReader returns each step in turn: a chunk of data or an error.
type scriptedReader struct {
	steps []any
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	if len(r.steps) == 0 {
		return 0, io.EOF
	}
	step := r.steps[0]
	r.steps = r.steps[1:]
	if err, ok := step.(error); ok {
		return 0, err
	}
	return copy(p, step.(string)), nil
}

func TestFrameReader_ResumesAfterTimeout(t *testing.T) {
	r := newFrameReader(&scriptedReader{steps: []any{
		"temperature;2",
		timeoutError{},
		"0;end,humidity;5;end,",
	}}, DefaultMaxFrameSize)

	if _, err := r.next(); err != (timeoutError{}) {
		t.Fatalf("expected timeout, got %v", err)
	}

	frame, err := r.next()
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if string(frame) != "temperature;20;end," {
		t.Errorf("frame = %q, want %q", frame, "temperature;20;end,")
	}

	frame, err = r.next()
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if string(frame) != "humidity;5;end," {
		t.Errorf("frame = %q, want %q", frame, "humidity;5;end,")
	}
}
