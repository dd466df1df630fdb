package peerpump

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Wire format constants.
const (
	// Delimiter terminates every frame on the wire.
	Delimiter = ','
	// FieldSeparator separates the fields inside a frame.
	FieldSeparator = ';'
	// Terminator is the fixed last field of every frame.
	Terminator = "end"
)

var (
	// ErrMalformed is matched by every *DecodeError.
	ErrMalformed = errors.New("malformed frame")
	// ErrInvalidField is returned when a message cannot be encoded without
	// breaking the framing.
	ErrInvalidField = errors.New("invalid message field")
)

// Message is a single telemetry reading transmitted over a connection.
type Message struct {
	Key   string
	Value float64
}

// DecodeError describes a frame that could not be turned into a Message.
type DecodeError struct {
	Frame  string
	Reason string
}

func (e *DecodeError) Error() string {
	return "malformed frame " + strconv.Quote(e.Frame) + ": " + e.Reason
}

// Unwrap lets errors.Is(err, ErrMalformed) match.
func (e *DecodeError) Unwrap() error {
	return ErrMalformed
}

// Codec is the interface for message encoding and decoding.
//
// Framing is done by the connection: Decode always receives one complete
// frame including its trailing Delimiter.
type Codec interface {
	// Decode turns one frame into a Message.
	Decode(frame []byte) (Message, error)
	// Encode turns a Message into a frame ready for transmission.
	Encode(Message) ([]byte, error)
}

// TextCodec implements the "key;value;end," text format.
type TextCodec struct{}

// Encode produces "{key};{value};end,".
func (TextCodec) Encode(msg Message) ([]byte, error) {
	if err := validateKey(msg.Key); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, len(msg.Key)+len(Terminator)+24)
	buf = append(buf, msg.Key...)
	buf = append(buf, FieldSeparator)
	buf = strconv.AppendFloat(buf, msg.Value, 'f', -1, 64)
	buf = append(buf, FieldSeparator)
	buf = append(buf, Terminator...)
	buf = append(buf, Delimiter)
	return buf, nil
}

// validateKey rejects keys that would not survive a round trip through the
// text format.
func validateKey(key string) error {
	if strings.ContainsAny(key, string([]byte{Delimiter, FieldSeparator})) {
		return errors.Wrapf(ErrInvalidField, "key %q contains a delimiter", key)
	}
	if strings.TrimSpace(key) != key {
		return errors.Wrapf(ErrInvalidField, "key %q has surrounding whitespace", key)
	}
	return nil
}

// Decode parses a frame. Invalid UTF-8 is replaced rather than rejected.
func (TextCodec) Decode(frame []byte) (Message, error) {
	text := strings.ToValidUTF8(string(frame), "�")
	text = strings.TrimSuffix(text, string(Delimiter))
	text = strings.TrimSpace(text)

	fields := strings.Split(text, string(FieldSeparator))
	if len(fields) != 3 {
		return Message{}, &DecodeError{Frame: text, Reason: "expected 3 fields, got " + strconv.Itoa(len(fields))}
	}
	if fields[2] != Terminator {
		return Message{}, &DecodeError{Frame: text, Reason: "missing terminator"}
	}

	value, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Message{}, &DecodeError{Frame: text, Reason: "invalid value " + strconv.Quote(fields[1])}
	}

	return Message{Key: fields[0], Value: value}, nil
}
