package peerpump

import (
	"errors"
	"sync"
	"testing"
)

// recordingObserver collects events and forwards them to buffered channels,
// dropping the forward when a channel is full.
type recordingObserver struct {
	mu       sync.Mutex
	received []Message
	sent     []Message
	errs     []error

	receivedCh chan Message
	sentCh     chan Message
	errCh      chan error
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		receivedCh: make(chan Message, 256),
		sentCh:     make(chan Message, 256),
		errCh:      make(chan error, 256),
	}
}

func (o *recordingObserver) OnReceived(peer string, msg Message) {
	o.mu.Lock()
	o.received = append(o.received, msg)
	o.mu.Unlock()
	select {
	case o.receivedCh <- msg:
	default:
	}
}

func (o *recordingObserver) OnSent(peer string, msg Message) {
	o.mu.Lock()
	o.sent = append(o.sent, msg)
	o.mu.Unlock()
	select {
	case o.sentCh <- msg:
	default:
	}
}

func (o *recordingObserver) OnError(peer string, err error) {
	o.mu.Lock()
	o.errs = append(o.errs, err)
	o.mu.Unlock()
	select {
	case o.errCh <- err:
	default:
	}
}

func (o *recordingObserver) errList() []error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]error(nil), o.errs...)
}

func TestLogObserver(t *testing.T) {
	mock := &mockLogger{}
	observer := NewLogObserver(mock)

	observer.OnReceived("peer", Message{Key: "temperature", Value: 20})
	if entry := mock.last(); entry.level != "info" || entry.msg != "received" {
		t.Errorf("OnReceived logged %+v", entry)
	}

	observer.OnSent("peer", Message{Key: "temperature", Value: 21})
	if entry := mock.last(); entry.level != "info" || entry.msg != "sent" {
		t.Errorf("OnSent logged %+v", entry)
	}

	observer.OnError("peer", errors.New("boom"))
	if entry := mock.last(); entry.level != "warn" || entry.msg != "connection error" {
		t.Errorf("OnError logged %+v", entry)
	}
}

func TestNewLogObserver_NilLogger(t *testing.T) {
	observer := NewLogObserver(nil)
	if observer.logger == nil {
		t.Fatal("logger should default to slog")
	}
}

func TestObserverFuncs_NilFields(t *testing.T) {
	var f ObserverFuncs

	// None of these should panic
	f.OnReceived("peer", Message{})
	f.OnSent("peer", Message{})
	f.OnError("peer", errors.New("boom"))
}

func TestMultiObserver(t *testing.T) {
	a := newRecordingObserver()
	b := newRecordingObserver()
	m := MultiObserver{a, b}

	msg := Message{Key: "temperature", Value: 20}
	m.OnReceived("peer", msg)
	m.OnSent("peer", msg)
	m.OnError("peer", errors.New("boom"))

	for i, o := range []*recordingObserver{a, b} {
		if len(o.received) != 1 || len(o.sent) != 1 || len(o.errList()) != 1 {
			t.Errorf("observer %d got received=%d sent=%d errors=%d, want 1 each",
				i, len(o.received), len(o.sent), len(o.errList()))
		}
	}
}
