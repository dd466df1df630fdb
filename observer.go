package peerpump

// Observer receives connection events. It is the sink for decoded messages
// and the hook through which delivery and failures can be watched.
//
// Methods are called from the connection's loops and must not block.
type Observer interface {
	// OnReceived is called for every decoded inbound message.
	OnReceived(peer string, msg Message)
	// OnSent is called after a message has been written and flushed.
	OnSent(peer string, msg Message)
	// OnError is called for decode errors, dropped messages and the error
	// that ended a connection.
	OnError(peer string, err error)
}

// LogObserver writes every event to a Logger.
type LogObserver struct {
	logger Logger
}

// NewLogObserver returns an Observer that logs through logger.
// A nil logger selects the default slog logger.
func NewLogObserver(logger Logger) *LogObserver {
	if logger == nil {
		logger = defaultLogger()
	}
	return &LogObserver{logger: logger}
}

// OnReceived logs msg at info level.
func (o *LogObserver) OnReceived(peer string, msg Message) {
	o.logger.Info("received", "peer", peer, "key", msg.Key, "value", msg.Value)
}

// OnSent logs msg at info level.
func (o *LogObserver) OnSent(peer string, msg Message) {
	o.logger.Info("sent", "peer", peer, "key", msg.Key, "value", msg.Value)
}

// OnError logs err at warn level.
func (o *LogObserver) OnError(peer string, err error) {
	o.logger.Warn("connection error", "peer", peer, "error", err)
}

// ObserverFuncs adapts plain functions to an Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Received func(peer string, msg Message)
	Sent     func(peer string, msg Message)
	Error    func(peer string, err error)
}

// OnReceived calls f.Received if set.
func (f ObserverFuncs) OnReceived(peer string, msg Message) {
	if f.Received != nil {
		f.Received(peer, msg)
	}
}

// OnSent calls f.Sent if set.
func (f ObserverFuncs) OnSent(peer string, msg Message) {
	if f.Sent != nil {
		f.Sent(peer, msg)
	}
}

// OnError calls f.Error if set.
func (f ObserverFuncs) OnError(peer string, err error) {
	if f.Error != nil {
		f.Error(peer, err)
	}
}

// MultiObserver fans every event out to each observer in order.
type MultiObserver []Observer

// OnReceived forwards msg to every observer.
func (m MultiObserver) OnReceived(peer string, msg Message) {
	for _, o := range m {
		o.OnReceived(peer, msg)
	}
}

// OnSent forwards msg to every observer.
func (m MultiObserver) OnSent(peer string, msg Message) {
	for _, o := range m {
		o.OnSent(peer, msg)
	}
}

// OnError forwards err to every observer.
func (m MultiObserver) OnError(peer string, err error) {
	for _, o := range m {
		o.OnError(peer, err)
	}
}
