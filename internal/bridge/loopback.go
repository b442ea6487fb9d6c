package bridge

// Loopback is an in-memory FIFO connection used by the replay engine to feed
// the market the same message vocabulary the live bridge carries. It is not
// safe for concurrent use; replay runs single-threaded.
type Loopback struct {
	pending []string
}

func NewLoopback() *Loopback {
	return &Loopback{}
}

func (l *Loopback) Send(message string) error {
	l.Push(message)
	return nil
}

// Push enqueues a message for the next Receive.
func (l *Loopback) Push(message string) {
	l.pending = append(l.pending, message)
}

func (l *Loopback) Receive() (string, bool) {
	if len(l.pending) == 0 {
		return "", false
	}
	message := l.pending[0]
	l.pending = l.pending[1:]
	return message, true
}

func (l *Loopback) Len() int {
	return len(l.pending)
}
