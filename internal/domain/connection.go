package domain

// ConnState is a participant's view of its peer connection.
type ConnState int

const (
	ConnNew ConnState = iota
	ConnConnecting
	ConnConnected
	ConnDisconnected
	ConnFailed
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnNew:
		return "new"
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnDisconnected:
		return "disconnected"
	case ConnFailed:
		return "failed"
	case ConnClosed:
		return "closed"
	}
	return "unknown"
}

// Terminal reports whether no further negotiation happens in s.
func (s ConnState) Terminal() bool {
	return s == ConnDisconnected || s == ConnFailed || s == ConnClosed
}
