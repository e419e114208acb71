package rtc

import "github.com/dkeye/Interview/internal/domain"

// canTransition encodes the lifecycle: new, connecting, connected and
// disconnected only move forward; failed is reachable from any live state;
// closed from everything but itself.
func canTransition(from, to domain.ConnState) bool {
	switch {
	case from == domain.ConnClosed:
		return false
	case to == domain.ConnClosed:
		return true
	case from.Terminal():
		return false
	case to == domain.ConnFailed:
		return true
	default:
		return to > from
	}
}
