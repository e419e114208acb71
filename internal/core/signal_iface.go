package core

import (
	"context"

	"github.com/dkeye/Interview/internal/domain"
)

// Frame is a raw signaling payload.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Signaler is the client side of the relay: one session, one role.
type Signaler interface {
	Send(ctx context.Context, env domain.Envelope) error
	// Incoming is closed when the relay connection ends.
	Incoming() <-chan domain.Envelope
	Close()
}
