package core

import (
	"context"

	"github.com/dkeye/Interview/internal/domain"
	"github.com/dkeye/Interview/internal/media"
	"github.com/pion/webrtc/v4"
)

// RemoteTrack is published once per track the peer adds.
type RemoteTrack struct {
	Track    *webrtc.TrackRemote
	Receiver *webrtc.RTPReceiver
}

// LocalMedia is what one capture yields: decoded tracks for composition and
// encoded tracks for the peer connection. Stopping Stream releases the devices.
type LocalMedia struct {
	Stream   *media.Stream
	Outbound []webrtc.TrackLocal
}

// MediaConnection is one participant's peer connection, negotiated over a Signaler.
type MediaConnection interface {
	// Initialize attaches the local tracks and starts negotiating. It may be
	// called once; onStateChange sees every transition.
	Initialize(ctx context.Context, local []webrtc.TrackLocal, onStateChange func(domain.ConnState)) error
	// Tracks is closed when negotiation stops.
	Tracks() <-chan RemoteTrack
	Done() <-chan struct{}
	State() domain.ConnState
	Err() error
	// Close releases the connection. Safe to call more than once.
	Close()
}
