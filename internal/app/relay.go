package app

import (
	"encoding/json"

	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Relay routes opaque signaling frames between the two roles of a session.
// It keeps no state beyond the currently connected endpoints.
type Relay struct {
	Rooms  core.RoomManager
	Policy Policy
}

func NewRelay(rooms core.RoomManager, policy Policy) *Relay {
	if policy == nil {
		policy = DropPolicy{}
	}
	return &Relay{Rooms: rooms, Policy: policy}
}

// Connect registers conn under id. A previous endpoint for the same
// (session, role) is evicted and its transport closed; the peer is not told.
func (r *Relay) Connect(id domain.Identity, conn core.SignalConnection) *core.Endpoint {
	ep := &core.Endpoint{
		ID:       core.EndpointID(uuid.NewString()),
		Identity: id,
		Conn:     conn,
	}
	if _, old := r.Rooms.Attach(ep); old != nil {
		log.Info().Str("module", "relay").Str("session", string(id.Session)).Str("role", string(id.Role)).Str("evicted", string(old.ID)).Msg("endpoint replaced")
		old.Conn.Close()
	}
	return ep
}

// Send delivers frame to the other role of the session. With no peer
// registered the frame is dropped; that is not an error.
func (r *Relay) Send(session domain.SessionID, from domain.Role, frame core.Frame) bool {
	room, ok := r.Rooms.Get(session)
	if !ok {
		return false
	}
	peer, ok := room.Get(from.Peer())
	if !ok {
		log.Debug().Str("module", "relay").Str("session", string(session)).Str("from", string(from)).Msg("no peer, dropped")
		return false
	}
	if err := peer.Conn.TrySend(frame); err != nil {
		switch r.Policy.OnBackPressure(room, peer) {
		case KickMember:
			log.Warn().Err(err).Str("module", "relay").Str("session", string(session)).Str("role", string(peer.Identity.Role)).Msg("peer kicked on backpressure")
			peer.Conn.Close()
		case DropFrame, NoAction:
			log.Warn().Err(err).Str("module", "relay").Str("session", string(session)).Str("role", string(peer.Identity.Role)).Msg("frame dropped on backpressure")
		}
		return false
	}
	return true
}

// Disconnect removes whatever endpoint holds (session, role) and tells the peer.
func (r *Relay) Disconnect(session domain.SessionID, role domain.Role) {
	room, ok := r.Rooms.Get(session)
	if !ok {
		return
	}
	if ep := room.Remove(role); ep != nil {
		r.notifyLeft(room, role)
	}
	r.Rooms.StopRoom(session)
}

// Leave is Disconnect for a specific endpoint: it is a no-op when ep has
// already been replaced, so an evicted socket cannot unregister its successor.
func (r *Relay) Leave(ep *core.Endpoint) {
	room, ok := r.Rooms.Get(ep.Identity.Session)
	if !ok {
		return
	}
	if room.Detach(ep) {
		r.notifyLeft(room, ep.Identity.Role)
	}
	r.Rooms.StopRoom(ep.Identity.Session)
}

func (r *Relay) notifyLeft(room core.RoomService, role domain.Role) {
	b, err := json.Marshal(domain.DisconnectedEnvelope(role))
	if err != nil {
		return
	}
	r.Send(room.Session(), role, b)
}
