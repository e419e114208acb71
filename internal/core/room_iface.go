package core

import (
	"github.com/dkeye/Interview/internal/domain"
)

type EndpointID string

// Endpoint is one registered signaling connection for (session, role).
type Endpoint struct {
	ID       EndpointID
	Identity domain.Identity
	Conn     SignalConnection
}

// RoomService holds at most one endpoint per role.
// It never closes adapter-owned resources.
type RoomService interface {
	Session() domain.SessionID
	// Attach registers ep, returning the endpoint it replaced, if any.
	Attach(ep *Endpoint) (evicted *Endpoint)
	// Detach removes ep only if it is still the registered endpoint for its role.
	Detach(ep *Endpoint) bool
	// Remove unregisters whatever endpoint holds role.
	Remove(role domain.Role) *Endpoint
	Get(role domain.Role) (*Endpoint, bool)
	Roles() []domain.Role
	Empty() bool
}

type RoomInfo struct {
	Session domain.SessionID `json:"session_id"`
	Roles   []domain.Role    `json:"roles"`
}

type RoomManager interface {
	GetOrCreate(id domain.SessionID) RoomService
	Get(id domain.SessionID) (RoomService, bool)
	// Attach registers ep in its session's room, creating the room if needed.
	// It is serialized with StopRoom so an endpoint never lands in a dropped room.
	Attach(ep *Endpoint) (room RoomService, evicted *Endpoint)
	List() []RoomInfo
	// StopRoom drops the room if it has no endpoints left.
	StopRoom(id domain.SessionID)
}
