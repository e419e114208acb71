package core

import (
	"sort"
	"sync"

	"github.com/dkeye/Interview/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	session domain.SessionID
	mu      sync.RWMutex
	byRole  map[domain.Role]*Endpoint
}

func NewRoomService(session domain.SessionID) RoomService {
	return &roomImpl{
		session: session,
		byRole:  make(map[domain.Role]*Endpoint, 2),
	}
}

func (r *roomImpl) Session() domain.SessionID { return r.session }

func (r *roomImpl) Attach(ep *Endpoint) *Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	role := ep.Identity.Role
	old := r.byRole[role]
	r.byRole[role] = ep
	log.Info().Str("module", "core.room").Str("session", string(r.session)).Str("role", string(role)).Str("endpoint", string(ep.ID)).Bool("replaced", old != nil).Msg("endpoint attached")
	return old
}

func (r *roomImpl) Detach(ep *Endpoint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	role := ep.Identity.Role
	cur, ok := r.byRole[role]
	if !ok || cur.ID != ep.ID {
		return false
	}
	delete(r.byRole, role)
	log.Info().Str("module", "core.room").Str("session", string(r.session)).Str("role", string(role)).Str("endpoint", string(ep.ID)).Msg("endpoint detached")
	return true
}

func (r *roomImpl) Remove(role domain.Role) *Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep, ok := r.byRole[role]
	if !ok {
		return nil
	}
	delete(r.byRole, role)
	log.Info().Str("module", "core.room").Str("session", string(r.session)).Str("role", string(role)).Msg("endpoint removed")
	return ep
}

func (r *roomImpl) Get(role domain.Role) (*Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ep, ok := r.byRole[role]
	return ep, ok
}

func (r *roomImpl) Roles() []domain.Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Role, 0, len(r.byRole))
	for role := range r.byRole {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *roomImpl) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byRole) == 0
}
