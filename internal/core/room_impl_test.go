package core

import (
	"testing"

	"github.com/dkeye/Interview/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopConn struct{}

func (nopConn) TrySend(Frame) error { return nil }
func (nopConn) Close()              {}

func endpoint(id string, role domain.Role) *Endpoint {
	return &Endpoint{
		ID:       EndpointID(id),
		Identity: domain.Identity{Session: "s1", Role: role},
		Conn:     nopConn{},
	}
}

func TestRoomAttachReplacesSameRole(t *testing.T) {
	r := NewRoomService("s1")

	first := endpoint("a", domain.RoleInterviewer)
	assert.Nil(t, r.Attach(first))

	second := endpoint("b", domain.RoleInterviewer)
	evicted := r.Attach(second)
	require.NotNil(t, evicted)
	assert.Equal(t, first.ID, evicted.ID)

	cur, ok := r.Get(domain.RoleInterviewer)
	require.True(t, ok)
	assert.Equal(t, second.ID, cur.ID)
	assert.Equal(t, []domain.Role{domain.RoleInterviewer}, r.Roles())
}

func TestRoomDetachIgnoresStaleEndpoint(t *testing.T) {
	r := NewRoomService("s1")
	stale := endpoint("a", domain.RoleCandidate)
	fresh := endpoint("b", domain.RoleCandidate)
	r.Attach(stale)
	r.Attach(fresh)

	assert.False(t, r.Detach(stale))
	_, ok := r.Get(domain.RoleCandidate)
	assert.True(t, ok)

	assert.True(t, r.Detach(fresh))
	assert.True(t, r.Empty())
}

func TestRoomRemove(t *testing.T) {
	r := NewRoomService("s1")
	assert.Nil(t, r.Remove(domain.RoleCandidate))

	r.Attach(endpoint("a", domain.RoleCandidate))
	r.Attach(endpoint("b", domain.RoleInterviewer))
	assert.Equal(t, []domain.Role{domain.RoleCandidate, domain.RoleInterviewer}, r.Roles())

	ep := r.Remove(domain.RoleCandidate)
	require.NotNil(t, ep)
	assert.Equal(t, EndpointID("a"), ep.ID)
	assert.False(t, r.Empty())
}
