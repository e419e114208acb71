// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"fmt"
)

const MaxSessionIDLen = 64

var (
	ErrUnknownRole    = errors.New("invalid role")
	ErrSessionIDEmpty = errors.New("session id empty")
	ErrSessionIDLong  = errors.New("session id too long")
)

type SessionID string

type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleCandidate   Role = "candidate"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleInterviewer, RoleCandidate:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Peer returns the opposite side of the two-party session.
func (r Role) Peer() Role {
	if r == RoleInterviewer {
		return RoleCandidate
	}
	return RoleInterviewer
}

// Identity is fixed at room entry and never reassigned.
type Identity struct {
	Session SessionID
	Role    Role
}

func NewIdentity(session, role string) (Identity, error) {
	if session == "" {
		return Identity{}, ErrSessionIDEmpty
	}
	if len(session) > MaxSessionIDLen {
		return Identity{}, ErrSessionIDLong
	}
	r, err := ParseRole(role)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Session: SessionID(session), Role: r}, nil
}

func (id Identity) String() string { return string(id.Session) + "/" + string(id.Role) }
