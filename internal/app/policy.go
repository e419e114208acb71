package app

import (
	"github.com/dkeye/Interview/internal/core"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a peer whose send buffer is full.
type Policy interface {
	OnBackPressure(room core.RoomService, peer *core.Endpoint) BackpressureAction
}

type DropPolicy struct{}

func (DropPolicy) OnBackPressure(core.RoomService, *core.Endpoint) BackpressureAction {
	return DropFrame
}

type KickPolicy struct{}

func (KickPolicy) OnBackPressure(core.RoomService, *core.Endpoint) BackpressureAction {
	return KickMember
}

func PolicyByName(name string) Policy {
	if name == "kick" {
		return KickPolicy{}
	}
	return DropPolicy{}
}
