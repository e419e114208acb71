package app

import (
	"sync"

	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
)

type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.SessionID]core.RoomService
}

func NewRoomManager() core.RoomManager {
	return &RoomManagerImpl{rooms: make(map[domain.SessionID]core.RoomService)}
}

func (f *RoomManagerImpl) GetOrCreate(id domain.SessionID) core.RoomService {
	f.mu.RLock()
	room, ok := f.rooms[id]
	f.mu.RUnlock()
	if ok {
		return room
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok = f.rooms[id]; ok {
		return room
	}
	room = core.NewRoomService(id)
	f.rooms[id] = room
	return room
}

func (f *RoomManagerImpl) Attach(ep *core.Endpoint) (core.RoomService, *core.Endpoint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := ep.Identity.Session
	room, ok := f.rooms[id]
	if !ok {
		room = core.NewRoomService(id)
		f.rooms[id] = room
	}
	return room, room.Attach(ep)
}

func (f *RoomManagerImpl) Get(id domain.SessionID) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[id]
	return room, ok
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for id, r := range f.rooms {
		out = append(out, core.RoomInfo{Session: id, Roles: r.Roles()})
	}
	return out
}

func (f *RoomManagerImpl) StopRoom(id domain.SessionID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok := f.rooms[id]; ok && room.Empty() {
		delete(f.rooms, id)
	}
}
