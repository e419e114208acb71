// Package media holds the decoded media model shared by capture, composition
// and recording. Tracks are written by exactly one producer each.
package media

import (
	"image"
	"sync"
)

type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

const (
	SampleRate = 48000
	// SamplesPerTick is one 20ms block of mono PCM.
	SamplesPerTick = SampleRate / 50
)

type Track interface {
	ID() string
	Kind() Kind
	// Live reports whether the producer is still delivering data.
	Live() bool
	Stop()
}

type VideoTrack interface {
	Track
	Size() (w, h int)
	// View calls fn with the latest frame; it returns false before the first frame.
	// fn must not retain img.
	View(fn func(img *image.RGBA)) bool
}

type AudioTrack interface {
	Track
	// ReadSamples drains up to len(buf) buffered samples.
	ReadSamples(buf []int16) int
}

// Stream is an ordered set of tracks that may grow over time.
type Stream struct {
	id string

	mu      sync.RWMutex
	tracks  []Track
	onStop  []func()
	stopped bool
}

func NewStream(id string, tracks ...Track) *Stream {
	return &Stream{id: id, tracks: tracks}
}

func (s *Stream) ID() string { return s.id }

func (s *Stream) AddTrack(t Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append(s.tracks, t)
}

func (s *Stream) Tracks() []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *Stream) VideoTracks() []VideoTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []VideoTrack
	for _, t := range s.tracks {
		if v, ok := t.(VideoTrack); ok {
			out = append(out, v)
		}
	}
	return out
}

func (s *Stream) AudioTracks() []AudioTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []AudioTrack
	for _, t := range s.tracks {
		if a, ok := t.(AudioTrack); ok {
			out = append(out, a)
		}
	}
	return out
}

// FirstVideo returns the first video track, or nil.
func (s *Stream) FirstVideo() VideoTrack {
	if vs := s.VideoTracks(); len(vs) > 0 {
		return vs[0]
	}
	return nil
}

// FirstAudio returns the first audio track, or nil.
func (s *Stream) FirstAudio() AudioTrack {
	if as := s.AudioTracks(); len(as) > 0 {
		return as[0]
	}
	return nil
}

// Active reports whether any track is still live.
func (s *Stream) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tracks {
		if t.Live() {
			return true
		}
	}
	return false
}

// OnStop registers a hook run once by Stop, after the tracks are stopped.
func (s *Stream) OnStop(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStop = append(s.onStop, fn)
}

// Stop ends every track and runs the stop hooks. Safe to call more than once.
func (s *Stream) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	tracks := s.tracks
	hooks := s.onStop
	s.mu.Unlock()

	for _, t := range tracks {
		t.Stop()
	}
	for _, fn := range hooks {
		fn()
	}
}
