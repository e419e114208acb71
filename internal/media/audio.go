package media

import (
	"sync"
	"sync/atomic"
)

// AudioBuffer is a bounded FIFO of mono 48kHz samples. When full, the oldest
// samples are overwritten so a stalled reader never blocks the producer.
type AudioBuffer struct {
	id string

	mu    sync.Mutex
	ring  []int16
	start int
	size  int

	ended atomic.Bool
}

func NewAudioBuffer(id string, capacity int) *AudioBuffer {
	if capacity <= 0 {
		capacity = SampleRate
	}
	return &AudioBuffer{id: id, ring: make([]int16, capacity)}
}

func (b *AudioBuffer) ID() string { return b.id }
func (b *AudioBuffer) Kind() Kind { return KindAudio }
func (b *AudioBuffer) Live() bool { return !b.ended.Load() }
func (b *AudioBuffer) Stop()      { b.ended.Store(true) }
func (b *AudioBuffer) End()       { b.ended.Store(true) }

func (b *AudioBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *AudioBuffer) WriteSamples(samples []int16) {
	if b.ended.Load() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.ring)
	for _, s := range samples {
		end := (b.start + b.size) % n
		b.ring[end] = s
		if b.size < n {
			b.size++
		} else {
			b.start = (b.start + 1) % n
		}
	}
}

func (b *AudioBuffer) ReadSamples(buf []int16) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.ring)
	count := min(len(buf), b.size)
	for i := 0; i < count; i++ {
		buf[i] = b.ring[(b.start+i)%n]
	}
	b.start = (b.start + count) % n
	b.size -= count
	return count
}
