package media

import (
	"image"
	"sync"
	"sync/atomic"
)

// VideoBuffer holds the latest frame of one video track. The producer fills the
// back buffer without locking and publishes it by swapping under the lock.
type VideoBuffer struct {
	id   string
	w, h int

	mu    sync.RWMutex
	front *image.RGBA
	back  *image.RGBA
	ready bool

	ended atomic.Bool
}

func NewVideoBuffer(id string, w, h int) *VideoBuffer {
	r := image.Rect(0, 0, w, h)
	return &VideoBuffer{
		id:    id,
		w:     w,
		h:     h,
		front: image.NewRGBA(r),
		back:  image.NewRGBA(r),
	}
}

func (b *VideoBuffer) ID() string       { return b.id }
func (b *VideoBuffer) Kind() Kind       { return KindVideo }
func (b *VideoBuffer) Size() (w, h int) { return b.w, b.h }
func (b *VideoBuffer) Live() bool       { return !b.ended.Load() }
func (b *VideoBuffer) Stop()            { b.ended.Store(true) }
func (b *VideoBuffer) End()             { b.ended.Store(true) }

func (b *VideoBuffer) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ready
}

// Write lets the single producer fill the next frame. Frames written after End are dropped.
func (b *VideoBuffer) Write(fill func(dst *image.RGBA)) {
	if b.ended.Load() {
		return
	}
	fill(b.back)
	b.mu.Lock()
	b.front, b.back = b.back, b.front
	b.ready = true
	b.mu.Unlock()
}

// WritePix publishes a raw RGBA frame; short input is ignored.
func (b *VideoBuffer) WritePix(pix []byte) bool {
	if len(pix) < b.w*b.h*4 {
		return false
	}
	b.Write(func(dst *image.RGBA) { copy(dst.Pix, pix) })
	return true
}

func (b *VideoBuffer) View(fn func(img *image.RGBA)) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.ready {
		return false
	}
	fn(b.front)
	return true
}
