package compose

import (
	"context"
	"math"
	"time"

	"github.com/dkeye/Interview/internal/media"
)

const mixTick = 20 * time.Millisecond

// mixLoop sums local audio with the remote's first audio track, looked up
// on every tick.
func (p *Pipeline) mixLoop(ctx context.Context, local media.AudioTrack) error {
	ticker := time.NewTicker(mixTick)
	defer ticker.Stop()

	bufA := make([]int16, media.SamplesPerTick)
	bufB := make([]int16, media.SamplesPerTick)
	out := make([]int16, media.SamplesPerTick)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		na := readFull(local, bufA)
		nb := readFull(p.remoteAudio(), bufB)
		if na == 0 && nb == 0 {
			continue
		}
		mix(out, bufA, bufB)
		p.mixed.WriteSamples(out)
	}
}

func (p *Pipeline) remoteAudio() media.AudioTrack {
	if p.remote == nil {
		return nil
	}
	return p.remote.FirstAudio()
}

// readFull drains one tick of samples, zero-filling what the source lacks.
// t may be nil.
func readFull(t media.AudioTrack, buf []int16) int {
	n := 0
	if t != nil && t.Live() {
		n = t.ReadSamples(buf)
	}
	clear(buf[n:])
	return n
}

// mix sums a and b into dst, saturating at the int16 range.
func mix(dst, a, b []int16) {
	for i := range dst {
		s := int32(a[i]) + int32(b[i])
		switch {
		case s > math.MaxInt16:
			s = math.MaxInt16
		case s < math.MinInt16:
			s = math.MinInt16
		}
		dst[i] = int16(s)
	}
}
