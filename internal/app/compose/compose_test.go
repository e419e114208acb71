package compose

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/dkeye/Interview/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(id string, w, h int, c color.RGBA) *media.VideoBuffer {
	vb := media.NewVideoBuffer(id, w, h)
	vb.Write(func(dst *image.RGBA) {
		for i := 0; i < len(dst.Pix); i += 4 {
			dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = c.R, c.G, c.B, c.A
		}
	})
	return vb
}

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
)

func isColor(t *testing.T, img *image.RGBA, x, y int, want color.RGBA) {
	t.Helper()
	got := img.RGBAAt(x, y)
	assert.InDelta(t, want.R, got.R, 8, "R at %d,%d", x, y)
	assert.InDelta(t, want.G, got.G, 8, "G at %d,%d", x, y)
	assert.InDelta(t, want.B, got.B, 8, "B at %d,%d", x, y)
}

func hasWhite(img *image.RGBA, r image.Rectangle) bool {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := img.RGBAAt(x, y)
			if c.R > 200 && c.G > 200 && c.B > 200 {
				return true
			}
		}
	}
	return false
}

func TestRenderLayout(t *testing.T) {
	remoteVideo := solid("remote", 64, 36, red)
	local := media.NewStream("local", solid("local", 64, 36, green))
	remote := media.NewStream("remote", remoteVideo)

	p, err := New(Config{Width: 320, Height: 180, FPS: 30}, local, remote)
	require.NoError(t, err)

	dst := image.NewRGBA(image.Rect(0, 0, 320, 180))
	p.render(dst, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	inset := insetRect(dst.Bounds())
	assert.Equal(t, image.Rect(220, 115, 300, 160), inset)

	isColor(t, dst, 100, 100, red)
	isColor(t, dst, inset.Min.X+inset.Dx()/2, inset.Min.Y+inset.Dy()/2, green)
	isColor(t, dst, 310, 170, red)
	assert.True(t, hasWhite(dst, image.Rect(stampX, stampY-13, stampX+140, stampY+3)), "timestamp drawn")
}

func TestRenderFallsBackWhenRemoteEnds(t *testing.T) {
	remoteVideo := solid("remote", 64, 36, red)
	local := media.NewStream("local", solid("local", 64, 36, green))
	remote := media.NewStream("remote", remoteVideo)

	p, err := New(Config{Width: 320, Height: 180}, local, remote)
	require.NoError(t, err)

	remoteVideo.End()
	dst := image.NewRGBA(image.Rect(0, 0, 320, 180))
	p.render(dst, time.Now())

	isColor(t, dst, 100, 100, color.RGBA{A: 255})
	inset := insetRect(dst.Bounds())
	isColor(t, dst, inset.Min.X+5, inset.Min.Y+5, green)
}

func TestRenderWithoutRemote(t *testing.T) {
	local := media.NewStream("local", solid("local", 64, 36, green))
	p, err := New(Config{Width: 320, Height: 180}, local, nil)
	require.NoError(t, err)

	dst := image.NewRGBA(image.Rect(0, 0, 320, 180))
	p.render(dst, time.Now())
	isColor(t, dst, 100, 100, color.RGBA{A: 255})
}

func TestNewRequiresLocal(t *testing.T) {
	_, err := New(Config{}, nil, nil)
	assert.Error(t, err)
}

func TestAudioSelection(t *testing.T) {
	la := media.NewAudioBuffer("local-audio", 0)
	ra := media.NewAudioBuffer("remote-audio", 0)
	lv := media.NewVideoBuffer("local-video", 4, 4)

	t.Run("both sides are mixed", func(t *testing.T) {
		p, err := New(Config{}, media.NewStream("l", lv, la), media.NewStream("r", ra))
		require.NoError(t, err)
		as := p.Stream().AudioTracks()
		require.Len(t, as, 1)
		assert.Equal(t, "composed-audio", as[0].ID())
	})

	t.Run("one side passes through", func(t *testing.T) {
		p, err := New(Config{}, media.NewStream("l", lv), media.NewStream("r", ra))
		require.NoError(t, err)
		as := p.Stream().AudioTracks()
		require.Len(t, as, 1)
		assert.Equal(t, "remote-audio", as[0].ID())

		p.Stream().Stop()
		assert.True(t, ra.Live(), "source track survives the composed stream")
	})

	t.Run("local audio alone is still mixed", func(t *testing.T) {
		p, err := New(Config{}, media.NewStream("l", lv, la), media.NewStream("r"))
		require.NoError(t, err)
		as := p.Stream().AudioTracks()
		require.Len(t, as, 1)
		assert.Equal(t, "composed-audio", as[0].ID())
	})

	t.Run("no audio means video only", func(t *testing.T) {
		p, err := New(Config{}, media.NewStream("l", lv), nil)
		require.NoError(t, err)
		assert.Empty(t, p.Stream().AudioTracks())
		assert.Len(t, p.Stream().VideoTracks(), 1)
	})
}

func TestPipelineMixesAndRenders(t *testing.T) {
	la := media.NewAudioBuffer("local-audio", 0)
	ra := media.NewAudioBuffer("remote-audio", 0)
	local := media.NewStream("local", solid("local", 16, 9, green), la)
	remote := media.NewStream("remote", solid("remote", 16, 9, red), ra)

	block := func(v int16) []int16 {
		b := make([]int16, media.SamplesPerTick)
		for i := range b {
			b[i] = v
		}
		return b
	}
	la.WriteSamples(block(1000))
	ra.WriteSamples(block(2000))

	p, err := New(Config{Width: 160, Height: 90, FPS: 50}, local, remote)
	require.NoError(t, err)
	out := p.Start(context.Background())

	mixed := out.FirstAudio()
	buf := make([]int16, media.SamplesPerTick)
	require.Eventually(t, func() bool {
		return mixed.ReadSamples(buf[:1]) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int16(3000), buf[0])

	video := out.FirstVideo()
	require.Eventually(t, func() bool { return video.View(func(*image.RGBA) {}) }, time.Second, 5*time.Millisecond)
	video.View(func(img *image.RGBA) { isColor(t, img, 40, 40, red) })

	out.Stop()
	assert.False(t, video.Live())
	assert.True(t, la.Live())
	assert.True(t, ra.Live())
}

func TestPipelineMixesRemoteAudioAddedAfterStart(t *testing.T) {
	la := media.NewAudioBuffer("local-audio", 0)
	local := media.NewStream("local", solid("local", 16, 9, green), la)
	remote := media.NewStream("remote")

	p, err := New(Config{Width: 160, Height: 90, FPS: 50}, local, remote)
	require.NoError(t, err)
	out := p.Start(context.Background())
	defer out.Stop()

	ra := media.NewAudioBuffer("remote-audio", 0)
	block := make([]int16, media.SamplesPerTick)
	for i := range block {
		block[i] = 2000
	}
	ra.WriteSamples(block)
	remote.AddTrack(ra)

	mixed := out.FirstAudio()
	require.NotNil(t, mixed)
	buf := make([]int16, 1)
	require.Eventually(t, func() bool {
		return mixed.ReadSamples(buf) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int16(2000), buf[0])
}

func TestMixSaturates(t *testing.T) {
	dst := make([]int16, 3)
	mix(dst, []int16{30000, -30000, 5}, []int16{10000, -10000, 6})
	assert.Equal(t, []int16{math.MaxInt16, math.MinInt16, 11}, dst)
}
