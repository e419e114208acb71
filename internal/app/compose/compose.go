// Package compose merges the local and remote streams into one stream for
// single-file recording.
package compose

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/dkeye/Interview/internal/domain"
	"github.com/dkeye/Interview/internal/media"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/errgroup"
)

const (
	insetMargin = 20
	stampX      = 10
	stampY      = 30
	stampLayout = "2006-01-02 15:04:05"
)

type Config struct {
	Width  int
	Height int
	FPS    int
}

func (c Config) withDefaults() Config {
	if c.Width <= 0 {
		c.Width = 1280
	}
	if c.Height <= 0 {
		c.Height = 720
	}
	if c.FPS <= 0 {
		c.FPS = 30
	}
	return c
}

// Pipeline renders remote full-frame, local as a bottom-right inset and a
// clock into its own canvas at a fixed rate. Audio is mixed when both sides
// have it and passed through when only one does.
type Pipeline struct {
	cfg    Config
	local  *media.Stream
	remote *media.Stream

	video *media.VideoBuffer
	mixed *media.AudioBuffer
	out   *media.Stream

	now func() time.Time

	once   sync.Once
	cancel context.CancelFunc
	group  *errgroup.Group
}

// New fixes the output tracks from what the inputs carry right now. Remote
// tracks added later are still drawn and, when local audio exists, mixed.
// remote may be nil, in which case only local visuals are drawn.
func New(cfg Config, local, remote *media.Stream) (*Pipeline, error) {
	if local == nil {
		return nil, fmt.Errorf("%w: composition needs a local stream", domain.ErrInvalidState)
	}
	cfg = cfg.withDefaults()
	p := &Pipeline{
		cfg:    cfg,
		local:  local,
		remote: remote,
		video:  media.NewVideoBuffer("composed-video", cfg.Width, cfg.Height),
		now:    time.Now,
	}

	// Local audio is always mixed so remote audio decoded later still joins.
	tracks := []media.Track{p.video}
	switch {
	case local.FirstAudio() != nil:
		p.mixed = media.NewAudioBuffer("composed-audio", media.SampleRate)
		tracks = append(tracks, p.mixed)
	case remote != nil && remote.FirstAudio() != nil:
		tracks = append(tracks, borrowed{remote.FirstAudio()})
	}
	p.out = media.NewStream("composed", tracks...)
	p.out.OnStop(p.Stop)
	return p, nil
}

// Start launches rendering (and mixing) and returns the composed stream.
// Stopping that stream stops the pipeline but never the source tracks.
func (p *Pipeline) Start(ctx context.Context) *media.Stream {
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	p.cancel = cancel
	p.group = g

	g.Go(func() error { return p.renderLoop(ctx) })
	if p.mixed != nil {
		la := p.local.FirstAudio()
		g.Go(func() error { return p.mixLoop(ctx, la) })
	}
	log.Info().Str("module", "compose").Int("width", p.cfg.Width).Int("height", p.cfg.Height).Int("fps", p.cfg.FPS).Bool("mixing", p.mixed != nil).Msg("composition started")
	return p.out
}

func (p *Pipeline) Stream() *media.Stream { return p.out }

// Stop ends the loops and waits for them. Safe to call more than once.
func (p *Pipeline) Stop() {
	p.once.Do(func() {
		if p.cancel != nil {
			p.cancel()
			_ = p.group.Wait()
		}
		p.video.End()
		if p.mixed != nil {
			p.mixed.End()
		}
		log.Info().Str("module", "compose").Msg("composition stopped")
	})
}

func (p *Pipeline) renderLoop(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(p.cfg.FPS))
	defer ticker.Stop()
	for {
		now := p.now()
		p.video.Write(func(dst *image.RGBA) { p.render(dst, now) })
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Pipeline) render(dst *image.RGBA, now time.Time) {
	b := dst.Bounds()
	draw.Draw(dst, b, image.NewUniform(color.Black), image.Point{}, draw.Src)

	if rv := p.remoteVideo(); rv != nil {
		rv.View(func(img *image.RGBA) {
			draw.ApproxBiLinear.Scale(dst, b, img, img.Bounds(), draw.Src, nil)
		})
	}

	if lv := p.local.FirstVideo(); lv != nil && lv.Live() {
		lv.View(func(img *image.RGBA) {
			draw.ApproxBiLinear.Scale(dst, insetRect(b), img, img.Bounds(), draw.Src, nil)
		})
	}

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(stampX, stampY),
	}
	d.DrawString(now.Format(stampLayout))
}

// remoteVideo is the remote video track when it still delivers frames.
func (p *Pipeline) remoteVideo() media.VideoTrack {
	if p.remote == nil || !p.remote.Active() {
		return nil
	}
	rv := p.remote.FirstVideo()
	if rv == nil || !rv.Live() {
		return nil
	}
	return rv
}

// insetRect is a quarter-size box anchored bottom-right with a fixed margin.
func insetRect(canvas image.Rectangle) image.Rectangle {
	w, h := canvas.Dx()/4, canvas.Dy()/4
	x0 := canvas.Max.X - w - insetMargin
	y0 := canvas.Max.Y - h - insetMargin
	return image.Rect(x0, y0, x0+w, y0+h)
}

// borrowed exposes a source track without letting the composed stream stop it.
type borrowed struct {
	media.AudioTrack
}

func (borrowed) Stop() {}
