// Package capture acquires local camera and microphone through ffmpeg.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/dkeye/Interview/internal/config"
	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
	"github.com/dkeye/Interview/internal/media"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	firstFrameTimeout = 10 * time.Second
	opusFrame         = 20 * time.Millisecond
)

type Capturer struct {
	cfg config.CaptureConfig
}

func NewCapturer(cfg config.CaptureConfig) *Capturer {
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 1280, 720
	}
	return &Capturer{cfg: cfg}
}

// captureArgs lays out the outputs: VP8/IVF on fd 1, Opus/OGG on fd 3,
// raw RGBA on fd 4 and mono s16le on fd 5. Missing inputs drop their outputs.
func captureArgs(cfg config.CaptureConfig) []string {
	hasVideo, hasAudio := len(cfg.VideoInput) > 0, len(cfg.AudioInput) > 0
	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, cfg.VideoInput...)
	args = append(args, cfg.AudioInput...)

	v, a := "0:v", "0:a"
	if hasVideo {
		a = "1:a"
	}
	size := strconv.Itoa(cfg.Width) + "x" + strconv.Itoa(cfg.Height)
	fps := strconv.Itoa(cfg.FPS)

	if hasVideo {
		args = append(args,
			"-map", v, "-c:v", "libvpx", "-deadline", "realtime", "-cpu-used", "8",
			"-b:v", "1M", "-g", fps, "-s", size, "-r", fps, "-f", "ivf", "pipe:1")
	}
	if hasAudio {
		args = append(args,
			"-map", a, "-c:a", "libopus", "-b:a", "48k", "-page_duration", "20000",
			"-ar", "48000", "-ac", "2", "-f", "ogg", "pipe:3")
	}
	if hasVideo {
		args = append(args, "-map", v, "-f", "rawvideo", "-pix_fmt", "rgba", "-s", size, "-r", fps, "pipe:4")
	}
	if hasAudio {
		args = append(args, "-map", a, "-f", "s16le", "-ar", strconv.Itoa(media.SampleRate), "-ac", "1", "pipe:5")
	}
	return args
}

type pipePair struct {
	r, w *os.File
}

func newPipes(n int) ([]pipePair, error) {
	out := make([]pipePair, 0, n)
	for i := 0; i < n; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			for _, p := range out {
				p.r.Close()
				p.w.Close()
			}
			return nil, err
		}
		out = append(out, pipePair{r: r, w: w})
	}
	return out, nil
}

// Capture starts the devices. It fails with domain.ErrCapture when ffmpeg
// cannot start or no frame arrives in time.
func (c *Capturer) Capture(ctx context.Context) (*core.LocalMedia, error) {
	hasVideo, hasAudio := len(c.cfg.VideoInput) > 0, len(c.cfg.AudioInput) > 0
	if !hasVideo && !hasAudio {
		return nil, fmt.Errorf("%w: no capture inputs configured", domain.ErrCapture)
	}

	bin := c.cfg.FFmpeg
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.Command(bin, captureArgs(c.cfg)...)
	cmd.Stderr = &logWriter{}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCapture, err)
	}
	// fd 3 ogg, fd 4 raw video, fd 5 raw audio
	pipes, err := newPipes(3)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCapture, err)
	}
	cmd.ExtraFiles = []*os.File{pipes[0].w, pipes[1].w, pipes[2].w}
	if err := cmd.Start(); err != nil {
		for _, p := range pipes {
			p.r.Close()
			p.w.Close()
		}
		return nil, fmt.Errorf("%w: start ffmpeg: %v", domain.ErrCapture, err)
	}
	for _, p := range pipes {
		p.w.Close()
	}
	oggOut, rawVideo, rawAudio := pipes[0].r, pipes[1].r, pipes[2].r

	lm := &core.LocalMedia{Stream: media.NewStream("local")}
	first := make(chan struct{})
	var firstOnce sync.Once
	gotFrame := func() { firstOnce.Do(func() { close(first) }) }

	g, gctx := errgroup.WithContext(ctx)
	if hasVideo {
		out, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "local")
		if err != nil {
			_ = cmd.Process.Kill()
			return nil, fmt.Errorf("%w: %v", domain.ErrCapture, err)
		}
		lm.Outbound = append(lm.Outbound, out)
		vb := media.NewVideoBuffer("local-video", c.cfg.Width, c.cfg.Height)
		lm.Stream.AddTrack(vb)
		g.Go(func() error { return pumpIVF(stdout, out, time.Second/time.Duration(c.cfg.FPS)) })
		g.Go(func() error { return pumpRawVideo(rawVideo, vb, gotFrame) })
	} else {
		go func() { _, _ = io.Copy(io.Discard, stdout) }()
	}
	if hasAudio {
		out, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}, "audio", "local")
		if err != nil {
			_ = cmd.Process.Kill()
			return nil, fmt.Errorf("%w: %v", domain.ErrCapture, err)
		}
		lm.Outbound = append(lm.Outbound, out)
		ab := media.NewAudioBuffer("local-audio", media.SampleRate)
		lm.Stream.AddTrack(ab)
		g.Go(func() error { return pumpOgg(oggOut, out) })
		audioFirst := func() {}
		if !hasVideo {
			audioFirst = gotFrame
		}
		g.Go(func() error { return pumpRawAudio(rawAudio, ab, audioFirst) })
	}

	exited := make(chan error, 1)
	go func() {
		err := g.Wait()
		if werr := cmd.Wait(); err == nil {
			err = werr
		}
		for _, p := range pipes {
			p.r.Close()
		}
		for _, t := range lm.Stream.Tracks() {
			t.Stop()
		}
		exited <- err
		close(exited)
	}()

	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() {
			_ = cmd.Process.Kill()
			<-exited
			log.Info().Str("module", "capture").Msg("capture stopped, devices released")
		})
	}
	lm.Stream.OnStop(stop)

	timer := time.NewTimer(firstFrameTimeout)
	defer timer.Stop()
	select {
	case <-first:
		log.Info().Str("module", "capture").Int("width", c.cfg.Width).Int("height", c.cfg.Height).Int("fps", c.cfg.FPS).Bool("audio", hasAudio).Msg("capture started")
		go func() {
			<-gctx.Done()
			if ctx.Err() != nil {
				stop()
			}
		}()
		return lm, nil
	case err := <-exited:
		if err == nil {
			err = errors.New("ffmpeg exited before the first frame")
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrCapture, err)
	case <-timer.C:
		lm.Stream.Stop()
		return nil, fmt.Errorf("%w: no frame within %s", domain.ErrCapture, firstFrameTimeout)
	case <-ctx.Done():
		lm.Stream.Stop()
		return nil, ctx.Err()
	}
}

func pumpIVF(r io.Reader, out *webrtc.TrackLocalStaticSample, frameDur time.Duration) error {
	ivf, _, err := ivfreader.NewWith(r)
	if err != nil {
		return ignoreEOF(err)
	}
	for {
		frame, _, err := ivf.ParseNextFrame()
		if err != nil {
			return ignoreEOF(err)
		}
		if err := out.WriteSample(pionmedia.Sample{Data: frame, Duration: frameDur}); err != nil {
			return err
		}
	}
}

func pumpOgg(r io.Reader, out *webrtc.TrackLocalStaticSample) error {
	ogg, _, err := oggreader.NewWith(r)
	if err != nil {
		return ignoreEOF(err)
	}
	for {
		page, _, err := ogg.ParseNextPage()
		if err != nil {
			return ignoreEOF(err)
		}
		if err := out.WriteSample(pionmedia.Sample{Data: page, Duration: opusFrame}); err != nil {
			return err
		}
	}
}

func pumpRawVideo(r io.Reader, vb *media.VideoBuffer, onFrame func()) error {
	w, h := vb.Size()
	frame := make([]byte, w*h*4)
	for {
		if _, err := io.ReadFull(r, frame); err != nil {
			return ignoreEOF(err)
		}
		vb.WritePix(frame)
		onFrame()
	}
}

func pumpRawAudio(r io.Reader, ab *media.AudioBuffer, onFrame func()) error {
	raw := make([]byte, 2*media.SamplesPerTick)
	samples := make([]int16, media.SamplesPerTick)
	for {
		if _, err := io.ReadFull(r, raw); err != nil {
			return ignoreEOF(err)
		}
		for i := range samples {
			samples[i] = int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		}
		ab.WriteSamples(samples)
		onFrame()
	}
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}

// logWriter forwards ffmpeg diagnostics to the log.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	log.Warn().Str("module", "capture").Str("ffmpeg", string(p)).Msg("ffmpeg")
	return len(p), nil
}
