package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/dkeye/Interview/internal/media"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const stopTimeout = 10 * time.Second

// Encoder records a media.Stream to WebM (VP8 + Opus). Raw RGBA frames go to
// ffmpeg's stdin, PCM to fd 3, and the container comes back on stdout where
// it is cut into timesliced chunks.
type Encoder struct {
	bin    string
	width  int
	height int
	fps    int

	mu       sync.Mutex
	cmd      *exec.Cmd
	tail     *tailBuffer
	cancel   context.CancelFunc
	pumps    *errgroup.Group
	reader   chan error
	hasAudio bool
}

func NewEncoder(bin string, width, height, fps int) *Encoder {
	if fps <= 0 {
		fps = 30
	}
	return &Encoder{bin: bin, width: width, height: height, fps: fps}
}

func (e *Encoder) ContainerType() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hasAudio {
		return "video/webm;codecs=vp8,opus"
	}
	return "video/webm;codecs=vp8"
}

func encoderArgs(w, h, fps int, audio bool) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo", "-pix_fmt", "rgba", "-s", size(w, h), "-r", strconv.Itoa(fps), "-i", "pipe:0",
	}
	if audio {
		args = append(args, "-f", "s16le", "-ar", strconv.Itoa(media.SampleRate), "-ac", "1", "-i", "pipe:3")
	}
	args = append(args, "-map", "0:v", "-c:v", "libvpx", "-deadline", "realtime", "-cpu-used", "8", "-b:v", "1M")
	if audio {
		args = append(args, "-map", "1:a", "-c:a", "libopus", "-b:a", "64k")
	}
	return append(args, "-f", "webm", "pipe:1")
}

func (e *Encoder) Start(ctx context.Context, stream *media.Stream, timeslice time.Duration, onChunk func([]byte)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd != nil {
		return errors.New("encoder already running")
	}
	video := stream.FirstVideo()
	if video == nil {
		return errors.New("stream has no video track")
	}
	if e.width <= 0 || e.height <= 0 {
		e.width, e.height = video.Size()
	}
	audio := stream.FirstAudio()

	cmd, tail := command(e.bin, encoderArgs(e.width, e.height, e.fps, audio != nil)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	var pcmR, pcmW *os.File
	if audio != nil {
		if pcmR, pcmW, err = os.Pipe(); err != nil {
			return err
		}
		cmd.ExtraFiles = []*os.File{pcmR}
	}
	if err := cmd.Start(); err != nil {
		if pcmR != nil {
			pcmR.Close()
			pcmW.Close()
		}
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	if pcmR != nil {
		pcmR.Close()
	}

	pumpCtx, cancel := context.WithCancel(ctx)
	g, pumpCtx := errgroup.WithContext(pumpCtx)
	g.Go(func() error { return e.pumpVideo(pumpCtx, video, stdin) })
	if audio != nil {
		g.Go(func() error { return pumpAudio(pumpCtx, audio, pcmW) })
	}

	reader := make(chan error, 1)
	go func() { reader <- readChunks(stdout, timeslice, onChunk) }()

	e.cmd, e.tail, e.cancel, e.pumps, e.reader = cmd, tail, cancel, g, reader
	e.hasAudio = audio != nil
	log.Info().Str("module", "ffmpeg").Str("stream", stream.ID()).Bool("audio", e.hasAudio).Str("size", size(e.width, e.height)).Msg("encoder started")
	return nil
}

// Stop closes the inputs, waits for ffmpeg to flush the container and
// delivers the final chunk before returning.
func (e *Encoder) Stop() error {
	e.mu.Lock()
	cmd, tail, cancel, pumps, reader := e.cmd, e.tail, e.cancel, e.pumps, e.reader
	e.cmd = nil
	e.mu.Unlock()
	if cmd == nil {
		return errors.New("encoder not running")
	}

	cancel()
	pumpErr := pumps.Wait()

	var readErr error
	select {
	case readErr = <-reader:
	case <-time.After(stopTimeout):
		log.Warn().Str("module", "ffmpeg").Msg("encoder did not finish, killing")
		_ = cmd.Process.Kill()
		readErr = <-reader
	}
	err := errors.Join(pumpErr, readErr, waitErr(cmd, tail))
	if err != nil {
		log.Error().Err(err).Str("module", "ffmpeg").Msg("encoder stopped with error")
		return err
	}
	log.Info().Str("module", "ffmpeg").Msg("encoder stopped")
	return nil
}

func (e *Encoder) pumpVideo(ctx context.Context, v media.VideoTrack, w io.WriteCloser) error {
	defer w.Close()
	frame := image.NewRGBA(image.Rect(0, 0, e.width, e.height))
	ticker := time.NewTicker(time.Second / time.Duration(e.fps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		fitFrame(v, frame)
		if _, err := w.Write(frame.Pix); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
	}
}

func pumpAudio(ctx context.Context, a media.AudioTrack, w io.WriteCloser) error {
	defer w.Close()
	samples := make([]int16, media.SamplesPerTick)
	buf := make([]byte, 2*len(samples))
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		n := a.ReadSamples(samples)
		clear(samples[n:])
		putSamples(buf, samples)
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write samples: %w", err)
		}
	}
}

// readChunks forwards everything read from r to onChunk, at most once per
// timeslice, in read order. The remainder is flushed at EOF.
func readChunks(r io.Reader, timeslice time.Duration, onChunk func([]byte)) error {
	if timeslice <= 0 {
		timeslice = time.Second
	}
	var (
		mu      sync.Mutex
		pending []byte
	)
	flush := func() {
		mu.Lock()
		chunk := pending
		pending = nil
		mu.Unlock()
		if len(chunk) > 0 {
			onChunk(chunk)
		}
	}

	done := make(chan struct{})
	flushed := make(chan struct{})
	go func() {
		defer close(flushed)
		ticker := time.NewTicker(timeslice)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				flush()
			}
		}
	}()

	buf := make([]byte, 64*1024)
	var readErr error
	for {
		n, err := r.Read(buf)
		if n > 0 {
			mu.Lock()
			pending = append(pending, buf[:n]...)
			mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}
	}
	close(done)
	<-flushed
	flush()
	return readErr
}
