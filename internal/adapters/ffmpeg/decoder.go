package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dkeye/Interview/internal/media"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// RTPSource is the part of *webrtc.TrackRemote the decoder reads.
type RTPSource interface {
	ID() string
	Kind() webrtc.RTPCodecType
	Codec() webrtc.RTPCodecParameters
	ReadRTP() (*rtp.Packet, error)
}

type remoteSource struct {
	t *webrtc.TrackRemote
}

func (s remoteSource) ID() string                       { return s.t.ID() }
func (s remoteSource) Kind() webrtc.RTPCodecType        { return s.t.Kind() }
func (s remoteSource) Codec() webrtc.RTPCodecParameters { return s.t.Codec() }

func (s remoteSource) ReadRTP() (*rtp.Packet, error) {
	pkt, _, err := s.t.ReadRTP()
	return pkt, err
}

// Decoder turns remote RTP tracks into raw media buffers for composition.
type Decoder struct {
	bin    string
	width  int
	height int
	fps    int
}

func NewDecoder(bin string, width, height, fps int) *Decoder {
	if fps <= 0 {
		fps = 30
	}
	return &Decoder{bin: bin, width: width, height: height, fps: fps}
}

// Decode starts decoding track in the background. The returned media track
// ends when the RTP source ends or ctx is cancelled.
func (d *Decoder) Decode(ctx context.Context, track *webrtc.TrackRemote) (media.Track, error) {
	return d.decode(ctx, remoteSource{track})
}

func (d *Decoder) decode(ctx context.Context, src RTPSource) (media.Track, error) {
	switch src.Kind() {
	case webrtc.RTPCodecTypeVideo:
		return d.decodeVideo(ctx, src)
	case webrtc.RTPCodecTypeAudio:
		return d.decodeAudio(ctx, src)
	}
	return nil, fmt.Errorf("unsupported track kind %s", src.Kind())
}

func videoDecoderArgs(w, h, fps int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "ivf", "-i", "pipe:0",
		"-vf", "scale=" + strconv.Itoa(w) + ":" + strconv.Itoa(h),
		"-r", strconv.Itoa(fps),
		"-f", "rawvideo", "-pix_fmt", "rgba", "pipe:1",
	}
}

func audioDecoderArgs() []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "ogg", "-i", "pipe:0",
		"-f", "s16le", "-ar", strconv.Itoa(media.SampleRate), "-ac", "1", "pipe:1",
	}
}

func (d *Decoder) decodeVideo(ctx context.Context, src RTPSource) (media.Track, error) {
	mime := src.Codec().MimeType
	if !supportedVideo(mime) {
		return nil, fmt.Errorf("unsupported video codec %s", mime)
	}
	out := media.NewVideoBuffer(src.ID(), d.width, d.height)
	frameSize := d.width * d.height * 4

	newWriter := func(w io.Writer) (rtpWriter, error) {
		return ivfwriter.NewWith(w, ivfwriter.WithCodec(mime))
	}
	err := d.run(ctx, src, newWriter, videoDecoderArgs(d.width, d.height, d.fps), out.End, func(r io.Reader) error {
		frame := make([]byte, frameSize)
		for {
			if _, err := io.ReadFull(r, frame); err != nil {
				return ignoreEOF(err)
			}
			out.WritePix(frame)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func supportedVideo(mime string) bool {
	return strings.EqualFold(mime, webrtc.MimeTypeVP8) ||
		strings.EqualFold(mime, webrtc.MimeTypeVP9) ||
		strings.EqualFold(mime, webrtc.MimeTypeAV1)
}

func (d *Decoder) decodeAudio(ctx context.Context, src RTPSource) (media.Track, error) {
	codec := src.Codec()
	if !strings.EqualFold(codec.MimeType, webrtc.MimeTypeOpus) {
		return nil, fmt.Errorf("unsupported audio codec %s", codec.MimeType)
	}
	channels := codec.Channels
	if channels == 0 {
		channels = 2
	}
	out := media.NewAudioBuffer(src.ID(), media.SampleRate)

	newWriter := func(w io.Writer) (rtpWriter, error) {
		return oggwriter.NewWith(w, codec.ClockRate, channels)
	}
	err := d.run(ctx, src, newWriter, audioDecoderArgs(), out.End, func(r io.Reader) error {
		raw := make([]byte, 2*media.SamplesPerTick)
		samples := make([]int16, media.SamplesPerTick)
		for {
			if _, err := io.ReadFull(r, raw); err != nil {
				return ignoreEOF(err)
			}
			getSamples(samples, raw)
			out.WriteSamples(samples)
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type rtpWriter interface {
	WriteRTP(*rtp.Packet) error
	Close() error
}

// run wires RTP -> container writer -> ffmpeg stdin and ffmpeg stdout -> sink.
// The container writer is created only once ffmpeg is reading, since it
// writes its header straight away.
func (d *Decoder) run(ctx context.Context, src RTPSource, newWriter func(io.Writer) (rtpWriter, error), args []string, end func(), sink func(io.Reader) error) error {
	pr, pw := io.Pipe()
	cmd, tail := command(d.bin, args...)
	cmd.Stdin = pr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		pr.Close()
		return err
	}
	if err := cmd.Start(); err != nil {
		pr.Close()
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	logger := log.With().Str("module", "ffmpeg").Str("track", src.ID()).Str("codec", src.Codec().MimeType).Logger()
	logger.Info().Msg("decoding remote track")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w, err := newWriter(pw)
		if err != nil {
			pw.CloseWithError(err)
			return ignoreEOF(err)
		}
		defer w.Close()
		for {
			if gctx.Err() != nil {
				return nil
			}
			pkt, err := src.ReadRTP()
			if err != nil {
				return ignoreEOF(err)
			}
			if err := w.WriteRTP(pkt); err != nil {
				return ignoreEOF(fmt.Errorf("write rtp: %w", err))
			}
		}
	})
	g.Go(func() error {
		// Once ffmpeg stops producing, unblock the RTP writer.
		defer pr.CloseWithError(io.ErrClosedPipe)
		return sink(stdout)
	})

	go func() {
		defer end()
		err := g.Wait()
		if werr := waitErr(cmd, tail); err == nil {
			err = werr
		}
		if err != nil {
			logger.Warn().Err(err).Msg("remote track decoding ended")
			return
		}
		logger.Info().Msg("remote track ended")
	}()
	return nil
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}
