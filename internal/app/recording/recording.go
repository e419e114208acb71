// Package recording captures a session stream into one uploadable artifact.
package recording

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Interview/internal/app/compose"
	"github.com/dkeye/Interview/internal/domain"
	"github.com/dkeye/Interview/internal/media"
	"github.com/rs/zerolog/log"
)

//go:generate mockgen -destination=mock_encoder_test.go -package=recording . Encoder

// Encoder turns a stream into container bytes delivered as ordered chunks.
type Encoder interface {
	// Start begins encoding and calls onChunk roughly every timeslice.
	Start(ctx context.Context, stream *media.Stream, timeslice time.Duration, onChunk func([]byte)) error
	// Stop finalizes the container; the last chunk is delivered before it returns.
	Stop() error
	ContainerType() string
}

// Uploader is the storage boundary.
type Uploader interface {
	UploadRecording(ctx context.Context, session domain.SessionID, a *domain.Artifact) (*domain.ServerRecord, error)
}

type Config struct {
	Timeslice time.Duration
	Compose   compose.Config
	// Container labels the artifact when the encoder does not report a type.
	Container string
}

type Controller struct {
	enc Encoder
	up  Uploader
	cfg Config

	mu       sync.Mutex
	local    *media.Stream
	remote   *media.Stream
	active   bool
	chunks   [][]byte
	pipeline *compose.Pipeline
	released bool
}

func NewController(enc Encoder, up Uploader, cfg Config) *Controller {
	if cfg.Timeslice <= 0 {
		cfg.Timeslice = time.Second
	}
	return &Controller{enc: enc, up: up, cfg: cfg}
}

// SetLocalStream hands the acquired capture stream to the controller, which
// from then on owns its release.
func (c *Controller) SetLocalStream(s *media.Stream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local = s
	c.released = false
}

// SetRemoteStream makes the next Start record a composition of both sides.
func (c *Controller) SetRemoteStream(s *media.Stream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remote = s
}

func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.local == nil || c.released {
		return fmt.Errorf("%w: no local stream", domain.ErrInvalidState)
	}
	if c.active {
		return fmt.Errorf("%w: recording already active", domain.ErrInvalidState)
	}
	c.chunks = nil

	src := c.local
	if c.remote != nil {
		p, err := compose.New(c.cfg.Compose, c.local, c.remote)
		if err != nil {
			return err
		}
		c.pipeline = p
		src = p.Start(ctx)
	}

	if err := c.enc.Start(ctx, src, c.cfg.Timeslice, c.onChunk); err != nil {
		c.stopPipeline()
		return fmt.Errorf("%w: %v", domain.ErrEncoder, err)
	}
	c.active = true
	log.Info().Str("module", "recording").Str("stream", src.ID()).Dur("timeslice", c.cfg.Timeslice).Msg("recording started")
	return nil
}

func (c *Controller) onChunk(b []byte) {
	if len(b) == 0 {
		return
	}
	chunk := make([]byte, len(b))
	copy(chunk, b)
	c.mu.Lock()
	c.chunks = append(c.chunks, chunk)
	c.mu.Unlock()
}

// Stop finalizes the recording. When the encoder fails, the chunks buffered
// so far are still returned as a best-effort artifact together with ErrEncoder.
func (c *Controller) Stop() (*domain.Artifact, error) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: no active recording", domain.ErrInvalidState)
	}
	c.active = false
	c.mu.Unlock()

	encErr := c.enc.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopPipeline()

	a := &domain.Artifact{
		Data:          bytes.Join(c.chunks, nil),
		ContainerType: c.enc.ContainerType(),
		Chunks:        len(c.chunks),
	}
	if a.ContainerType == "" {
		a.ContainerType = c.cfg.Container
	}
	if a.ContainerType == "" {
		a.ContainerType = domain.DefaultContainer
	}
	c.chunks = nil

	if encErr != nil {
		log.Error().Err(encErr).Str("module", "recording").Int("bytes", a.Size()).Int("chunks", a.Chunks).Msg("encoder failed, keeping partial recording")
		return a, fmt.Errorf("%w: %v", domain.ErrEncoder, encErr)
	}
	log.Info().Str("module", "recording").Int("bytes", a.Size()).Int("chunks", a.Chunks).Msg("recording stopped")
	return a, nil
}

func (c *Controller) stopPipeline() {
	if c.pipeline != nil {
		c.pipeline.Stop()
		c.pipeline = nil
	}
}

// Upload sends the artifact to storage. Failures are not retried here.
func (c *Controller) Upload(ctx context.Context, a *domain.Artifact, session domain.SessionID) (*domain.ServerRecord, error) {
	if a == nil || a.Size() == 0 {
		return nil, fmt.Errorf("%w: nothing recorded", domain.ErrInvalidState)
	}
	rec, err := c.up.UploadRecording(ctx, session, a)
	if err != nil {
		log.Error().Err(err).Str("module", "recording").Str("session", string(session)).Msg("upload failed")
		return nil, err
	}
	log.Info().Str("module", "recording").Str("session", string(session)).Str("filename", rec.Filename).Msg("uploaded")
	return rec, nil
}

// ReleaseCaptureResources stops the local capture. It is the only path that
// does so and may be called any number of times.
func (c *Controller) ReleaseCaptureResources() {
	c.mu.Lock()
	local := c.local
	if local == nil || c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	c.mu.Unlock()

	local.Stop()
	log.Info().Str("module", "recording").Str("stream", local.ID()).Msg("capture released")
}
