package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

func DefaultWebRTCConfig(iceURLs []string) webrtc.Configuration {
	cfg := webrtc.Configuration{}
	if len(iceURLs) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: iceURLs}}
	}
	return cfg
}

// Coordinator drives offer/answer and ICE for one role of a session.
// The interviewer always offers; the candidate only answers. All signaling
// and transport events are handled on a single loop goroutine.
type Coordinator struct {
	id  domain.Identity
	cfg webrtc.Configuration
	api *webrtc.API
	sig core.Signaler

	pc       *webrtc.PeerConnection
	localICE chan webrtc.ICECandidateInit
	pcState  chan webrtc.PeerConnectionState
	remote   chan core.RemoteTrack
	tracks   chan core.RemoteTrack

	// pending holds candidates that arrived before the remote description.
	pending      []webrtc.ICECandidateInit
	pendingCount atomic.Int32

	mu      sync.Mutex
	state   domain.ConnState
	err     error
	onState func(domain.ConnState)
	// notifyMu orders transitions with their callbacks, so Close and the
	// loop never run onState at the same time.
	notifyMu sync.Mutex

	started   atomic.Bool
	looping   bool
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

type Option func(*Coordinator)

// WithAPI uses a preconfigured pion API, e.g. with a custom SettingEngine.
func WithAPI(api *webrtc.API) Option {
	return func(c *Coordinator) { c.api = api }
}

func NewCoordinator(id domain.Identity, cfg webrtc.Configuration, sig core.Signaler, opts ...Option) *Coordinator {
	c := &Coordinator{
		id:       id,
		cfg:      cfg,
		sig:      sig,
		localICE: make(chan webrtc.ICECandidateInit, 16),
		pcState:  make(chan webrtc.PeerConnectionState, 8),
		remote:   make(chan core.RemoteTrack, 4),
		tracks:   make(chan core.RemoteTrack, 4),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Initialize creates the peer connection, attaches the local tracks and
// starts negotiating. onStateChange is called on every transition, one call
// at a time and in transition order.
func (c *Coordinator) Initialize(ctx context.Context, local []webrtc.TrackLocal, onStateChange func(domain.ConnState)) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: coordinator already initialized", domain.ErrInvalidState)
	}
	c.mu.Lock()
	c.onState = onStateChange
	closed := c.state == domain.ConnClosed
	c.mu.Unlock()
	if closed {
		return fmt.Errorf("%w: coordinator closed", domain.ErrInvalidState)
	}

	var (
		pc  *webrtc.PeerConnection
		err error
	)
	if c.api != nil {
		pc, err = c.api.NewPeerConnection(c.cfg)
	} else {
		pc, err = webrtc.NewPeerConnection(c.cfg)
	}
	if err != nil {
		c.fail(err)
		return fmt.Errorf("%w: %v", domain.ErrNegotiation, err)
	}
	for _, t := range local {
		sender, err := pc.AddTrack(t)
		if err != nil {
			c.fail(err)
			_ = pc.Close()
			return fmt.Errorf("%w: add track %s: %v", domain.ErrNegotiation, t.ID(), err)
		}
		go drainRTCP(sender)
	}

	ctx, cancel := context.WithCancel(ctx)

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		select {
		case c.localICE <- cand.ToJSON():
		case <-ctx.Done():
		}
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("session", string(c.id.Session)).Str("role", string(c.id.Role)).Str("peer_connection_state", s.String()).Msg("Peer state")
		select {
		case c.pcState <- s:
		case <-ctx.Done():
		}
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("session", string(c.id.Session)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		select {
		case c.remote <- core.RemoteTrack{Track: track, Receiver: receiver}:
		case <-ctx.Done():
		}
	})

	c.mu.Lock()
	if c.state == domain.ConnClosed {
		c.mu.Unlock()
		cancel()
		_ = pc.Close()
		return fmt.Errorf("%w: coordinator closed", domain.ErrInvalidState)
	}
	c.pc = pc
	c.cancel = cancel
	c.looping = true
	c.mu.Unlock()

	go c.loop(ctx, pc)
	return nil
}

// Tracks yields remote tracks as they arrive; it is closed when the
// coordinator stops negotiating.
func (c *Coordinator) Tracks() <-chan core.RemoteTrack { return c.tracks }

// Done is closed when the event loop exits.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

func (c *Coordinator) State() domain.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the negotiation error that moved the coordinator to failed.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// PendingCandidates is the number of remote candidates waiting for a remote description.
func (c *Coordinator) PendingCandidates() int { return int(c.pendingCount.Load()) }

// Close tears the connection down. Calling it again is a no-op.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.setState(domain.ConnClosed)
		c.mu.Lock()
		pc, cancel, looping := c.pc, c.cancel, c.looping
		c.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if pc != nil {
			if err := pc.Close(); err != nil {
				log.Error().Err(err).Str("module", "rtc").Str("session", string(c.id.Session)).Msg("close error")
			} else {
				log.Info().Str("module", "rtc").Str("session", string(c.id.Session)).Str("role", string(c.id.Role)).Msg("closed")
			}
		}
		if !looping {
			close(c.done)
		}
	})
}

func (c *Coordinator) loop(ctx context.Context, pc *webrtc.PeerConnection) {
	defer func() {
		close(c.tracks)
		close(c.done)
	}()

	if c.id.Role == domain.RoleInterviewer {
		if err := c.offer(ctx, pc); err != nil {
			c.fail(err)
			return
		}
	}

	incoming := c.sig.Incoming()
	for {
		if c.State().Terminal() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case env, ok := <-incoming:
			if !ok {
				log.Warn().Str("module", "rtc").Str("session", string(c.id.Session)).Msg("signaling closed")
				incoming = nil
				continue
			}
			if err := c.handle(ctx, pc, env); err != nil {
				c.fail(err)
				return
			}
		case cand := <-c.localICE:
			if err := c.sig.Send(ctx, domain.CandidateEnvelope(cand)); err != nil {
				log.Warn().Err(err).Str("module", "rtc").Str("session", string(c.id.Session)).Msg("send candidate")
			}
		case s := <-c.pcState:
			c.onTransport(s)
		case rt := <-c.remote:
			select {
			case c.tracks <- rt:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, pc *webrtc.PeerConnection, env domain.Envelope) error {
	switch env.Type {
	case domain.MessageOffer:
		if c.id.Role != domain.RoleCandidate {
			log.Warn().Str("module", "rtc").Str("session", string(c.id.Session)).Msg("interviewer got an offer, ignored")
			return nil
		}
		return c.answer(ctx, pc, *env.Offer)
	case domain.MessageAnswer:
		if c.id.Role != domain.RoleInterviewer {
			log.Warn().Str("module", "rtc").Str("session", string(c.id.Session)).Msg("candidate got an answer, ignored")
			return nil
		}
		if err := pc.SetRemoteDescription(*env.Answer); err != nil {
			return fmt.Errorf("%w: apply answer: %v", domain.ErrNegotiation, err)
		}
		return c.flushPending(pc)
	case domain.MessageICECandidate:
		if env.Candidate == nil || env.Candidate.Candidate == "" {
			return nil
		}
		if pc.RemoteDescription() == nil {
			c.pending = append(c.pending, *env.Candidate)
			c.pendingCount.Store(int32(len(c.pending)))
			return nil
		}
		if err := pc.AddICECandidate(*env.Candidate); err != nil {
			return fmt.Errorf("%w: add candidate: %v", domain.ErrNegotiation, err)
		}
	case domain.MessageUserDisconnected:
		log.Info().Str("module", "rtc").Str("session", string(c.id.Session)).Str("peer", string(env.Sender)).Msg("peer left")
		c.setState(domain.ConnDisconnected)
	}
	return nil
}

func (c *Coordinator) offer(ctx context.Context, pc *webrtc.PeerConnection) error {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("%w: create offer: %v", domain.ErrNegotiation, err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("%w: set offer: %v", domain.ErrNegotiation, err)
	}
	c.setState(domain.ConnConnecting)
	if err := c.sig.Send(ctx, domain.OfferEnvelope(offer)); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Str("module", "rtc").Str("session", string(c.id.Session)).Msg("send offer")
	}
	return nil
}

func (c *Coordinator) answer(ctx context.Context, pc *webrtc.PeerConnection, offer webrtc.SessionDescription) error {
	if err := pc.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("%w: apply offer: %v", domain.ErrNegotiation, err)
	}
	c.setState(domain.ConnConnecting)
	if err := c.flushPending(pc); err != nil {
		return err
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("%w: create answer: %v", domain.ErrNegotiation, err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("%w: set answer: %v", domain.ErrNegotiation, err)
	}
	if err := c.sig.Send(ctx, domain.AnswerEnvelope(answer)); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Str("module", "rtc").Str("session", string(c.id.Session)).Msg("send answer")
	}
	return nil
}

func (c *Coordinator) flushPending(pc *webrtc.PeerConnection) error {
	pending := c.pending
	c.pending = nil
	c.pendingCount.Store(0)
	for _, cand := range pending {
		if err := pc.AddICECandidate(cand); err != nil {
			return fmt.Errorf("%w: add queued candidate: %v", domain.ErrNegotiation, err)
		}
	}
	return nil
}

func (c *Coordinator) onTransport(s webrtc.PeerConnectionState) {
	switch s {
	case webrtc.PeerConnectionStateConnecting:
		c.setState(domain.ConnConnecting)
	case webrtc.PeerConnectionStateConnected:
		c.setState(domain.ConnConnected)
	case webrtc.PeerConnectionStateDisconnected:
		c.setState(domain.ConnDisconnected)
	case webrtc.PeerConnectionStateFailed:
		c.fail(errors.New("transport failed"))
	}
}

func (c *Coordinator) fail(err error) {
	log.Error().Err(err).Str("module", "rtc").Str("session", string(c.id.Session)).Str("role", string(c.id.Role)).Msg("negotiation failed")
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
	c.setState(domain.ConnFailed)
}

// setState applies a transition and reports it. onState must not call back
// into the coordinator's state methods.
func (c *Coordinator) setState(to domain.ConnState) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	from := c.state
	if !canTransition(from, to) {
		c.mu.Unlock()
		return
	}
	c.state = to
	fn := c.onState
	c.mu.Unlock()

	log.Info().Str("module", "rtc").Str("session", string(c.id.Session)).Str("role", string(c.id.Role)).Str("from", from.String()).Str("to", to.String()).Msg("state")
	if fn != nil {
		fn(to)
	}
}

// drainRTCP keeps the sender's interceptors running.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
