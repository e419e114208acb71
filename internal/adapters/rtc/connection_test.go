package rtc

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/Interview/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSignaler struct {
	role domain.Role
	in   chan domain.Envelope
	peer *fakeSignaler

	mu   sync.Mutex
	sent []domain.Envelope
}

func newFakeSignaler(role domain.Role) *fakeSignaler {
	return &fakeSignaler{role: role, in: make(chan domain.Envelope, 64)}
}

// pipe wires two signalers the way the relay does: JSON on the wire, sender stamped.
func pipe() (*fakeSignaler, *fakeSignaler) {
	a, b := newFakeSignaler(domain.RoleInterviewer), newFakeSignaler(domain.RoleCandidate)
	a.peer, b.peer = b, a
	return a, b
}

func (s *fakeSignaler) Send(ctx context.Context, env domain.Envelope) error {
	s.mu.Lock()
	s.sent = append(s.sent, env)
	s.mu.Unlock()
	if s.peer == nil {
		return nil
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	stamped, _, err := domain.StampSender(data, s.role)
	if err != nil {
		return err
	}
	out, err := domain.DecodeEnvelope(stamped)
	if err != nil {
		return err
	}
	s.peer.in <- out
	return nil
}

func (s *fakeSignaler) Incoming() <-chan domain.Envelope { return s.in }

func (s *fakeSignaler) Close() {}

func (s *fakeSignaler) sentTypes() []domain.MessageType {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MessageType
	for _, e := range s.sent {
		out = append(out, e.Type)
	}
	return out
}

type stateLog struct {
	mu     sync.Mutex
	states []domain.ConnState
}

func (l *stateLog) record(s domain.ConnState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *stateLog) all() []domain.ConnState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.ConnState(nil), l.states...)
}

func loopbackAPI() *webrtc.API {
	se := webrtc.SettingEngine{}
	se.SetIncludeLoopbackCandidate(true)
	se.SetNetworkTypes([]webrtc.NetworkType{webrtc.NetworkTypeUDP4})
	return webrtc.NewAPI(webrtc.WithSettingEngine(se))
}

func videoTrack(t *testing.T, id string) webrtc.TrackLocal {
	t.Helper()
	tr, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, id, "local")
	require.NoError(t, err)
	return tr
}

func contains(s []domain.MessageType, want domain.MessageType) bool {
	for _, v := range s {
		if v == want {
			return true
		}
	}
	return false
}

func TestCoordinatorsConnect(t *testing.T) {
	ivSig, cdSig := pipe()
	api := loopbackAPI()
	iv := NewCoordinator(domain.Identity{Session: "1", Role: domain.RoleInterviewer}, webrtc.Configuration{}, ivSig, WithAPI(api))
	cd := NewCoordinator(domain.Identity{Session: "1", Role: domain.RoleCandidate}, webrtc.Configuration{}, cdSig, WithAPI(api))
	defer iv.Close()
	defer cd.Close()

	var ivLog, cdLog stateLog
	ctx := context.Background()
	require.NoError(t, cd.Initialize(ctx, nil, cdLog.record))
	require.NoError(t, iv.Initialize(ctx, []webrtc.TrackLocal{videoTrack(t, "iv-video")}, ivLog.record))

	require.Eventually(t, func() bool {
		return iv.State() == domain.ConnConnected && cd.State() == domain.ConnConnected
	}, 15*time.Second, 20*time.Millisecond)

	assert.Equal(t, []domain.ConnState{domain.ConnConnecting, domain.ConnConnected}, ivLog.all())
	assert.Equal(t, []domain.ConnState{domain.ConnConnecting, domain.ConnConnected}, cdLog.all())
	assert.Equal(t, domain.MessageOffer, ivSig.sentTypes()[0])
	assert.True(t, contains(cdSig.sentTypes(), domain.MessageAnswer))
	assert.False(t, contains(cdSig.sentTypes(), domain.MessageOffer))
}

func TestCandidateBeforeOfferIsQueued(t *testing.T) {
	sig := newFakeSignaler(domain.RoleCandidate)
	cd := NewCoordinator(domain.Identity{Session: "2", Role: domain.RoleCandidate}, webrtc.Configuration{}, sig)
	defer cd.Close()
	require.NoError(t, cd.Initialize(context.Background(), nil, nil))

	mid := "0"
	idx := uint16(0)
	sig.in <- domain.CandidateEnvelope(webrtc.ICECandidateInit{
		Candidate:     "candidate:1 1 udp 2130706431 192.0.2.1 50000 typ host",
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	})
	require.Eventually(t, func() bool { return cd.PendingCandidates() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.ConnNew, cd.State())

	remote, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	defer remote.Close()
	_, err = remote.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo)
	require.NoError(t, err)
	offer, err := remote.CreateOffer(nil)
	require.NoError(t, err)
	require.NoError(t, remote.SetLocalDescription(offer))

	sig.in <- domain.OfferEnvelope(offer)
	require.Eventually(t, func() bool {
		return cd.PendingCandidates() == 0 && contains(sig.sentTypes(), domain.MessageAnswer)
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.ConnConnecting, cd.State())
	assert.NoError(t, cd.Err())
}

func TestGarbageOfferFails(t *testing.T) {
	sig := newFakeSignaler(domain.RoleCandidate)
	cd := NewCoordinator(domain.Identity{Session: "3", Role: domain.RoleCandidate}, webrtc.Configuration{}, sig)
	defer cd.Close()
	var log stateLog
	require.NoError(t, cd.Initialize(context.Background(), nil, log.record))

	sig.in <- domain.OfferEnvelope(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "garbage"})

	select {
	case <-cd.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Equal(t, domain.ConnFailed, cd.State())
	assert.ErrorIs(t, cd.Err(), domain.ErrNegotiation)
	assert.Equal(t, []domain.ConnState{domain.ConnFailed}, log.all())
}

func TestUserDisconnectedIsTerminal(t *testing.T) {
	sig := newFakeSignaler(domain.RoleInterviewer)
	iv := NewCoordinator(domain.Identity{Session: "4", Role: domain.RoleInterviewer}, webrtc.Configuration{}, sig)
	defer iv.Close()
	var log stateLog
	require.NoError(t, iv.Initialize(context.Background(), []webrtc.TrackLocal{videoTrack(t, "v")}, log.record))

	sig.in <- domain.DisconnectedEnvelope(domain.RoleCandidate)

	select {
	case <-iv.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Equal(t, domain.ConnDisconnected, iv.State())
	assert.Equal(t, []domain.ConnState{domain.ConnConnecting, domain.ConnDisconnected}, log.all())

	_, open := <-iv.Tracks()
	assert.False(t, open)
}

func TestCloseIsIdempotent(t *testing.T) {
	sig := newFakeSignaler(domain.RoleCandidate)
	cd := NewCoordinator(domain.Identity{Session: "5", Role: domain.RoleCandidate}, webrtc.Configuration{}, sig)
	var log stateLog
	require.NoError(t, cd.Initialize(context.Background(), nil, log.record))

	cd.Close()
	cd.Close()

	<-cd.Done()
	assert.Equal(t, domain.ConnClosed, cd.State())
	assert.Equal(t, []domain.ConnState{domain.ConnClosed}, log.all())
}

func TestCloseBeforeInitialize(t *testing.T) {
	cd := NewCoordinator(domain.Identity{Session: "6", Role: domain.RoleCandidate}, webrtc.Configuration{}, newFakeSignaler(domain.RoleCandidate))
	cd.Close()
	<-cd.Done()
	assert.ErrorIs(t, cd.Initialize(context.Background(), nil, nil), domain.ErrInvalidState)
}

func TestInitializeTwice(t *testing.T) {
	cd := NewCoordinator(domain.Identity{Session: "7", Role: domain.RoleCandidate}, webrtc.Configuration{}, newFakeSignaler(domain.RoleCandidate))
	defer cd.Close()
	require.NoError(t, cd.Initialize(context.Background(), nil, nil))
	assert.ErrorIs(t, cd.Initialize(context.Background(), nil, nil), domain.ErrInvalidState)
}

func TestInterviewerWaitsForCandidate(t *testing.T) {
	sig := newFakeSignaler(domain.RoleInterviewer)
	iv := NewCoordinator(domain.Identity{Session: "8", Role: domain.RoleInterviewer}, webrtc.Configuration{}, sig)
	defer iv.Close()
	require.NoError(t, iv.Initialize(context.Background(), []webrtc.TrackLocal{videoTrack(t, "v")}, nil))

	require.Eventually(t, func() bool { return contains(sig.sentTypes(), domain.MessageOffer) }, time.Second, 5*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, domain.ConnConnecting, iv.State())
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to domain.ConnState
		ok       bool
	}{
		{domain.ConnNew, domain.ConnConnecting, true},
		{domain.ConnConnecting, domain.ConnConnected, true},
		{domain.ConnConnected, domain.ConnDisconnected, true},
		{domain.ConnConnected, domain.ConnConnecting, false},
		{domain.ConnNew, domain.ConnDisconnected, true},
		{domain.ConnConnected, domain.ConnFailed, true},
		{domain.ConnDisconnected, domain.ConnConnected, false},
		{domain.ConnDisconnected, domain.ConnFailed, false},
		{domain.ConnDisconnected, domain.ConnClosed, true},
		{domain.ConnFailed, domain.ConnClosed, true},
		{domain.ConnFailed, domain.ConnConnected, false},
		{domain.ConnClosed, domain.ConnClosed, false},
		{domain.ConnClosed, domain.ConnFailed, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, canTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestStateCallbacksDoNotOverlapClose(t *testing.T) {
	cd := NewCoordinator(domain.Identity{Session: "9", Role: domain.RoleCandidate}, webrtc.Configuration{}, newFakeSignaler(domain.RoleCandidate))

	var (
		inFlight atomic.Int32
		overlap  atomic.Bool
		log      stateLog
	)
	onState := func(s domain.ConnState) {
		if inFlight.Add(1) > 1 {
			overlap.Store(true)
		}
		time.Sleep(2 * time.Millisecond)
		log.record(s)
		inFlight.Add(-1)
	}
	require.NoError(t, cd.Initialize(context.Background(), nil, onState))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		cd.onTransport(webrtc.PeerConnectionStateConnecting)
		cd.onTransport(webrtc.PeerConnectionStateConnected)
	}()
	go func() {
		defer wg.Done()
		cd.Close()
	}()
	wg.Wait()
	<-cd.Done()

	assert.False(t, overlap.Load(), "state callbacks ran concurrently")
	states := log.all()
	require.NotEmpty(t, states)
	assert.Equal(t, domain.ConnClosed, states[len(states)-1])
	assert.Equal(t, domain.ConnClosed, cd.State())
}
