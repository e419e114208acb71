// Package session runs one participant through a live interview: capture,
// negotiation, recording and the result polls that follow.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Interview/internal/app/poll"
	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
	"github.com/dkeye/Interview/internal/media"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AnalysisSlowMessage is reported when the analysis outlives its deadline.
const AnalysisSlowMessage = "Analysis is taking longer than expected. Please check back later."

type Capturer interface {
	Capture(ctx context.Context) (*core.LocalMedia, error)
}

//go:generate mockgen -destination=mock_results_test.go -package=session . ResultsAPI

type Decoder interface {
	Decode(ctx context.Context, track *webrtc.TrackRemote) (media.Track, error)
}

type Recorder interface {
	SetLocalStream(s *media.Stream)
	SetRemoteStream(s *media.Stream)
	Active() bool
	Start(ctx context.Context) error
	Stop() (*domain.Artifact, error)
	Upload(ctx context.Context, a *domain.Artifact, session domain.SessionID) (*domain.ServerRecord, error)
	ReleaseCaptureResources()
}

// ResultsAPI is the part of the interview API the result polls use.
type ResultsAPI interface {
	TranscriptStatus(ctx context.Context, session domain.SessionID) (*domain.TranscriptStatus, error)
	StartAnalysis(ctx context.Context, session domain.SessionID) error
	GetInterview(ctx context.Context, session domain.SessionID) (*domain.Interview, error)
	Notify(ctx context.Context, notes ...domain.Notification)
}

type Dialer func(ctx context.Context, id domain.Identity) (core.Signaler, error)

type ConnFactory func(id domain.Identity, sig core.Signaler) core.MediaConnection

type Config struct {
	Identity           domain.Identity
	Record             bool
	Analyze            bool
	TranscriptInterval time.Duration
	AnalysisInterval   time.Duration
	AnalysisDeadline   time.Duration
}

// Outcome collects what a session produced. Fields stay nil for steps that
// did not run.
type Outcome struct {
	Record     *domain.ServerRecord     `json:"record,omitempty"`
	Transcript *domain.TranscriptStatus `json:"transcript,omitempty"`
	Interview  *domain.Interview        `json:"interview,omitempty"`
	// AnalysisPending is set when the analysis deadline passed; the server job may still finish.
	AnalysisPending bool `json:"analysis_pending,omitempty"`
}

type Runner struct {
	Config   Config
	Capturer Capturer
	Dial     Dialer
	Connect  ConnFactory
	Decoder  Decoder
	Recorder Recorder
	API      ResultsAPI
}

func (r *Runner) logger() zerolog.Logger {
	id := r.Config.Identity
	return log.With().Str("module", "session").Str("session", string(id.Session)).Str("role", string(id.Role)).Logger()
}

// Run joins the session and stays in the call until hangup is closed, the
// peer leaves or the connection fails. The recording is then uploaded and
// its results polled. Cancelling ctx aborts every step.
func (r *Runner) Run(ctx context.Context, hangup <-chan struct{}) (*Outcome, error) {
	logger := r.logger()
	id := r.Config.Identity

	local, err := r.Capturer.Capture(ctx)
	if err != nil {
		return nil, err
	}
	r.Recorder.SetLocalStream(local.Stream)
	defer r.Recorder.ReleaseCaptureResources()

	sig, err := r.Dial(ctx, id)
	if err != nil {
		return nil, err
	}
	defer sig.Close()

	callCtx, endCall := context.WithCancel(ctx)
	defer endCall()

	conn := r.Connect(id, sig)
	defer conn.Close()

	connected := make(chan struct{})
	ended := make(chan domain.ConnState, 1)
	var connectedOnce, endedOnce sync.Once
	onState := func(s domain.ConnState) {
		logger.Info().Stringer("state", s).Msg("connection state changed")
		switch {
		case s == domain.ConnConnected:
			connectedOnce.Do(func() { close(connected) })
		case s.Terminal():
			endedOnce.Do(func() { ended <- s })
		}
	}
	if err := conn.Initialize(callCtx, local.Outbound, onState); err != nil {
		return nil, err
	}

	// Set before any Start: remote tracks arrive after connected and join the
	// running composition.
	remote := media.NewStream("remote")
	r.Recorder.SetRemoteStream(remote)
	decoding := make(chan struct{})
	go func() {
		defer close(decoding)
		r.decodeRemote(callCtx, conn.Tracks(), remote)
	}()

	var callErr error
	onConnected := (<-chan struct{})(connected)
call:
	for {
		select {
		case <-onConnected:
			onConnected = nil
			if r.Config.Record {
				// the recording outlives the call context and is stopped explicitly
				if err := r.Recorder.Start(context.WithoutCancel(ctx)); err != nil {
					logger.Error().Err(err).Msg("recording did not start")
				}
			}
		case s := <-ended:
			logger.Info().Stringer("state", s).Msg("call ended")
			if s == domain.ConnFailed {
				callErr = conn.Err()
			}
			break call
		case <-conn.Done():
			callErr = conn.Err()
			break call
		case <-hangup:
			logger.Info().Msg("hanging up")
			break call
		case <-ctx.Done():
			break call
		}
	}

	out := &Outcome{}
	var artifact *domain.Artifact
	if r.Recorder.Active() {
		a, err := r.Recorder.Stop()
		if err != nil {
			logger.Error().Err(err).Msg("recording ended with an encoder error")
		}
		artifact = a
	}

	endCall()
	conn.Close()
	<-decoding
	remote.Stop()
	r.Recorder.ReleaseCaptureResources()

	if artifact == nil || artifact.Size() == 0 {
		if r.Config.Record {
			logger.Warn().Msg("no recording to upload")
		}
		return out, callErr
	}

	rec, err := r.Recorder.Upload(ctx, artifact, id.Session)
	if err != nil {
		return out, errors.Join(callErr, err)
	}
	out.Record = rec
	logger.Info().Str("filename", rec.Filename).Int("bytes", artifact.Size()).Msg(rec.Message)

	if err := r.results(ctx, out); err != nil {
		return out, errors.Join(callErr, err)
	}
	return out, callErr
}

// Review polls the results of an earlier session without joining it.
func (r *Runner) Review(ctx context.Context) (*Outcome, error) {
	out := &Outcome{}
	return out, r.results(ctx, out)
}

func (r *Runner) decodeRemote(ctx context.Context, tracks <-chan core.RemoteTrack, remote *media.Stream) {
	logger := r.logger()
	for rt := range tracks {
		t, err := r.Decoder.Decode(ctx, rt.Track)
		if err != nil {
			logger.Warn().Err(err).Str("track", rt.Track.ID()).Msg("remote track not decoded")
			continue
		}
		remote.AddTrack(t)
		logger.Info().Str("track", t.ID()).Str("kind", string(t.Kind())).Msg("remote track attached")
	}
}

func (r *Runner) results(ctx context.Context, out *Outcome) error {
	logger := r.logger()
	session := r.Config.Identity.Session

	watches := poll.NewRegistry(ctx)
	defer watches.Close()

	transcript, err := await(watches, domain.JobWatch{
		Session:  session,
		Kind:     domain.JobTranscript,
		Interval: r.Config.TranscriptInterval,
	}, func(ctx context.Context) (poll.Status[*domain.TranscriptStatus], error) {
		st, err := r.API.TranscriptStatus(ctx, session)
		if err != nil {
			return poll.Status[*domain.TranscriptStatus]{}, err
		}
		return poll.Status[*domain.TranscriptStatus]{
			Done:   !st.IsProcessing && st.ErrorMessage == "",
			Result: st,
			Failed: st.ErrorMessage,
		}, nil
	})
	if err != nil {
		return fmt.Errorf("transcript: %w", err)
	}
	out.Transcript = transcript
	logger.Info().Int("segments", len(transcript.TranscriptJSON)).Msg("transcript ready")

	if !r.Config.Analyze {
		return nil
	}
	if err := r.API.StartAnalysis(ctx, session); err != nil {
		return fmt.Errorf("start analysis: %w", err)
	}

	interview, err := await(watches, domain.JobWatch{
		Session:  session,
		Kind:     domain.JobAnalysis,
		Interval: r.Config.AnalysisInterval,
		Deadline: r.Config.AnalysisDeadline,
	}, func(ctx context.Context) (poll.Status[*domain.Interview], error) {
		iv, err := r.API.GetInterview(ctx, session)
		if err != nil {
			return poll.Status[*domain.Interview]{}, err
		}
		st := poll.Status[*domain.Interview]{Done: iv.AISummary != "", Result: iv}
		if !iv.IsProcessing && iv.ErrorMessage != "" {
			st.Failed = iv.ErrorMessage
		}
		return st, nil
	})
	switch {
	case errors.Is(err, domain.ErrTimeout):
		out.AnalysisPending = true
		logger.Warn().Msg(AnalysisSlowMessage)
		return nil
	case err != nil:
		return fmt.Errorf("analysis: %w", err)
	}
	out.Interview = interview
	logger.Info().Msg("analysis ready")
	r.notify(ctx, interview)
	return nil
}

// notify tells both participants that the summary is available.
func (r *Runner) notify(ctx context.Context, iv *domain.Interview) {
	if r.Config.Identity.Role != domain.RoleInterviewer {
		return
	}
	subject := fmt.Sprintf("Interview summary: %s", iv.InterviewTopic)
	var notes []domain.Notification
	for _, to := range []string{iv.InterviewerEmail, iv.CandidateEmail} {
		if to == "" {
			continue
		}
		notes = append(notes, domain.Notification{To: to, Subject: subject, Body: iv.AISummary})
	}
	if len(notes) > 0 {
		r.API.Notify(ctx, notes...)
	}
}

// await runs one watch through the registry and waits for its result.
func await[T any](watches *poll.Registry, w domain.JobWatch, check poll.Check[T]) (T, error) {
	w.StartedAt = time.Now()
	var (
		res T
		err error
	)
	<-watches.Start(w.Key(), func(ctx context.Context) {
		res, err = poll.Watch(ctx, w, check)
	})
	return res, err
}
