package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/dkeye/Interview/internal/adapters/api"
	"github.com/dkeye/Interview/internal/adapters/capture"
	"github.com/dkeye/Interview/internal/adapters/ffmpeg"
	"github.com/dkeye/Interview/internal/adapters/rtc"
	relay "github.com/dkeye/Interview/internal/adapters/signal"
	"github.com/dkeye/Interview/internal/app/compose"
	"github.com/dkeye/Interview/internal/app/recording"
	"github.com/dkeye/Interview/internal/app/session"
	"github.com/dkeye/Interview/internal/config"
	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
)

const usage = `Usage:
  participant [flags]          join a session and stay in the call
  participant review [flags]   poll the results of an earlier session

Flags:
`

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	args := os.Args[1:]
	review := len(args) > 0 && args[0] == "review"
	if review {
		args = args[1:]
	}

	flags := pflag.NewFlagSet("participant", pflag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	flags.String("session", "", "interview session id")
	flags.String("role", "", "interviewer or candidate")
	flags.String("signal", "ws://localhost:8000", "relay base URL")
	flags.String("api", "http://localhost:8000/api", "interview API base URL")
	flags.String("token", "", "bearer token for the interview API")
	flags.Duration("duration", 0, "hang up after this long; zero waits for an interrupt")
	flags.Bool("record", false, "record the call and upload it")
	flags.Bool("analyze", false, "request the AI analysis once the transcript is ready")
	_ = flags.Parse(args)

	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	role := cfg.Client.Role
	if review && role == "" {
		role = string(domain.RoleInterviewer)
	}
	id, err := domain.NewIdentity(cfg.Client.Session, role)
	if err != nil {
		flags.Usage()
		log.Fatal().Err(err).Msg("invalid session or role")
	}

	runner := newRunner(cfg, id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The first interrupt hangs up and lets the upload and polls finish; the second aborts.
	hangup := make(chan struct{})
	var hangupOnce sync.Once
	endCall := func() { hangupOnce.Do(func() { close(hangup) }) }
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		if !review {
			log.Info().Msg("hanging up, interrupt again to abort")
			endCall()
			<-sigs
		}
		cancel()
	}()
	if cfg.Client.Duration > 0 {
		time.AfterFunc(cfg.Client.Duration, endCall)
	}

	var out *session.Outcome
	if review {
		out, err = runner.Review(ctx)
	} else {
		out, err = runner.Run(ctx, hangup)
	}
	if out != nil {
		if out.AnalysisPending {
			fmt.Fprintln(os.Stderr, session.AnalysisSlowMessage)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	}
	if err != nil {
		log.Error().Err(err).Msg("session ended with an error")
		os.Exit(1)
	}
}

func newRunner(cfg *config.Config, id domain.Identity) *session.Runner {
	client := api.NewClient(cfg.Client.APIURL, cfg.Client.Token)
	rec := cfg.Recording

	enc := ffmpeg.NewEncoder(cfg.Capture.FFmpeg, rec.Width, rec.Height, rec.FPS)
	controller := recording.NewController(enc, client, recording.Config{
		Timeslice: rec.Timeslice,
		Compose:   compose.Config{Width: rec.Width, Height: rec.Height, FPS: rec.FPS},
		Container: rec.Container,
	})
	webrtcCfg := rtc.DefaultWebRTCConfig(cfg.Client.ICEServers)

	return &session.Runner{
		Config: session.Config{
			Identity:           id,
			Record:             rec.Enabled,
			Analyze:            cfg.Poll.Analyze,
			TranscriptInterval: cfg.Poll.TranscriptInterval,
			AnalysisInterval:   cfg.Poll.AnalysisInterval,
			AnalysisDeadline:   cfg.Poll.AnalysisDeadline,
		},
		Capturer: capture.NewCapturer(cfg.Capture),
		Dial: func(ctx context.Context, id domain.Identity) (core.Signaler, error) {
			c, err := relay.Dial(ctx, cfg.Client.SignalURL, id, cfg.Server.PingPeriod)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		Connect: func(id domain.Identity, sig core.Signaler) core.MediaConnection {
			return rtc.NewCoordinator(id, webrtcCfg, sig)
		},
		Decoder:  ffmpeg.NewDecoder(cfg.Capture.FFmpeg, rec.Width, rec.Height, rec.FPS),
		Recorder: controller,
		API:      client,
	}
}
