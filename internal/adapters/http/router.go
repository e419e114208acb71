package http

import (
	"context"

	"github.com/dkeye/Interview/internal/adapters/signal"
	"github.com/dkeye/Interview/internal/adapters/storage"
	"github.com/dkeye/Interview/internal/app"
	"github.com/dkeye/Interview/internal/config"
	handlers "github.com/dkeye/Interview/internal/transport/http"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const clientTokenKey = "ct"

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware tags every caller with a stable id kept in the
// session cookie, used to correlate signaling connections in logs.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		token, _ := s.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			s.Set(clientTokenKey, token)
			if err := s.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, relay *app.Relay, store storage.Store) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Server.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	secret := cfg.Server.Secret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn().Str("module", "adapters.http").Msg("server.secret not set, sessions will not survive a restart")
	}
	cookies := cookie.NewStore([]byte(secret))
	cookies.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("InterviewSessions", cookies))
	r.Use(ClientTokenMiddleware())

	ctl := signal.NewSignalWSController(relay, cfg.Server, cfg.Signal)
	rec := &handlers.RecordingHandler{Store: store}
	rooms := &handlers.RoomsHandler{Rooms: relay.Rooms}

	r.GET("/healthz", handlers.Health)
	r.GET("/ws/interview/:session_id/:role", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	api := r.Group("/api")
	api.GET("/rooms", rooms.List)
	api.POST("/interviews/:session_id/upload-recording", rec.Upload)

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Server.Mode).Msg("router setup")
	return r
}
