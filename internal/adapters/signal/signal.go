package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Interview/internal/app"
	"github.com/dkeye/Interview/internal/config"
	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

type SignalWSController struct {
	Relay   *app.Relay
	Cfg     config.ServerConfig
	Limiter *RateLimiter
}

func NewSignalWSController(relay *app.Relay, srv config.ServerConfig, sig config.SignalConfig) *SignalWSController {
	return &SignalWSController{
		Relay:   relay,
		Cfg:     srv,
		Limiter: NewRateLimiter(rate.Limit(sig.Rate), sig.Burst),
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	if buffer <= 0 {
		buffer = 32
	}
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, buffer)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal serves GET /ws/interview/:session_id/:role.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	id, err := domain.NewIdentity(c.Param("session_id"), c.Param("role"))
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("session", c.Param("session_id")).Str("role", c.Param("role")).Msg("rejecting connection")
		reason := "Invalid role"
		if !errors.Is(err, domain.ErrUnknownRole) {
			reason = err.Error()
		}
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = ws.Close()
		return
	}

	conn := newWsSignalConn(ws, ctl.Cfg.SendBuffer)
	ep := ctl.Relay.Connect(id, conn)
	log.Info().Str("module", "signal").Str("session", string(id.Session)).Str("role", string(id.Role)).Str("endpoint", string(ep.ID)).Str("client", c.GetString("client_token")).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, ep, conn)
	}()
}
