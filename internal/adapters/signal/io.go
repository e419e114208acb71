package signal

import (
	"context"
	"time"

	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) pingPeriod() time.Duration {
	if ctl.Cfg.PingPeriod <= 0 {
		return 54 * time.Second
	}
	return ctl.Cfg.PingPeriod
}

func (ctl *SignalWSController) writeTimeout() time.Duration {
	if ctl.Cfg.WriteTimeout <= 0 {
		return 5 * time.Second
	}
	return ctl.Cfg.WriteTimeout
}

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.pingPeriod())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.writeTimeout())); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				c.Close()
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.writeTimeout())); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				c.Close()
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, ep *core.Endpoint, c *WsSignalConn) {
	id := ep.Identity
	defer func() {
		log.Info().Str("module", "signal").Str("session", string(id.Session)).Str("role", string(id.Role)).Msg("readPump closing")
		ctl.Limiter.Forget(ep.ID)
		ctl.Relay.Leave(ep)
		c.Close()
	}()

	pongWait := ctl.pingPeriod() * 10 / 9
	if ctl.Cfg.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.Cfg.ReadLimit)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("session", string(id.Session)).Msg("readPump ctx done")
			return
		default:
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("session", string(id.Session)).Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		ctl.handleSignal(ep, c, data)
	}
}

// handleSignal validates the frame at the transport boundary and forwards it.
// A bad frame is logged and dropped; the room carries on.
func (ctl *SignalWSController) handleSignal(ep *core.Endpoint, c *WsSignalConn, data []byte) {
	id := ep.Identity
	if ctl.handleControl(c, data) {
		return
	}
	if !ctl.Limiter.Allow(ep.ID) {
		log.Warn().Str("module", "signal").Str("session", string(id.Session)).Str("role", string(id.Role)).Msg("rate limited, dropped")
		return
	}
	out, typ, err := domain.StampSender(data, id.Role)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("session", string(id.Session)).Str("role", string(id.Role)).Msg("bad envelope")
		return
	}
	delivered := ctl.Relay.Send(id.Session, id.Role, out)
	log.Debug().Str("module", "signal").Str("session", string(id.Session)).Str("from", string(id.Role)).Str("type", string(typ)).Bool("delivered", delivered).Msg("relayed")
}
