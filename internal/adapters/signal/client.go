package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Interview/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Client is the participant side of the relay, bound to one session and role.
type Client struct {
	id   domain.Identity
	conn *websocket.Conn

	out      chan []byte
	incoming chan domain.Envelope
	done     chan struct{}

	pingPeriod   time.Duration
	writeTimeout time.Duration

	closeOnce sync.Once
}

// InterviewURL builds <base>/ws/interview/<session>/<role>.
func InterviewURL(base string, id domain.Identity) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("%w: bad signal url: %v", domain.ErrSignaling, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path += "/ws/interview/" + url.PathEscape(string(id.Session)) + "/" + url.PathEscape(string(id.Role))
	return u.String(), nil
}

// Dial connects to the relay and starts the pumps.
func Dial(ctx context.Context, base string, id domain.Identity, pingPeriod time.Duration) (*Client, error) {
	target, err := InterviewURL(base, id)
	if err != nil {
		return nil, err
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial %s: %v (status %d)", domain.ErrSignaling, target, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: dial %s: %v", domain.ErrSignaling, target, err)
	}
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	c := &Client{
		id:           id,
		conn:         conn,
		out:          make(chan []byte, 64),
		incoming:     make(chan domain.Envelope, 64),
		done:         make(chan struct{}),
		pingPeriod:   pingPeriod,
		writeTimeout: 5 * time.Second,
	}
	log.Info().Str("module", "signal").Str("session", string(id.Session)).Str("role", string(id.Role)).Str("url", target).Msg("connected to relay")
	go c.writePump()
	go c.readPump()
	return c, nil
}

func (c *Client) Send(ctx context.Context, env domain.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSignaling, err)
	}
	select {
	case c.out <- data:
		return nil
	case <-c.done:
		return fmt.Errorf("%w: %v", domain.ErrSignaling, ErrConnClosed)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Incoming() <-chan domain.Envelope { return c.incoming }

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer func() {
		close(c.incoming)
		c.Close()
	}()
	pongWait := c.pingPeriod * 10 / 9
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				log.Warn().Err(err).Str("module", "signal").Str("session", string(c.id.Session)).Msg("relay read")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		env, err := domain.DecodeEnvelope(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("session", string(c.id.Session)).Msg("dropping envelope")
			continue
		}
		select {
		case c.incoming <- env:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout)); err != nil {
				c.Close()
				return
			}
		case data := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("session", string(c.id.Session)).Msg("relay write")
				c.Close()
				return
			}
		}
	}
}
