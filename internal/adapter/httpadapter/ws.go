package httpadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/twpayne/go-geom"

	"github.com/couchcryptid/storm-radar/internal/anchor"
	"github.com/couchcryptid/storm-radar/internal/domain"
	"github.com/couchcryptid/storm-radar/internal/session"
	"github.com/couchcryptid/storm-radar/internal/viewstate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
)

// Outbound message types.
const (
	messageRender = "render"
	messageError  = "error"
)

type outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// command is a client request. Only the fields its type uses are read.
type command struct {
	Type     string           `json:"type"`
	SpeedMs  int              `json:"speed_ms"`
	Index    int              `json:"index"`
	Delta    int              `json:"delta"`
	ViewID   string           `json:"view_id"`
	Enabled  bool             `json:"enabled"`
	LayerID  string           `json:"layer_id"`
	Opacity  float64          `json:"opacity"`
	Mode     string           `json:"mode"`
	Lat      *float64         `json:"lat"`
	Lon      *float64         `json:"lon"`
	Viewport *domain.Viewport `json:"viewport"`
	// Bounds is [minLon, minLat, maxLon, maxLat], an alternative to Viewport.
	Bounds []float64 `json:"bounds"`
}

var errUnknownCommand = errors.New("unknown command")

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sess := s.deps.NewSession()
	ctx, cancel := context.WithCancel(s.sessions)
	defer cancel()

	c := &client{
		conn:   conn,
		sess:   sess,
		errs:   make(chan string, 8),
		logger: s.logger.With("session_id", sess.ID()),
	}
	go func() {
		if err := sess.Run(ctx); err != nil {
			c.logger.Error("session failed", "error", err)
		}
	}()
	go c.writePump()
	c.readPump()
	sess.Close()
}

// client bridges one WebSocket connection to one session. Only writePump
// writes to the connection.
type client struct {
	conn   *websocket.Conn
	sess   *session.Session
	errs   chan string
	logger *slog.Logger
}

func (c *client) readPump() {
	defer func() { _ = c.conn.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("unexpected websocket close", "error", err)
			}
			return
		}

		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.reportError("malformed command")
			continue
		}
		if err := dispatch(c.sess, cmd); err != nil {
			if errors.Is(err, session.ErrClosed) {
				return
			}
			c.reportError(describeCommandError(err))
		}
	}
}

func (c *client) reportError(msg string) {
	select {
	case c.errs <- msg:
	default:
		c.logger.Debug("dropping error message", "error", msg)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case rs, ok := <-c.sess.Updates():
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := c.write(outbound{Type: messageRender, Data: rs}); err != nil {
				return
			}
		case msg := <-c.errs:
			if err := c.write(outbound{Type: messageError, Error: msg}); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) write(msg outbound) error {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("encode websocket message", "error", err, "type", msg.Type)
		return nil
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func dispatch(sess *session.Session, cmd command) error {
	switch cmd.Type {
	case "play":
		return sess.Play()
	case "pause":
		return sess.Pause()
	case "speed":
		return sess.SetSpeed(cmd.SpeedMs)
	case "scrub":
		return sess.Scrub(cmd.Index)
	case "step":
		return sess.Step(cmd.Delta)
	case "view":
		return sess.SetView(cmd.ViewID)
	case "advanced":
		return sess.SetAdvancedMode(cmd.Enabled)
	case "layer_enabled":
		return sess.SetLayerEnabled(viewstate.LayerID(cmd.LayerID), cmd.Enabled)
	case "layer_opacity":
		return sess.SetLayerOpacity(viewstate.LayerID(cmd.LayerID), cmd.Opacity)
	case "anchor_mode":
		m, ok := anchor.ParseMode(cmd.Mode)
		if !ok {
			return fmt.Errorf("anchor mode %q: %w", cmd.Mode, domain.ErrInvalidInput)
		}
		return sess.SetAnchorMode(m)
	case "location":
		p, err := locationOf(cmd)
		if err != nil {
			return err
		}
		return sess.UpdateLocation(p)
	case "viewport":
		v, err := viewportOf(cmd)
		if err != nil {
			return err
		}
		return sess.UpdateViewport(v)
	case "refresh":
		return sess.Refresh()
	default:
		return fmt.Errorf("%w %q", errUnknownCommand, cmd.Type)
	}
}

func locationOf(cmd command) (domain.GeoPoint, error) {
	if cmd.Lat == nil || cmd.Lon == nil {
		return domain.GeoPoint{}, fmt.Errorf("lat and lon required: %w", domain.ErrInvalidInput)
	}
	return domain.GeoPoint{Lat: *cmd.Lat, Lon: *cmd.Lon}, nil
}

func viewportOf(cmd command) (domain.Viewport, error) {
	switch {
	case cmd.Viewport != nil:
		return *cmd.Viewport, nil
	case len(cmd.Bounds) == 4:
		b := geom.NewBounds(geom.XY).Set(cmd.Bounds...)
		return domain.ViewportFromBounds(b), nil
	default:
		return domain.Viewport{}, fmt.Errorf("viewport or bounds required: %w", domain.ErrInvalidInput)
	}
}

func describeCommandError(err error) string {
	if errors.Is(err, errUnknownCommand) || errors.Is(err, domain.ErrInvalidInput) {
		return err.Error()
	}
	return domain.Describe(err)
}
