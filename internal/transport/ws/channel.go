package ws

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"quiz-host/internal/app"
	"quiz-host/internal/domain"
	"quiz-host/internal/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteWait        = 10 * time.Second
	// closeGrace bounds the wait for the server's close frame after a local Close.
	closeGrace     = 2 * time.Second
	maxMessageSize = 1 << 20
)

// Options tunes the websocket dialer.
type Options struct {
	HandshakeTimeout time.Duration
	WriteWait        time.Duration
	// PingInterval enables keepalive pings; the pong deadline is twice the interval.
	PingInterval time.Duration
	Logger       *logrus.Entry
}

// ChannelURL derives the session endpoint for gameCode from the server base url.
func ChannelURL(base, gameCode string) (string, error) {
	if strings.TrimSpace(gameCode) == "" {
		return "", fmt.Errorf("%w: empty game code", domain.ErrConnection)
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: server url %q: %v", domain.ErrConnection, base, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", domain.ErrConnection, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: server url %q has no host", domain.ErrConnection, base)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + url.PathEscape(gameCode)
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// Dialer opens session channels against one game server.
type Dialer struct {
	base   string
	opts   Options
	dialer *websocket.Dialer
	log    *logrus.Entry
}

var _ app.Dialer = (*Dialer)(nil)

func NewDialer(baseURL string, opts Options) *Dialer {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = defaultWriteWait
	}
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dialer{
		base: baseURL,
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		log: log.WithField("component", "ws"),
	}
}

// Open validates the endpoint and returns a connecting channel. The handshake runs in the
// background; the listener hears Opened, then Message frames in order, then exactly one Closed.
func (d *Dialer) Open(gameCode string, l app.ChannelListener) (app.Channel, error) {
	target, err := ChannelURL(d.base, gameCode)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		id:       uuid.NewString(),
		url:      target,
		opts:     d.opts,
		listener: l,
		cancel:   cancel,
		state:    stateConnecting,
	}
	c.log = d.log.WithFields(logrus.Fields{"channel": c.id, "game_code": gameCode})
	go c.run(ctx, d.dialer)
	return c, nil
}

type state int

const (
	stateConnecting state = iota
	stateOpen
	stateClosing
	stateClosed
)

// Channel is one websocket connection to a game. Send never queues: it writes only while open.
type Channel struct {
	id       string
	url      string
	opts     Options
	listener app.ChannelListener
	log      *logrus.Entry
	cancel   context.CancelFunc

	mu          sync.Mutex
	state       state
	conn        *websocket.Conn
	localCode   int
	localReason string

	writeMu sync.Mutex
}

func (c *Channel) ID() string { return c.id }

func (c *Channel) Send(msgType string, payload any) bool {
	c.mu.Lock()
	if c.state != stateOpen {
		c.mu.Unlock()
		return false
	}
	conn := c.conn
	c.mu.Unlock()

	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		c.log.WithError(err).WithField("type", msgType).Error("encode command")
		return false
	}
	if err := c.write(conn, websocket.TextMessage, data); err != nil {
		c.log.WithError(err).WithField("type", msgType).Warn("write failed")
		return false
	}
	return true
}

// Close starts a local close. It is safe to call repeatedly and from any goroutine.
func (c *Channel) Close(code int, reason string) {
	c.mu.Lock()
	switch c.state {
	case stateClosing, stateClosed:
		c.mu.Unlock()
		return
	case stateConnecting:
		c.state = stateClosing
		c.localCode, c.localReason = code, reason
		c.mu.Unlock()
		c.cancel()
		return
	}
	c.state = stateClosing
	c.localCode, c.localReason = code, reason
	conn := c.conn
	c.mu.Unlock()

	msg := websocket.FormatCloseMessage(code, reason)
	c.writeMu.Lock()
	err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.opts.WriteWait))
	c.writeMu.Unlock()
	if err != nil {
		c.log.WithError(err).Debug("close frame not sent")
	}
	_ = conn.SetReadDeadline(time.Now().Add(closeGrace))
}

func (c *Channel) write(conn *websocket.Conn, messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
		return err
	}
	return conn.WriteMessage(messageType, data)
}

func (c *Channel) run(ctx context.Context, dialer *websocket.Dialer) {
	defer c.cancel()

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.mu.Lock()
		local := c.state == stateClosing
		c.state = stateClosed
		code, reason := c.localCode, c.localReason
		c.mu.Unlock()
		if local {
			c.listener.Closed(code, reason, true)
			return
		}
		c.log.WithError(err).Warn("dial failed")
		c.listener.Failed(fmt.Errorf("%w: %v", domain.ErrConnection, err))
		c.listener.Closed(websocket.CloseAbnormalClosure, "", false)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c.mu.Lock()
	c.conn = conn
	if c.state == stateClosing {
		// Close raced with the handshake
		code, reason := c.localCode, c.localReason
		c.state = stateClosed
		c.mu.Unlock()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(c.opts.WriteWait))
		_ = conn.Close()
		c.listener.Closed(code, reason, true)
		return
	}
	c.state = stateOpen
	c.mu.Unlock()

	c.log.Debug("channel open")
	c.listener.Opened()

	stopPing := make(chan struct{})
	if c.opts.PingInterval > 0 {
		c.startKeepalive(conn, stopPing)
	}
	code, reason, clean := c.readLoop(conn)
	close(stopPing)
	_ = conn.Close()

	c.mu.Lock()
	if c.state == stateClosing {
		code, reason, clean = c.localCode, c.localReason, true
	}
	c.state = stateClosed
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{"code": code, "reason": reason, "clean": clean}).Debug("channel closed")
	c.listener.Closed(code, reason, clean)
}

// readLoop delivers frames until the connection ends and reports how it ended.
func (c *Channel) readLoop(conn *websocket.Conn) (int, string, bool) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return ce.Code, ce.Text, true
			}
			if !c.closing() {
				c.log.WithError(err).Warn("read failed")
			}
			return websocket.CloseAbnormalClosure, "", false
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.listener.Message(data)
	}
}

func (c *Channel) closing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateClosing
}

func (c *Channel) startKeepalive(conn *websocket.Conn, stop <-chan struct{}) {
	pongWait := 2 * c.opts.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		if c.closing() {
			return nil
		}
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		ticker := time.NewTicker(c.opts.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait))
				c.writeMu.Unlock()
				if err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()
}
