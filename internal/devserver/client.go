package devserver

import (
	"sync"
	"time"

	"quiz-host/internal/protocol"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 64
	// closeGrace bounds the wait for the peer's close reply.
	closeGrace = 2 * time.Second
)

type outbound struct {
	data        []byte
	closeCode   int
	closeReason string
}

// client is one websocket connection. Only writeLoop writes to conn.
type client struct {
	conn *websocket.Conn
	log  *logrus.Entry
	send chan outbound
	done chan struct{}
	once sync.Once

	// owned by the room loop
	nickname string
}

func newClient(conn *websocket.Conn, log *logrus.Entry) *client {
	return &client{
		conn: conn,
		log:  log,
		send: make(chan outbound, sendBuffer),
		done: make(chan struct{}),
	}
}

// push queues a frame without blocking; a full buffer drops the frame.
func (c *client) push(data []byte) {
	if data == nil {
		return
	}
	select {
	case c.send <- outbound{data: data}:
	default:
		c.log.WithField("nickname", c.nickname).Warn("client too slow, dropping message")
	}
}

func (c *client) closeWith(code int, reason string) {
	select {
	case c.send <- outbound{closeCode: code, closeReason: reason}:
	default:
		c.stop()
	}
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

func (c *client) writeLoop() {
	for {
		select {
		case out := <-c.send:
			deadline := time.Now().Add(writeWait)
			if out.closeCode != 0 {
				msg := websocket.FormatCloseMessage(out.closeCode, out.closeReason)
				_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
				_ = c.conn.SetReadDeadline(time.Now().Add(closeGrace))
				return
			}
			_ = c.conn.SetWriteDeadline(deadline)
			if err := c.conn.WriteMessage(websocket.TextMessage, out.data); err != nil {
				c.log.WithError(err).Debug("ws write error")
				return
			}
		case <-c.done:
			return
		}
	}
}

func encodeFrame(msgType string, payload any) []byte {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		logrus.WithError(err).WithField("type", msgType).Error("encode frame")
		return nil
	}
	return data
}

func errorFrame(message, code string) []byte {
	return encodeFrame(protocol.EvtError, protocol.ServerError{Message: message, Code: code})
}
