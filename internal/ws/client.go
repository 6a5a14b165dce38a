package ws

import (
	"auctionhouse/internal/protocol"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type clientConn struct {
	id        string
	rawConn   *websocket.Conn
	mu        sync.Mutex
	closeOnce sync.Once
}

func newClientConn(rawConn *websocket.Conn) *clientConn {
	return &clientConn{id: uuid.NewString(), rawConn: rawConn}
}

func (c *clientConn) ID() string { return c.id }

// Send writes env as one text frame.
func (c *clientConn) Send(env protocol.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.rawConn.WriteMessage(websocket.TextMessage, data)
}

func (c *clientConn) ping() error {
	return c.rawConn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *clientConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.rawConn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = c.rawConn.Close()
	})
	return err
}
