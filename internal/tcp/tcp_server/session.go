package tcp_server

import (
	"auctionhouse/internal/protocol"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// session is the hub sink for one TCP connection. Replies and broadcasts
// share the mutex so lines never interleave.
type session struct {
	id        string
	conn      net.Conn
	mu        sync.Mutex
	writeWait time.Duration
	closeOnce sync.Once
	closeErr  error
}

func newSession(conn net.Conn, writeWait time.Duration) *session {
	return &session{id: uuid.NewString(), conn: conn, writeWait: writeWait}
}

func (s *session) ID() string { return s.id }

func (s *session) Send(env protocol.Envelope) error {
	line, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
	_, err = s.conn.Write(line)
	return err
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
