package ws

import (
	"auctionhouse/internal/hub"
	"auctionhouse/internal/protocol"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be < pongWait
	commandTimeout = 5 * time.Second
)

// Dispatcher answers one raw command.
type Dispatcher interface {
	DispatchLine(ctx context.Context, line []byte) protocol.Envelope
}

// Welcomer greets a session that has just joined the hub.
type Welcomer interface {
	Welcome(ctx context.Context, s hub.Session) error
}

// WsServer carries the line protocol over WebSocket text frames: one
// command per frame in, one envelope per frame out, plus the same pushed
// LIST_AUCTIONS broadcasts the TCP sessions get.
type WsServer struct {
	hub        *hub.Hub
	welcomer   Welcomer
	dispatcher Dispatcher
	upgrader   websocket.Upgrader
	readLimit  int64
	ctx        context.Context
}

// NewWsServer builds the handler. Commands run under ctx, so cancelling it
// cancels in-flight work on every WebSocket session.
func NewWsServer(ctx context.Context, h *hub.Hub, welcomer Welcomer, dispatcher Dispatcher, readLimit int) *WsServer {
	return &WsServer{
		ctx:        ctx,
		hub:        h,
		welcomer:   welcomer,
		dispatcher: dispatcher,
		readLimit:  int64(readLimit),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true }, // dev-only
		},
	}
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	if s.readLimit > 0 {
		rawConn.SetReadLimit(s.readLimit)
	}

	conn := newClientConn(rawConn)
	s.hub.Join(conn)
	zap.L().Info("ws.accept", zap.String("session_id", conn.ID()), zap.String("remote", rawConn.RemoteAddr().String()))

	ctx, cancel := context.WithTimeout(s.ctx, commandTimeout)
	if err := s.welcomer.Welcome(ctx, conn); err != nil {
		zap.L().Warn("ws.welcome_failed", zap.String("session_id", conn.ID()), zap.Error(err))
	}
	cancel()

	done := make(chan struct{})
	go s.reader(conn, done)
	go s.pinger(conn, done)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) reader(conn *clientConn, done chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("ws.session_panic", zap.String("session_id", conn.ID()), zap.Any("panic", r))
		}
		close(done)
		s.hub.Leave(conn.ID())
		_ = conn.Close()
		zap.L().Info("ws.disconnect", zap.String("session_id", conn.ID()))
	}()

	raw := conn.rawConn
	_ = raw.SetReadDeadline(time.Now().Add(pongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Debug("ws.read_failed", zap.String("session_id", conn.ID()), zap.Error(err))
			}
			return // client closed or errored
		}
		if mt != websocket.TextMessage {
			continue
		}

		ctx, cancel := context.WithTimeout(s.ctx, commandTimeout)
		res := s.dispatcher.DispatchLine(ctx, data)
		cancel()

		if err := conn.Send(res); err != nil {
			return
		}
	}
}

func (s *WsServer) pinger(conn *clientConn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
