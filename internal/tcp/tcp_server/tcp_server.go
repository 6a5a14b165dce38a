package tcp_server

import (
	"auctionhouse/internal/hub"
	"auctionhouse/internal/protocol"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

const commandTimeout = 5 * time.Second

// Dispatcher answers one raw command line.
type Dispatcher interface {
	DispatchLine(ctx context.Context, line []byte) protocol.Envelope
}

// Welcomer greets a session that has just joined the hub.
type Welcomer interface {
	Welcome(ctx context.Context, s hub.Session) error
}

type Options struct {
	MaxLineBytes int
	WriteTimeout time.Duration
}

// TcpServer speaks the line-delimited JSON protocol, one goroutine per
// connection.
type TcpServer struct {
	listenAddr string
	ln         net.Listener
	hub        *hub.Hub
	welcomer   Welcomer
	dispatcher Dispatcher
	opts       Options
	ctx        context.Context

	mu      sync.Mutex
	closing bool
	ready   chan struct{}
	wg      sync.WaitGroup
}

func NewTcpServer(ctx context.Context, listenAddr string, h *hub.Hub, welcomer Welcomer, dispatcher Dispatcher, opts Options) *TcpServer {
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = 64 * 1024
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &TcpServer{
		listenAddr: listenAddr,
		hub:        h,
		welcomer:   welcomer,
		dispatcher: dispatcher,
		opts:       opts,
		ctx:        ctx,
		ready:      make(chan struct{}),
	}
}

// Start listens and serves until Dispose is called. It returns nil after a
// clean shutdown.
func (s *TcpServer) Start() error {
	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	s.ln = ln
	s.mu.Unlock()
	close(s.ready)

	zap.L().Info("tcp.listen", zap.String("addr", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosing() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				zap.L().Warn("tcp.accept", zap.Error(err))
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return fmt.Errorf("tcp accept: %w", err)
		}

		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

// Addr blocks until the listener is up and returns its address.
func (s *TcpServer) Addr() net.Addr {
	<-s.ready
	return s.ln.Addr()
}

// Dispose stops accepting, closes every session and waits for the
// connection goroutines to finish.
func (s *TcpServer) Dispose() error {
	s.mu.Lock()
	s.closing = true
	ln := s.ln
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	s.hub.CloseAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		zap.L().Error("tcp_dispose", zap.Error(errors.New("shutdown timed out")))
	}
	return err
}

func (s *TcpServer) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *TcpServer) serveConn(conn net.Conn) {
	sess := newSession(conn, s.opts.WriteTimeout)
	log := zap.L().With(zap.String("session_id", sess.ID()), zap.String("remote", conn.RemoteAddr().String()))

	defer func() {
		if r := recover(); r != nil {
			log.Error("tcp.session_panic", zap.Any("panic", r))
		}
		// Leave before close so the broadcaster never writes to a dead sink.
		s.hub.Leave(sess.ID())
		_ = sess.Close()
		s.wg.Done()
		log.Info("tcp.disconnect")
	}()

	log.Info("tcp.accept")
	s.hub.Join(sess)
	if s.isClosing() {
		return
	}

	wctx, cancel := context.WithTimeout(s.ctx, commandTimeout)
	err := s.welcomer.Welcome(wctx, sess)
	cancel()
	if err != nil {
		log.Warn("tcp.welcome_failed", zap.Error(err))
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), s.opts.MaxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		ctx, cancel := context.WithTimeout(s.ctx, commandTimeout)
		res := s.dispatcher.DispatchLine(ctx, line)
		cancel()

		if err := sess.Send(res); err != nil {
			log.Debug("tcp.write_failed", zap.Error(err))
			return
		}
	}

	if err := scanner.Err(); err != nil && !s.isClosing() {
		if errors.Is(err, bufio.ErrTooLong) {
			_ = sess.Send(protocol.TextEnvelope(protocol.Error,
				fmt.Sprintf("Error processing message: line exceeds %d bytes", s.opts.MaxLineBytes)))
		}
		log.Debug("tcp.read_failed", zap.Error(err))
	}
}
