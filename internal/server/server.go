package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shelfwise/shelfwise-server/internal/config"
	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
	"github.com/shelfwise/shelfwise-server/internal/ratelimit"
)

// Server accepts socket connections and serves the framed request/response
// protocol, one goroutine per connection.
type Server struct {
	cfg     config.ServerConfig
	handler *Handler
	logger  *slog.Logger
	limiter *ratelimit.KeyedLimiter // nil when throttling is disabled

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	conns    map[string]net.Conn
	closed   bool

	wg sync.WaitGroup
}

// New creates a server around the given handler.
func New(cfg config.ServerConfig, handler *Handler, logger *slog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		baseCtx: ctx,
		cancel:  cancel,
		conns:   make(map[string]net.Conn),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = cfg.RateLimit
		}
		s.limiter = ratelimit.New(float64(cfg.RateLimit), burst)
	}
	return s
}

// Start binds the listen address and begins accepting connections in a
// background goroutine.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr(), err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		listener.Close()
		return errors.New("server already shut down")
	}
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("server listening", "addr", listener.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop(listener)
	return nil
}

// Addr returns the bound listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.baseCtx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		connID := uuid.NewString()
		if !s.trackConn(connID, conn) {
			conn.Close()
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrackConn(connID)
			s.serveConn(connID, conn)
		}()
	}
}

func (s *Server) trackConn(id string, conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[id] = conn
	return true
}

func (s *Server) untrackConn(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, id)
}

// serveConn reads frames until the peer disconnects, the deadline expires or
// a frame is malformed. Undecodable JSON gets a failure envelope and the
// connection stays open; a broken frame closes it.
func (s *Server) serveConn(connID string, conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	log := s.logger.With("conn_id", connID, "remote", remote)
	log.Info("client connected")
	defer log.Info("client disconnected")

	limiterKey := remote
	if host, _, err := net.SplitHostPort(remote); err == nil {
		limiterKey = host
	}

	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(s.baseCtx, limiterKey); err != nil {
				return
			}
		}
		if s.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		payload, err := ReadFrame(conn, s.cfg.MaxFrameSize)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
			case errors.Is(err, net.ErrClosed):
			case errors.Is(err, ErrFrameTooLarge):
				log.Warn("oversized frame, closing connection", "error", err)
			default:
				log.Warn("read failed, closing connection", "error", err)
			}
			return
		}

		var req Request
		var resp *Response
		if err := json.Unmarshal(payload, &req); err != nil {
			log.Warn("undecodable request payload", "error", err)
			resp = &Response{
				Success: false,
				Message: "无效的请求格式",
				Code:    string(domainerrors.CodeValidation),
			}
		} else {
			resp = s.handleRequest(log, &req)
		}

		if s.cfg.WriteTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		}
		if err := WriteMessage(conn, resp); err != nil {
			log.Warn("write failed, closing connection", "error", err)
			return
		}
	}
}

// handleRequest dispatches one request, converting panics into a generic
// server-error envelope so one bad request cannot take the connection down
// with half a frame written.
func (s *Server) handleRequest(log *slog.Logger, req *Request) (resp *Response) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panic", "action", req.Action, "panic", r)
			resp = &Response{
				Success: false,
				Message: fmt.Sprintf("服务器错误: %v", r),
				Code:    string(domainerrors.CodeInternal),
			}
		}
	}()

	resp = s.handler.Handle(s.baseCtx, req)
	log.Debug("request handled",
		"action", req.Action,
		"success", resp.Success,
		"duration", time.Since(start),
	)
	return resp
}

// Shutdown stops accepting, closes live connections and waits for the
// per-connection goroutines, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	listener := s.listener
	conns := make([]net.Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.cancel()
	if listener != nil {
		_ = listener.Close()
	}
	for _, c := range conns {
		_ = c.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
