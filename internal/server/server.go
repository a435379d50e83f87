package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/thruflo/asciitel/internal/config"
	"github.com/thruflo/asciitel/internal/logging"
	"github.com/thruflo/asciitel/internal/player"
	"github.com/thruflo/asciitel/internal/session"
	"github.com/thruflo/asciitel/web"
)

// shutdownTimeout bounds how long Stop waits for the HTTP listener.
const shutdownTimeout = 5 * time.Second

// Config holds server configuration options.
type Config struct {
	// Addr is the telnet listen address, host:port.
	Addr string
	// WebSocketAddr enables the WebSocket listener when not empty.
	WebSocketAddr string
	RateLimit     RateLimitConfig
	Settings      session.Settings
	Logger        *logging.Logger
	// Assets serves the browser viewer, web.GetAssets("") when nil.
	Assets fs.FS
}

// Server accepts viewers and plays a movie to each of them.
type Server struct {
	cfg     Config
	logger  *logging.Logger
	limiter *rateLimiter

	upgrader websocket.Upgrader

	mu         sync.RWMutex
	listener   net.Listener
	wsListener net.Listener
	httpServer *http.Server
	started    bool
	cancel     context.CancelFunc
	done       chan struct{}

	// wg tracks the accept loop and every session.
	wg     sync.WaitGroup
	active atomic.Int64
	served atomic.Int64
}

// New creates a new Server instance.
func New(cfg Config) (*Server, error) {
	if cfg.Addr == "" {
		return nil, errors.New("listen address is required")
	}
	if cfg.Settings.File == "" {
		return nil, errors.New("movie file is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Assets == nil && cfg.WebSocketAddr != "" {
		cfg.Assets = web.GetAssets("")
	}

	return &Server{
		cfg:     cfg,
		logger:  cfg.Logger,
		limiter: newRateLimiter(cfg.RateLimit),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}, nil
}

// NewFromConfig creates a Server from a resolved config.Config.
func NewFromConfig(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	rl := DefaultRateLimitConfig()
	rl.MaxAttempts = cfg.Server.RateLimit

	return New(Config{
		Addr:          cfg.ListenAddr(),
		WebSocketAddr: cfg.Server.WebSocketAddr,
		RateLimit:     rl,
		Settings:      session.SettingsFromConfig(cfg),
		Logger:        logger,
	})
}

// Start binds the listeners and serves viewers.
// It blocks until ctx is cancelled, Stop is called or a listener fails.
// Running sessions are cancelled and waited for before it returns.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}

	var wsListener net.Listener
	if s.cfg.WebSocketAddr != "" {
		wsListener, err = net.Listen("tcp", s.cfg.WebSocketAddr)
		if err != nil {
			listener.Close()
			s.mu.Unlock()
			return fmt.Errorf("failed to listen on %s: %w", s.cfg.WebSocketAddr, err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	s.listener = listener
	s.wsListener = wsListener
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true
	if wsListener != nil {
		s.httpServer = &http.Server{
			Handler:           s.routes(),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}
	}
	done := s.done
	s.mu.Unlock()
	defer close(done)
	defer cancel()

	s.logger.Info("listening for telnet viewers", "addr", listener.Addr().String())

	errCh := make(chan error, 2)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		errCh <- s.acceptLoop(ctx, listener)
	}()

	if wsListener != nil {
		s.logger.Info("listening for websocket viewers", "addr", wsListener.Addr().String())
		go func() {
			err := s.httpServer.Serve(wsListener)
			if errors.Is(err, http.ErrServerClosed) {
				err = nil
			}
			errCh <- err
		}()
	}

	if s.limiter != nil {
		go s.cleanupRateLimiter(ctx)
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		if serveErr != nil {
			serveErr = fmt.Errorf("server error: %w", serveErr)
		}
	}

	cancel()
	listener.Close()
	if s.httpServer != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("websocket listener shutdown", "error", err)
		}
		stop()
	}
	s.wg.Wait()

	s.logger.Info("server stopped", "sessions", s.served.Load())
	return serveErr
}

// Stop cancels every session, closes the listeners and waits for Start to
// return.
func (s *Server) Stop() error {
	s.mu.RLock()
	started, cancel, done := s.started, s.cancel, s.done
	s.mu.RUnlock()

	if !started {
		return nil
	}
	cancel()
	<-done
	return nil
}

// ListenAddr returns the actual address the telnet listener is bound to.
// Useful when port 0 is used to get an available port.
// Returns empty string if not started.
func (s *Server) ListenAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// WebSocketAddr returns the address the WebSocket listener is bound to, or
// an empty string when it is disabled or not started.
func (s *Server) WebSocketAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.wsListener == nil {
		return ""
	}
	return s.wsListener.Addr().String()
}

// ActiveSessions returns the number of viewers currently watching.
func (s *Server) ActiveSessions() int {
	return int(s.active.Load())
}

func (s *Server) acceptLoop(ctx context.Context, listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.logger.Warn("accept timed out", "error", err)
				continue
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveTelnet(ctx, conn)
		}()
	}
}

// serveTelnet plays the movie to one TCP viewer. Nothing is read from the
// connection; a failed write ends the session.
func (s *Server) serveTelnet(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	logger := s.sessionLogger(conn.RemoteAddr().String())
	ip := remoteIP(conn.RemoteAddr())

	if res := s.limiter.check(ip); !res.Allowed {
		logger.Warn("connection rejected", "reason", res.Reason, "attempts", res.Attempts, "retry_after", res.RetryAfter.Round(time.Second))
		conn.SetWriteDeadline(time.Now().Add(time.Second))
		fmt.Fprintf(conn, "Too many connections from %s, try again in %s.\r\n", ip, res.RetryAfter.Round(time.Second))
		return
	}

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	// Unblocks a write to a stalled viewer on shutdown.
	stop := context.AfterFunc(sessCtx, func() { conn.Close() })
	defer stop()

	s.run(sessCtx, conn, logger)
}

func (s *Server) sessionLogger(remote string) *logging.Logger {
	return s.logger.WithFields(map[string]any{
		"session": uuid.NewString(),
		"remote":  remote,
	})
}

func (s *Server) run(ctx context.Context, w io.Writer, logger *logging.Logger) player.Result {
	s.active.Add(1)
	s.served.Add(1)
	defer s.active.Add(-1)

	logger.Info("viewer connected")
	res := session.Run(ctx, s.cfg.Settings, w, logger)
	logger.Info("viewer disconnected", "reason", res.Reason, "frames", res.Frames)
	return res
}

// cleanupRateLimiter periodically drops idle rate limiter entries.
func (s *Server) cleanupRateLimiter(ctx context.Context) {
	ticker := time.NewTicker(s.limiter.config.Window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.cleanup()
		}
	}
}
