package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/leonletto/tellersim/internal/dispatch"
	"github.com/leonletto/tellersim/internal/identity"
	"github.com/leonletto/tellersim/internal/ratelimit"
	"github.com/leonletto/tellersim/internal/rpc"
	"github.com/leonletto/tellersim/internal/transport"
)

// Options configures a Server. Dispatcher and Hub are required.
type Options struct {
	TerminalPath    string
	ObserverPath    string
	SendBuffer      int
	MaxMessageBytes int64

	Dispatcher      *dispatch.Dispatcher
	Hub             *Hub
	ObserverLimiter *ratelimit.Limiter

	// Authorize gates the terminal upgrade. Nil admits everyone.
	Authorize func(r *http.Request) bool

	// Fallback serves every non-WebSocket path on the same listener.
	Fallback http.Handler

	Logger *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Server accepts terminal and observer connections on one listener.
type Server struct {
	addr       string
	opts       Options
	httpServer *http.Server
	upgrader   websocket.Upgrader
	observer   *observerHandler
	logger     *slog.Logger

	mu       sync.RWMutex
	listener net.Listener
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a server for addr ("host:port"; port 0 picks a free
// port, see Addr).
func NewServer(addr string, opts Options) *Server {
	if opts.TerminalPath == "" {
		opts.TerminalPath = "/ws/tellerapp/client"
	}
	if opts.ObserverPath == "" {
		opts.ObserverPath = "/ws/admin"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger.With("component", "websocket")

	s := &Server{
		addr:   addr,
		opts:   opts,
		logger: logger,
		upgrader: websocket.Upgrader{
			// Allow all origins; terminals and the admin console run anywhere.
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		observer: &observerHandler{
			injector: opts.Dispatcher,
			limiter:  opts.ObserverLimiter,
			logger:   logger,
		},
	}

	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router returns the handler for both WebSocket paths plus the fallback.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get(s.opts.TerminalPath, s.handleTerminal)
	r.Get(s.opts.ObserverPath, s.handleObserver)
	if s.opts.Fallback != nil {
		r.Mount("/", s.opts.Fallback)
	}
	return r
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return fmt.Errorf("server is shutting down")
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", "error", err)
		}
	}()

	s.logger.Info("listening", "addr", ln.Addr().String(),
		"terminal_path", s.opts.TerminalPath, "observer_path", s.opts.ObserverPath)
	return nil
}

// Stop closes every connection, which cancels their pending notifications,
// then shuts the HTTP server down and waits for connection goroutines
// until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	s.opts.Hub.CloseAll()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
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
		return fmt.Errorf("waiting for connections: %w", ctx.Err())
	}
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// begin reserves a slot in the wait group unless shutting down. The read
// lock is held across the check and wg.Add so Stop cannot slip in between.
func (s *Server) begin(w http.ResponseWriter) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.shutdown {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, bool) {
	if !s.begin(w) {
		return nil, false
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.wg.Done()
		s.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "path", r.URL.Path, "error", err)
		return nil, false
	}
	return conn, true
}

func (s *Server) handleTerminal(w http.ResponseWriter, r *http.Request) {
	if s.opts.Authorize != nil && !s.opts.Authorize(r) {
		s.logger.Warn("terminal rejected: no valid login", "remote", r.RemoteAddr)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	c := NewConnection(conn, KindTerminal, identity.GenerateTerminalID(), s.opts.SendBuffer, s.logger)
	go s.serveTerminal(c)
}

func (s *Server) handleObserver(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	c := NewConnection(conn, KindObserver, identity.GenerateObserverID(), s.opts.SendBuffer, s.logger)
	go s.serveObserver(c)
}

// serveTerminal runs one terminal until it disconnects. On exit reading
// has stopped, the socket is closed, and the hub has cancelled its
// deferred notifications and dropped it, in that order.
func (s *Server) serveTerminal(c *Connection) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(transport.WithEndpoint(context.Background(), transport.EndpointTerminal))
	defer cancel()

	writeDone := s.startWriter(ctx, c)

	s.opts.Hub.RegisterTerminal(c)
	if s.closeIfShuttingDown(c) {
		s.logger.Debug("terminal registered during shutdown", "conn", c.ID())
	} else if err := s.opts.Dispatcher.Notify(c, rpc.NotifyConnectionEstablished, rpc.ConnectionEstablished{
		Success:   true,
		Timestamp: s.opts.Now().UnixMilli(),
	}); err != nil {
		s.logger.Warn("send connection_established", "conn", c.ID(), "error", err)
	}

	err := c.ReadLoop(ctx, s.opts.MaxMessageBytes, func(ctx context.Context, data []byte) {
		s.opts.Dispatcher.HandleFrame(ctx, c, data)
	})
	if err != nil {
		s.logger.Debug("terminal read loop ended", "conn", c.ID(), "error", err)
	}

	_ = c.Close()
	s.opts.Hub.UnregisterTerminal(c)
	cancel()
	<-writeDone
}

func (s *Server) serveObserver(c *Connection) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(transport.WithEndpoint(context.Background(), transport.EndpointObserver))
	defer cancel()

	writeDone := s.startWriter(ctx, c)
	s.opts.Hub.RegisterObserver(c)
	s.closeIfShuttingDown(c)

	err := c.ReadLoop(ctx, s.opts.MaxMessageBytes, func(ctx context.Context, data []byte) {
		s.observer.handle(ctx, c, data)
	})
	if err != nil {
		s.logger.Debug("observer read loop ended", "conn", c.ID(), "error", err)
	}

	_ = c.Close()
	s.opts.Hub.UnregisterObserver(c)
	s.opts.ObserverLimiter.Forget(c.ID())
	cancel()
	<-writeDone
}

// closeIfShuttingDown closes c when Stop began after c was admitted. Stop
// sets the flag before CloseAll takes its snapshot, so a connection
// registered too late for that snapshot is closed here instead.
func (s *Server) closeIfShuttingDown(c *Connection) bool {
	s.mu.RLock()
	down := s.shutdown
	s.mu.RUnlock()
	if down {
		_ = c.Close()
	}
	return down
}

// startWriter runs WriteLoop; a write failure closes the connection so the
// read side stops too.
func (s *Server) startWriter(ctx context.Context, c *Connection) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.WriteLoop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Debug("write loop ended", "conn", c.ID(), "error", err)
		}
		_ = c.Close()
	}()
	return done
}
