package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientQueueLen = 64
)

type Options struct {
	// MaxMessageBytes caps a single inbound frame. 0 means 1 MiB.
	MaxMessageBytes int64
	Logger          *slog.Logger
}

// Server forwards every frame it receives from one websocket client to all
// other connected clients, unmodified. It keeps no history and never looks
// inside a message.
type Server struct {
	opts     Options
	upgrader websocket.Upgrader
	router   *mux.Router

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	wg      sync.WaitGroup
}

type frame struct {
	messageType int
	data        []byte
}

type client struct {
	conn *websocket.Conn
	send chan frame
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

func NewServer(opts Options) *Server {
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 1 << 20
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// no origin checks: any client that reaches the port may join
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}

	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			s.opts.Logger.Info("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
		})
	})
	for _, path := range []string{"/", "/ws"} {
		r.Path(path).HeadersRegexp("Upgrade", "(?i)^websocket$").HandlerFunc(s.serveWebsocket)
	}
	r.Methods(http.MethodGet, http.MethodHead).Path("/").HandlerFunc(s.serveHealth)
	r.Methods(http.MethodGet, http.MethodHead).Path("/healthz").HandlerFunc(s.serveHealth)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	s.router.ServeHTTP(writer, request)
}

// Count reports the number of connected clients.
func (s *Server) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close disconnects every client and refuses new ones.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	for _, c := range clients {
		_ = c.conn.Close()
	}
	s.wg.Wait()
	return nil
}

// ListenAndServe runs the relay on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{Addr: addr, Handler: s}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	// hijacked websocket connections are not tracked by Shutdown
	_ = s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) serveHealth(writer http.ResponseWriter, _ *http.Request) {
	writer.Header().Set("Content-Type", "text/plain")
	writer.WriteHeader(http.StatusOK)
	_, _ = writer.Write([]byte("OK"))
}

func (s *Server) serveWebsocket(writer http.ResponseWriter, request *http.Request) {
	conn, err := s.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		s.opts.Logger.Error("failed to upgrade", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan frame, clientQueueLen)}
	if !s.register(c) {
		_ = conn.Close()
		return
	}
	s.opts.Logger.Info("client connected", "remote", request.RemoteAddr, "clients", s.Count())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.writeLoop(c)
	}()
	s.readLoop(c)

	s.unregister(c)
	_ = conn.Close()
	s.opts.Logger.Info("client disconnected", "remote", request.RemoteAddr, "clients", s.Count())
}

func (s *Server) register(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	c.close()
	s.wg.Done()
}

func (s *Server) readLoop(c *client) {
	c.conn.SetReadLimit(s.opts.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.opts.Logger.Warn("client read failed", "err", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.broadcast(c, frame{messageType: mt, data: data})
	}
}

// broadcast queues f for every client except from. A client whose queue is
// full is dropped rather than stalling everyone else.
func (s *Server) broadcast(from *client, f frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if c == from {
			continue
		}
		select {
		case c.send <- f:
		default:
			s.opts.Logger.Warn("dropping slow client")
			delete(s.clients, c)
			c.close()
			s.wg.Done()
		}
	}
}

func (s *Server) writeLoop(c *client) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	defer c.conn.Close()
	for {
		select {
		case f, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(f.messageType, f.data); err != nil {
				return
			}
		case <-t.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
