// Package relay implements the receiving endpoint: a websocket server that
// decodes incoming input events and hands them to an injection handler in
// arrival order.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/milliescient/vkey/internal/event"
	"github.com/milliescient/vkey/internal/protocol"
)

// DefaultPort is the port capture clients assume when given a bare host.
const DefaultPort = 9876

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 50 * time.Second
	maxMessageSize = 4096
)

// ErrServerAlreadyStarted is returned by Start on a running server.
var ErrServerAlreadyStarted = errors.New("relay server already started")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Input relays normally run on a trusted local network.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// A Handler consumes decoded events. Events from one connection arrive in
// wire order; handlers may be called concurrently for separate connections.
type Handler interface {
	Handle(ev event.Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(event.Event) error

// Handle calls f.
func (f HandlerFunc) Handle(ev event.Event) error { return f(ev) }

// Server accepts websocket connections from capture clients and dispatches
// their events to the handler. Upgrades are served at both / and /ws so bare
// host:port clients work unchanged.
type Server struct {
	port    int
	handler Handler
	logger  golog.Logger

	mu         sync.Mutex
	started    bool
	listener   net.Listener
	httpServer *http.Server
	sessions   map[*session]struct{}

	eventCount atomic.Int64

	activeBackgroundWorkers sync.WaitGroup
}

// NewServer returns an idle server for the given port; port 0 picks one.
func NewServer(port int, handler Handler, logger golog.Logger) *Server {
	if logger == nil {
		logger = golog.Global().Named("relay")
	}
	return &Server{
		port:     port,
		handler:  handler,
		logger:   logger,
		sessions: make(map[*session]struct{}),
	}
}

// Start binds the listen socket and begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrServerAlreadyStarted
	}

	// tcp4 avoids an IPv6-only bind on some platforms.
	listener, err := net.Listen("tcp4", fmt.Sprintf("0.0.0.0:%d", s.port))
	if err != nil {
		return errors.Wrap(err, "relay server failed to listen")
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWebsocket)
	mux.HandleFunc("/ws", s.handleWebsocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)

	s.httpServer = &http.Server{
		Handler:           s.recoverMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.started = true

	s.logger.Infow("relay server listening", "address", listener.Addr().String())
	s.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorw("relay server stopped serving", "error", err)
		}
	}, s.activeBackgroundWorkers.Done)
	return nil
}

// Addr returns the bound listen address once started, or nil. Useful with
// port 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes client sessions, shuts down the listener, and waits for
// background work to finish. Stopping a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	httpServer := s.httpServer
	sessions := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		utils.UncheckedErrorFunc(sess.conn.Close)
	}
	err := httpServer.Shutdown(ctx)
	s.activeBackgroundWorkers.Wait()
	return err
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debugw("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	sess := &session{
		id:     uuid.NewString(),
		server: s,
		conn:   conn,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		utils.UncheckedErrorFunc(conn.Close)
		return
	}
	s.sessions[sess] = struct{}{}
	total := len(s.sessions)
	s.activeBackgroundWorkers.Add(2)
	s.mu.Unlock()

	s.logger.Infow("client connected",
		"session", sess.id, "remote", r.RemoteAddr, "clients", total)

	utils.ManagedGo(sess.writePump, s.activeBackgroundWorkers.Done)
	utils.ManagedGo(sess.readPump, s.activeBackgroundWorkers.Done)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	utils.UncheckedError(json.NewEncoder(w).Encode(map[string]string{"status": "ok"}))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	clients := len(s.sessions)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	utils.UncheckedError(json.NewEncoder(w).Encode(map[string]interface{}{
		"clients": clients,
		"events":  s.eventCount.Load(),
	}))
}

// recoverMiddleware keeps a panicking handler from taking down the server.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Errorw("recovered panic in handler", "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) dropSession(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess]; ok {
		delete(s.sessions, sess)
		s.logger.Infow("client disconnected", "session", sess.id, "clients", len(s.sessions))
	}
}

func (s *Server) dispatch(ev event.Event) error {
	s.eventCount.Add(1)
	if s.handler == nil {
		return nil
	}
	return s.handler.Handle(ev)
}

// session is one connected capture client.
type session struct {
	id     string
	server *Server
	conn   *websocket.Conn
	done   chan struct{}
}

// readPump decodes messages and dispatches them synchronously; per-connection
// ordering depends on that. Malformed frames are logged and skipped so one
// bad message cannot kill the session.
func (s *session) readPump() {
	defer func() {
		close(s.done)
		s.server.dropSession(s)
		utils.UncheckedErrorFunc(s.conn.Close)
	}()

	s.conn.SetReadLimit(maxMessageSize)
	utils.UncheckedError(s.conn.SetReadDeadline(time.Now().Add(pongWait)))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				s.server.logger.Debugw("read error", "session", s.id, "error", err)
			}
			return
		}

		ev, err := protocol.Decode(data)
		if err != nil {
			s.server.logger.Warnw("skipping malformed message", "session", s.id, "error", err)
			continue
		}

		if err := s.server.dispatch(ev); err != nil {
			s.server.logger.Errorw("handler error", "session", s.id, "error", err)
		}
	}
}

// writePump keeps the connection alive with pings until the session ends.
func (s *session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			utils.UncheckedError(s.conn.SetWriteDeadline(time.Now().Add(writeWait)))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				utils.UncheckedErrorFunc(s.conn.Close)
				return
			}
		case <-s.done:
			return
		}
	}
}
