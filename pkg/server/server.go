package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/vango-dev/helmet/pkg/head"
	"github.com/vango-dev/helmet/pkg/protocol"
)

// Server is the HTTP/WebSocket server for head mirroring.
type Server struct {
	// Session management
	sessions *SessionManager

	// Configuration
	config *ServerConfig

	// WebSocket upgrader
	upgrader websocket.Upgrader

	// HTTP routing
	router chi.Router

	// HTTP server
	httpServer *http.Server

	// Logger
	logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(config *ServerConfig) *Server {
	if config == nil {
		config = DefaultServerConfig()
	} else {
		// Fill in defaults for any unset fields
		defaults := DefaultServerConfig()
		if config.Address == "" {
			config.Address = defaults.Address
		}
		if config.ReadBufferSize == 0 {
			config.ReadBufferSize = defaults.ReadBufferSize
		}
		if config.WriteBufferSize == 0 {
			config.WriteBufferSize = defaults.WriteBufferSize
		}
		if config.CheckOrigin == nil {
			config.CheckOrigin = defaults.CheckOrigin
		}
		if config.Session == nil {
			config.Session = defaults.Session
		}
		if config.ShutdownTimeout == 0 {
			config.ShutdownTimeout = defaults.ShutdownTimeout
		}
		if config.CleanupInterval == 0 {
			config.CleanupInterval = defaults.CleanupInterval
		}
		if config.ResumeWindow == 0 {
			config.ResumeWindow = defaults.ResumeWindow
		}
	}
	if config.Metrics == nil {
		config.Metrics = head.DefaultMetrics()
	}

	logger := slog.Default().With("component", "server")

	s := &Server{
		sessions: NewSessionManager(config.Session, logger, &SessionManagerOptions{
			MaxSessions:     config.MaxSessions,
			Manifest:        config.Manifest,
			Metrics:         config.Metrics,
			CleanupInterval: config.CleanupInterval,
			ResumeWindow:    config.ResumeWindow,
		}),
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		logger: logger,
	}

	r := chi.NewRouter()
	r.Get("/live", s.HandleWebSocket)
	r.Get("/sessions/{id}/head", s.HandleSessionHead)
	r.Get("/healthz", s.HandleHealth)
	s.router = r

	return s
}

// Router returns the server's route tree for mounting in a parent router.
func (s *Server) Router() chi.Router {
	return s.router
}

// Handler returns an http.Handler for mounting in external routers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HandleWebSocket handles WebSocket upgrade and the opening hello.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	conn.SetReadLimit(s.config.Session.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.config.Session.HandshakeTimeout))

	_, msg, err := conn.ReadMessage()
	if err != nil {
		s.logger.Error("handshake read failed", "error", err)
		conn.Close()
		return
	}

	frame, err := protocol.DecodeFrame(msg)
	if err != nil {
		s.sendError(conn, protocol.ErrCodeBadFrame, "malformed frame")
		conn.Close()
		return
	}
	if frame.Type != protocol.FrameHello {
		s.logger.Error("handshake frame type mismatch",
			"got", frame.Type, "expected", protocol.FrameHello)
		s.sendError(conn, protocol.ErrCodeBadFrame, "expected hello frame")
		conn.Close()
		return
	}

	hello, err := protocol.DecodeHello(frame.Payload)
	if err != nil {
		s.sendError(conn, protocol.ErrCodeBadFrame, "malformed hello")
		conn.Close()
		return
	}
	if err := hello.CheckVersion(); err != nil {
		s.sendError(conn, protocol.ErrCodeVersion, err.Error())
		conn.Close()
		return
	}

	// Resume an existing session when the client presents a known ID.
	if hello.SessionID != "" {
		if session := s.sessions.Get(hello.SessionID); session != nil && !session.IsClosed() {
			session.resume(conn)
			s.sendHello(conn, session.ID)
			session.sendResync()
			session.Start()
			s.logger.Info("session resumed", "session_id", session.ID)
			return
		}
		s.logger.Info("session resume rejected", "session_id", hello.SessionID)
	}

	session, err := s.sessions.Create(conn)
	if err != nil {
		if errors.Is(err, ErrMaxSessionsReached) {
			s.sendError(conn, protocol.ErrCodeBusy, "session limit reached")
		} else {
			s.sendError(conn, protocol.ErrCodeInternal, "session create failed")
		}
		conn.Close()
		return
	}

	s.sendHello(conn, session.ID)

	// Fresh sessions open with an empty snapshot so the client clears any
	// stale mirror before the first incremental frame.
	session.sendResync()
	session.Start()

	if s.config.OnSession != nil {
		s.config.OnSession(session)
	}
}

// sendHello answers a handshake with the assigned session ID.
func (s *Server) sendHello(conn *websocket.Conn, sessionID string) {
	payload := protocol.EncodeHello(&protocol.Hello{
		Version:   protocol.Version,
		SessionID: sessionID,
	})
	frame := protocol.NewFrame(protocol.FrameHello, payload)

	conn.SetWriteDeadline(time.Now().Add(s.config.Session.WriteTimeout))
	conn.WriteMessage(websocket.BinaryMessage, frame.Encode())
}

// sendError reports a fatal handshake error before the connection closes.
func (s *Server) sendError(conn *websocket.Conn, code protocol.ErrorCode, message string) {
	payload := protocol.EncodeError(&protocol.ErrorFrame{Code: code, Message: message})
	frame := protocol.NewFrame(protocol.FrameError, payload)

	conn.SetWriteDeadline(time.Now().Add(s.config.Session.WriteTimeout))
	conn.WriteMessage(websocket.BinaryMessage, frame.Encode())
}

// HandleSessionHead serves the rendered head of one session as HTML. It is
// exported so embedding applications can wire it into their own routers.
func (s *Server) HandleSessionHead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session := s.sessions.Get(id)
	if session == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, session.HeadHTML())
}

// HandleHealth reports liveness and the active session count.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Count(),
	})
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run() error {
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", "address", s.config.Address)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil

	case <-shutdown:
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.sessions.Shutdown()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Sessions returns the session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Config returns the server configuration.
func (s *Server) Config() *ServerConfig {
	return s.config
}

// Stats returns a snapshot of session counts.
func (s *Server) Stats() ManagerStats {
	return s.sessions.Stats()
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// SetLogger sets the server logger.
func (s *Server) SetLogger(logger *slog.Logger) {
	s.logger = logger
}
