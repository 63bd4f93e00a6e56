package server

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vango-dev/helmet/pkg/assets"
	"github.com/vango-dev/helmet/pkg/head"
)

// SessionManager manages all active sessions. It handles creation,
// lookup, limits, and the cleanup of detached sessions that outlived
// their resume window.
type SessionManager struct {
	// Sessions map protected by RWMutex
	sessions map[string]*Session
	mu       sync.RWMutex

	// Configuration
	config       *SessionConfig
	manifest     *assets.Manifest
	metrics      *head.Metrics
	maxSessions  int
	resumeWindow time.Duration

	// Cleanup
	cleanupInterval time.Duration
	done            chan struct{}
	cleanupDone     chan struct{}
	shutdownOnce    sync.Once

	// Counters
	totalCreated atomic.Uint64
	totalClosed  atomic.Uint64
	peakSessions int // Protected by mu

	// Logger
	logger *slog.Logger
}

// SessionManagerOptions contains optional manager configuration.
type SessionManagerOptions struct {
	// MaxSessions is the maximum number of concurrent sessions.
	// 0 means no limit.
	MaxSessions int

	// Manifest is passed to every session binder for asset rewriting.
	Manifest *assets.Manifest

	// Metrics is passed to every session binder.
	Metrics *head.Metrics

	// CleanupInterval is how often detached sessions are checked.
	// Default: 30 seconds.
	CleanupInterval time.Duration

	// ResumeWindow is how long detached sessions remain resumable.
	// Default: 5 minutes.
	ResumeWindow time.Duration
}

// NewSessionManager creates a SessionManager. A nil opts uses defaults.
func NewSessionManager(config *SessionConfig, logger *slog.Logger, opts *SessionManagerOptions) *SessionManager {
	if config == nil {
		config = DefaultSessionConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	sm := &SessionManager{
		sessions:        make(map[string]*Session),
		config:          config,
		cleanupInterval: 30 * time.Second,
		resumeWindow:    5 * time.Minute,
		done:            make(chan struct{}),
		cleanupDone:     make(chan struct{}),
		logger:          logger.With("component", "session_manager"),
	}

	if opts != nil {
		sm.maxSessions = opts.MaxSessions
		sm.manifest = opts.Manifest
		sm.metrics = opts.Metrics
		if opts.CleanupInterval > 0 {
			sm.cleanupInterval = opts.CleanupInterval
		}
		if opts.ResumeWindow > 0 {
			sm.resumeWindow = opts.ResumeWindow
		}
	}

	go sm.cleanupLoop()

	return sm
}

// Create creates a new session for the given WebSocket connection.
func (sm *SessionManager) Create(conn *websocket.Conn) (*Session, error) {
	sm.mu.Lock()

	if sm.maxSessions > 0 && len(sm.sessions) >= sm.maxSessions {
		sm.mu.Unlock()
		return nil, ErrMaxSessionsReached
	}

	session := newSession(conn, sm.config, sm.logger, sm.manifest, sm.metrics)
	sm.sessions[session.ID] = session
	if len(sm.sessions) > sm.peakSessions {
		sm.peakSessions = len(sm.sessions)
	}
	sm.totalCreated.Add(1)

	sm.mu.Unlock()

	sm.logger.Info("session created",
		"session_id", session.ID,
		"active_sessions", sm.Count())

	return session, nil
}

// Get returns the session with the given ID, or nil.
func (sm *SessionManager) Get(id string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[id]
}

// Close closes and removes the session with the given ID.
func (sm *SessionManager) Close(id string) error {
	sm.mu.Lock()
	session, exists := sm.sessions[id]
	if exists {
		delete(sm.sessions, id)
	}
	sm.mu.Unlock()

	if !exists {
		return ErrSessionNotFound
	}

	session.Close()
	sm.totalClosed.Add(1)
	return nil
}

// Count returns the number of active sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// ResumeWindow returns how long detached sessions remain resumable.
func (sm *SessionManager) ResumeWindow() time.Duration {
	return sm.resumeWindow
}

// cleanupLoop periodically reaps sessions that closed themselves or
// stayed detached past the resume window.
func (sm *SessionManager) cleanupLoop() {
	defer close(sm.cleanupDone)

	ticker := time.NewTicker(sm.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sm.cleanup()

		case <-sm.done:
			return
		}
	}
}

// cleanup removes closed sessions and closes expired detached ones.
func (sm *SessionManager) cleanup() {
	cutoff := time.Now().Add(-sm.resumeWindow)

	sm.mu.Lock()
	var expired []*Session
	for id, session := range sm.sessions {
		if session.IsClosed() || (session.IsDetached() && session.LastActive().Before(cutoff)) {
			delete(sm.sessions, id)
			expired = append(expired, session)
		}
	}
	sm.mu.Unlock()

	for _, session := range expired {
		session.Close()
		sm.totalClosed.Add(1)
		sm.logger.Info("session reaped",
			"session_id", session.ID,
			"detached", session.IsDetached())
	}
}

// Shutdown stops the cleanup loop and closes every session.
func (sm *SessionManager) Shutdown() {
	sm.shutdownOnce.Do(func() {
		close(sm.done)
		<-sm.cleanupDone

		sm.mu.Lock()
		sessions := make([]*Session, 0, len(sm.sessions))
		for _, session := range sm.sessions {
			sessions = append(sessions, session)
		}
		sm.sessions = make(map[string]*Session)
		sm.mu.Unlock()

		for _, session := range sessions {
			session.Close()
			sm.totalClosed.Add(1)
		}

		sm.logger.Info("session manager shut down",
			"closed", len(sessions))
	})
}

// ManagerStats is a point-in-time snapshot of session counts.
type ManagerStats struct {
	Active       int
	TotalCreated uint64
	TotalClosed  uint64
	Peak         int
}

// Stats returns a snapshot of the manager's counters.
func (sm *SessionManager) Stats() ManagerStats {
	sm.mu.RLock()
	active := len(sm.sessions)
	peak := sm.peakSessions
	sm.mu.RUnlock()

	return ManagerStats{
		Active:       active,
		TotalCreated: sm.totalCreated.Load(),
		TotalClosed:  sm.totalClosed.Load(),
		Peak:         peak,
	}
}
