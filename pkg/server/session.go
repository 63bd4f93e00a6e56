package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vango-dev/helmet/pkg/assets"
	"github.com/vango-dev/helmet/pkg/dom"
	"github.com/vango-dev/helmet/pkg/head"
	"github.com/vango-dev/helmet/pkg/protocol"
	"github.com/vango-dev/helmet/pkg/vdom"
)

// Session owns one client's head mirror. It holds a private registry, an
// in-memory head document, and a binder wired to both; binder passes run
// against the document and their mutations stream to the client as
// sequenced HeadOps frames.
//
// A session survives its connection. When the WebSocket drops the session
// detaches and waits for a resume; the live mirror is rebuilt on the
// client from a resync snapshot, so no frame history is kept.
type Session struct {
	// Identity
	ID        string
	CreatedAt time.Time

	// Connection
	conn   *websocket.Conn
	mu     sync.Mutex // Protects conn writes and swaps
	closed atomic.Bool

	detached   atomic.Bool
	lastActive atomic.Int64 // Unix nanoseconds

	// Sequence numbers
	sendSeq atomic.Uint64 // Last head frame sequence sent
	ackSeq  atomic.Uint64 // Last sequence acknowledged by the client

	// Head engine
	registry head.Registry
	doc      *dom.MemoryDocument
	binder   *head.Binder

	// Live declarations in insertion order, maintained from binder
	// observer events. Resync snapshots replay this mirror.
	live      map[uint64]head.Declaration
	liveOrder []uint64
	liveMu    sync.Mutex

	// Ops buffered during a binder pass, flushed as one frame.
	pending   []protocol.HeadOp
	pendingMu sync.Mutex

	// Channels
	done chan struct{}

	// Configuration
	config *SessionConfig

	// Logger
	logger *slog.Logger

	// Counters
	framesSent atomic.Uint64
	bytesSent  atomic.Uint64
	bytesRecv  atomic.Uint64
}

// generateSessionID generates a cryptographically random session ID.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// SECURITY: weak IDs are dangerous, refuse to continue
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}

// newSession creates a session with its own registry, document, and binder.
func newSession(conn *websocket.Conn, config *SessionConfig, logger *slog.Logger, manifest *assets.Manifest, metrics *head.Metrics) *Session {
	now := time.Now()
	id := generateSessionID()

	s := &Session{
		ID:        id,
		CreatedAt: now,
		conn:      conn,
		registry:  head.NewRegistry(),
		doc:       dom.NewMemoryDocument(),
		live:      make(map[uint64]head.Declaration),
		done:      make(chan struct{}),
		config:    config,
		logger:    logger.With("session_id", id),
	}
	s.touch()

	opts := []head.BinderOption{
		head.WithRegistry(s.registry),
		head.WithDocument(s.doc),
		head.WithObserver(s),
		head.WithLogger(s.logger),
		head.WithTryLock(),
		head.WithTracing(""),
	}
	if manifest != nil {
		opts = append(opts, head.WithManifest(manifest))
	}
	if metrics != nil {
		opts = append(opts, head.WithMetrics(metrics))
	}
	s.binder = head.NewBinder(opts...)

	return s
}

// Mount is a handle for one component's mounted declarations. Unmounting
// through it releases the declarations and streams the removals.
type Mount struct {
	session  *Session
	instance *head.Instance
}

// Mount runs a reconcile pass for the given children and streams the
// resulting insertions to the client as one frame.
func (s *Session) Mount(ctx context.Context, children ...*vdom.VNode) *Mount {
	inst := s.binder.Mount(ctx, children...)
	s.Flush()
	return &Mount{session: s, instance: inst}
}

// Unmount releases the mounted declarations and streams the removals.
// It is idempotent.
func (m *Mount) Unmount() {
	if m == nil || m.instance == nil {
		return
	}
	m.instance.Unmount()
	m.session.Flush()
}

// Instance returns the underlying head instance.
func (m *Mount) Instance() *head.Instance {
	if m == nil {
		return nil
	}
	return m.instance
}

// Binder returns the session's binder for direct use. Callers that mount
// through it must call Flush themselves.
func (s *Session) Binder() *head.Binder {
	return s.binder
}

// Registry returns the session's private head registry.
func (s *Session) Registry() head.Registry {
	return s.registry
}

// Document returns the session's in-memory head document.
func (s *Session) Document() *dom.MemoryDocument {
	return s.doc
}

// HeadHTML returns the serialised head of the session document.
func (s *Session) HeadHTML() string {
	return s.doc.HeadHTML()
}

// HeadInserted buffers an insert op for the next flush and records the
// declaration in the live mirror. It implements head.Observer and runs
// inside the reconcile pass.
func (s *Session) HeadInserted(d head.Declaration, fingerprint uint64) {
	s.liveMu.Lock()
	if _, ok := s.live[fingerprint]; !ok {
		s.live[fingerprint] = d
		s.liveOrder = append(s.liveOrder, fingerprint)
	}
	s.liveMu.Unlock()

	s.pendingMu.Lock()
	s.pending = append(s.pending, insertOp(d, fingerprint))
	s.pendingMu.Unlock()
}

// HeadRemoved buffers a remove op for the next flush and drops the
// declaration from the live mirror. It implements head.Observer.
func (s *Session) HeadRemoved(fingerprint uint64) {
	s.liveMu.Lock()
	if _, ok := s.live[fingerprint]; ok {
		delete(s.live, fingerprint)
		for i, fp := range s.liveOrder {
			if fp == fingerprint {
				s.liveOrder = append(s.liveOrder[:i], s.liveOrder[i+1:]...)
				break
			}
		}
	}
	s.liveMu.Unlock()

	s.pendingMu.Lock()
	s.pending = append(s.pending, protocol.HeadOp{
		Kind:        protocol.OpHeadRemove,
		Fingerprint: fingerprint,
	})
	s.pendingMu.Unlock()
}

// insertOp converts a declaration to a wire insert op. Attribute maps are
// copied so the frame stays valid after the pass.
func insertOp(d head.Declaration, fingerprint uint64) protocol.HeadOp {
	attrs := make(map[string]string, len(d.Attrs))
	for name, value := range d.Attrs {
		attrs[name] = value
	}
	op := protocol.HeadOp{
		Kind:        protocol.OpHeadInsert,
		Fingerprint: fingerprint,
		Tag:         d.Tag,
		Attrs:       attrs,
	}
	if d.InnerHTML != nil {
		body := *d.InnerHTML
		op.InnerHTML = &body
	}
	return op
}

// Flush sends the buffered ops as one incremental frame. A flush with
// nothing buffered is a no-op. Write failures detach the session; the
// lost frame is covered by the resync snapshot on resume.
func (s *Session) Flush() error {
	s.pendingMu.Lock()
	ops := s.pending
	s.pending = nil
	s.pendingMu.Unlock()

	if len(ops) == 0 {
		return nil
	}
	return s.sendOps(ops, 0)
}

// sendResync sends the full live mirror as one snapshot frame: a reset op
// followed by an insert per live declaration, flagged FlagResync.
func (s *Session) sendResync() error {
	return s.sendOps(s.resyncOps(), protocol.FlagResync)
}

// resyncOps builds the snapshot ops from the live mirror.
func (s *Session) resyncOps() []protocol.HeadOp {
	s.liveMu.Lock()
	defer s.liveMu.Unlock()

	ops := make([]protocol.HeadOp, 0, len(s.liveOrder)+1)
	ops = append(ops, protocol.HeadOp{Kind: protocol.OpHeadReset})
	for _, fp := range s.liveOrder {
		ops = append(ops, insertOp(s.live[fp], fp))
	}
	return ops
}

// sendOps encodes and writes one HeadOps frame.
func (s *Session) sendOps(ops []protocol.HeadOp, flags protocol.FrameFlags) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrSessionClosed
	}
	conn := s.conn
	if conn == nil {
		return ErrNoConnection
	}

	seq := s.sendSeq.Add(1)
	payload := protocol.EncodeHeadFrame(&protocol.HeadFrame{Seq: seq, Ops: ops})
	if len(payload) > protocol.MaxPayloadSize {
		s.logger.Error("head frame too large", "ops", len(ops), "bytes", len(payload))
		return protocol.ErrFrameTooLarge
	}
	frame := protocol.NewFrameWithFlags(protocol.FrameHeadOps, flags, payload)
	data := frame.Encode()

	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		s.logger.Error("write error", "error", err)
		s.detachLocked(conn)
		return err
	}

	s.framesSent.Add(1)
	s.bytesSent.Add(uint64(len(data)))
	return nil
}

// Start starts the session loops for the current connection.
func (s *Session) Start() {
	s.mu.Lock()
	conn, done := s.conn, s.done
	s.mu.Unlock()
	if conn == nil {
		return
	}

	go s.readLoop(conn)
	go s.writeLoop(conn, done)
}

// readLoop continuously reads frames from the connection. It records acks
// and answers mid-stream hellos with a fresh snapshot. The loop exits when
// the connection errors, detaching the session.
func (s *Session) readLoop(conn *websocket.Conn) {
	defer s.detachConn(conn)

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		return nil
	})

	for {
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "error", err)
			}
			return
		}

		s.touch()
		s.bytesRecv.Add(uint64(len(msg)))

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			s.logger.Error("frame decode error", "error", err)
			continue
		}

		switch frame.Type {
		case protocol.FrameAck:
			s.handleAck(frame.Payload)

		case protocol.FrameHello:
			// A hello on an established connection asks for a fresh
			// snapshot.
			if err := s.sendResync(); err != nil {
				return
			}

		case protocol.FrameError:
			s.handleClientError(frame.Payload)
			return

		default:
			s.logger.Warn("unknown frame type", "type", frame.Type)
		}
	}
}

// handleAck records the highest sequence the client has applied.
func (s *Session) handleAck(payload []byte) {
	ack, err := protocol.DecodeAck(payload)
	if err != nil {
		s.logger.Error("ack decode error", "error", err)
		return
	}

	s.ackSeq.Store(ack.Seq)
	s.logger.Debug("received ack", "seq", ack.Seq)
}

// handleClientError logs a client-reported fatal error. The caller closes
// the connection afterwards.
func (s *Session) handleClientError(payload []byte) {
	ef, err := protocol.DecodeError(payload)
	if err != nil {
		s.logger.Error("error frame decode error", "error", err)
		return
	}
	s.logger.Warn("client reported error", "code", ef.Code, "message", ef.Message)
}

// writeLoop sends WebSocket-level pings at the heartbeat interval. The
// read deadline is extended by the pong handler, so a silent peer times
// out after ReadTimeout.
func (s *Session) writeLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.config.WriteTimeout)); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

// resume swaps in a fresh connection, stopping any loops still serving
// the old one. Sequence numbers restart because the client rebuilds from
// the snapshot that follows.
func (s *Session) resume(conn *websocket.Conn) {
	s.mu.Lock()
	old := s.conn
	s.conn = conn
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.done = make(chan struct{})
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}

	s.closed.Store(false)
	s.detached.Store(false)
	s.sendSeq.Store(0)
	s.ackSeq.Store(0)
	s.touch()

	s.logger.Info("session resumed")
}

// detachConn detaches the session when the given connection dies. A
// connection already replaced by a resume is closed without touching the
// session.
func (s *Session) detachConn(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.detachLocked(conn)
	s.mu.Unlock()

	s.logger.Info("session detached",
		"frames_sent", s.framesSent.Load(),
		"bytes_sent", s.bytesSent.Load(),
		"bytes_recv", s.bytesRecv.Load())
}

// detachLocked drops the current connection and stops the loops.
// The caller must hold s.mu.
func (s *Session) detachLocked(conn *websocket.Conn) {
	s.conn = nil
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.detached.Store(true)
	s.touch()
	conn.Close()
}

// Close closes the session for good. A closed session cannot be resumed.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.closeInternal()
}

// closeInternal performs the actual close operations.
func (s *Session) closeInternal() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.mu.Unlock()

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		conn.Close()
	}

	s.logger.Info("session closed",
		"frames_sent", s.framesSent.Load(),
		"bytes_sent", s.bytesSent.Load(),
		"bytes_recv", s.bytesRecv.Load())
}

// IsClosed returns whether the session is closed.
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// IsDetached returns whether the session lost its connection and is
// waiting for a resume.
func (s *Session) IsDetached() bool {
	return s.detached.Load()
}

// Done returns a channel that's closed when the current connection's
// loops stop.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// LastSeq returns the last head frame sequence sent.
func (s *Session) LastSeq() uint64 {
	return s.sendSeq.Load()
}

// AckSeq returns the last sequence the client acknowledged.
func (s *Session) AckSeq() uint64 {
	return s.ackSeq.Load()
}

// LastActive returns the time of the last connection activity.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// touch updates the last activity timestamp.
func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}
