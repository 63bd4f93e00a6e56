// Package server streams head reconciliation to remote clients over
// WebSocket.
//
// Each connection gets a Session holding a private head registry, an
// in-memory head document, and a binder wired to both. Components mount
// their declarations through the session; the binder reconciles them into
// the server-side document, and the session mirrors every mutation to the
// client as a sequenced batch of head operations.
//
// # Architecture
//
//   - Session: per-connection registry, document, and binder, plus the
//     mirror stream
//   - SessionManager: session lookup, limits, and idle cleanup
//   - Server: HTTP/WebSocket endpoint with handshake and graceful shutdown
//
// # Session Lifecycle
//
// A client opens the stream with a Hello frame. The server answers with
// its own Hello carrying the session ID, then a resync snapshot: a Reset
// op followed by one Insert per live declaration, flagged FlagResync.
// After the snapshot, each binder pass that changes the head produces one
// incremental HeadOps frame.
//
// The session runs two goroutines:
//
//   - readLoop: receives frames, records acks, answers resync requests
//   - writeLoop: sends WebSocket-level pings at the heartbeat interval
//
// A dropped connection detaches the session rather than closing it. The
// client reconnects with the old session ID inside its Hello and receives
// a fresh snapshot, so nothing is retransmitted and no frame history is
// kept. Detached sessions that outlive the resume window are reaped.
//
// # Mirror Flow
//
// When a component mounts head declarations:
//
//  1. Session.Mount runs a binder pass against the session document
//  2. The binder reports each inserted node through the Observer hook
//  3. The session buffers the resulting Insert ops
//  4. Flush encodes them as one HeadOps frame and writes it
//
// Unmount follows the same path with Remove ops.
//
// # Example Usage
//
//	srv := server.New(&server.ServerConfig{Address: ":8080"})
//
//	r := chi.NewRouter()
//	r.Use(middleware.Logger)
//	r.Mount("/helmet", srv.Router())
//	go http.ListenAndServe(":8080", r)
//
// # Thread Safety
//
//   - Session.mu protects WebSocket writes and connection swaps
//   - The binder's try-lock serialises reconcile passes per session
//   - SessionManager uses an RWMutex for the session map
package server
