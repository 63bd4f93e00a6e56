package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vango-dev/helmet/pkg/protocol"
	"github.com/vango-dev/helmet/pkg/vdom"
)

func newTestServer(t *testing.T, config *ServerConfig) (*Server, *httptest.Server) {
	t.Helper()
	if config == nil {
		config = DefaultServerConfig()
	}
	s := New(config)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(s.Sessions().Shutdown)
	return s, ts
}

func wsURL(t *testing.T, baseURL, path string) string {
	t.Helper()
	if !strings.HasPrefix(baseURL, "http") {
		t.Fatalf("unexpected base URL: %q", baseURL)
	}
	return "ws" + strings.TrimPrefix(baseURL, "http") + path
}

func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial(%q) failed: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func writeHello(t *testing.T, conn *websocket.Conn, hello *protocol.Hello) {
	t.Helper()
	frame := protocol.NewFrame(protocol.FrameHello, protocol.EncodeHello(hello))
	if err := conn.WriteMessage(websocket.BinaryMessage, frame.Encode()); err != nil {
		t.Fatalf("write hello failed: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) *protocol.Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame failed: %v", err)
	}
	frame, err := protocol.DecodeFrame(msg)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	return frame
}

func readHello(t *testing.T, conn *websocket.Conn) *protocol.Hello {
	t.Helper()
	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameHello {
		t.Fatalf("frame type = %v, want %v", frame.Type, protocol.FrameHello)
	}
	hello, err := protocol.DecodeHello(frame.Payload)
	if err != nil {
		t.Fatalf("DecodeHello failed: %v", err)
	}
	return hello
}

func readHeadFrame(t *testing.T, conn *websocket.Conn) (*protocol.HeadFrame, protocol.FrameFlags) {
	t.Helper()
	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameHeadOps {
		t.Fatalf("frame type = %v, want %v", frame.Type, protocol.FrameHeadOps)
	}
	hf, err := protocol.DecodeHeadFrame(frame.Payload)
	if err != nil {
		t.Fatalf("DecodeHeadFrame failed: %v", err)
	}
	return hf, frame.Flags
}

func readErrorFrame(t *testing.T, conn *websocket.Conn) *protocol.ErrorFrame {
	t.Helper()
	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameError {
		t.Fatalf("frame type = %v, want %v", frame.Type, protocol.FrameError)
	}
	ef, err := protocol.DecodeError(frame.Payload)
	if err != nil {
		t.Fatalf("DecodeError failed: %v", err)
	}
	return ef
}

// handshake dials, exchanges hellos, and consumes the opening snapshot.
func handshake(t *testing.T, ts *httptest.Server) (*websocket.Conn, string) {
	t.Helper()
	conn := dialWS(t, wsURL(t, ts.URL, "/live"))
	writeHello(t, conn, &protocol.Hello{Version: protocol.Version})

	hello := readHello(t, conn)
	if hello.SessionID == "" {
		t.Fatal("handshake returned empty session ID")
	}

	hf, flags := readHeadFrame(t, conn)
	if !flags.Has(protocol.FlagResync) {
		t.Fatalf("opening snapshot flags = %v, want FlagResync", flags)
	}
	if len(hf.Ops) != 1 || hf.Ops[0].Kind != protocol.OpHeadReset {
		t.Fatalf("opening snapshot ops = %v, want single Reset", hf.Ops)
	}
	return conn, hello.SessionID
}

func TestServerHandshake(t *testing.T) {
	_, ts := newTestServer(t, nil)

	conn := dialWS(t, wsURL(t, ts.URL, "/live"))
	writeHello(t, conn, &protocol.Hello{Version: protocol.Version})

	hello := readHello(t, conn)
	if hello.Version != protocol.Version {
		t.Errorf("hello version = %d, want %d", hello.Version, protocol.Version)
	}
	if len(hello.SessionID) != 32 {
		t.Errorf("session ID length = %d, want 32", len(hello.SessionID))
	}

	hf, flags := readHeadFrame(t, conn)
	if !flags.Has(protocol.FlagResync) {
		t.Errorf("snapshot flags = %v, want FlagResync", flags)
	}
	if hf.Seq != 1 {
		t.Errorf("snapshot seq = %d, want 1", hf.Seq)
	}
}

func TestServerHandshakeVersionMismatch(t *testing.T) {
	_, ts := newTestServer(t, nil)

	conn := dialWS(t, wsURL(t, ts.URL, "/live"))
	writeHello(t, conn, &protocol.Hello{Version: 99})

	ef := readErrorFrame(t, conn)
	if ef.Code != protocol.ErrCodeVersion {
		t.Fatalf("error code = %v, want %v", ef.Code, protocol.ErrCodeVersion)
	}
}

func TestServerHandshakeMalformedFrame(t *testing.T) {
	_, ts := newTestServer(t, nil)

	conn := dialWS(t, wsURL(t, ts.URL, "/live"))
	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}); err != nil {
		t.Fatalf("write invalid handshake failed: %v", err)
	}

	ef := readErrorFrame(t, conn)
	if ef.Code != protocol.ErrCodeBadFrame {
		t.Fatalf("error code = %v, want %v", ef.Code, protocol.ErrCodeBadFrame)
	}
}

func TestServerHandshakeRequiresHelloFrame(t *testing.T) {
	_, ts := newTestServer(t, nil)

	conn := dialWS(t, wsURL(t, ts.URL, "/live"))
	frame := protocol.NewFrame(protocol.FrameAck, protocol.EncodeAck(&protocol.Ack{Seq: 1}))
	if err := conn.WriteMessage(websocket.BinaryMessage, frame.Encode()); err != nil {
		t.Fatalf("write ack failed: %v", err)
	}

	ef := readErrorFrame(t, conn)
	if ef.Code != protocol.ErrCodeBadFrame {
		t.Fatalf("error code = %v, want %v", ef.Code, protocol.ErrCodeBadFrame)
	}
}

func TestServerMaxSessionsBusy(t *testing.T) {
	_, ts := newTestServer(t, DefaultServerConfig().WithMaxSessions(1))

	handshake(t, ts)

	conn := dialWS(t, wsURL(t, ts.URL, "/live"))
	writeHello(t, conn, &protocol.Hello{Version: protocol.Version})

	ef := readErrorFrame(t, conn)
	if ef.Code != protocol.ErrCodeBusy {
		t.Fatalf("error code = %v, want %v", ef.Code, protocol.ErrCodeBusy)
	}
}

func TestServerMirrorsMountAndUnmount(t *testing.T) {
	s, ts := newTestServer(t, nil)

	conn, sessionID := handshake(t, ts)
	sess := s.Sessions().Get(sessionID)
	if sess == nil {
		t.Fatal("session not registered")
	}

	m := sess.Mount(context.Background(),
		vdom.Title(vdom.Text("Streamed")),
		vdom.Link(vdom.Rel("stylesheet"), vdom.Href("/app.css")),
	)

	hf, flags := readHeadFrame(t, conn)
	if flags.Has(protocol.FlagResync) {
		t.Error("incremental frame carries FlagResync")
	}
	if hf.Seq != 2 {
		t.Errorf("frame seq = %d, want 2", hf.Seq)
	}
	if len(hf.Ops) != 2 {
		t.Fatalf("ops = %d, want 2", len(hf.Ops))
	}
	if hf.Ops[0].Tag != "title" || hf.Ops[1].Tag != "link" {
		t.Fatalf("op tags = %q, %q, want title, link", hf.Ops[0].Tag, hf.Ops[1].Tag)
	}
	if hf.Ops[0].InnerHTML == nil || *hf.Ops[0].InnerHTML != "Streamed" {
		t.Fatalf("title body = %v, want \"Streamed\"", hf.Ops[0].InnerHTML)
	}
	if hf.Ops[1].Attrs["href"] != "/app.css" {
		t.Fatalf("link href = %q, want /app.css", hf.Ops[1].Attrs["href"])
	}

	m.Unmount()

	rf, _ := readHeadFrame(t, conn)
	if len(rf.Ops) != 2 {
		t.Fatalf("remove ops = %d, want 2", len(rf.Ops))
	}
	removed := map[uint64]bool{}
	for _, op := range rf.Ops {
		if op.Kind != protocol.OpHeadRemove {
			t.Fatalf("op kind = %v, want Remove", op.Kind)
		}
		removed[op.Fingerprint] = true
	}
	if !removed[hf.Ops[0].Fingerprint] || !removed[hf.Ops[1].Fingerprint] {
		t.Fatal("remove fingerprints do not match inserts")
	}
}

func TestServerAckTracking(t *testing.T) {
	s, ts := newTestServer(t, nil)

	conn, sessionID := handshake(t, ts)
	sess := s.Sessions().Get(sessionID)

	frame := protocol.NewFrame(protocol.FrameAck, protocol.EncodeAck(&protocol.Ack{Seq: 1}))
	if err := conn.WriteMessage(websocket.BinaryMessage, frame.Encode()); err != nil {
		t.Fatalf("write ack failed: %v", err)
	}

	waitFor(t, time.Second, func() bool { return sess.AckSeq() == 1 })
}

func TestServerResumeSendsSnapshot(t *testing.T) {
	s, ts := newTestServer(t, nil)

	conn, sessionID := handshake(t, ts)
	sess := s.Sessions().Get(sessionID)

	sess.Mount(context.Background(), vdom.Title(vdom.Text("Survivor")))
	if hf, _ := readHeadFrame(t, conn); len(hf.Ops) != 1 {
		t.Fatalf("insert ops = %d, want 1", len(hf.Ops))
	}

	conn.Close()
	waitFor(t, time.Second, func() bool { return sess.IsDetached() })

	conn2 := dialWS(t, wsURL(t, ts.URL, "/live"))
	writeHello(t, conn2, &protocol.Hello{Version: protocol.Version, SessionID: sessionID})

	hello := readHello(t, conn2)
	if hello.SessionID != sessionID {
		t.Fatalf("resumed session ID = %q, want %q", hello.SessionID, sessionID)
	}

	hf, flags := readHeadFrame(t, conn2)
	if !flags.Has(protocol.FlagResync) {
		t.Fatalf("snapshot flags = %v, want FlagResync", flags)
	}
	if hf.Seq != 1 {
		t.Errorf("snapshot seq = %d, want 1 (sequence restarts)", hf.Seq)
	}
	if len(hf.Ops) != 2 {
		t.Fatalf("snapshot ops = %d, want 2", len(hf.Ops))
	}
	if hf.Ops[0].Kind != protocol.OpHeadReset || hf.Ops[1].Tag != "title" {
		t.Fatalf("snapshot ops = %v, %q, want Reset, title", hf.Ops[0].Kind, hf.Ops[1].Tag)
	}
}

func TestServerMountWhileDetachedRecoversOnResume(t *testing.T) {
	s, ts := newTestServer(t, nil)

	conn, sessionID := handshake(t, ts)
	sess := s.Sessions().Get(sessionID)

	conn.Close()
	waitFor(t, time.Second, func() bool { return sess.IsDetached() })

	// The flush has no connection to write to; the declaration lives on in
	// the mirror and rides the next snapshot.
	sess.Mount(context.Background(), vdom.Title(vdom.Text("Queued")))

	conn2 := dialWS(t, wsURL(t, ts.URL, "/live"))
	writeHello(t, conn2, &protocol.Hello{Version: protocol.Version, SessionID: sessionID})
	readHello(t, conn2)

	hf, _ := readHeadFrame(t, conn2)
	if len(hf.Ops) != 2 || hf.Ops[1].Tag != "title" {
		t.Fatalf("snapshot ops = %v, want Reset + title insert", hf.Ops)
	}
}

func TestServerResumeUnknownIDCreatesFresh(t *testing.T) {
	_, ts := newTestServer(t, nil)

	conn := dialWS(t, wsURL(t, ts.URL, "/live"))
	writeHello(t, conn, &protocol.Hello{Version: protocol.Version, SessionID: "deadbeef"})

	hello := readHello(t, conn)
	if hello.SessionID == "" || hello.SessionID == "deadbeef" {
		t.Fatalf("session ID = %q, want fresh non-empty ID", hello.SessionID)
	}
}

func TestServerMidStreamHelloTriggersResync(t *testing.T) {
	s, ts := newTestServer(t, nil)

	conn, sessionID := handshake(t, ts)
	sess := s.Sessions().Get(sessionID)

	sess.Mount(context.Background(), vdom.Title(vdom.Text("Again")))
	readHeadFrame(t, conn)

	writeHello(t, conn, &protocol.Hello{Version: protocol.Version, SessionID: sessionID})

	hf, flags := readHeadFrame(t, conn)
	if !flags.Has(protocol.FlagResync) {
		t.Fatalf("flags = %v, want FlagResync", flags)
	}
	if len(hf.Ops) != 2 || hf.Ops[1].Tag != "title" {
		t.Fatalf("resync ops = %v, want Reset + title insert", hf.Ops)
	}
}

func TestServerHeadSnapshotEndpoint(t *testing.T) {
	s, ts := newTestServer(t, nil)

	_, sessionID := handshake(t, ts)
	sess := s.Sessions().Get(sessionID)
	sess.Mount(context.Background(), vdom.Title(vdom.Text("Rendered")))

	resp, err := http.Get(ts.URL + "/sessions/" + sessionID + "/head")
	if err != nil {
		t.Fatalf("GET head snapshot failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body failed: %v", err)
	}
	html := string(body)
	if !strings.Contains(html, "<title") || !strings.Contains(html, "Rendered") {
		t.Fatalf("snapshot body = %q, want rendered title", html)
	}
	if !strings.Contains(html, "data-helmet-id") {
		t.Fatalf("snapshot body = %q, want marker attribute", html)
	}
}

func TestServerHeadSnapshotUnknownSession(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/sessions/unknown/head")
	if err != nil {
		t.Fatalf("GET head snapshot failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestServerHealthz(t *testing.T) {
	_, ts := newTestServer(t, nil)

	handshake(t, ts)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var health struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health failed: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("status = %q, want ok", health.Status)
	}
	if health.Sessions != 1 {
		t.Errorf("sessions = %d, want 1", health.Sessions)
	}
}

func TestServerShutdownClosesSessions(t *testing.T) {
	s, ts := newTestServer(t, nil)

	_, sessionID := handshake(t, ts)
	sess := s.Sessions().Get(sessionID)

	s.Sessions().Shutdown()

	waitFor(t, time.Second, func() bool { return sess.IsClosed() })
	if got := s.Sessions().Count(); got != 0 {
		t.Fatalf("Count() after shutdown = %d, want 0", got)
	}
}

func TestServerOnSessionHook(t *testing.T) {
	created := make(chan *Session, 2)
	config := DefaultServerConfig()
	config.OnSession = func(sess *Session) { created <- sess }
	s, ts := newTestServer(t, config)

	conn, sessionID := handshake(t, ts)

	var hooked *Session
	select {
	case hooked = <-created:
	case <-time.After(time.Second):
		t.Fatal("OnSession not called for fresh session")
	}
	if hooked.ID != sessionID {
		t.Fatalf("hook session ID = %q, want %q", hooked.ID, sessionID)
	}

	// The hook may start driving the session immediately.
	hooked.Mount(context.Background(), vdom.Title(vdom.Text("Hooked")))
	hf, _ := readHeadFrame(t, conn)
	if len(hf.Ops) != 1 || hf.Ops[0].Tag != "title" {
		t.Fatalf("ops = %v, want single title insert", hf.Ops)
	}

	conn.Close()
	sess := s.Sessions().Get(sessionID)
	waitFor(t, time.Second, func() bool { return sess.IsDetached() })

	conn2 := dialWS(t, wsURL(t, ts.URL, "/live"))
	writeHello(t, conn2, &protocol.Hello{Version: protocol.Version, SessionID: sessionID})
	readHello(t, conn2)
	readHeadFrame(t, conn2)

	select {
	case <-created:
		t.Fatal("OnSession fired again on resume")
	case <-time.After(100 * time.Millisecond):
	}
}
