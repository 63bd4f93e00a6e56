package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vango-dev/helmet"
	"github.com/vango-dev/helmet/pkg/server"
	"github.com/vango-dev/helmet/pkg/vdom"
)

// demoDriver rotates every session through a fixed set of head views.
type demoDriver struct {
	views    [][]*vdom.VNode
	interval time.Duration
	logger   *slog.Logger
}

func newDemoDriver(site string, interval time.Duration, logger *slog.Logger) *demoDriver {
	return &demoDriver{
		views:    demoViews(site),
		interval: interval,
		logger:   logger.With("component", "demo"),
	}
}

// drive starts the cycle loop for one session. It is wired into the
// server's OnSession callback, which runs on the handshake goroutine.
func (d *demoDriver) drive(sess *server.Session) {
	go d.cycle(sess)
}

func (d *demoDriver) cycle(sess *server.Session) {
	ctx := context.Background()

	idx := 0
	current := sess.Mount(ctx, d.views[idx]...)
	d.logger.Debug("demo view mounted", "session_id", sess.ID, "view", idx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for range ticker.C {
		if sess.IsClosed() {
			current.Unmount()
			d.logger.Debug("demo loop stopped", "session_id", sess.ID)
			return
		}

		// Mount the next view before unmounting the current one so
		// declarations shared between the two never leave the head.
		idx = (idx + 1) % len(d.views)
		next := sess.Mount(ctx, d.views[idx]...)
		current.Unmount()
		current = next
		d.logger.Debug("demo view rotated", "session_id", sess.ID, "view", idx)
	}
}

// demoViews builds the rotation. Every view shares the viewport meta, so
// the cycle shows reference counting at work: the shared declaration is
// inserted once and survives every rotation.
func demoViews(site string) [][]*vdom.VNode {
	viewport := func() *vdom.VNode {
		return vdom.Meta(vdom.Name("viewport"), vdom.Content("width=device-width, initial-scale=1"))
	}

	return [][]*vdom.VNode{
		{
			vdom.Title(vdom.Text(site + " · Home")),
			vdom.Meta(vdom.Name("description"), vdom.Content("Declarative head management for server-driven Go applications.")),
			vdom.Meta(vdom.Property("og:title"), vdom.Content(site)),
			vdom.Meta(vdom.Name("theme-color"), vdom.Content("#10b981")),
			viewport(),
		},
		{
			vdom.Title(vdom.Text(site + " · Docs")),
			vdom.Meta(vdom.Name("description"), vdom.Content("Guides and API reference.")),
			vdom.Meta(vdom.Name("robots"), vdom.Content("index,follow")),
			vdom.Meta(vdom.Name("theme-color"), vdom.Content("#3b82f6")),
			vdom.Link(vdom.Rel("canonical"), vdom.Href("https://example.com/docs")),
			vdom.Link(vdom.Rel("stylesheet"), vdom.Href("/docs.css")),
			viewport(),
		},
		{
			vdom.Title(vdom.Text(site + " · Pricing")),
			vdom.Meta(vdom.Name("description"), vdom.Content("Plans for teams of every size.")),
			vdom.Meta(vdom.Name("robots"), vdom.Content("noindex")),
			vdom.Meta(vdom.Name("theme-color"), vdom.Content("#f59e0b")),
			vdom.Style(vdom.Text("body { --accent: #f59e0b; }")),
			viewport(),
		},
	}
}

// handleIndex serves the demo shell with the mirror client injected.
func handleIndex(w http.ResponseWriter, r *http.Request) {
	page := indexPage
	if idx := strings.LastIndex(page, "</body>"); idx != -1 {
		page = page[:idx] + clientScript + page[idx:]
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, page)
}

// handleBootHead serves the process-level boot head as an HTML fragment.
func handleBootHead(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, helmet.HeadHTML())
}

// indexPage is the demo shell. Its static head carries only the charset
// and page styles. Everything else arrives over the wire with a marker
// attribute, so the first title the document ever sees is a managed one
// and the tab follows the rotation.
const indexPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<style>
  body { font-family: ui-monospace, SFMono-Regular, Menlo, monospace; background: #0b0f14; color: #d7dde4; margin: 0; padding: 40px; }
  h1 { font-size: 18px; letter-spacing: 2px; color: #10b981; }
  h2 { font-size: 13px; text-transform: uppercase; letter-spacing: 1px; color: #8b949e; margin-top: 32px; }
  p { max-width: 64ch; line-height: 1.5; }
  a { color: #3b82f6; }
  pre { background: #11161d; border: 1px solid #1f2630; border-radius: 6px; padding: 16px; overflow-x: auto; min-height: 120px; }
  #status { font-size: 13px; }
  #status.connected { color: #10b981; }
  #status.disconnected { color: #f59e0b; }
</style>
</head>
<body>
<h1>HELMET</h1>
<p>The server owns this page's &lt;head&gt;. Each connected session mounts
a rotating set of head declarations and streams the resulting insert and
remove operations here as binary frames.</p>
<p id="status" class="disconnected">connecting</p>
<h2>Managed head elements</h2>
<pre id="head-dump">waiting for first frame</pre>
<p>Watch the tab title rotate. Shared declarations such as the viewport
meta keep their element across every rotation because the reference
count never reaches zero. See <a href="/head.html">/head.html</a> for the
boot snapshot and <a href="/metrics">/metrics</a> for reconcile counters.</p>
</body>
</html>
`

// clientScript is the inline mirror client, injected into the demo page
// before the closing body tag. It speaks the binary frame protocol:
// a four byte header, then hello, head ops, ack, and error payloads.
const clientScript = `
<script>
(function() {
    'use strict';

    var PROTOCOL_VERSION = 1;

    var FRAME_HELLO = 0x00;
    var FRAME_HEAD_OPS = 0x01;
    var FRAME_ACK = 0x02;
    var FRAME_ERROR = 0x03;

    var FLAG_RESYNC = 0x01;

    var OP_INSERT = 0x01;
    var OP_REMOVE = 0x02;
    var OP_RESET = 0x03;

    var MARKER = 'data-helmet-id';

    var ws = null;
    var reconnectDelay = 1000;
    var maxReconnectDelay = 30000;
    var managed = {};
    var encoder = new TextEncoder();
    var decoder = new TextDecoder();

    function connect() {
        var proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
        ws = new WebSocket(proto + '//' + location.host + '/live');
        ws.binaryType = 'arraybuffer';

        ws.onopen = function() {
            reconnectDelay = 1000;
            sendHello();
        };

        ws.onmessage = function(event) {
            handleFrame(new DataView(event.data));
        };

        ws.onclose = function() {
            setStatus('disconnected', '');
            setTimeout(connect, reconnectDelay);
            reconnectDelay = Math.min(reconnectDelay * 2, maxReconnectDelay);
        };

        ws.onerror = function() {
            ws.close();
        };
    }

    function sendHello() {
        var sid = sessionStorage.getItem('helmet-sid') || '';
        var bytes = encoder.encode(sid);
        var payload = [PROTOCOL_VERSION];
        pushUvarint(payload, bytes.length);
        for (var i = 0; i < bytes.length; i++) {
            payload.push(bytes[i]);
        }
        send(FRAME_HELLO, 0, payload);
    }

    function sendAck(seq) {
        var payload = [];
        pushUvarint(payload, seq);
        send(FRAME_ACK, 0, payload);
    }

    function send(type, flags, payload) {
        var frame = new Uint8Array(4 + payload.length);
        frame[0] = type;
        frame[1] = flags;
        frame[2] = (payload.length >> 8) & 0xff;
        frame[3] = payload.length & 0xff;
        frame.set(payload, 4);
        ws.send(frame);
    }

    function handleFrame(view) {
        var r = { view: view, off: 0 };
        var type = readU8(r);
        var flags = readU8(r);
        readU16(r); // payload length, implied by the message boundary

        if (type === FRAME_HELLO) {
            handleHello(r);
        } else if (type === FRAME_HEAD_OPS) {
            handleHeadOps(r, flags);
        } else if (type === FRAME_ERROR) {
            handleError(r);
        }
    }

    function handleHello(r) {
        readU8(r); // server protocol version
        var sid = readString(r);
        sessionStorage.setItem('helmet-sid', sid);
        setStatus('connected', sid);
        console.log('[Helmet] session ' + sid);
    }

    function handleHeadOps(r, flags) {
        var seq = readUvarint(r);
        var count = readUvarint(r);
        if (flags & FLAG_RESYNC) {
            console.log('[Helmet] resync at seq ' + seq);
        }
        for (var i = 0; i < count; i++) {
            var kind = readU8(r);
            if (kind === OP_RESET) {
                applyReset();
            } else if (kind === OP_INSERT) {
                applyInsert(r);
            } else if (kind === OP_REMOVE) {
                applyRemove(readU64(r));
            }
        }
        sendAck(seq);
        renderDump();
    }

    function handleError(r) {
        var code = readU16(r);
        var message = readString(r);
        console.log('[Helmet] server error ' + code + ': ' + message);
    }

    function applyReset() {
        var stale = document.head.querySelectorAll('[' + MARKER + ']');
        for (var i = 0; i < stale.length; i++) {
            stale[i].remove();
        }
        managed = {};
    }

    function applyInsert(r) {
        var fp = readU64(r);
        var tag = readString(r);
        var attrCount = readUvarint(r);
        var attrs = [];
        for (var i = 0; i < attrCount; i++) {
            attrs.push([readString(r), readString(r)]);
        }
        var body = readU8(r) === 1 ? readString(r) : null;

        if (managed[fp]) {
            return;
        }
        var el = document.createElement(tag);
        for (var j = 0; j < attrs.length; j++) {
            el.setAttribute(attrs[j][0], attrs[j][1]);
        }
        el.setAttribute(MARKER, fp);
        if (body !== null) {
            el.innerHTML = body;
        }
        document.head.appendChild(el);
        managed[fp] = el;
    }

    function applyRemove(fp) {
        var el = managed[fp];
        if (!el) {
            return;
        }
        el.remove();
        delete managed[fp];
    }

    function readU8(r) {
        var v = r.view.getUint8(r.off);
        r.off += 1;
        return v;
    }

    function readU16(r) {
        var v = r.view.getUint16(r.off);
        r.off += 2;
        return v;
    }

    function readU64(r) {
        var v = r.view.getBigUint64(r.off);
        r.off += 8;
        return v.toString();
    }

    function readUvarint(r) {
        var result = 0;
        var scale = 1;
        for (;;) {
            var b = readU8(r);
            result += (b & 0x7f) * scale;
            if (b < 0x80) {
                return result;
            }
            scale *= 128;
        }
    }

    function readString(r) {
        var len = readUvarint(r);
        var bytes = new Uint8Array(r.view.buffer, r.view.byteOffset + r.off, len);
        r.off += len;
        return decoder.decode(bytes);
    }

    function pushUvarint(out, n) {
        while (n > 0x7f) {
            out.push((n & 0x7f) | 0x80);
            n = Math.floor(n / 128);
        }
        out.push(n);
    }

    function setStatus(state, sid) {
        var el = document.getElementById('status');
        if (!el) {
            return;
        }
        el.textContent = sid ? state + ' as ' + sid : state;
        el.className = state;
    }

    function renderDump() {
        var el = document.getElementById('head-dump');
        if (!el) {
            return;
        }
        var nodes = document.head.querySelectorAll('[' + MARKER + ']');
        var lines = [];
        for (var i = 0; i < nodes.length; i++) {
            lines.push(nodes[i].outerHTML);
        }
        el.textContent = lines.join('\n');
    }

    connect();
})();
</script>
`
