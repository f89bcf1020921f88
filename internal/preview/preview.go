// Package preview serves a local viewer page and pushes prototype HTML
// to it over WebSocket, so the evolving prototype renders live in a
// normal browser tab while the builder runs in the terminal.
package preview

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Server is the local preview endpoint. Every Push fans the HTML out to
// all connected viewers; late joiners immediately receive the latest
// value.
type Server struct {
	httpSrv *http.Server
	addr    net.Addr

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	latest string
}

// NewServer creates an unstarted preview server.
func NewServer() *Server {
	return &Server{conns: make(map[net.Conn]struct{})}
}

// Start listens on addr and serves the viewer page plus the /ws push
// endpoint. It returns once the listener is bound; serving continues in
// the background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(viewerHTML))
	})
	mux.HandleFunc("/ws", s.handleWS)

	s.addr = ln.Addr()
	s.httpSrv = &http.Server{Handler: mux}
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("preview server failed", "error", err)
		}
	}()

	slog.Info("preview listening", "url", "http://"+ln.Addr().String())
	return nil
}

// Addr returns the bound listen address, empty before Start.
func (s *Server) Addr() string {
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		slog.Debug("preview upgrade failed", "error", err)
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	latest := s.latest
	s.mu.Unlock()

	if latest != "" {
		if err := wsutil.WriteServerText(conn, []byte(latest)); err != nil {
			s.drop(conn)
			return
		}
	}

	// Drain client frames so closes are noticed; viewers never send
	// anything meaningful.
	go func() {
		for {
			if _, err := wsutil.ReadClientText(conn); err != nil {
				s.drop(conn)
				return
			}
		}
	}()
}

// Push stores html as the latest prototype and sends it to every
// connected viewer, dropping connections that fail.
func (s *Server) Push(html string) {
	s.mu.Lock()
	s.latest = html
	conns := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		if err := wsutil.WriteServerText(conn, []byte(html)); err != nil {
			s.drop(conn)
		}
	}
}

func (s *Server) drop(conn net.Conn) {
	s.mu.Lock()
	_, ok := s.conns[conn]
	delete(s.conns, conn)
	s.mu.Unlock()
	if ok {
		conn.Close()
	}
}

// Shutdown closes the listener and all viewer connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = make(map[net.Conn]struct{})
	s.mu.Unlock()

	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

const viewerHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Flawless Preview</title>
  <style>
    body { margin: 0; background: #0d1117; }
    iframe { border: none; width: 100vw; height: 100vh; background: #fff; }
    #empty { color: #8b949e; font-family: sans-serif; text-align: center; margin-top: 40vh; }
  </style>
</head>
<body>
  <p id="empty">Waiting for the first prototype...</p>
  <iframe id="frame" sandbox="allow-scripts" hidden></iframe>
  <script>
    const frame = document.getElementById("frame");
    const empty = document.getElementById("empty");
    function connect() {
      const sock = new WebSocket("ws://" + location.host + "/ws");
      sock.onmessage = (ev) => {
        empty.hidden = true;
        frame.hidden = false;
        frame.srcdoc = ev.data;
      };
      sock.onclose = () => setTimeout(connect, 1000);
    }
    connect();
  </script>
</body>
</html>`
