package transport

import (
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/openportal-go/openportal/config"
	"github.com/openportal-go/openportal/errs"
	"github.com/openportal-go/openportal/internal/logger"
	"github.com/openportal-go/openportal/internal/metrics"
)

// Listener accepts inbound client connections for one ServiceConfig, each
// accepted connection spawning its own handler goroutine (spec.md §4.2:
// "The server role accepts connections in parallel; each accepted
// connection spawns its own handler task").
type Listener struct {
	cfg      config.ServiceConfig
	upgrader websocket.Upgrader
	setup    func(*Connection)
}

// NewListener builds a Listener for cfg. setup is invoked once per accepted
// connection, before its run loop starts, to install the connection's
// handlers.
func NewListener(cfg config.ServiceConfig, setup func(*Connection)) *Listener {
	return &Listener{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		setup: setup,
	}
}

// Handler returns the http.Handler to mount at the configured listen
// address; every successful upgrade runs its own goroutine until the
// session ends.
func (l *Listener) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remoteAddr, err := remoteIP(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ws, err := l.upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Default().Warn("websocket upgrade failed", logger.Error(err))
			return
		}

		go l.accept(ws, remoteAddr)
	})
}

func (l *Listener) accept(ws *websocket.Conn, remoteAddr net.IP) {
	log := logger.Default()

	client, session, err := serverHandshake(ws, l.cfg.Name, l.cfg, remoteAddr)
	if err != nil {
		log.Warn("handshake failed", logger.Error(err), logger.String("remote_addr", remoteAddr.String()))
		_ = ws.Close()
		return
	}

	conn := newConnection(ws, l.cfg.Name, client.Name, session, client.InnerKey, log)
	metrics.ConnectionsActive.Inc()
	defer metrics.ConnectionsActive.Dec()

	if l.setup != nil {
		l.setup(conn)
	}

	if err := conn.run(); err != nil {
		log.Warn("connection terminated", logger.Error(err), logger.String("peer", client.Name))
	}
}

func remoteIP(r *http.Request) (net.IP, error) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("%w: could not parse remote address %q", errs.ErrTransport, r.RemoteAddr)
	}
	return ip, nil
}
