package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openportal-go/openportal/config"
	"github.com/openportal-go/openportal/errs"
	"github.com/openportal-go/openportal/internal/logger"
	"github.com/openportal-go/openportal/internal/metrics"
)

// ReconnectDelay is the fixed backoff the client supervisor sleeps between
// connection attempts (spec.md §4.2: "sleeps a fixed 5 s and reconnects,
// indefinitely").
const ReconnectDelay = 5 * time.Second

// Initiate performs the client role of the handshake against server, and on
// success returns a Connection whose run loop has not yet been started —
// callers decide whether to run it inline or hand it to RunClient's
// supervisor.
func Initiate(ctx context.Context, selfName string, server config.ServerConfig) (*Connection, error) {
	wsURL, err := server.WebsocketURL()
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 30 * time.Second}
	ws, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return nil, fmt.Errorf("%w: dial %s (http %d): %v", errs.ErrTransport, wsURL, status, err)
	}

	session, err := clientHandshake(ws, selfName, server)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}

	return newConnection(ws, selfName, server.Name, session, server.InnerKey, logger.Default()), nil
}

// RunClient is the reconnect supervisor for a configured server peer: it
// repeatedly Initiates a connection, runs it until it terminates for any
// reason, then sleeps ReconnectDelay and tries again, indefinitely, until
// ctx is cancelled (spec.md §4.2, grounded on paddington's client::run/
// run_once loop).
//
// setup is invoked once per successful connection, before its run loop
// starts, to install SetHandler/SetConnectedHandler/SetDisconnectedHandler.
func RunClient(ctx context.Context, selfName string, server config.ServerConfig, setup func(*Connection)) {
	log := logger.Default().WithFields(logger.String("peer", server.Name))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		metrics.ReconnectAttempts.WithLabelValues(server.Name).Inc()

		conn, err := Initiate(ctx, selfName, server)
		if err != nil {
			log.Warn("connection attempt failed", logger.Error(err))
		} else {
			if setup != nil {
				setup(conn)
			}
			if err := conn.run(); err != nil {
				log.Warn("connection terminated", logger.Error(err))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(ReconnectDelay):
		}
	}
}
