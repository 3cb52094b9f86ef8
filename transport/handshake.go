package transport

import (
	"crypto/rand"
	"fmt"
	"net"

	"github.com/gorilla/websocket"

	"github.com/openportal-go/openportal/config"
	"github.com/openportal-go/openportal/crypto"
	"github.com/openportal-go/openportal/errs"
	"github.com/openportal-go/openportal/internal/metrics"
)

const nonceSize = 32

// greeting is the two-message handshake payload: a claimed name and a
// freshly generated per-session nonce, sealed under the shared outer_key
// (spec.md §4.2).
type greeting struct {
	Name  string `json:"name"`
	Nonce []byte `json:"nonce"`
}

func newNonce() ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: generate handshake nonce: %v", errs.ErrCrypto, err)
	}
	return nonce, nil
}

func sendGreeting(ws *websocket.Conn, outer crypto.Key, name string, nonce []byte) error {
	sealed, err := crypto.Encrypt(outer, greeting{Name: name, Nonce: nonce})
	if err != nil {
		return fmt.Errorf("%w: seal handshake greeting: %v", errs.ErrHandshake, err)
	}
	if err := ws.WriteJSON(sealed); err != nil {
		return fmt.Errorf("%w: send handshake greeting: %v", errs.ErrTransport, err)
	}
	return nil
}

func recvGreeting(ws *websocket.Conn, outer crypto.Key) (greeting, error) {
	var sealed crypto.Sealed
	if err := ws.ReadJSON(&sealed); err != nil {
		return greeting{}, fmt.Errorf("%w: receive handshake greeting: %v", errs.ErrTransport, err)
	}
	g, err := crypto.Decrypt[greeting](outer, sealed)
	if err != nil {
		return greeting{}, fmt.Errorf("%w: open handshake greeting: %v", errs.ErrHandshake, err)
	}
	return g, nil
}

// clientHandshake performs the client side of the handshake: send our
// greeting under the server's outer_key, receive the server's greeting
// under the same key, verify its claimed name matches, then derive the
// session key.
func clientHandshake(ws *websocket.Conn, selfName string, server config.ServerConfig) (crypto.Key, error) {
	clientNonce, err := newNonce()
	if err != nil {
		return crypto.Key{}, err
	}
	if err := sendGreeting(ws, server.OuterKey, selfName, clientNonce); err != nil {
		metrics.HandshakeFailures.WithLabelValues("send").Inc()
		return crypto.Key{}, err
	}

	serverGreeting, err := recvGreeting(ws, server.OuterKey)
	if err != nil {
		metrics.HandshakeFailures.WithLabelValues("receive").Inc()
		return crypto.Key{}, err
	}
	if serverGreeting.Name != server.Name {
		metrics.HandshakeFailures.WithLabelValues("bad_handshake").Inc()
		return crypto.Key{}, fmt.Errorf("%w: server claimed name %q, expected %q", errs.ErrHandshake, serverGreeting.Name, server.Name)
	}

	session, err := crypto.DeriveSessionKey(clientNonce, serverGreeting.Nonce, server.OuterKey)
	if err != nil {
		return crypto.Key{}, fmt.Errorf("%w: derive session key: %v", errs.ErrCrypto, err)
	}
	return session, nil
}

// serverHandshake performs the server side: read the client's greeting,
// trying each configured client's outer_key in turn since the server does
// not yet know which client is dialling in (AEAD authentication rejects
// every wrong key cleanly). Once a key opens the greeting, the claimed name
// must match that client's configured name and the remote address must
// match its configured IpOrRange, otherwise the handshake aborts with
// UnknownPeer or BadAddress respectively. On success, sends our own
// greeting back under the same outer_key and derives the session key.
func serverHandshake(ws *websocket.Conn, selfName string, cfg config.ServiceConfig, remoteAddr net.IP) (config.ClientConfig, crypto.Key, error) {
	var raw crypto.Sealed
	if err := ws.ReadJSON(&raw); err != nil {
		return config.ClientConfig{}, crypto.Key{}, fmt.Errorf("%w: receive handshake greeting: %v", errs.ErrTransport, err)
	}

	var matched config.ClientConfig
	var clientGreeting greeting
	found := false
	for _, client := range cfg.Clients {
		g, err := crypto.Decrypt[greeting](client.OuterKey, raw)
		if err != nil {
			continue
		}
		if g.Name != client.Name {
			continue
		}
		matched = client
		clientGreeting = g
		found = true
		break
	}
	if !found {
		metrics.HandshakeFailures.WithLabelValues("unknown_peer").Inc()
		return config.ClientConfig{}, crypto.Key{}, fmt.Errorf("%w: unknown peer", errs.ErrHandshake)
	}

	if !matched.IP.Matches(remoteAddr) {
		metrics.HandshakeFailures.WithLabelValues("bad_address").Inc()
		return config.ClientConfig{}, crypto.Key{}, fmt.Errorf("%w: address %s not permitted for client %s", errs.ErrHandshake, remoteAddr, matched.Name)
	}

	serverNonce, err := newNonce()
	if err != nil {
		return config.ClientConfig{}, crypto.Key{}, err
	}
	if err := sendGreeting(ws, matched.OuterKey, selfName, serverNonce); err != nil {
		metrics.HandshakeFailures.WithLabelValues("send").Inc()
		return config.ClientConfig{}, crypto.Key{}, err
	}

	session, err := crypto.DeriveSessionKey(clientGreeting.Nonce, serverNonce, matched.OuterKey)
	if err != nil {
		return config.ClientConfig{}, crypto.Key{}, fmt.Errorf("%w: derive session key: %v", errs.ErrCrypto, err)
	}
	return matched, session, nil
}
