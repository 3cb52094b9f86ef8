package transport

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openportal-go/openportal/config"
	"github.com/openportal-go/openportal/crypto"
	"github.com/openportal-go/openportal/job"
)

func mustDataFrame(t *testing.T, inner crypto.Key, sender, recipient string, payload DataPayload) Frame {
	t.Helper()
	f, err := dataFrame(inner, sender, recipient, payload)
	require.NoError(t, err)
	return f
}

func mustJob(t *testing.T) job.Job {
	t.Helper()
	j, err := job.Parse("portal.provider add_user alice.proj.portal")
	require.NoError(t, err)
	return j
}

// newPeerPair builds a portal ServiceConfig (the server role) with one
// client entry for a provider, and the matching provider-side ServerConfig
// (the client role), sharing the same keys the way AddClient/AddServer do.
func newPeerPair(t *testing.T) (portal config.ServiceConfig, providerToPortal config.ServerConfig) {
	t.Helper()

	portal, err := config.New("portal", "http://localhost:8000", "127.0.0.1", 8000)
	require.NoError(t, err)

	inv, err := portal.AddClient("provider", "127.0.0.1")
	require.NoError(t, err)

	server, err := config.ServerConfigFromInvitation(inv)
	require.NoError(t, err)
	return portal, server
}

func TestHandshakeAndDataRoundTrip(t *testing.T) {
	portal, serverCfg := newPeerPair(t)

	received := make(chan DataPayload, 1)
	listener := NewListener(portal, func(serverConn *Connection) {
		serverConn.SetHandler(func(f Frame) {
			payload, err := openData(serverConn.innerKey, *f.Data)
			require.NoError(t, err)
			received <- payload
		})
		serverConn.MarkReady()
	})
	httpServer := httptest.NewServer(listener.Handler())
	defer httpServer.Close()

	serverCfg.URL = "ws" + strings.TrimPrefix(httpServer.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Initiate(ctx, "provider", serverCfg)
	require.NoError(t, err)
	defer conn.Close()
	conn.MarkReady()

	go conn.run()

	require.NoError(t, conn.SendData("portal", RegisterPayload("provider")))

	select {
	case payload := <-received:
		require.Equal(t, DataRegister, payload.Kind)
		require.Equal(t, "provider", payload.AgentType)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame to reach the server")
	}
}

func TestServerRejectsUnknownClient(t *testing.T) {
	portal, _ := newPeerPair(t)

	listener := NewListener(portal, nil)
	httpServer := httptest.NewServer(listener.Handler())
	defer httpServer.Close()

	stranger, err := config.NewServerConfig("portal", "ws"+strings.TrimPrefix(httpServer.URL, "http"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = Initiate(ctx, "stranger", stranger)
	require.Error(t, err)
}

func TestConnectionBuffersFramesUntilReady(t *testing.T) {
	portal, serverCfg := newPeerPair(t)
	innerKey := serverCfg.InnerKey

	var mu sync.Mutex
	var delivered []DataPayload
	conn := &Connection{innerKey: innerKey}
	conn.SetHandler(func(f Frame) {
		payload, err := openData(innerKey, *f.Data)
		require.NoError(t, err)
		mu.Lock()
		delivered = append(delivered, payload)
		mu.Unlock()
	})

	conn.dispatch(mustDataFrame(t, innerKey, "portal", "provider", PutPayload(mustJob(t))))
	conn.dispatch(mustDataFrame(t, innerKey, "portal", "provider", RegisterPayload("provider")))

	mu.Lock()
	require.Empty(t, delivered)
	mu.Unlock()

	conn.MarkReady()

	mu.Lock()
	require.Len(t, delivered, 2)
	mu.Unlock()

	conn.dispatch(mustDataFrame(t, innerKey, "portal", "provider", RegisterPayload("provider")))
	mu.Lock()
	require.Len(t, delivered, 3)
	mu.Unlock()

	_ = portal
}
