package config

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.toml")

	cfg, err := Create(path, "portal", "http://localhost:8000", "127.0.0.1", 8042)
	require.NoError(t, err)
	require.Equal(t, "portal", cfg.Name)
	require.Equal(t, "ws://localhost:8000", cfg.URL)

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Name, loaded.Name)
	require.Equal(t, cfg.URL, loaded.URL)
}

func TestCreateRefusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.toml")
	_, err := Create(path, "portal", "http://localhost:8000", "127.0.0.1", 8042)
	require.NoError(t, err)

	_, err = Create(path, "portal", "http://localhost:8000", "127.0.0.1", 8042)
	require.Error(t, err)
}

func TestAddClientProducesUsableInvitation(t *testing.T) {
	cfg, err := New("portal", "https://portal.example.org", "127.0.0.1", 8042)
	require.NoError(t, err)

	inv, err := cfg.AddClient("provider", "10.0.0.0/24")
	require.NoError(t, err)
	require.Equal(t, "portal", inv.Name)
	require.Len(t, cfg.Clients, 1)
	require.Equal(t, inv.InnerKey, cfg.Clients[0].InnerKey)
	require.Equal(t, inv.OuterKey, cfg.Clients[0].OuterKey)
}

func TestAddClientRejectsDuplicateName(t *testing.T) {
	cfg, err := New("portal", "https://portal.example.org", "127.0.0.1", 8042)
	require.NoError(t, err)

	_, err = cfg.AddClient("provider", "10.0.0.0/24")
	require.NoError(t, err)

	_, err = cfg.AddClient("provider", "10.0.0.5")
	require.Error(t, err)
}

func TestAddServerFromInvitationMirrorsKeys(t *testing.T) {
	issuer, err := New("provider", "https://provider.example.org", "127.0.0.1", 8043)
	require.NoError(t, err)

	inv, err := issuer.AddClient("portal", "10.0.0.5")
	require.NoError(t, err)

	consumer, err := New("portal", "https://portal.example.org", "127.0.0.1", 8042)
	require.NoError(t, err)
	require.NoError(t, consumer.AddServer(inv))

	require.Len(t, consumer.Servers, 1)
	require.Equal(t, issuer.Clients[0].InnerKey, consumer.Servers[0].InnerKey)
	require.Equal(t, issuer.Clients[0].OuterKey, consumer.Servers[0].OuterKey)
}

func TestRemoveClientAndServer(t *testing.T) {
	cfg, err := New("portal", "https://portal.example.org", "127.0.0.1", 8042)
	require.NoError(t, err)

	_, err = cfg.AddClient("provider", "10.0.0.0/24")
	require.NoError(t, err)
	cfg.RemoveClient("provider")
	require.Empty(t, cfg.Clients)
}

func TestMatchingClientChecksNameAndAddress(t *testing.T) {
	cfg, err := New("portal", "https://portal.example.org", "127.0.0.1", 8042)
	require.NoError(t, err)
	_, err = cfg.AddClient("provider", "10.0.0.0/24")
	require.NoError(t, err)

	_, ok := cfg.MatchingClient("provider", net.ParseIP("10.0.0.5"))
	require.True(t, ok)

	_, ok = cfg.MatchingClient("provider", net.ParseIP("192.168.0.5"))
	require.False(t, ok)

	_, ok = cfg.MatchingClient("someone-else", net.ParseIP("10.0.0.5"))
	require.False(t, ok)
}

func TestSimpleEncryptionRoundTrip(t *testing.T) {
	cfg, err := New("portal", "https://portal.example.org", "127.0.0.1", 8042)
	require.NoError(t, err)
	cfg.SetSimpleEncryption()

	sealed, err := Encrypt(cfg, "secret-payload")
	require.NoError(t, err)

	out, err := Decrypt[string](cfg, sealed)
	require.NoError(t, err)
	require.Equal(t, "secret-payload", out)
}

func TestEncryptWithoutSchemeFails(t *testing.T) {
	cfg, err := New("portal", "https://portal.example.org", "127.0.0.1", 8042)
	require.NoError(t, err)

	_, err = Encrypt(cfg, "secret-payload")
	require.Error(t, err)
}
