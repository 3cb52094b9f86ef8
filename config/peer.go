package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/openportal-go/openportal/crypto"
	"github.com/openportal-go/openportal/errs"
	"github.com/openportal-go/openportal/invitation"
)

// createWebsocketURL rewrites an http(s) URL accepted in config/invitation
// files to its ws(s) equivalent, defaulting to wss for any scheme it
// doesn't recognise (ported from the original's `create_websocket_url`).
func createWebsocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: could not parse URL %q: %v", errs.ErrConfig, raw, err)
	}

	scheme := "wss"
	switch u.Scheme {
	case "ws":
		scheme = "ws"
	case "wss":
		scheme = "wss"
	case "http":
		scheme = "ws"
	case "https":
		scheme = "wss"
	}

	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := u.Port()
	if port == "" {
		port = "8080"
	}

	return fmt.Sprintf("%s://%s:%s%s", scheme, host, port, u.Path), nil
}

// ServerConfig authorises this process to connect outward to a named peer
// over the given URL, using the inner/outer key pair shared via invitation.
type ServerConfig struct {
	Name     string     `toml:"name"`
	URL      string     `toml:"url"`
	InnerKey crypto.Key `toml:"inner_key"`
	OuterKey crypto.Key `toml:"outer_key"`
}

// NewServerConfig mints a fresh key pair for a server entry named name at
// url. Used directly only by tests; production code obtains ServerConfig
// via ServerConfigFromInvitation after a real key exchange.
func NewServerConfig(name, rawURL string) (ServerConfig, error) {
	wsURL, err := createWebsocketURL(rawURL)
	if err != nil {
		return ServerConfig{}, err
	}
	innerKey, err := crypto.Generate()
	if err != nil {
		return ServerConfig{}, fmt.Errorf("config: generate inner key: %w", err)
	}
	outerKey, err := crypto.Generate()
	if err != nil {
		return ServerConfig{}, fmt.Errorf("config: generate outer key: %w", err)
	}
	return ServerConfig{Name: name, URL: wsURL, InnerKey: innerKey, OuterKey: outerKey}, nil
}

// ServerConfigFromInvitation builds a ServerConfig from an invitation
// received out of band, reusing its name/url/keys verbatim.
func ServerConfigFromInvitation(inv invitation.Invitation) (ServerConfig, error) {
	wsURL, err := createWebsocketURL(inv.URL)
	if err != nil {
		return ServerConfig{}, err
	}
	return ServerConfig{Name: inv.Name, URL: wsURL, InnerKey: inv.InnerKey, OuterKey: inv.OuterKey}, nil
}

// IsNull reports whether this is the zero-value "no server configured yet"
// sentinel.
func (s ServerConfig) IsNull() bool {
	return s.Name == ""
}

// WebsocketURL returns the dial URL, failing if none was ever set.
func (s ServerConfig) WebsocketURL() (string, error) {
	if s.URL == "" {
		return "", fmt.Errorf("%w: server %s has no URL", errs.ErrConfig, s.Name)
	}
	return s.URL, nil
}

// ToPeer wraps this entry as a PeerConfig.
func (s ServerConfig) ToPeer() PeerConfig {
	return PeerConfig{Kind: PeerKindServer, Server: s}
}

// ClientConfig permits inbound connections from a named peer at a stated
// IP or CIDR.
type ClientConfig struct {
	Name     string     `toml:"name"`
	IP       IpOrRange  `toml:"ip"`
	InnerKey crypto.Key `toml:"inner_key"`
	OuterKey crypto.Key `toml:"outer_key"`
}

// NewClientConfig mints a fresh key pair for a client entry named name,
// permitted to connect from ip.
func NewClientConfig(name string, ip IpOrRange) (ClientConfig, error) {
	if strings.TrimSpace(name) == "" {
		return ClientConfig{}, fmt.Errorf("%w: client name cannot be empty", errs.ErrConfig)
	}
	innerKey, err := crypto.Generate()
	if err != nil {
		return ClientConfig{}, fmt.Errorf("config: generate inner key: %w", err)
	}
	outerKey, err := crypto.Generate()
	if err != nil {
		return ClientConfig{}, fmt.Errorf("config: generate outer key: %w", err)
	}
	return ClientConfig{Name: name, IP: ip, InnerKey: innerKey, OuterKey: outerKey}, nil
}

// IsNull reports whether this is the zero-value "no client configured yet"
// sentinel.
func (c ClientConfig) IsNull() bool {
	return c.Name == ""
}

// ToPeer wraps this entry as a PeerConfig.
func (c ClientConfig) ToPeer() PeerConfig {
	return PeerConfig{Kind: PeerKindClient, Client: c}
}

// ToInvitation builds the bootstrap record handed to this client out of
// band, naming the issuing service's own name/url.
func (c ClientConfig) ToInvitation(serviceName, serviceURL string) invitation.Invitation {
	return invitation.New(serviceName, serviceURL, c.InnerKey, c.OuterKey)
}

// PeerKind discriminates PeerConfig's variants.
type PeerKind int

const (
	PeerKindNone PeerKind = iota
	PeerKindServer
	PeerKindClient
)

// PeerConfig is either a ServerConfig, a ClientConfig, or neither — the
// view of one configured peer regardless of which role this process plays
// toward it.
type PeerConfig struct {
	Kind   PeerKind
	Server ServerConfig
	Client ClientConfig
}

// IsNull reports whether this PeerConfig names no peer at all.
func (p PeerConfig) IsNull() bool {
	switch p.Kind {
	case PeerKindServer:
		return p.Server.IsNull()
	case PeerKindClient:
		return p.Client.IsNull()
	default:
		return true
	}
}

// Name returns the peer's configured name, or "" for PeerKindNone.
func (p PeerConfig) Name() string {
	switch p.Kind {
	case PeerKindServer:
		return p.Server.Name
	case PeerKindClient:
		return p.Client.Name
	default:
		return ""
	}
}
