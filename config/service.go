package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/openportal-go/openportal/crypto"
	"github.com/openportal-go/openportal/errs"
	"github.com/openportal-go/openportal/invitation"
)

// ServiceConfig is the identity and peer registry every agent loads once
// at startup and treats as immutable thereafter (spec.md §3:
// "Configurations are loaded once at startup and kept immutable in memory
// thereafter").
type ServiceConfig struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
	IP   net.IP `toml:"ip"`
	Port uint16 `toml:"port"`

	Servers    []ServerConfig   `toml:"servers"`
	Clients    []ClientConfig   `toml:"clients"`
	Encryption EncryptionScheme `toml:"encryption"`
}

// New constructs a bare ServiceConfig with no peers and no encryption
// scheme selected yet.
func New(name, rawURL, ip string, port uint16) (ServiceConfig, error) {
	wsURL, err := createWebsocketURL(rawURL)
	if err != nil {
		return ServiceConfig{}, err
	}

	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return ServiceConfig{}, fmt.Errorf("%w: could not parse IP address: %s", errs.ErrConfig, ip)
	}

	return ServiceConfig{Name: name, URL: wsURL, IP: parsedIP, Port: port}, nil
}

// Load reads and parses a ServiceConfig from a TOML file.
func Load(path string) (ServiceConfig, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return ServiceConfig{}, fmt.Errorf("%w: resolve path %s: %v", errs.ErrConfig, path, err)
	}

	if _, err := os.Stat(abs); err != nil {
		return ServiceConfig{}, fmt.Errorf("%w: config file does not exist: %s", errs.ErrConfig, abs)
	}

	var cfg ServiceConfig
	if _, err := toml.DecodeFile(abs, &cfg); err != nil {
		return ServiceConfig{}, fmt.Errorf("%w: could not parse config file from toml: %s: %v", errs.ErrConfig, abs, err)
	}
	return cfg, nil
}

// Save writes cfg to path as TOML, creating parent directories as needed.
func (c ServiceConfig) Save(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: resolve path %s: %v", errs.ErrConfig, path, err)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("%w: create parent directory for %s: %v", errs.ErrConfig, abs, err)
	}

	f, err := os.Create(abs)
	if err != nil {
		return fmt.Errorf("%w: create config file %s: %v", errs.ErrConfig, abs, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("%w: encode config file %s: %v", errs.ErrConfig, abs, err)
	}
	return nil
}

// Create builds a new ServiceConfig and writes it to path, refusing to
// overwrite an existing file, then reloads it from disk so callers get
// back exactly what Load would return later (matching the original's
// create-then-reload round trip, which doubles as a write sanity check).
func Create(path, name, rawURL, ip string, port uint16) (ServiceConfig, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return ServiceConfig{}, fmt.Errorf("%w: resolve path %s: %v", errs.ErrConfig, path, err)
	}

	if _, err := os.Stat(abs); err == nil {
		return ServiceConfig{}, fmt.Errorf("%w: config file already exists: %s", errs.ErrConfig, abs)
	}

	cfg, err := New(name, rawURL, ip, port)
	if err != nil {
		return ServiceConfig{}, err
	}

	if err := cfg.Save(abs); err != nil {
		return ServiceConfig{}, err
	}

	return Load(abs)
}

// SetSimpleEncryption selects the Simple encryption scheme.
func (c *ServiceConfig) SetSimpleEncryption() {
	c.Encryption = Simple()
}

// SetEnvironmentEncryption selects the Environment encryption scheme over
// varName.
func (c *ServiceConfig) SetEnvironmentEncryption(varName string) {
	c.Encryption = Environment(varName)
}

// key resolves this service's own derived key from its selected scheme.
func (c ServiceConfig) key() (crypto.Key, error) {
	return c.Encryption.resolve(c.Name)
}

// Encrypt seals v under this service's own derived key (used for
// encrypting ServiceConfig's own persisted secrets, not peer traffic,
// which uses inner_key/outer_key instead).
func Encrypt[T any](c ServiceConfig, v T) (crypto.Sealed, error) {
	key, err := c.key()
	if err != nil {
		return crypto.Sealed{}, err
	}
	return crypto.Encrypt(key, v)
}

// Decrypt opens a Sealed value produced by Encrypt with the same
// ServiceConfig's scheme.
func Decrypt[T any](c ServiceConfig, sealed crypto.Sealed) (T, error) {
	var zero T
	key, err := c.key()
	if err != nil {
		return zero, err
	}
	return crypto.Decrypt[T](key, sealed)
}

// AddClient mints a new ClientConfig entry permitting name to connect from
// ip, and returns the invitation to hand that peer out of band.
func (c *ServiceConfig) AddClient(name, ip string) (invitation.Invitation, error) {
	parsedIP, err := ParseIpOrRange(ip)
	if err != nil {
		return invitation.Invitation{}, fmt.Errorf("config: could not parse IP address or range for client %s: %w", name, err)
	}

	for _, existing := range c.Clients {
		if existing.Name == name {
			return invitation.Invitation{}, fmt.Errorf("%w: client with name %q already exists", errs.ErrConfig, name)
		}
	}

	client, err := NewClientConfig(name, parsedIP)
	if err != nil {
		return invitation.Invitation{}, err
	}

	c.Clients = append(c.Clients, client)
	return client.ToInvitation(c.Name, c.URL), nil
}

// RemoveClient drops the client entry named name, if any.
func (c *ServiceConfig) RemoveClient(name string) {
	kept := c.Clients[:0]
	for _, client := range c.Clients {
		if client.Name != name {
			kept = append(kept, client)
		}
	}
	c.Clients = kept
}

// AddServer consumes an invitation received out of band, adding a
// ServerConfig entry authorising this process to dial that peer.
func (c *ServiceConfig) AddServer(inv invitation.Invitation) error {
	for _, existing := range c.Servers {
		if existing.Name == inv.Name {
			return fmt.Errorf("%w: server with name %q already exists", errs.ErrConfig, inv.Name)
		}
	}

	server, err := ServerConfigFromInvitation(inv)
	if err != nil {
		return err
	}
	if server.URL == "" {
		return fmt.Errorf("%w: no URL provided for server %s", errs.ErrConfig, server.Name)
	}

	c.Servers = append(c.Servers, server)
	return nil
}

// RemoveServer drops the server entry named name, if any.
func (c *ServiceConfig) RemoveServer(name string) {
	kept := c.Servers[:0]
	for _, server := range c.Servers {
		if server.Name != name {
			kept = append(kept, server)
		}
	}
	c.Servers = kept
}

// MatchingClient returns the client entry that permits a connection from
// addr claiming to be named name, if any.
func (c ServiceConfig) MatchingClient(name string, addr net.IP) (ClientConfig, bool) {
	for _, client := range c.Clients {
		if client.Name == name && client.IP.Matches(addr) {
			return client, true
		}
	}
	return ClientConfig{}, false
}
