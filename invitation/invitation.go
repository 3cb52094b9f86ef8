// Package invitation implements the out-of-band bootstrap record a service
// hands to a prospective peer: a name, a connect URL, and the two shared
// keys (inner and outer) that peer will use for every future session.
//
// An invitation is produced by ServiceConfig.AddClient (see the config
// package) and consumed by ServiceConfig.AddServer on the other side — the
// two sides end up holding mirrored ClientConfig/ServerConfig entries over
// the exact same key pair. The file itself never travels over a
// connection; it is saved to disk and carried out of band (email, a
// shared drive, a USB stick), matching spec.md §5's "serialised to a file
// and transferred out-of-band".
package invitation

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/openportal-go/openportal/crypto"
)

// Invitation is the TOML-serialised bootstrap record (spec.md §6:
// "Invitation file. TOML with {name, url, inner_key (hex), outer_key
// (hex)}").
type Invitation struct {
	Name     string    `toml:"name"`
	URL      string    `toml:"url"`
	InnerKey crypto.Key `toml:"inner_key"`
	OuterKey crypto.Key `toml:"outer_key"`
}

// New builds an invitation record for name/url over an existing key pair.
// Called by config.ServiceConfig.AddClient once it has minted the client's
// keys, matching the original's `Invite::new(&self.name, &self.url,
// &client.inner_key, &client.outer_key)`.
func New(name, url string, innerKey, outerKey crypto.Key) Invitation {
	return Invitation{Name: name, URL: url, InnerKey: innerKey, OuterKey: outerKey}
}

// Save writes the invitation to path as TOML, creating parent directories
// as needed.
func (inv Invitation) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("invitation: create parent directory for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("invitation: create %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(inv); err != nil {
		return fmt.Errorf("invitation: encode %s: %w", path, err)
	}
	return nil
}

// Load reads and parses an invitation file written by Save.
func Load(path string) (Invitation, error) {
	var inv Invitation
	if _, err := toml.DecodeFile(path, &inv); err != nil {
		return Invitation{}, fmt.Errorf("invitation: decode %s: %w", path, err)
	}
	return inv, nil
}
