package config

import (
	"fmt"
	"os"

	"github.com/openportal-go/openportal/crypto"
	"github.com/openportal-go/openportal/errs"
)

// EncryptionSchemeKind discriminates EncryptionScheme's two variants. A
// third, Vault-backed scheme is intentionally left out — spec.md's
// Non-goals exclude durable external secret stores from this
// implementation's scope, matching the original's own commented-out
// `Vault { url }` variant.
type EncryptionSchemeKind int

const (
	// SchemeNone means no scheme has been selected yet; ServiceConfig.Key
	// fails with ErrConfig until one is set.
	SchemeNone EncryptionSchemeKind = iota
	// SchemeSimple derives the service's key from its own name — a
	// development convenience with no secrecy against anyone who can read
	// the config file.
	SchemeSimple
	// SchemeEnvironment derives the service's key from the named
	// environment variable's value, resolved fresh on every use so a
	// deployment can rotate the variable without restarting every process
	// that merely reads EncryptionScheme from disk.
	SchemeEnvironment
)

// EncryptionScheme selects how a ServiceConfig derives its own key
// (spec.md §3: "Simple ... or Environment{var_name}").
type EncryptionScheme struct {
	Kind    EncryptionSchemeKind `toml:"kind"`
	VarName string               `toml:"var_name,omitempty"`
}

// Simple constructs the Simple scheme.
func Simple() EncryptionScheme {
	return EncryptionScheme{Kind: SchemeSimple}
}

// Environment constructs the Environment scheme over the named variable.
func Environment(varName string) EncryptionScheme {
	return EncryptionScheme{Kind: SchemeEnvironment, VarName: varName}
}

// resolve derives the key this scheme names, using serviceName as the
// Simple scheme's passphrase.
func (s EncryptionScheme) resolve(serviceName string) (crypto.Key, error) {
	switch s.Kind {
	case SchemeSimple:
		return crypto.FromPassword(serviceName), nil
	case SchemeEnvironment:
		value, ok := os.LookupEnv(s.VarName)
		if !ok {
			return crypto.Key{}, fmt.Errorf("%w: environment variable %s is not set", errs.ErrConfig, s.VarName)
		}
		return crypto.FromPassword(value), nil
	default:
		return crypto.Key{}, fmt.Errorf("%w: no encryption scheme selected", errs.ErrConfig)
	}
}
