// Package crypto implements the symmetric AEAD primitive shared by every
// OpenPortal agent: encryption/decryption of arbitrary JSON-serialisable
// values under a 256-bit key, key generation, and deterministic
// passphrase-derived keys for the "Simple" encryption scheme.
//
// Two independent keys are threaded through the rest of the system
// (config.ServerConfig/ClientConfig, invitation.Invitation): an inner key
// end-to-end between the originating and terminal agent, and an outer key
// hop-to-hop between directly connected peers. Both are instances of Key;
// nothing in this package distinguishes them, the distinction lives in how
// the caller uses the two keys (see transport.Connection).
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// sealedVersion is the only version of the sealed wire format this package
// understands. Bumping it is a breaking wire change.
const sealedVersion = 1

// keySize is the width of an OpenPortal AEAD key, in bytes (256 bits).
const keySize = chacha20poly1305.KeySize

// passwordSalt is compiled in so that FromPassword is fully deterministic
// for a given passphrase — it exists to let development deployments agree
// on a shared key from nothing but a service name, never for production
// secrecy (see config.EncryptionScheme's Simple variant).
var passwordSalt = []byte("openportal-simple-scheme-salt-v1")

// sessionKeyInfo is the HKDF "info" tag for session-key derivation,
// separating it from any other use of the same outer key as IKM.
var sessionKeyInfo = []byte("openportal-session-key-v1")

// ErrUnsupportedVersion is returned by Decrypt when the sealed data was
// produced by a newer or unrecognised scheme version.
var ErrUnsupportedVersion = errors.New("crypto: unsupported sealed data version")

// Key is a 256-bit AEAD secret. The zero value is not a valid key; always
// construct one via Generate, FromPassword, or DeriveSessionKey.
type Key struct {
	data [keySize]byte
}

// Generate draws a fresh 256-bit key from the system CSPRNG.
func Generate() (Key, error) {
	var k Key
	if _, err := rand.Read(k.data[:]); err != nil {
		return Key{}, fmt.Errorf("crypto: generate key: %w", err)
	}
	return k, nil
}

// FromPassword derives a 256-bit key deterministically from a passphrase
// using PBKDF2-HMAC-SHA256 over a compiled-in salt, so that two services
// configured with EncryptionScheme::Simple and the same passphrase agree on
// the same key without exchanging anything out of band. This is a
// development convenience, not a production secrecy mechanism: anyone who
// knows the passphrase can derive the key offline.
func FromPassword(passphrase string) Key {
	var k Key
	derived := pbkdf2.Key([]byte(passphrase), passwordSalt, 100_000, keySize, sha256.New)
	copy(k.data[:], derived)
	return k
}

// DeriveSessionKey combines the client and server handshake nonces with the
// shared outer key via HKDF-SHA256 to produce the per-session key used to
// frame traffic after a successful handshake (spec.md §4.2). Both peers
// call this with the same (clientNonce, serverNonce, outer) and obtain the
// same key without it ever crossing the wire.
func DeriveSessionKey(clientNonce, serverNonce []byte, outer Key) (Key, error) {
	ikm := make([]byte, 0, len(clientNonce)+len(serverNonce))
	ikm = append(ikm, clientNonce...)
	ikm = append(ikm, serverNonce...)

	reader := hkdf.New(sha256.New, outer.data[:], ikm, sessionKeyInfo)

	var k Key
	if _, err := io.ReadFull(reader, k.data[:]); err != nil {
		return Key{}, fmt.Errorf("crypto: derive session key: %w", err)
	}
	return k, nil
}

// Zero overwrites the key material in place. Callers holding a Key past its
// useful lifetime should call Zero when done with it (spec.md §3: keys are
// zeroised once no longer needed).
func (k *Key) Zero() {
	for i := range k.data {
		k.data[i] = 0
	}
}

// String redacts the key; keys must never appear in logs or error messages
// verbatim.
func (k Key) String() string {
	return "Key{REDACTED}"
}

// MarshalText hex-encodes the key, matching spec.md §3 ("serialised as
// hex") and the config/invitation TOML file formats.
func (k Key) MarshalText() ([]byte, error) {
	dst := make([]byte, hex.EncodedLen(len(k.data)))
	hex.Encode(dst, k.data[:])
	return dst, nil
}

// UnmarshalText parses a hex-encoded key as produced by MarshalText.
func (k *Key) UnmarshalText(text []byte) error {
	if hex.DecodedLen(len(text)) != keySize {
		return fmt.Errorf("crypto: key must decode to %d bytes, got %d hex chars", keySize, len(text))
	}
	if _, err := hex.Decode(k.data[:], text); err != nil {
		return fmt.Errorf("crypto: decode hex key: %w", err)
	}
	return nil
}

// Sealed is the on-wire/on-disk representation of an encrypted value: a
// version byte plus AEAD ciphertext (nonce prepended to the ciphertext).
// JSON-encoding a Sealed value hex-encodes Data so the envelope round-trips
// through TOML files and websocket text frames alike.
type Sealed struct {
	Version uint8
	Data    []byte
}

// MarshalJSON hex-encodes Data instead of the default base64, matching the
// rest of the system's "hex everywhere" convention for key/ciphertext
// material.
func (s Sealed) MarshalJSON() ([]byte, error) {
	wire := struct {
		Version uint8  `json:"version"`
		Data    string `json:"data"`
	}{Version: s.Version, Data: hex.EncodeToString(s.Data)}
	return json.Marshal(wire)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (s *Sealed) UnmarshalJSON(b []byte) error {
	var wire struct {
		Version uint8  `json:"version"`
		Data    string `json:"data"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	data, err := hex.DecodeString(wire.Data)
	if err != nil {
		return fmt.Errorf("crypto: decode sealed data: %w", err)
	}
	s.Version = wire.Version
	s.Data = data
	return nil
}

// Encrypt JSON-serialises v and seals it under k as AEAD(k, JSON(v)).
func Encrypt[T any](k Key, v T) (Sealed, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Sealed{}, fmt.Errorf("crypto: marshal plaintext: %w", err)
	}

	aead, err := chacha20poly1305.New(k.data[:])
	if err != nil {
		return Sealed{}, fmt.Errorf("crypto: init aead: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(payload)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return Sealed{}, fmt.Errorf("crypto: generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, payload, nil)
	return Sealed{Version: sealedVersion, Data: sealed}, nil
}

// Decrypt opens s under k and unmarshals the resulting plaintext JSON into
// a T. It returns ErrUnsupportedVersion if s was sealed under a scheme
// version this package doesn't understand.
func Decrypt[T any](k Key, s Sealed) (T, error) {
	var zero T

	if s.Version != sealedVersion {
		return zero, ErrUnsupportedVersion
	}

	aead, err := chacha20poly1305.New(k.data[:])
	if err != nil {
		return zero, fmt.Errorf("crypto: init aead: %w", err)
	}

	if len(s.Data) < aead.NonceSize() {
		return zero, errors.New("crypto: sealed data shorter than nonce")
	}
	nonce, ciphertext := s.Data[:aead.NonceSize()], s.Data[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return zero, fmt.Errorf("crypto: open sealed data: %w", err)
	}

	var v T
	if err := json.Unmarshal(plaintext, &v); err != nil {
		return zero, fmt.Errorf("crypto: unmarshal plaintext: %w", err)
	}
	return v, nil
}
