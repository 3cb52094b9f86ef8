// Package errs is the shared error taxonomy named in spec.md §7: Parse,
// Config, Crypto, Handshake, Transport, Board, Job, State, Bug. Each kind
// is a package-level sentinel; call sites wrap it with fmt.Errorf("...:
// %w", ErrX) so callers can still errors.Is against the kind while getting
// a specific message. One file per kind, matching the one-variant-per-file
// layout the rest of the codebase uses for its error values.
package errs

import "errors"

// ErrParse marks malformed grammar: a bad UserIdentifier, UserMapping,
// Destination, or Instruction string. Parse errors fail fast at the
// originating call and are never retried.
var ErrParse = errors.New("parse error")
