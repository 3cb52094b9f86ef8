package errs

import "errors"

// ErrHandshake marks a rejected handshake: unknown peer name, a source
// address outside the client's configured IpOrRange, or an outer-key
// mismatch. Handshake errors terminate the offending connection; the
// reconnect supervisor retries on a fixed delay, it does not back off or
// give up.
var ErrHandshake = errors.New("handshake error")
