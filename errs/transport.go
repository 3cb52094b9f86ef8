package errs

import "errors"

// ErrTransport marks a closed connection, broken pipe, or read/write
// timeout on an established session. Transport errors are recovered
// automatically by the reconnect supervisor (client) or simply drop the
// one connection (server).
var ErrTransport = errors.New("transport error")
