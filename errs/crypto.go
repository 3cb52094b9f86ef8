package errs

import "errors"

// ErrCrypto marks an AEAD open failure, an unsupported sealed-data version,
// or a malformed key. Crypto errors terminate the offending connection but
// never the process.
var ErrCrypto = errors.New("crypto error")
