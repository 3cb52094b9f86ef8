package errs

import "errors"

// ErrConfig marks a missing config file, invalid TOML, or a reference to an
// encryption scheme that cannot be resolved (e.g. an unset environment
// variable). Config errors abort startup.
var ErrConfig = errors.New("config error")
