package errs

import "errors"

// ErrBug marks a violated internal invariant: something the rest of the
// package set assumed could never happen (e.g. a board waiter fired twice,
// a version counter that went backwards under its own lock). Bug errors
// fail fast at the originating call, same as Parse.
var ErrBug = errors.New("bug: invariant violated")
