package errs

import "errors"

// ErrBoardOutOfOrder marks a Board.Add call whose version is not newer than
// the version already held for that job id. It is logged and discarded, a
// newer version must already exist; it never propagates to the caller as a
// failure of the send that produced it.
var ErrBoardOutOfOrder = errors.New("board: out of order update")

// ErrBoardNotFound marks a lookup for a job id the board has never seen
// (or has since evicted).
var ErrBoardNotFound = errors.New("board: job not found")

// ErrBoardInvalidTransition marks a mutation attempted against a job
// already in a terminal state (Complete or Error): terminal states are
// absorbing, only an explicit restart may supersede them, and a restart
// allocates a new job id rather than mutating the old one.
var ErrBoardInvalidTransition = errors.New("board: invalid state transition")
