package errs

import "errors"

// ErrStateMissingAgent marks a lookup for an AgentType the runtime was
// never configured to handle.
var ErrStateMissingAgent = errors.New("state: missing agent")

// ErrStateMissingPeer marks a lookup for a peer with no board/registry
// entry, e.g. a send targeting a peer never named in the ServiceConfig.
var ErrStateMissingPeer = errors.New("state: missing peer")
