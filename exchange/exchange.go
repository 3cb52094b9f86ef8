// Package exchange implements the process-wide registry of live peer
// connections: which peers are currently reachable, how to send to one,
// and where inbound envelopes get dispatched. It knows nothing about
// websockets or framing — transport.Connection registers itself here once
// its handshake completes, and the registry is oblivious to how a Handle
// moves bytes.
package exchange

import (
	"fmt"
	"sync"

	"github.com/openportal-go/openportal/errs"
	"github.com/openportal-go/openportal/grammar"
	"github.com/openportal-go/openportal/internal/logger"
	"github.com/openportal-go/openportal/internal/metrics"
	"github.com/openportal-go/openportal/job"
)

// Envelope is the routing wrapper carrying one job between two directly
// connected peers (spec.md glossary: "the routing wrapper carrying
// (sender, recipient, job)").
type Envelope struct {
	Sender    grammar.Peer
	Recipient grammar.Peer
	Job       job.Job
}

// Handle is whatever a transport connection exposes to the exchange: a
// way to hand it an envelope to send out, and a way to tear it down. The
// exchange never reaches past this interface into transport internals.
type Handle interface {
	Send(Envelope) error
	Close() error
}

// Handler processes one inbound envelope and returns the job update (if
// any) that resulted — e.g. running the destination's user Runnable, or
// forwarding to the next hop. A nil error with a zero job.Job means "no
// reply needed".
type Handler func(Envelope) (job.Job, error)

// Exchange is the process-wide peer registry. The zero value is not usable;
// construct one with New.
type Exchange struct {
	mu      sync.RWMutex
	peers   map[string]Handle
	handler Handler
}

// New creates an empty Exchange.
func New() *Exchange {
	return &Exchange{peers: make(map[string]Handle)}
}

// Register records handle as the live connection for peer, replacing any
// prior handle for the same peer (a reconnect superseding a stale one).
// Called on successful handshake.
func (e *Exchange) Register(peer grammar.Peer, handle Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.peers[peer.String()] = handle
	metrics.ConnectionsActive.Set(float64(len(e.peers)))
	logger.Default().Info("exchange: peer registered", logger.String("peer", peer.String()))
}

// Unregister drops peer's connection. Called on connection termination.
func (e *Exchange) Unregister(peer grammar.Peer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.peers, peer.String())
	metrics.ConnectionsActive.Set(float64(len(e.peers)))
	logger.Default().Info("exchange: peer unregistered", logger.String("peer", peer.String()))
}

// Connected reports whether peer currently has a registered handle.
func (e *Exchange) Connected(peer grammar.Peer) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.peers[peer.String()]
	return ok
}

// Send hands envelope to peer's live connection. It returns
// ErrStateMissingPeer if peer has no registered handle — callers that want
// "queue and replay on reconnect" semantics (spec.md §8: "send to an
// unconnected peer does not raise") should catch that case and enqueue on
// the peer's board themselves rather than treating it as fatal.
func (e *Exchange) Send(peer grammar.Peer, envelope Envelope) error {
	e.mu.RLock()
	handle, ok := e.peers[peer.String()]
	e.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: peer %s is not connected", errs.ErrStateMissingPeer, peer)
	}
	return handle.Send(envelope)
}

// Broadcast sends envelope to every currently connected peer, returning
// the set of per-peer errors encountered (empty if every send succeeded).
func (e *Exchange) Broadcast(envelope Envelope) map[string]error {
	e.mu.RLock()
	handles := make(map[string]Handle, len(e.peers))
	for name, h := range e.peers {
		handles[name] = h
	}
	e.mu.RUnlock()

	failures := make(map[string]error)
	for name, handle := range handles {
		if err := handle.Send(envelope); err != nil {
			failures[name] = err
		}
	}
	return failures
}

// SetHandler installs the single inbound message handler. There is exactly
// one handler per process (spec.md §4.3): it is the agent runtime's
// dispatch entry point.
func (e *Exchange) SetHandler(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = h
}

// Dispatch runs the installed handler against envelope on its own
// goroutine, so one slow or blocked handler invocation never stalls the
// connection's read loop. If no handler is installed, the envelope is
// logged and dropped.
func (e *Exchange) Dispatch(envelope Envelope) {
	e.mu.RLock()
	h := e.handler
	e.mu.RUnlock()

	if h == nil {
		logger.Default().Warn("exchange: dropped envelope, no handler installed",
			logger.String("sender", envelope.Sender.String()),
			logger.String("recipient", envelope.Recipient.String()))
		return
	}

	go func() {
		if _, err := h(envelope); err != nil {
			logger.Default().Error("exchange: handler returned error",
				logger.String("sender", envelope.Sender.String()),
				logger.Error(err))
		}
	}()
}
