package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openportal-go/openportal/board"
	"github.com/openportal-go/openportal/config"
	"github.com/openportal-go/openportal/errs"
	"github.com/openportal-go/openportal/exchange"
	"github.com/openportal-go/openportal/grammar"
	"github.com/openportal-go/openportal/health"
	"github.com/openportal-go/openportal/internal/logger"
	"github.com/openportal-go/openportal/job"
)

// Runnable is the single handler an agent process installs to actually
// perform the work named by a terminal job's instruction (spec.md §4.6:
// "exactly one AsyncRunnable per process"). A returned error fails the job
// (job.Fail); a returned value is JSON-encoded as the job's result
// (job.Complete).
type Runnable func(ctx context.Context, j job.Job) (any, error)

// RunTimeout bounds how long a Runnable may run before its job is forced
// into the Error state, so one stuck handler never blocks a board forever.
const RunTimeout = 60 * time.Second

// Runtime wires together everything one OpenPortal agent process needs:
// its configuration, the live-connection registry, the per-peer agent-type
// registry, a board per peer, and the Runnable it installs for terminal
// jobs. It has no knowledge of transport.Connection directly — connections
// register themselves through SetupConnection.
type Runtime struct {
	Config   config.ServiceConfig
	Type     Type
	Exchange *exchange.Exchange
	State    *State
	Health   *health.HealthChecker

	boardsMu sync.Mutex
	boards   map[string]*board.Board

	runnable Runnable
	log      logger.Logger
}

// New builds a Runtime for an agent named and configured by cfg, announcing
// itself as ownType, running runnable for every job terminating here.
func New(cfg config.ServiceConfig, ownType Type, runnable Runnable) *Runtime {
	log := logger.Default().WithFields(logger.String("agent", cfg.Name))

	checker := health.NewHealthChecker(5 * time.Second)
	checker.SetLogger(log)

	rt := &Runtime{
		Config:   cfg,
		Type:     ownType,
		Exchange: exchange.New(),
		State:    NewState(),
		Health:   checker,
		boards:   make(map[string]*board.Board),
		runnable: runnable,
		log:      log,
	}
	rt.Exchange.SetHandler(rt.dispatchEnvelope)
	return rt
}

// boardFor returns the board tracking jobs exchanged with peer, creating an
// empty one on first use.
func (rt *Runtime) boardFor(peer string) *board.Board {
	rt.boardsMu.Lock()
	defer rt.boardsMu.Unlock()

	b, ok := rt.boards[peer]
	if !ok {
		b = board.New(grammar.Peer{Agent: peer})
		rt.boards[peer] = b
	}
	return b
}

// PendingCount reports how many jobs peer's board currently tracks, for
// wiring into health.BoardBacklogCheck.
func (rt *Runtime) PendingCount(peer string) int {
	return len(rt.boardFor(peer).Snapshot())
}

// Connected reports whether peer currently has a live connection, for
// wiring into health.PeerConnectivityCheck.
func (rt *Runtime) Connected(peer string) bool {
	return rt.Exchange.Connected(grammar.Peer{Agent: peer})
}

// resolvePeer maps a Destination hop name to the peer name to actually dial
// or address: an exact configured peer name wins outright, otherwise the
// hop is treated as an agent-type role and resolved via the State registry
// populated by inbound Register messages (spec.md §4.5). If neither
// resolves, hop is returned unchanged so the caller's own connectivity
// check (exchange.Send / board.QueueForSend) surfaces the failure.
func (rt *Runtime) resolvePeer(hop string) string {
	for _, s := range rt.Config.Servers {
		if s.Name == hop {
			return hop
		}
	}
	for _, c := range rt.Config.Clients {
		if c.Name == hop {
			return hop
		}
	}
	if resolved, err := rt.State.AnyPeerOf(Type(hop)); err == nil {
		return resolved
	}
	return hop
}

// Submit parses command and originates it into the federation: spec.md §2's
// "a local caller constructs a Job ... and writes it directly to the first
// hop's board, then issues Put". Unlike forward, Submit never calls
// Destination.Advance(): the caller is not itself a hop, so the job is sent
// exactly as parsed, with Hops[0] naming the peer to send it to. If that
// peer is not currently connected, the job is queued for replay once it
// reconnects, same as any other forwarded job.
func (rt *Runtime) Submit(command string) (job.Job, error) {
	j, err := job.Parse(command)
	if err != nil {
		return job.Job{}, err
	}

	hop, ok := j.Command.Destination.NextHop()
	if !ok {
		return job.Job{}, fmt.Errorf("%w: command %q names no destination", errs.ErrParse, command)
	}

	resolved := rt.resolvePeer(hop)
	b := rt.boardFor(resolved)
	if err := b.Add(j); err != nil {
		return job.Job{}, err
	}

	env := exchange.Envelope{
		Sender:    grammar.Peer{Agent: rt.Config.Name},
		Recipient: grammar.Peer{Agent: resolved},
		Job:       j,
	}
	if err := rt.Exchange.Send(grammar.Peer{Agent: resolved}, env); err != nil {
		b.QueueForSend(j)
		rt.log.Debug("submit: peer not connected, queued", logger.String("peer", resolved), logger.String("job", j.ID.String()))
	}

	return j, nil
}

// Await blocks until j — previously returned by Submit — reaches a
// terminal state on the board of the peer it was sent to, or ctx is done
// (spec.md §2: "if the caller awaits, blocks on a board waiter keyed by job
// id+version").
func (rt *Runtime) Await(ctx context.Context, j job.Job) (job.Job, error) {
	hop, ok := j.Command.Destination.NextHop()
	if !ok {
		return job.Job{}, fmt.Errorf("%w: job %s names no destination", errs.ErrParse, j.ID)
	}
	return rt.boardFor(rt.resolvePeer(hop)).WaitFor(ctx, j.ID)
}
