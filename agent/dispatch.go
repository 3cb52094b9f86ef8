package agent

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/openportal-go/openportal/errs"
	"github.com/openportal-go/openportal/exchange"
	"github.com/openportal-go/openportal/grammar"
	"github.com/openportal-go/openportal/internal/logger"
	"github.com/openportal-go/openportal/job"
	"github.com/openportal-go/openportal/transport"
)

// connHandle adapts one transport.Connection to exchange.Handle. Put and
// Update carry identical wire semantics — both deliver one job version,
// and the receiving side's board.Add enforces monotonicity regardless of
// which kind announced it — so every outbound delivery is framed as a Put;
// the Update/Put distinction in transport.DataKind exists for log
// readability, not differing receiver behaviour.
type connHandle struct {
	conn *transport.Connection
}

func (h connHandle) Send(env exchange.Envelope) error {
	return h.conn.SendData(env.Recipient.Agent, transport.PutPayload(env.Job))
}

func (h connHandle) Close() error { return h.conn.Close() }

// SetupConnection installs the three callbacks a transport.Connection needs
// from its owning agent: the register/sync_board/send_queued handshake
// follow-up, teardown bookkeeping, and inbound data dispatch. Pass this to
// transport.NewListener and transport.RunClient as their setup argument.
func (rt *Runtime) SetupConnection(conn *transport.Connection) {
	conn.SetConnectedHandler(rt.onConnected)
	conn.SetDisconnectedHandler(rt.onDisconnected)
	conn.SetHandler(func(f transport.Frame) { rt.onFrame(conn, f) })
}

// onConnected runs the atomic register -> sync_board -> send_queued
// sequence spec.md §4.5 requires before any buffered inbound frame is
// released, then opens the connection's ready gate.
func (rt *Runtime) onConnected(conn *transport.Connection, peerName, zone string) {
	log := rt.log.WithFields(logger.String("peer", peerName))

	if err := conn.SendData(peerName, transport.RegisterPayload(string(rt.Type))); err != nil {
		log.Warn("failed to send register", logger.Error(err))
	}

	b := rt.boardFor(peerName)
	if err := conn.SendData(peerName, transport.SyncBoardPayload(b.Snapshot())); err != nil {
		log.Warn("failed to send board sync", logger.Error(err))
	}

	for _, j := range b.DrainQueued() {
		if err := conn.SendData(peerName, transport.PutPayload(j)); err != nil {
			log.Warn("failed to replay queued job", logger.Error(err), logger.String("job", j.ID.String()))
			b.QueueForSend(j)
		}
	}

	rt.Exchange.Register(grammar.Peer{Agent: peerName}, connHandle{conn: conn})
	conn.MarkReady()
	log.Info("peer connected")
}

// onDisconnected drops peerName from the live-connection and agent-type
// registries. Its board is left intact: jobs already recorded survive the
// outage and any future send is queued until the peer reconnects.
func (rt *Runtime) onDisconnected(peerName, zone string) {
	rt.Exchange.Unregister(grammar.Peer{Agent: peerName})
	rt.State.Unregister(peerName)
	rt.log.Info("peer disconnected", logger.String("peer", peerName))
}

// onFrame decodes one inbound data frame and routes it by DataKind.
func (rt *Runtime) onFrame(conn *transport.Connection, f transport.Frame) {
	payload, err := conn.OpenData(f)
	if err != nil {
		rt.log.Warn("failed to open data frame", logger.Error(err), logger.String("sender", f.Sender))
		return
	}

	switch payload.Kind {
	case transport.DataRegister:
		rt.State.Register(f.Sender, Type(payload.AgentType))
		rt.log.Debug("peer registered agent type",
			logger.String("peer", f.Sender), logger.String("agent_type", payload.AgentType))

	case transport.DataSyncBoard:
		b := rt.boardFor(f.Sender)
		for _, j := range payload.Jobs {
			if err := b.Add(j); err != nil && !errors.Is(err, errs.ErrBoardOutOfOrder) {
				rt.log.Warn("board sync rejected job", logger.Error(err), logger.String("job", j.ID.String()))
			}
		}

	case transport.DataPut, transport.DataUpdate:
		if payload.Job == nil {
			rt.log.Warn("data frame missing job payload", logger.String("sender", f.Sender))
			return
		}
		rt.Exchange.Dispatch(exchange.Envelope{
			Sender:    grammar.Peer{Agent: f.Sender},
			Recipient: grammar.Peer{Agent: rt.Config.Name},
			Job:       *payload.Job,
		})
	}
}

// dispatchEnvelope is the single Handler this runtime installs on its
// Exchange (spec.md §4.3: "exactly one handler per process"). Every inbound
// data frame is routed here, off the connection's own read loop, by
// Exchange.Dispatch.
func (rt *Runtime) dispatchEnvelope(env exchange.Envelope) (job.Job, error) {
	rt.receiveJob(env.Sender.Agent, env.Job)
	return job.Job{}, nil
}

// receiveJob records an inbound job version on sender's board and either
// runs it locally (this agent is the terminal recipient), forwards it
// toward the next hop (spec.md §4.5), or — if sender's board already held a
// record for this id — simply applies the update and leaves it there: this
// is a status reply flowing back from a peer we already forwarded to, not a
// fresh instruction to route, and the awaitAndRelay goroutine forward
// spawned for it owns relaying the eventual terminal outcome upstream.
func (rt *Runtime) receiveJob(sender string, j job.Job) {
	b := rt.boardFor(sender)
	_, alreadyTracked := b.Get(j.ID)

	if err := b.Add(j); err != nil {
		rt.log.Warn("rejected inbound job", logger.Error(err), logger.String("job", j.ID.String()))
		return
	}

	if alreadyTracked || j.State.Terminal() {
		return
	}

	if j.Command.Destination.Terminal() {
		rt.runLocally(sender, j)
		return
	}
	rt.forward(sender, j)
}

// runLocally executes j's instruction via the installed Runnable, reporting
// an interim Running update and then the terminal Complete/Error result
// back to sender.
func (rt *Runtime) runLocally(sender string, j job.Job) {
	running := j
	if err := running.Start(); err == nil {
		_ = rt.boardFor(sender).Add(running)
		rt.replyTo(sender, running)
	}

	ctx, cancel := context.WithTimeout(context.Background(), RunTimeout)
	defer cancel()

	final := running
	if rt.runnable == nil {
		_ = final.Fail("no runnable installed for this agent")
	} else if result, err := rt.runnable(ctx, j); err != nil {
		_ = final.Fail(err.Error())
	} else {
		_ = final.Complete(result)
	}

	if err := rt.boardFor(sender).Add(final); err != nil {
		rt.log.Warn("failed to record terminal job", logger.Error(err), logger.String("job", final.ID.String()))
	}
	rt.replyTo(sender, final)
}

// forward advances j's Destination past this agent and sends it on to the
// next hop, resolved via resolvePeer. If that peer is not currently
// connected, the job is queued on its board for replay once it reconnects
// (spec.md §8: "send to an unconnected peer does not raise"). If j arrived
// from another peer (sender != ""), forward also spawns awaitAndRelay to
// carry the next hop's eventual terminal result back upstream (spec.md
// §4.5). A locally originated job (sender == "", see Submit) has no
// upstream to relay to — its caller awaits the next hop's board directly.
func (rt *Runtime) forward(sender string, j job.Job) {
	advancedDest := j.Command.Destination.Advance()
	nextHopName, ok := advancedDest.NextHop()
	if !ok {
		rt.log.Error("forward: destination exhausted before reaching a terminal state",
			logger.String("job", j.ID.String()))
		return
	}

	resolved := rt.resolvePeer(nextHopName)
	forwarded := j
	forwarded.Command.Destination = advancedDest

	nextBoard := rt.boardFor(resolved)
	if err := nextBoard.Add(forwarded); err != nil {
		rt.log.Warn("forward: rejected by next hop's board", logger.Error(err), logger.String("job", j.ID.String()))
		return
	}

	env := exchange.Envelope{
		Sender:    grammar.Peer{Agent: rt.Config.Name},
		Recipient: grammar.Peer{Agent: resolved},
		Job:       forwarded,
	}
	if err := rt.Exchange.Send(grammar.Peer{Agent: resolved}, env); err != nil {
		nextBoard.QueueForSend(forwarded)
		rt.log.Debug("forward: peer not connected, queued", logger.String("peer", resolved), logger.String("job", j.ID.String()))
	}

	if sender != "" {
		go rt.awaitAndRelay(sender, resolved, j.ID, j.Command.Destination)
	}
}

// awaitAndRelay blocks on nextHop's board for forwardedID to reach a
// terminal state, re-applies the result to sender's board with its
// original (pre-Advance) Destination restored, and relays it to sender
// (spec.md §4.5: "awaits the waiter; applies the resolved version to its
// local board; forwards update upstream"). RunTimeout bounds the wait so a
// hop that never replies cannot leak this goroutine forever.
func (rt *Runtime) awaitAndRelay(sender, nextHop string, forwardedID uuid.UUID, originalDest grammar.Destination) {
	ctx, cancel := context.WithTimeout(context.Background(), RunTimeout)
	defer cancel()

	final, err := rt.boardFor(nextHop).WaitFor(ctx, forwardedID)
	if err != nil {
		rt.log.Warn("forward: next hop never resolved job", logger.Error(err),
			logger.String("job", forwardedID.String()), logger.String("peer", nextHop))
		return
	}

	final.Command.Destination = originalDest
	if err := rt.boardFor(sender).Add(final); err != nil {
		rt.log.Warn("failed to relay resolved job upstream", logger.Error(err), logger.String("job", final.ID.String()))
		return
	}
	rt.replyTo(sender, final)
}

// replyTo sends j back to sender, queuing it on sender's board if sender is
// not currently connected (e.g. a reconnect is in progress).
func (rt *Runtime) replyTo(sender string, j job.Job) {
	env := exchange.Envelope{
		Sender:    grammar.Peer{Agent: rt.Config.Name},
		Recipient: grammar.Peer{Agent: sender},
		Job:       j,
	}
	if err := rt.Exchange.Send(grammar.Peer{Agent: sender}, env); err != nil {
		rt.boardFor(sender).QueueForSend(j)
	}
}
