package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openportal-go/openportal/config"
	"github.com/openportal-go/openportal/exchange"
	"github.com/openportal-go/openportal/grammar"
	"github.com/openportal-go/openportal/job"
)

type recordingHandle struct {
	mu  sync.Mutex
	out []exchange.Envelope
}

func (h *recordingHandle) Send(env exchange.Envelope) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.out = append(h.out, env)
	return nil
}

func (h *recordingHandle) Close() error { return nil }

func (h *recordingHandle) jobs() []job.Job {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]job.Job, len(h.out))
	for i, env := range h.out {
		out[i] = env.Job
	}
	return out
}

func testRuntime(t *testing.T, ownType Type, runnable Runnable) *Runtime {
	t.Helper()
	cfg, err := config.New("account", "ws://127.0.0.1:9000", "127.0.0.1", 9000)
	require.NoError(t, err)
	return New(cfg, ownType, runnable)
}

func TestReceiveJobTerminalRunsLocallyAndReportsBack(t *testing.T) {
	rt := testRuntime(t, TypeAccount, func(ctx context.Context, j job.Job) (any, error) {
		return map[string]string{"status": "done"}, nil
	})

	handle := &recordingHandle{}
	rt.Exchange.Register(grammar.Peer{Agent: "portal"}, handle)

	j, err := job.Parse("account add_user alice.proj.portal")
	require.NoError(t, err)

	rt.receiveJob("portal", j)

	jobs := handle.jobs()
	require.Len(t, jobs, 2)
	require.Equal(t, job.Running, jobs[0].State)
	require.Equal(t, job.Complete, jobs[1].State)
}

func TestReceiveJobFailureReachesErrorState(t *testing.T) {
	rt := testRuntime(t, TypeAccount, func(ctx context.Context, j job.Job) (any, error) {
		return nil, errors.New("boom")
	})

	handle := &recordingHandle{}
	rt.Exchange.Register(grammar.Peer{Agent: "portal"}, handle)

	j, err := job.Parse("account add_user alice.proj.portal")
	require.NoError(t, err)

	rt.receiveJob("portal", j)

	jobs := handle.jobs()
	require.Len(t, jobs, 2)
	require.Equal(t, job.Error, jobs[1].State)
}

func TestForwardAdvancesDestinationToNextHop(t *testing.T) {
	rt := testRuntime(t, TypeProvider, NoopRunnable())

	j, err := job.Parse("account.portal add_user alice.proj.portal")
	require.NoError(t, err)
	require.False(t, j.Command.Destination.Terminal())

	handle := &recordingHandle{}
	rt.Exchange.Register(grammar.Peer{Agent: "portal"}, handle)

	rt.forward("origin", j)

	jobs := handle.jobs()
	require.Len(t, jobs, 1)
	require.True(t, jobs[0].Command.Destination.Terminal())
	require.Equal(t, "portal", jobs[0].Command.Destination.Hops[0])
}

func TestForwardQueuesWhenNextHopDisconnected(t *testing.T) {
	rt := testRuntime(t, TypeProvider, NoopRunnable())

	j, err := job.Parse("account.portal add_user alice.proj.portal")
	require.NoError(t, err)

	rt.forward("origin", j)

	require.Equal(t, 1, rt.PendingCount("portal"))
}

func TestResolvePeerPrefersConfiguredNameOverType(t *testing.T) {
	rt := testRuntime(t, TypeProvider, NoopRunnable())
	rt.Config.Clients = append(rt.Config.Clients, config.ClientConfig{Name: "account"})
	rt.State.Register("account-2", TypeAccount)

	require.Equal(t, "account", rt.resolvePeer("account"))
}

func TestResolvePeerFallsBackToAgentType(t *testing.T) {
	rt := testRuntime(t, TypeProvider, NoopRunnable())
	rt.State.Register("account-1", TypeAccount)

	require.Equal(t, "account-1", rt.resolvePeer("account"))
}

// TestForwardRelaysTerminalResultUpstream exercises the three-hop shape
// (spec.md §8 scenario 2) entirely within one intermediate agent: receiving
// a job from "portal" bound for "account", forwarding it on, then feeding
// back account's own Running/Complete replies the way onFrame would. The
// terminal result must land on portal's board, not just account's.
func TestForwardRelaysTerminalResultUpstream(t *testing.T) {
	rt := testRuntime(t, TypeProvider, NoopRunnable())

	upstream := &recordingHandle{}
	rt.Exchange.Register(grammar.Peer{Agent: "portal"}, upstream)
	downstream := &recordingHandle{}
	rt.Exchange.Register(grammar.Peer{Agent: "slurm"}, downstream)

	// Hops[0] "account" is this runtime's own name (testRuntime always
	// configures "account"): it is consumed by forward without ever being
	// dialed. "slurm" is the real next hop.
	j, err := job.Parse("account.slurm add_user alice.proj.portal")
	require.NoError(t, err)

	rt.receiveJob("portal", j)

	sent := downstream.jobs()
	require.Len(t, sent, 1)
	forwarded := sent[0]
	require.True(t, forwarded.Command.Destination.Terminal())

	running := forwarded
	require.NoError(t, running.Start())
	rt.receiveJob("slurm", running)

	final := running
	require.NoError(t, final.Complete(map[string]string{"status": "done"}))
	rt.receiveJob("slurm", final)

	require.Eventually(t, func() bool {
		got, ok := rt.boardFor("portal").Get(j.ID)
		return ok && got.State == job.Complete
	}, time.Second, time.Millisecond)

	relayed := upstream.jobs()
	require.NotEmpty(t, relayed)
	last := relayed[len(relayed)-1]
	require.Equal(t, job.Complete, last.State)
	require.Equal(t, "account.slurm", last.Command.Destination.String())
}

func TestSubmitWritesToFirstHopBoardAndSends(t *testing.T) {
	rt := testRuntime(t, TypeProvider, NoopRunnable())

	handle := &recordingHandle{}
	rt.Exchange.Register(grammar.Peer{Agent: "slurm"}, handle)

	j, err := rt.Submit("slurm.portal add_user alice.proj.portal")
	require.NoError(t, err)

	_, ok := rt.boardFor("slurm").Get(j.ID)
	require.True(t, ok)
	require.Len(t, handle.jobs(), 1)
}

func TestSubmitQueuesWhenFirstHopDisconnected(t *testing.T) {
	rt := testRuntime(t, TypeProvider, NoopRunnable())

	_, err := rt.Submit("slurm.portal add_user alice.proj.portal")
	require.NoError(t, err)

	require.Equal(t, 1, rt.PendingCount("slurm"))
}

func TestAwaitResolvesOnceFirstHopCompletes(t *testing.T) {
	rt := testRuntime(t, TypeProvider, NoopRunnable())

	j, err := rt.Submit("slurm.portal add_user alice.proj.portal")
	require.NoError(t, err)

	done := j
	require.NoError(t, done.Complete("ok"))
	require.NoError(t, rt.boardFor("slurm").Add(done))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resolved, err := rt.Await(ctx, j)
	require.NoError(t, err)
	require.Equal(t, job.Complete, resolved.State)
}
