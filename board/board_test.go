package board

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openportal-go/openportal/errs"
	"github.com/openportal-go/openportal/grammar"
	"github.com/openportal-go/openportal/job"
)

func testPeer() grammar.Peer {
	return grammar.Peer{Agent: "provider", Zone: "zoneA"}
}

func TestAddAcceptsMonotonicVersions(t *testing.T) {
	b := New(testPeer())
	j := job.New("provider.portal add_user alice.proj.portal")

	require.NoError(t, b.Add(j))

	require.NoError(t, j.Start())
	require.NoError(t, b.Add(j))

	got, ok := b.Get(j.ID)
	require.True(t, ok)
	require.Equal(t, job.Running, got.State)
}

func TestAddEqualVersionIsNoOp(t *testing.T) {
	b := New(testPeer())
	j := job.New("provider.portal add_user alice.proj.portal")
	require.NoError(t, b.Add(j))
	require.NoError(t, b.Add(j))

	got, ok := b.Get(j.ID)
	require.True(t, ok)
	require.Equal(t, j.Version, got.Version)
}

func TestAddLowerVersionIsOutOfOrder(t *testing.T) {
	b := New(testPeer())
	j := job.New("provider.portal add_user alice.proj.portal")
	require.NoError(t, b.Add(j))

	stale := j
	newer := j
	require.NoError(t, newer.Start())
	require.NoError(t, b.Add(newer))

	err := b.Add(stale)
	require.ErrorIs(t, err, errs.ErrBoardOutOfOrder)

	got, _ := b.Get(j.ID)
	require.Equal(t, newer.Version, got.Version)
}

func TestTerminalJobRejectsFurtherMutation(t *testing.T) {
	b := New(testPeer())
	j := job.New("provider.portal add_user alice.proj.portal")
	require.NoError(t, j.Complete("ok"))
	require.NoError(t, b.Add(j))

	mutated := j
	require.NoError(t, mutated.Fail("too late"))
	// Fail bumps the version, so this would be a "higher version" add
	// against an already-terminal job; it must still be rejected.
	err := b.Add(mutated)
	require.Error(t, err)
}

func TestWaitForResolvesOnTerminal(t *testing.T) {
	b := New(testPeer())
	j := job.New("provider.portal add_user alice.proj.portal")
	require.NoError(t, b.Add(j))

	done := make(chan job.Job, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		resolved, err := b.WaitFor(ctx, j.ID)
		require.NoError(t, err)
		done <- resolved
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, j.Complete("done"))
	require.NoError(t, b.Add(j))

	select {
	case resolved := <-done:
		require.Equal(t, job.Complete, resolved.State)
	case <-time.After(time.Second):
		t.Fatal("WaitFor did not resolve")
	}
}

func TestWaitForRespectsContextCancellation(t *testing.T) {
	b := New(testPeer())
	j := job.New("provider.portal add_user alice.proj.portal")
	require.NoError(t, b.Add(j))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := b.WaitFor(ctx, j.ID)
	require.Error(t, err)
}

func TestRemoveDropsJobAndIsIdempotent(t *testing.T) {
	b := New(testPeer())
	j := job.New("provider.portal add_user alice.proj.portal")
	require.NoError(t, b.Add(j))

	b.Remove(j.ID)
	_, ok := b.Get(j.ID)
	require.False(t, ok)

	b.Remove(j.ID)
	_, ok = b.Get(j.ID)
	require.False(t, ok)
}

func TestRemoveReleasesBlockedWaiter(t *testing.T) {
	b := New(testPeer())
	j := job.New("provider.portal add_user alice.proj.portal")
	require.NoError(t, b.Add(j))

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, err := b.WaitFor(ctx, j.ID)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	b.Remove(j.ID)

	select {
	case err := <-done:
		require.ErrorIs(t, err, errs.ErrBoardNotFound)
	case <-time.After(time.Second):
		t.Fatal("WaitFor did not release on Remove")
	}
}

func TestQueueForSendAndDrain(t *testing.T) {
	b := New(testPeer())
	j1 := job.New("provider.portal add_user alice.proj.portal")
	j2 := job.New("provider.portal add_user bob.proj.portal")

	b.QueueForSend(j1)
	b.QueueForSend(j2)

	drained := b.DrainQueued()
	require.Len(t, drained, 2)
	require.Empty(t, b.DrainQueued())
}

func TestTerminalEvictionRespectsCapacity(t *testing.T) {
	b := NewWithCapacity(testPeer(), 2)

	var ids []job.Job
	for i := 0; i < 3; i++ {
		j := job.New("provider.portal add_user alice.proj.portal")
		require.NoError(t, j.Complete("ok"))
		require.NoError(t, b.Add(j))
		ids = append(ids, j)
	}

	_, ok := b.Get(ids[0].ID)
	require.False(t, ok, "oldest terminal job should have been evicted")

	_, ok = b.Get(ids[2].ID)
	require.True(t, ok)
}

func TestTerminalEvictionNeverDropsPendingJobs(t *testing.T) {
	b := NewWithCapacity(testPeer(), 1)

	pending := job.New("provider.portal add_user alice.proj.portal")
	require.NoError(t, b.Add(pending))

	for i := 0; i < 3; i++ {
		j := job.New("provider.portal add_user bob.proj.portal")
		require.NoError(t, j.Complete("ok"))
		require.NoError(t, b.Add(j))
	}

	_, ok := b.Get(pending.ID)
	require.True(t, ok, "pending job must never be evicted")
}
