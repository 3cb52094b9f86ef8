package exchange

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openportal-go/openportal/errs"
	"github.com/openportal-go/openportal/grammar"
	"github.com/openportal-go/openportal/job"
)

type fakeHandle struct {
	mu  sync.Mutex
	out []Envelope
}

func (f *fakeHandle) Send(e Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, e)
	return nil
}

func (f *fakeHandle) Close() error { return nil }

func testPeer(name string) grammar.Peer {
	return grammar.Peer{Agent: name, Zone: "zoneA"}
}

func TestSendToUnconnectedPeerReturnsMissingPeer(t *testing.T) {
	ex := New()
	err := ex.Send(testPeer("provider"), Envelope{})
	require.ErrorIs(t, err, errs.ErrStateMissingPeer)
}

func TestRegisterThenSendReachesHandle(t *testing.T) {
	ex := New()
	h := &fakeHandle{}
	ex.Register(testPeer("provider"), h)
	require.True(t, ex.Connected(testPeer("provider")))

	env := Envelope{Sender: testPeer("portal"), Recipient: testPeer("provider")}
	require.NoError(t, ex.Send(testPeer("provider"), env))

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.out, 1)
}

func TestUnregisterDropsPeer(t *testing.T) {
	ex := New()
	ex.Register(testPeer("provider"), &fakeHandle{})
	ex.Unregister(testPeer("provider"))
	require.False(t, ex.Connected(testPeer("provider")))
}

func TestDispatchInvokesHandlerAsynchronously(t *testing.T) {
	ex := New()
	called := make(chan Envelope, 1)
	ex.SetHandler(func(e Envelope) (job.Job, error) {
		called <- e
		return job.Job{}, nil
	})

	env := Envelope{Sender: testPeer("provider"), Recipient: testPeer("portal")}
	ex.Dispatch(env)

	select {
	case got := <-called:
		require.Equal(t, env.Sender, got.Sender)
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestDispatchWithNoHandlerDoesNotPanic(t *testing.T) {
	ex := New()
	require.NotPanics(t, func() {
		ex.Dispatch(Envelope{})
	})
}
