package agent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openportal-go/openportal/errs"
)

func TestStateRegisterAndTypeOf(t *testing.T) {
	s := NewState()
	s.Register("provider", TypeProvider)

	typ, err := s.TypeOf("provider")
	require.NoError(t, err)
	require.Equal(t, TypeProvider, typ)
}

func TestStateTypeOfUnknownPeer(t *testing.T) {
	s := NewState()
	_, err := s.TypeOf("nobody")
	require.ErrorIs(t, err, errs.ErrStateMissingPeer)
}

func TestStateAnyPeerOfResolvesByType(t *testing.T) {
	s := NewState()
	s.Register("account-1", TypeAccount)
	s.Register("account-2", TypeAccount)

	peer, err := s.AnyPeerOf(TypeAccount)
	require.NoError(t, err)
	require.Contains(t, []string{"account-1", "account-2"}, peer)
}

func TestStateAnyPeerOfNoMatch(t *testing.T) {
	s := NewState()
	_, err := s.AnyPeerOf(TypeFilesystem)
	require.ErrorIs(t, err, errs.ErrStateMissingAgent)
}

func TestStateReregisterMovesPeerBetweenTypes(t *testing.T) {
	s := NewState()
	s.Register("flex", TypeProvider)
	s.Register("flex", TypeAccount)

	_, err := s.AnyPeerOf(TypeProvider)
	require.ErrorIs(t, err, errs.ErrStateMissingAgent)

	peer, err := s.AnyPeerOf(TypeAccount)
	require.NoError(t, err)
	require.Equal(t, "flex", peer)
}

func TestStateUnregisterDropsPeer(t *testing.T) {
	s := NewState()
	s.Register("provider", TypeProvider)
	s.Unregister("provider")

	_, err := s.TypeOf("provider")
	require.ErrorIs(t, err, errs.ErrStateMissingPeer)
}
