package job

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewJobStartsAtVersionOnePending(t *testing.T) {
	j := New("provider.portal add_user alice.proj.portal")
	require.EqualValues(t, 1, j.Version)
	require.Equal(t, Pending, j.State)
	require.Nil(t, j.Result)
	require.True(t, j.Command.Valid())
}

func TestParseRejectsInvalidCommand(t *testing.T) {
	_, err := Parse("provider.portal not_a_verb")
	require.Error(t, err)
}

func TestLifecycleVersionMonotonic(t *testing.T) {
	j := New("provider.portal add_user alice.proj.portal")
	v0 := j.Version

	require.NoError(t, j.Start())
	require.Greater(t, j.Version, v0)
	require.Equal(t, Running, j.State)

	v1 := j.Version
	require.NoError(t, j.Complete("ok"))
	require.Greater(t, j.Version, v1)
	require.Equal(t, Complete, j.State)
	require.NotNil(t, j.Result)
}

func TestTerminalStateIsAbsorbing(t *testing.T) {
	j := New("provider.portal add_user alice.proj.portal")
	require.NoError(t, j.Complete("ok"))

	require.Error(t, j.Start())
	require.Error(t, j.Complete("again"))
	require.Error(t, j.Fail("nope"))
}

func TestResultSomeIffTerminal(t *testing.T) {
	pending := New("provider.portal add_user alice.proj.portal")
	require.Nil(t, pending.Result)

	completed := New("provider.portal add_user alice.proj.portal")
	require.NoError(t, completed.Complete("ok"))
	require.NotNil(t, completed.Result)

	errored := New("provider.portal add_user alice.proj.portal")
	require.NoError(t, errored.Fail("boom"))
	require.NotNil(t, errored.Result)
}

func TestResultAsDecodesCompleteResult(t *testing.T) {
	j := New("provider.portal add_user alice.proj.portal")
	require.NoError(t, j.Complete(map[string]string{"status": "ok"}))

	var out map[string]string
	require.NoError(t, j.ResultAs(&out))
	require.Equal(t, "ok", out["status"])
}

func TestResultAsReturnsRunErrorForFailedJob(t *testing.T) {
	j := New("provider.portal add_user alice.proj.portal")
	require.NoError(t, j.Fail("permission denied"))

	var out string
	err := j.ResultAs(&out)
	require.ErrorContains(t, err, "permission denied")
}

func TestRestartAllocatesNewID(t *testing.T) {
	j := New("provider.portal add_user alice.proj.portal")
	require.NoError(t, j.Fail("boom"))

	restarted := j.Restart()
	require.NotEqual(t, j.ID, restarted.ID)
	require.Equal(t, Pending, restarted.State)
	require.EqualValues(t, 1, restarted.Version)
}
