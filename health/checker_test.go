package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndCheck(t *testing.T) {
	checker := NewHealthChecker(time.Second)
	checker.SetCacheTTL(0)

	connected := map[string]bool{"provider": true, "account": false}
	checker.RegisterCheck("peer:provider", PeerConnectivityCheck("provider", func(p string) bool { return connected[p] }))
	checker.RegisterCheck("peer:account", PeerConnectivityCheck("account", func(p string) bool { return connected[p] }))

	result, err := checker.Check(context.Background(), "peer:provider")
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, result.Status)

	result, err = checker.Check(context.Background(), "peer:account")
	require.NoError(t, err)
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Contains(t, result.Message, "account")
}

func TestBoardBacklogCheck(t *testing.T) {
	check := BoardBacklogCheck("provider", 5, func() int { return 10 })
	require.Error(t, check(context.Background()))

	check = BoardBacklogCheck("provider", 5, func() int { return 2 })
	require.NoError(t, check(context.Background()))
}

func TestOverallStatusReflectsWorstCheck(t *testing.T) {
	checker := NewHealthChecker(time.Second)
	checker.SetCacheTTL(0)
	checker.RegisterCheck("ok", func(ctx context.Context) error { return nil })
	checker.RegisterCheck("bad", func(ctx context.Context) error { return assert.AnError })

	require.Equal(t, StatusUnhealthy, checker.GetOverallStatus(context.Background()))

	checker.UnregisterCheck("bad")
	require.Equal(t, StatusHealthy, checker.GetOverallStatus(context.Background()))
}
