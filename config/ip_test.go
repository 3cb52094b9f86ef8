package config

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIpOrRangeSingleAddress(t *testing.T) {
	r, err := ParseIpOrRange("127.0.0.1")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", r.String())

	require.True(t, r.Matches(net.ParseIP("127.0.0.1")))
	require.False(t, r.Matches(net.ParseIP("127.0.0.2")))
	require.False(t, r.Matches(net.ParseIP("129.0.0.1")))
}

func TestIpOrRangeGlobIsInvalid(t *testing.T) {
	_, err := ParseIpOrRange("127.*.*.*")
	require.Error(t, err)
}

func TestIpOrRangeCIDR(t *testing.T) {
	r, err := ParseIpOrRange("127.0.0.0/24")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.0/24", r.String())

	require.True(t, r.Matches(net.ParseIP("127.0.0.1")))
	require.True(t, r.Matches(net.ParseIP("127.0.0.2")))
	require.False(t, r.Matches(net.ParseIP("129.0.0.1")))
}
