package grammar

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserIdentifierRoundTrip(t *testing.T) {
	u, err := ParseUserIdentifier("user.project.portal")
	require.NoError(t, err)
	require.Equal(t, "user", u.Username)
	require.Equal(t, "project", u.Project)
	require.Equal(t, "portal", u.Portal)
	require.Equal(t, "user.project.portal", u.String())
}

func TestUserIdentifierEmptyProjectIsParseError(t *testing.T) {
	_, err := ParseUserIdentifier("u..portal")
	require.Error(t, err)
}

func TestUserMappingRoundTrip(t *testing.T) {
	u, err := ParseUserIdentifier("user.project.portal")
	require.NoError(t, err)

	m, err := NewUserMapping(u, "local_user", "local_project")
	require.NoError(t, err)
	require.Equal(t, "user.project.portal:local_user:local_project", m.String())

	parsed, err := ParseUserMapping(m.String())
	require.NoError(t, err)
	require.Equal(t, m, parsed)
}

func TestInstructionRoundTrip(t *testing.T) {
	cases := []string{
		"add_user user.project.portal",
		"remove_user user.project.portal",
		"add_local_user user.project.portal:local_user:local_project",
		"remove_local_user user.project.portal:local_user:local_project",
		"update_homedir user.project.portal /home/user",
		"get_usage_report project.portal",
		"get_project_mapping project.portal",
	}

	for _, s := range cases {
		i := NewInstruction(s)
		require.True(t, i.Valid(), "expected %q to parse as valid", s)
		require.Equal(t, s, i.String())

		reparsed := NewInstruction(i.String())
		require.Equal(t, i, reparsed)
	}
}

func TestInstructionUpdateHomeDirMissingArgumentIsInvalid(t *testing.T) {
	i := NewInstruction("update_homedir u.p.portal")
	require.Equal(t, KindInvalid, i.Kind)
	require.False(t, i.Valid())
}

func TestInstructionUnknownVerbIsInvalid(t *testing.T) {
	i := NewInstruction("invalid")
	require.Equal(t, KindInvalid, i.Kind)
	require.Equal(t, "invalid", i.String())
}

func TestDestinationMultiHop(t *testing.T) {
	d := ParseDestination("provider.account.portal")
	require.True(t, d.Valid())
	require.False(t, d.Terminal())

	hop, ok := d.NextHop()
	require.True(t, ok)
	require.Equal(t, "provider", hop)

	next := d.Advance()
	require.Equal(t, "account.portal", next.String())
	require.False(t, next.Terminal())

	terminal := next.Advance()
	require.True(t, terminal.Terminal())
}

func TestDestinationEmptyIsInvalid(t *testing.T) {
	d := ParseDestination("")
	require.False(t, d.Valid())
}

func TestCommandRoundTrip(t *testing.T) {
	c := NewCommand("provider.account.portal add_user alice.proj.portal")
	require.True(t, c.Valid())
	require.Equal(t, "provider.account.portal add_user alice.proj.portal", c.String())

	reparsed := NewCommand(c.String())
	require.Equal(t, c, reparsed)
}

func TestPeerStringWithAndWithoutZone(t *testing.T) {
	p, err := ParsePeer("provider@zoneA")
	require.NoError(t, err)
	require.Equal(t, "provider", p.Agent)
	require.Equal(t, "zoneA", p.Zone)
	require.Equal(t, "provider@zoneA", p.String())

	bare, err := ParsePeer("provider")
	require.NoError(t, err)
	require.Equal(t, "provider", bare.String())
}
