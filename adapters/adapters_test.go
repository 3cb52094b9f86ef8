package adapters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openportal-go/openportal/grammar"
	"github.com/openportal-go/openportal/job"
)

func mustUser(t *testing.T, s string) grammar.UserIdentifier {
	t.Helper()
	u, err := grammar.ParseUserIdentifier(s)
	require.NoError(t, err)
	return u
}

func TestInMemoryIdentityServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryIdentityService()
	user := mustUser(t, "alice.proj.portal")

	require.NoError(t, svc.AddUser(ctx, user))

	mapping, err := grammar.NewUserMapping(user, "alice_local", "proj_local")
	require.NoError(t, err)
	require.NoError(t, svc.AddLocalMapping(ctx, mapping))

	local, ok := svc.LookupLocalUser(ctx, user)
	require.True(t, ok)
	require.Equal(t, "alice_local", local)

	require.NoError(t, svc.RemoveUser(ctx, user))
	_, ok = svc.LookupLocalUser(ctx, user)
	require.False(t, ok)
}

func TestInMemoryIdentityServiceRejectsMappingUnknownUser(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryIdentityService()
	mapping, err := grammar.NewUserMapping(mustUser(t, "bob.proj.portal"), "bob_local", "proj_local")
	require.NoError(t, err)

	require.Error(t, svc.AddLocalMapping(ctx, mapping))
}

func TestInMemorySchedulerAccountsGrantRevoke(t *testing.T) {
	ctx := context.Background()
	sched := NewInMemorySchedulerAccounts()
	mapping, err := grammar.NewUserMapping(mustUser(t, "alice.proj.portal"), "alice_local", "proj_local")
	require.NoError(t, err)

	require.NoError(t, sched.Grant(ctx, mapping))
	require.True(t, sched.HasAccount(ctx, "alice_local", "proj_local"))

	require.NoError(t, sched.Revoke(ctx, mapping))
	require.False(t, sched.HasAccount(ctx, "alice_local", "proj_local"))
}

func TestInMemoryFilesystemDriverLifecycle(t *testing.T) {
	ctx := context.Background()
	driver := NewInMemoryFilesystemDriver()
	user := mustUser(t, "alice.proj.portal")

	require.NoError(t, driver.CreateHome(ctx, user, "/home/alice"))
	home, ok := driver.HomeOf(ctx, user)
	require.True(t, ok)
	require.Equal(t, "/home/alice", home)

	require.NoError(t, driver.UpdateHome(ctx, user, "/mnt/new/alice"))
	home, ok = driver.HomeOf(ctx, user)
	require.True(t, ok)
	require.Equal(t, "/mnt/new/alice", home)

	require.NoError(t, driver.RemoveHome(ctx, user))
	_, ok = driver.HomeOf(ctx, user)
	require.False(t, ok)
}

func TestAccountRunnableHandlesAddAndRemoveLocalUser(t *testing.T) {
	identities := NewInMemoryIdentityService()
	scheduler := NewInMemorySchedulerAccounts()
	runnable := AccountRunnable(identities, scheduler)

	addUser, err := job.Parse("account add_user alice.proj.portal")
	require.NoError(t, err)
	_, err = runnable(context.Background(), addUser)
	require.NoError(t, err)

	addLocal, err := job.Parse("account add_local_user alice.proj.portal:alice_local:proj_local")
	require.NoError(t, err)
	_, err = runnable(context.Background(), addLocal)
	require.NoError(t, err)
	require.True(t, scheduler.HasAccount(context.Background(), "alice_local", "proj_local"))

	removeLocal, err := job.Parse("account remove_local_user alice.proj.portal:alice_local:proj_local")
	require.NoError(t, err)
	_, err = runnable(context.Background(), removeLocal)
	require.NoError(t, err)
	require.False(t, scheduler.HasAccount(context.Background(), "alice_local", "proj_local"))
}

func TestFilesystemRunnableHandlesUpdateHomedir(t *testing.T) {
	driver := NewInMemoryFilesystemDriver()
	runnable := FilesystemRunnable(driver)

	addUser, err := job.Parse("filesystem add_user alice.proj.portal")
	require.NoError(t, err)
	result, err := runnable(context.Background(), addUser)
	require.NoError(t, err)
	require.Equal(t, FilesystemResult{Path: "/home/alice"}, result)

	update, err := job.Parse("filesystem update_homedir alice.proj.portal /mnt/alice")
	require.NoError(t, err)
	result, err = runnable(context.Background(), update)
	require.NoError(t, err)
	require.Equal(t, FilesystemResult{Path: "/mnt/alice"}, result)
}
