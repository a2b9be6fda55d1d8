package actors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tacc-cloud/abaco/internal/app/authz"
	"github.com/tacc-cloud/abaco/internal/app/channel"
	"github.com/tacc-cloud/abaco/internal/app/domain/actor"
	"github.com/tacc-cloud/abaco/internal/app/domain/execution"
	"github.com/tacc-cloud/abaco/internal/app/domain/permission"
	"github.com/tacc-cloud/abaco/internal/app/envelope"
	"github.com/tacc-cloud/abaco/internal/app/storage"
)

func newTestService() (*Service, *channel.MemoryFactory) {
	stores := storage.NewMemoryStores()
	chans := channel.NewMemoryFactory()
	az := authz.New(stores.Permissions)
	return New(stores, chans, az, nil, envelope.CaseSnake), chans
}

func TestCreateActorGrantsCreatorUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	a, err := svc.CreateActor(ctx, "T", "alice", actor.Request{Name: "f", Image: "hello:1"})
	require.NoError(t, err)
	require.Equal(t, actor.StatusSubmitted, a.Status)

	level, err := svc.authz.EffectiveLevel(ctx, a.DBID, "alice")
	require.NoError(t, err)
	require.Equal(t, permission.Update, level)
}

func TestPostMessageStringBody(t *testing.T) {
	ctx := context.Background()
	svc, chans := newTestService()

	a, err := svc.CreateActor(ctx, "T", "alice", actor.Request{Name: "f", Image: "hello:1"})
	require.NoError(t, err)

	e, err := svc.PostMessage(ctx, "T", "alice", "https://api.example.com", "", a.ID, []byte("hi"), false, nil)
	require.NoError(t, err)
	require.Equal(t, execution.StatusSubmitted, e.Status)

	got, err := svc.stores.Executions.Get(ctx, a.DBID, e.ID)
	require.NoError(t, err)
	require.Equal(t, execution.StatusSubmitted, got.Status)

	n, err := chans.ActorMsgChannel(a.DBID).ApproxLen(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestPostMessageJSONBody(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	a, err := svc.CreateActor(ctx, "T", "alice", actor.Request{Name: "f", Image: "hello:1"})
	require.NoError(t, err)

	_, err = svc.PostMessage(ctx, "T", "alice", "https://api.example.com", "", a.ID, []byte(`{"k":1}`), true, nil)
	require.NoError(t, err)
}

func TestUpdateImageEmitsExactlyOneCommandWithStopExisting(t *testing.T) {
	ctx := context.Background()
	svc, chans := newTestService()

	a, err := svc.CreateActor(ctx, "T", "alice", actor.Request{Name: "f", Image: "hello:1"})
	require.NoError(t, err)

	updated, err := svc.UpdateActor(ctx, "T", "alice", a.ID, actor.Request{Image: "hello:2"})
	require.NoError(t, err)
	require.Equal(t, "hello:2", updated.Image)
	require.Equal(t, actor.StatusSubmitted, updated.Status)

	cmds := chans.Commands()
	require.Len(t, cmds, 1)
	require.True(t, cmds[0].StopExisting)
	require.Equal(t, "hello:2", cmds[0].Image)
}

func TestUpdateWithoutImageChangeLeavesStatusAndEmitsNoCommand(t *testing.T) {
	ctx := context.Background()
	svc, chans := newTestService()

	a, err := svc.CreateActor(ctx, "T", "alice", actor.Request{Name: "f", Image: "hello:1"})
	require.NoError(t, err)
	require.NoError(t, svc.stores.Actors.Update(ctx, "T", a.DBID, "status", actor.StatusReady))

	updated, err := svc.UpdateActor(ctx, "T", "alice", a.ID, actor.Request{Owner: "bob"})
	require.NoError(t, err)
	require.Equal(t, actor.StatusReady, updated.Status)
	require.Empty(t, chans.Commands())
}

func TestEnsureWorkersRequestsOnlyTheShortfall(t *testing.T) {
	ctx := context.Background()
	svc, chans := newTestService()

	a, err := svc.CreateActor(ctx, "T", "alice", actor.Request{Name: "f", Image: "hello:1"})
	require.NoError(t, err)

	_, err = svc.EnsureWorkers(ctx, "T", "alice", a.ID, 2)
	require.NoError(t, err)
	chans.Commands()

	ids, err := svc.EnsureWorkers(ctx, "T", "alice", a.ID, 3)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	cmds := chans.Commands()
	require.Equal(t, 1, cmds[len(cmds)-1].Num)
}

func TestDeleteActorPurgesAllStores(t *testing.T) {
	ctx := context.Background()
	svc, chans := newTestService()

	a, err := svc.CreateActor(ctx, "T", "alice", actor.Request{Name: "f", Image: "hello:1"})
	require.NoError(t, err)
	_, err = svc.EnsureWorkers(ctx, "T", "alice", a.ID, 1)
	require.NoError(t, err)
	workers, err := svc.stores.Workers.List(ctx, a.DBID)
	require.NoError(t, err)
	require.Len(t, workers, 1)

	_, err = svc.PostMessage(ctx, "T", "alice", "https://api.example.com", "", a.ID, []byte("hi"), false, nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteActor(ctx, "T", "alice", a.ID))

	_, err = svc.stores.Actors.Get(ctx, "T", a.DBID)
	require.Error(t, err)

	grants, err := svc.stores.Permissions.List(ctx, a.DBID)
	require.NoError(t, err)
	require.Empty(t, grants)

	execs, err := svc.stores.Executions.List(ctx, a.DBID)
	require.NoError(t, err)
	require.Empty(t, execs)

	remainingWorkers, err := svc.stores.Workers.List(ctx, a.DBID)
	require.NoError(t, err)
	require.Empty(t, remainingWorkers)

	wch := chans.WorkerChannel(workers[0].ChName).(interface{ ShutdownRequested() bool })
	require.True(t, wch.ShutdownRequested())
}

func TestCrossTenantAccessAlwaysDenied(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	a, err := svc.CreateActor(ctx, "T", "alice", actor.Request{Name: "f", Image: "hello:1"})
	require.NoError(t, err)
	require.NoError(t, svc.authz.Grant(ctx, a.DBID, "mallory", permission.Update))

	_, err = svc.GetActor(ctx, "OTHER", "mallory", a.ID)
	require.Error(t, err)
}

func TestSetStateRejectedOnStatelessActor(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	stateless := true
	a, err := svc.CreateActor(ctx, "T", "alice", actor.Request{Name: "f", Image: "hello:1", Stateless: &stateless})
	require.NoError(t, err)

	_, err = svc.SetState(ctx, "T", "alice", a.ID, map[string]interface{}{"x": 1})
	require.Error(t, err)
}
