package postgres

import (
	"testing"
	"time"

	"github.com/tacc-cloud/abaco/internal/app/domain/actor"
	"github.com/stretchr/testify/require"
)

func TestActorStoreRoundTripIntegration(t *testing.T) {
	stores, ctx := newTestStores(t)

	a := actor.New("T", "abc", actor.Request{Name: "f", Image: "hello:1"}, "alice", time.Now().UTC())
	require.NoError(t, stores.Actors.Set(ctx, a))

	got, err := stores.Actors.Get(ctx, "T", a.DBID)
	require.NoError(t, err)
	require.Equal(t, a.Name, got.Name)

	require.NoError(t, stores.Actors.Update(ctx, "T", a.DBID, "image", "hello:2"))
	got, err = stores.Actors.Get(ctx, "T", a.DBID)
	require.NoError(t, err)
	require.Equal(t, "hello:2", got.Image)

	require.NoError(t, stores.Actors.Delete(ctx, "T", a.DBID))
	_, err = stores.Actors.Get(ctx, "T", a.DBID)
	require.Error(t, err)
}
