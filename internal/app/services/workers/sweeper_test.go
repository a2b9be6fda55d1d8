package workers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tacc-cloud/abaco/internal/app/domain/actor"
)

type fakeLister struct {
	actors []*actor.Actor
}

func (f *fakeLister) ListAll(context.Context) ([]*actor.Actor, error) {
	return f.actors, nil
}

type fakeEnsurer struct {
	calls []string
}

func (f *fakeEnsurer) EnsureOneWorkerForSweep(_ context.Context, a *actor.Actor) error {
	f.calls = append(f.calls, a.DBID)
	return nil
}

func TestSweepOnceOnlyTouchesReadyActors(t *testing.T) {
	lister := &fakeLister{actors: []*actor.Actor{
		{DBID: "T_ready", Status: actor.StatusReady},
		{DBID: "T_submitted", Status: actor.StatusSubmitted},
		{DBID: "T_error", Status: actor.StatusError},
	}}
	ensurer := &fakeEnsurer{}
	s := New(lister, ensurer, "*/30 * * * *", nil)

	s.sweepOnce(context.Background())

	require.Equal(t, []string{"T_ready"}, ensurer.calls)
}

func TestSweeperNameAndDescriptor(t *testing.T) {
	s := New(&fakeLister{}, &fakeEnsurer{}, "*/30 * * * *", nil)
	require.Equal(t, "worker-sweeper", s.Name())
	require.Equal(t, "worker-sweeper", s.Descriptor().Name)
}
