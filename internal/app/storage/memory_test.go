package storage

import (
	"context"
	"testing"
	"time"

	"github.com/tacc-cloud/abaco/internal/app/apierr"
	"github.com/tacc-cloud/abaco/internal/app/domain/actor"
	"github.com/tacc-cloud/abaco/internal/app/domain/permission"
)

func TestMemoryActorStoreTenantIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStores()

	a := actor.New("T1", "abc", actor.Request{Name: "f", Image: "i:1"}, "alice", time.Now())
	if err := s.Actors.Set(ctx, a); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, err := s.Actors.Get(ctx, "T2", a.DBID); !apierr.Is(err, apierr.CodeNotFound) {
		t.Fatalf("expected NotFound for cross-tenant get, got %v", err)
	}
	if err := s.Actors.Update(ctx, "T2", a.DBID, "image", "i:2"); !apierr.Is(err, apierr.CodeNotFound) {
		t.Fatalf("expected NotFound for cross-tenant update, got %v", err)
	}

	got, err := s.Actors.Get(ctx, "T1", a.DBID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "f" {
		t.Fatalf("unexpected actor: %+v", got)
	}
}

func TestMemoryActorStoreUpdateIsAtomicPerField(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStores()
	a := actor.New("T1", "abc", actor.Request{Name: "f", Image: "i:1"}, "alice", time.Now())
	_ = s.Actors.Set(ctx, a)

	if err := s.Actors.Update(ctx, "T1", a.DBID, "status", actor.StatusReady); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := s.Actors.Get(ctx, "T1", a.DBID)
	if got.Status != actor.StatusReady {
		t.Fatalf("expected READY, got %s", got.Status)
	}
	if got.Image != "i:1" {
		t.Fatal("update of one field must not disturb others")
	}
}

func TestMemoryPermissionStoreMissingIsNone(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStores()
	lvl, err := s.Permissions.Get(ctx, "T1_abc", "alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if lvl != permission.None {
		t.Fatalf("expected NONE for missing grant, got %s", lvl)
	}
}

func TestMemoryWorkerStoreListEmptyByDefault(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStores()
	list, err := s.Workers.List(ctx, "T1_abc")
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty worker list, got %v err=%v", list, err)
	}
}
