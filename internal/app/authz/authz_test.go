package authz

import (
	"context"
	"testing"

	"github.com/tacc-cloud/abaco/internal/app/apierr"
	"github.com/tacc-cloud/abaco/internal/app/domain/permission"
	"github.com/tacc-cloud/abaco/internal/app/storage"
)

func TestRequireDeniesCrossTenantRegardlessOfPermission(t *testing.T) {
	stores := storage.NewMemoryStores()
	ctx := context.Background()
	a := New(stores.Permissions)

	_ = stores.Permissions.Set(ctx, "T1_abc", "alice", permission.Update)

	err := a.Require(ctx, "T2", "T1", "T1_abc", "alice", permission.Read)
	if !apierr.Is(err, apierr.CodeAuthorization) {
		t.Fatalf("expected authorization error for cross-tenant access, got %v", err)
	}
}

func TestRequireAdmitsAtOrAboveLevel(t *testing.T) {
	stores := storage.NewMemoryStores()
	ctx := context.Background()
	a := New(stores.Permissions)
	_ = stores.Permissions.Set(ctx, "T1_abc", "alice", permission.Execute)

	if err := a.Require(ctx, "T1", "T1", "T1_abc", "alice", permission.Read); err != nil {
		t.Fatalf("EXECUTE should admit READ: %v", err)
	}
	if err := a.Require(ctx, "T1", "T1", "T1_abc", "alice", permission.Update); err == nil {
		t.Fatal("EXECUTE should not admit UPDATE")
	}
}

func TestWorldGrantIsUnioned(t *testing.T) {
	stores := storage.NewMemoryStores()
	ctx := context.Background()
	a := New(stores.Permissions)
	_ = stores.Permissions.Set(ctx, "T1_abc", World, permission.Read)

	if err := a.Require(ctx, "T1", "T1", "T1_abc", "bob", permission.Read); err != nil {
		t.Fatalf("WORLD grant should admit an unlisted user: %v", err)
	}
}

func TestMissingGrantIsNone(t *testing.T) {
	stores := storage.NewMemoryStores()
	ctx := context.Background()
	a := New(stores.Permissions)

	lvl, err := a.EffectiveLevel(ctx, "T1_abc", "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lvl != permission.None {
		t.Fatalf("expected NONE, got %s", lvl)
	}
}
