// Package authz implements C3: resolving a caller to an effective
// permission level for a given actor and enforcing a minimum level,
// including the always-deny-cross-tenant rule.
package authz

import (
	"context"

	"github.com/tacc-cloud/abaco/internal/app/apierr"
	"github.com/tacc-cloud/abaco/internal/app/domain/permission"
	"github.com/tacc-cloud/abaco/internal/app/storage"
)

// World is the pseudo-user whose grant, if present, is unioned into every
// caller's effective level.
const World = "WORLD"

// Authorizer resolves and enforces permission levels.
type Authorizer struct {
	permissions storage.PermissionStore
}

// New builds an Authorizer over the given permissions store.
func New(permissions storage.PermissionStore) *Authorizer {
	return &Authorizer{permissions: permissions}
}

// EffectiveLevel resolves (user, actor_db_id) to its effective permission
// level: the user's own grant unioned with WORLD's grant. Missing grants
// resolve to NONE, never an error.
func (a *Authorizer) EffectiveLevel(ctx context.Context, actorDBID, user string) (permission.Level, error) {
	userLevel, err := a.permissions.Get(ctx, actorDBID, user)
	if err != nil {
		return permission.None, apierr.Permissions("resolve permission for %s on %s: %v", user, actorDBID, err)
	}
	worldLevel, err := a.permissions.Get(ctx, actorDBID, World)
	if err != nil {
		return permission.None, apierr.Permissions("resolve WORLD permission on %s: %v", actorDBID, err)
	}
	return permission.Union(userLevel, worldLevel), nil
}

// Require enforces tenant isolation (always deny on mismatch, regardless of
// permission level) and then the minimum required permission level.
func (a *Authorizer) Require(ctx context.Context, callerTenant, actorTenant, actorDBID, user string, required permission.Level) error {
	if callerTenant != actorTenant {
		return apierr.Authorization("tenant %s may not access actor in tenant %s", callerTenant, actorTenant)
	}
	level, err := a.EffectiveLevel(ctx, actorDBID, user)
	if err != nil {
		return err
	}
	if !level.Admits(required) {
		return apierr.Authorization("user %s has level %s, needs at least %s", user, level, required)
	}
	return nil
}

// Grant sets a user's permission level on an actor, used both for explicit
// grants via the permissions endpoint and for the atomic creator-gets-UPDATE
// rule on actor creation.
func (a *Authorizer) Grant(ctx context.Context, actorDBID, user string, level permission.Level) error {
	if err := a.permissions.Set(ctx, actorDBID, user, level); err != nil {
		return apierr.Permissions("grant %s to %s on %s: %v", level, user, actorDBID, err)
	}
	return nil
}
