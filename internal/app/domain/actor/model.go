// Package actor defines the Actor entity: identity, invariants, store
// (de)serialization, and the public display projection.
package actor

import (
	"encoding/json"
	"time"

	"github.com/tacc-cloud/abaco/internal/app/apierr"
)

// Record is the string-keyed map representation stores operate on (spec's
// "record" in a store is a string-keyed map).
type Record = map[string]interface{}

// Status is the actor lifecycle state.
type Status string

const (
	StatusSubmitted Status = "SUBMITTED"
	StatusReady     Status = "READY"
	StatusError     Status = "ERROR"
)

// Actor is the declared intent for a container-based message handler.
type Actor struct {
	DBID               string                 `json:"db_id"`
	Tenant             string                 `json:"tenant"`
	ID                 string                 `json:"id"`
	Name               string                 `json:"name"`
	Image              string                 `json:"image"`
	Owner              string                 `json:"owner"`
	APIServer          string                 `json:"api_server"`
	Stateless          bool                   `json:"stateless"`
	DefaultEnvironment map[string]string      `json:"default_environment"`
	Status             Status                 `json:"status"`
	State              map[string]interface{} `json:"state"`
	CreatedAt          time.Time              `json:"created_at"`
}

// GetDBID is the single, pure way to derive the globally-unique store key
// from a tenant and actor id. No other code may construct this string.
func GetDBID(tenant, id string) string {
	return tenant + "_" + id
}

// Request is the wire shape accepted on create/update. Create requires
// Name and Image; update reuses this type but actors.Service.UpdateActor
// clears Name before applying it (name is immutable after creation).
type Request struct {
	Name               string                 `json:"name"`
	Image              string                 `json:"image"`
	Owner              string                 `json:"owner"`
	APIServer          string                 `json:"api_server"`
	Stateless          *bool                  `json:"stateless"`
	DefaultEnvironment map[string]string      `json:"default_environment"`
	State              map[string]interface{} `json:"state"`
}

// ValidateCreate enforces the required-field rule for actor creation:
// name and image are mandatory, everything else is optional.
func (r Request) ValidateCreate() error {
	if r.Name == "" {
		return apierr.Validation("name is required")
	}
	if r.Image == "" {
		return apierr.Validation("image is required")
	}
	return nil
}

// New builds a freshly-created actor from a validated request. id must
// already be generated by the caller (typically uuid.NewString()).
func New(tenant, id string, req Request, owner string, now time.Time) *Actor {
	stateless := false
	if req.Stateless != nil {
		stateless = *req.Stateless
	}
	return &Actor{
		DBID:               GetDBID(tenant, id),
		Tenant:             tenant,
		ID:                 id,
		Name:               req.Name,
		Image:              req.Image,
		Owner:              owner,
		APIServer:          req.APIServer,
		Stateless:          stateless,
		DefaultEnvironment: req.DefaultEnvironment,
		Status:             StatusSubmitted,
		State:              map[string]interface{}{},
		CreatedAt:          now,
	}
}

// ApplyUpdate overlays a PUT request onto the actor, preserving id/db_id/
// tenant/creation time/stateless (all immutable after creation). It reports
// whether the image changed, which is the trigger for a worker rollout and
// a status reset to SUBMITTED.
func (a *Actor) ApplyUpdate(req Request) (imageChanged bool) {
	if req.Image != "" && req.Image != a.Image {
		a.Image = req.Image
		imageChanged = true
	}
	if req.Owner != "" {
		a.Owner = req.Owner
	}
	if req.APIServer != "" {
		a.APIServer = req.APIServer
	}
	if req.DefaultEnvironment != nil {
		a.DefaultEnvironment = req.DefaultEnvironment
	}
	if imageChanged {
		a.Status = StatusSubmitted
	}
	return imageChanged
}

// Display is the public projection: strips db_id and any internal-only
// fields, formats the creation timestamp as RFC3339.
type Display struct {
	ID                 string            `json:"id"`
	Tenant             string            `json:"tenant"`
	Name               string            `json:"name"`
	Image              string            `json:"image"`
	Owner              string            `json:"owner"`
	APIServer          string            `json:"api_server"`
	Stateless          bool              `json:"stateless"`
	DefaultEnvironment map[string]string `json:"default_environment"`
	Status             Status            `json:"status"`
	CreatedAt          string            `json:"created_at"`
}

// ToRecord serializes the actor into the string-keyed map a store persists.
func (a *Actor) ToRecord() (Record, error) {
	buf, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(buf, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// FromRecord deserializes a store record back into an Actor. Round-trips
// losslessly with ToRecord.
func FromRecord(rec Record) (*Actor, error) {
	buf, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var a Actor
	if err := json.Unmarshal(buf, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Display projects the actor to its public representation.
func (a *Actor) Display() Display {
	return Display{
		ID:                 a.ID,
		Tenant:             a.Tenant,
		Name:               a.Name,
		Image:              a.Image,
		Owner:              a.Owner,
		APIServer:          a.APIServer,
		Stateless:          a.Stateless,
		DefaultEnvironment: a.DefaultEnvironment,
		Status:             a.Status,
		CreatedAt:          a.CreatedAt.UTC().Format(time.RFC3339),
	}
}
