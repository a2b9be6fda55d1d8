// Package permission defines the ordered permission-level enum shared by the
// authorization component and the permissions store.
package permission

import (
	"encoding/json"
	"fmt"
)

// Level is an ordered permission rank. Higher values imply every lower level.
type Level int

const (
	None Level = iota
	Read
	Execute
	Update
)

var names = map[Level]string{
	None:    "NONE",
	Read:    "READ",
	Execute: "EXECUTE",
	Update:  "UPDATE",
}

var byName = map[string]Level{
	"NONE":    None,
	"READ":    Read,
	"EXECUTE": Execute,
	"UPDATE":  Update,
}

// String renders the canonical uppercase name used on the wire.
func (l Level) String() string {
	if s, ok := names[l]; ok {
		return s
	}
	return "UNKNOWN"
}

// Admits reports whether l is at least as privileged as required.
func (l Level) Admits(required Level) bool {
	return l >= required
}

// Parse resolves a wire-format level name, rejecting anything outside the
// four canonical levels.
func Parse(s string) (Level, error) {
	lvl, ok := byName[s]
	if !ok {
		return None, fmt.Errorf("permission: unknown level %q", s)
	}
	return lvl, nil
}

// Union returns the higher of two levels, matching the WORLD-pseudo-user
// union rule in the authorization model.
func Union(a, b Level) Level {
	if a > b {
		return a
	}
	return b
}

// MarshalJSON renders the level as its canonical name, not its rank, so the
// wire format matches the source's string enum.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON accepts the canonical name.
func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	lvl, err := Parse(s)
	if err != nil {
		return err
	}
	*l = lvl
	return nil
}
