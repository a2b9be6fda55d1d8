package actor

import (
	"testing"
	"time"
)

func TestGetDBID(t *testing.T) {
	if GetDBID("T", "abc") != "T_abc" {
		t.Fatalf("unexpected db id: %s", GetDBID("T", "abc"))
	}
}

func TestNewAndApplyUpdate(t *testing.T) {
	req := Request{Name: "f", Image: "hello:1"}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := New("T", "abc", req, "alice", now)

	if a.DBID != "T_abc" {
		t.Fatalf("unexpected db id: %s", a.DBID)
	}
	if a.Status != StatusSubmitted {
		t.Fatalf("expected SUBMITTED, got %s", a.Status)
	}

	changed := a.ApplyUpdate(Request{Owner: "bob"})
	if changed {
		t.Fatal("owner-only update should not report image change")
	}
	if a.Status != StatusSubmitted {
		t.Fatal("status should not move off SUBMITTED without an image change")
	}

	a.Status = StatusReady
	changed = a.ApplyUpdate(Request{Image: "hello:2"})
	if !changed {
		t.Fatal("expected image change to be reported")
	}
	if a.Status != StatusSubmitted {
		t.Fatalf("expected status reset to SUBMITTED, got %s", a.Status)
	}
	if a.ID != "abc" || a.DBID != "T_abc" || a.Tenant != "T" {
		t.Fatal("identity fields must remain immutable across update")
	}
}

func TestValidateCreate(t *testing.T) {
	if err := (Request{}).ValidateCreate(); err == nil {
		t.Fatal("expected validation error for empty request")
	}
	if err := (Request{Name: "f"}).ValidateCreate(); err == nil {
		t.Fatal("expected validation error for missing image")
	}
	if err := (Request{Name: "f", Image: "i:1"}).ValidateCreate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := New("T", "abc", Request{Name: "f", Image: "i:1"}, "alice", now)

	rec, err := a.ToRecord()
	if err != nil {
		t.Fatalf("ToRecord: %v", err)
	}
	back, err := FromRecord(rec)
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}
	if back.DBID != a.DBID || back.Name != a.Name || back.Image != a.Image {
		t.Fatalf("round-trip mismatch: %+v vs %+v", back, a)
	}
	if !back.CreatedAt.Equal(a.CreatedAt) {
		t.Fatalf("created_at mismatch: %v vs %v", back.CreatedAt, a.CreatedAt)
	}
}

func TestDisplayStripsInternalFields(t *testing.T) {
	now := time.Now()
	a := New("T", "abc", Request{Name: "f", Image: "i:1"}, "alice", now)
	d := a.Display()
	if d.ID != "abc" || d.Name != "f" {
		t.Fatalf("unexpected display: %+v", d)
	}
}
