package worker

import "testing"

func TestRequestIsRequestedStatus(t *testing.T) {
	w := Request("wid", "T_abc", "ch1", "T", "hello:1")
	if w.Status != StatusRequested {
		t.Fatalf("expected REQUESTED, got %s", w.Status)
	}
}

func TestCannotReturnToReadyAfterShutdown(t *testing.T) {
	w := Request("wid", "T_abc", "ch1", "T", "hello:1")
	w.Status = StatusShutdownRequested
	if err := w.CanTransitionTo(StatusReady); err == nil {
		t.Fatal("expected error transitioning SHUTDOWN_REQUESTED -> READY")
	}
	if err := w.CanTransitionTo(StatusFinishing); err != nil {
		t.Fatalf("unexpected error for an otherwise-valid transition: %v", err)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	w := Request("wid", "T_abc", "ch1", "T", "hello:1")
	rec, err := w.ToRecord()
	if err != nil {
		t.Fatalf("ToRecord: %v", err)
	}
	back, err := FromRecord(rec)
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}
	if back.ID != w.ID || back.ChName != w.ChName {
		t.Fatalf("round-trip mismatch: %+v vs %+v", back, w)
	}
}
