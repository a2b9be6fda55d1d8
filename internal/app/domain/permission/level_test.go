package permission

import "testing"

func TestOrdering(t *testing.T) {
	if !(None < Read && Read < Execute && Execute < Update) {
		t.Fatalf("expected NONE<READ<EXECUTE<UPDATE, got %d %d %d %d", None, Read, Execute, Update)
	}
}

func TestAdmits(t *testing.T) {
	if !Update.Admits(Read) {
		t.Fatal("UPDATE should admit READ")
	}
	if Read.Admits(Update) {
		t.Fatal("READ should not admit UPDATE")
	}
}

func TestParse(t *testing.T) {
	lvl, err := Parse("EXECUTE")
	if err != nil || lvl != Execute {
		t.Fatalf("expected EXECUTE, got %v err=%v", lvl, err)
	}
	if _, err := Parse("BOGUS"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestUnion(t *testing.T) {
	if Union(Read, Execute) != Execute {
		t.Fatal("union should pick the higher level")
	}
}
