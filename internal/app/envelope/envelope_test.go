package envelope

import "testing"

func TestToCamel(t *testing.T) {
	if toCamel("actor_id") != "actorId" {
		t.Fatalf("unexpected: %s", toCamel("actor_id"))
	}
	if toCamel("id") != "id" {
		t.Fatalf("unexpected: %s", toCamel("id"))
	}
}

func TestCamelSnakeRoundTrip(t *testing.T) {
	cases := []string{"actor_id", "default_environment", "id", "api_server"}
	for _, c := range cases {
		if got := ToSnake(toCamel(c)); got != c {
			t.Fatalf("round-trip failed for %s: got %s", c, got)
		}
	}
}

func TestRewriteKeysRecursesMapsAndSlices(t *testing.T) {
	in := map[string]interface{}{
		"actor_id": "T_abc",
		"nested": map[string]interface{}{
			"default_environment": "x",
		},
		"list": []interface{}{
			map[string]interface{}{"execution_id": "e1"},
		},
	}
	out := rewriteKeys(in, CaseCamel).(map[string]interface{})
	if _, ok := out["actorId"]; !ok {
		t.Fatal("expected top-level key rewritten")
	}
	nested := out["nested"].(map[string]interface{})
	if _, ok := nested["defaultEnvironment"]; !ok {
		t.Fatal("expected nested key rewritten")
	}
	list := out["list"].([]interface{})
	item := list[0].(map[string]interface{})
	if _, ok := item["executionId"]; !ok {
		t.Fatal("expected list item key rewritten")
	}
}

func TestRewriteKeysNoopForSnakeCase(t *testing.T) {
	in := map[string]interface{}{"actor_id": "T_abc"}
	out := rewriteKeys(in, CaseSnake).(map[string]interface{})
	if _, ok := out["actor_id"]; !ok {
		t.Fatal("expected snake case to be left untouched")
	}
}

func TestLinksComposition(t *testing.T) {
	links := Links("https://api.example.com", "abc")
	if links["self"] != "https://api.example.com/actors/v2/abc" {
		t.Fatalf("unexpected self link: %s", links["self"])
	}
}
