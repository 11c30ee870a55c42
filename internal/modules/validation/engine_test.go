package validation

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/domain/profile"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

func threeRules() []Rule {
	return []Rule{
		{Path: "personal.name", Check: CheckExistsNonEmptyString, Hint: "name"},
		{Path: "personal.visiting_status", Check: CheckExistsNonEmptyString, Hint: "living or visiting?"},
		{Path: "roles", Check: CheckArrayNotEmpty, Hint: "what are you working on?"},
	}
}

func TestValidateNullReturnsAllHintsInOrder(t *testing.T) {
	e := New(logger.Nop(), threeRules())
	res := e.Validate(nil)
	want := []string{"name", "living or visiting?", "what are you working on?"}
	if res.IsComplete || !reflect.DeepEqual(res.Hints, want) {
		t.Fatalf("validate(nil): want hints=%v incomplete got=%+v", want, res)
	}
	if res.CompletenessScore != 0 {
		t.Fatalf("score: want=0 got=%v", res.CompletenessScore)
	}
	if got := e.ValidateDocument(nil); !reflect.DeepEqual(got, res) {
		t.Fatalf("ValidateDocument(nil) differs: %+v", got)
	}
}

func TestValidateNameAndRolesIsCompleteWithDefaults(t *testing.T) {
	e := New(logger.Nop(), DefaultRules())
	names := []string{"Alex", "  Jo ", "Dr. María José"}
	for _, name := range names {
		doc := profile.NewDocument()
		n := name
		doc.Personal.Name = &n
		doc.Roles = []profile.Role{{}}
		if res := e.ValidateDocument(&doc); !res.IsComplete || len(res.Hints) != 0 || res.CompletenessScore != 1 {
			t.Fatalf("name=%q: want complete got=%+v", name, res)
		}
	}
}

func TestValidatePartialProfile(t *testing.T) {
	e := New(logger.Nop(), threeRules())
	doc := map[string]any{
		"personal": map[string]any{"name": "   ", "visiting_status": "visiting"},
		"roles":    []any{},
	}
	res := e.Validate(doc)
	if res.IsComplete {
		t.Fatalf("want incomplete")
	}
	if !reflect.DeepEqual(res.Hints, []string{"name", "what are you working on?"}) {
		t.Fatalf("hints: got=%v", res.Hints)
	}
	if res.CompletenessScore < 0.33 || res.CompletenessScore > 0.34 {
		t.Fatalf("score: want=1/3 got=%v", res.CompletenessScore)
	}
}

func TestValidateNonObjectIntermediateIsAbsent(t *testing.T) {
	e := New(logger.Nop(), []Rule{{Path: "personal.name", Check: CheckExistsNonEmptyString, Hint: "name"}})
	for _, doc := range []map[string]any{
		{"personal": "Alex"},
		{"personal": []any{"Alex"}},
		{},
		{"personal": map[string]any{"name": 42.0}},
	} {
		if res := e.Validate(doc); res.IsComplete {
			t.Fatalf("doc=%v: want incomplete", doc)
		}
	}
}

func TestUnknownCheckKindPasses(t *testing.T) {
	e := New(logger.Nop(), []Rule{
		{Path: "personal.name", Check: "matchesRegex", Hint: "regex"},
		{Path: "roles", Check: CheckArrayNotEmpty, Hint: "roles"},
	})
	res := e.Validate(map[string]any{"roles": []any{map[string]any{}}})
	if !res.IsComplete || len(res.Hints) != 0 {
		t.Fatalf("unknown kind should pass: got=%+v", res)
	}
}

func TestNoRulesIsComplete(t *testing.T) {
	res := New(logger.Nop(), nil).Validate(nil)
	if !res.IsComplete || res.CompletenessScore != 1 {
		t.Fatalf("empty rule set: got=%+v", res)
	}
}

func TestRulesAreCopiedAtConstruction(t *testing.T) {
	rules := DefaultRules()
	e := New(logger.Nop(), rules)
	rules[0].Hint = "mutated"
	if e.Rules()[0].Hint == "mutated" {
		t.Fatalf("engine must not share the caller's slice")
	}
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	body := "rules:\n  - path: personal.name\n    check: existsAndNotEmptyString\n    hint: name\n  - path: hobbies\n    check: arrayNotEmpty\n    hint: hobbies?\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	want := []Rule{
		{Path: "personal.name", Check: CheckExistsNonEmptyString, Hint: "name"},
		{Path: "hobbies", Check: CheckArrayNotEmpty, Hint: "hobbies?"},
	}
	if !reflect.DeepEqual(rules, want) {
		t.Fatalf("rules: want=%v got=%v", want, rules)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("rules:\n  - path: ''\n    hint: x\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadRules(bad); !errors.Is(err, types.ErrValidationFailed) {
		t.Fatalf("missing path: want ErrValidationFailed got=%v", err)
	}
}
