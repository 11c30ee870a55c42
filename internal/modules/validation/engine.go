// Package validation decides whether a profile document is complete enough to
// finish onboarding, and what to ask the user for when it is not.
package validation

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/observability"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

type CheckKind string

const (
	CheckExistsNonEmptyString CheckKind = "existsAndNotEmptyString"
	CheckArrayNotEmpty        CheckKind = "arrayNotEmpty"
)

type Rule struct {
	Path  string    `yaml:"path" json:"path"`
	Check CheckKind `yaml:"check" json:"check"`
	Hint  string    `yaml:"hint" json:"hint"`
}

// Result is derived on every call and never stored.
type Result struct {
	IsComplete        bool     `json:"is_complete"`
	Hints             []string `json:"hints"`
	CompletenessScore float64  `json:"completeness_score"`
}

// DefaultRules is used when no rules file is configured.
func DefaultRules() []Rule {
	return []Rule{
		{Path: "personal.name", Check: CheckExistsNonEmptyString, Hint: "What's your name?"},
		{Path: "roles", Check: CheckArrayNotEmpty, Hint: "What are you working on right now?"},
	}
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads a YAML rules file of the form {rules: [{path, check, hint}]}.
func LoadRules(path string) ([]Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read validation rules: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse validation rules %s: %w", path, err)
	}
	for i, r := range f.Rules {
		if strings.TrimSpace(r.Path) == "" || strings.TrimSpace(r.Hint) == "" {
			return nil, &types.ValidationError{Field: fmt.Sprintf("rules[%d]", i), Reason: "path and hint are required"}
		}
	}
	return f.Rules, nil
}

// Engine evaluates a fixed, injected rule set. It is safe for concurrent use.
type Engine struct {
	log   *logger.Logger
	rules []Rule
}

func New(log *logger.Logger, rules []Rule) *Engine {
	e := &Engine{log: log.With("component", "ValidationEngine"), rules: append([]Rule(nil), rules...)}
	for _, r := range e.rules {
		if !r.Check.known() {
			observability.ReportDataQuality(context.Background(), e.log, "validation_rules", observability.IssueUnknownCheckKind,
				[]string{r.Path}, map[string]any{"check": string(r.Check)})
		}
	}
	return e
}

func (k CheckKind) known() bool {
	return k == CheckExistsNonEmptyString || k == CheckArrayNotEmpty
}

// Rules returns a copy of the configured rules.
func (e *Engine) Rules() []Rule { return append([]Rule(nil), e.rules...) }

// ValidateDocument validates a typed document; nil means no profile yet.
func (e *Engine) ValidateDocument(doc *types.ProfileDocument) Result {
	if doc == nil {
		return e.Validate(nil)
	}
	return e.Validate(doc.AsMap())
}

// Validate evaluates every rule in order against a generic document. A nil
// document fails every rule.
func (e *Engine) Validate(doc map[string]any) Result {
	res := Result{IsComplete: true, Hints: []string{}, CompletenessScore: 1}
	if len(e.rules) == 0 {
		return res
	}
	if doc == nil {
		res.IsComplete = false
		res.CompletenessScore = 0
		for _, r := range e.rules {
			res.Hints = append(res.Hints, r.Hint)
		}
		return res
	}

	passed := 0
	for _, r := range e.rules {
		value, present := lookup(doc, r.Path)
		if e.check(r, value, present) {
			passed++
			continue
		}
		e.log.Debug("Validation rule failed", "path", r.Path, "check", string(r.Check))
		res.Hints = append(res.Hints, r.Hint)
		res.IsComplete = false
	}
	res.CompletenessScore = float64(passed) / float64(len(e.rules))
	return res
}

func (e *Engine) check(r Rule, value any, present bool) bool {
	switch r.Check {
	case CheckExistsNonEmptyString:
		s, ok := value.(string)
		return present && ok && strings.TrimSpace(s) != ""
	case CheckArrayNotEmpty:
		arr, ok := value.([]any)
		return present && ok && len(arr) > 0
	default:
		e.log.Warn("Unknown validation check kind; treating as passed",
			"signal", "data_quality", "path", r.Path, "check", string(r.Check))
		return true
	}
}

// lookup resolves a dot path. A missing key or a non-object intermediate
// makes the value absent.
func lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
