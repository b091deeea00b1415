package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vpittamp/i3pm/internal/errdefs"
	"github.com/vpittamp/i3pm/internal/state"
)

// PatternKind is how a window rule pattern is interpreted.
type PatternKind string

const (
	PatternLiteral PatternKind = "literal"
	PatternGlob    PatternKind = "glob"
	PatternRegex   PatternKind = "regex"
)

// WindowRule classifies windows by class pattern. On disk the kind is
// carried as a "regex:" or "glob:" prefix on the pattern; bare patterns
// are literals.
type WindowRule struct {
	Pattern     string      `json:"pattern"`
	Scope       state.Scope `json:"scope"`
	Priority    int         `json:"priority,omitempty"`
	Description string      `json:"description,omitempty"`

	kind PatternKind
	re   *regexp.Regexp
}

// Kind returns the parsed pattern kind.
func (r *WindowRule) Kind() PatternKind { return r.kind }

// compile parses the prefix and precompiles regex patterns.
func (r *WindowRule) compile() error {
	switch {
	case strings.HasPrefix(r.Pattern, "regex:"):
		r.kind = PatternRegex
		re, err := regexp.Compile(strings.TrimPrefix(r.Pattern, "regex:"))
		if err != nil {
			return errdefs.Validation(errdefs.CodePatternInvalid, "invalid regex rule %q: %v", r.Pattern, err)
		}
		r.re = re
	case strings.HasPrefix(r.Pattern, "glob:"):
		r.kind = PatternGlob
		if _, err := filepath.Match(strings.TrimPrefix(r.Pattern, "glob:"), ""); err != nil {
			return errdefs.Validation(errdefs.CodePatternInvalid, "invalid glob rule %q: %v", r.Pattern, err)
		}
	default:
		r.kind = PatternLiteral
	}
	return nil
}

// Matches reports whether the rule matches the given class.
func (r *WindowRule) Matches(class string) bool {
	switch r.kind {
	case PatternRegex:
		return r.re != nil && r.re.MatchString(class)
	case PatternGlob:
		ok, _ := filepath.Match(strings.TrimPrefix(r.Pattern, "glob:"), class)
		return ok
	default:
		return r.Pattern == class
	}
}

// LoadWindowRules reads and compiles window-rules.json from dir.
func LoadWindowRules(dir string) ([]WindowRule, error) {
	var rules []WindowRule
	if err := loadJSON(filepath.Join(dir, "window-rules.json"), &rules); err != nil {
		return nil, err
	}
	for i := range rules {
		if err := rules[i].compile(); err != nil {
			return nil, err
		}
	}
	return rules, nil
}

// RawWindowRules returns the raw bytes of window-rules.json for diffing.
func RawWindowRules(dir string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, "window-rules.json"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	return data, err
}

// ScopeResolver resolves a window class to a scope using the deterministic
// merge order: project scoped_classes > window_rules > app-classes >
// default (global).
type ScopeResolver struct {
	Rules      []WindowRule
	AppClasses *AppClasses
}

// Resolve returns the scope for a class under the active project.
func (sr *ScopeResolver) Resolve(class string, activeProject *state.Project) state.Scope {
	if activeProject != nil {
		for _, sc := range activeProject.ScopedClasses {
			if sc == class {
				return state.ScopeScoped
			}
		}
	}

	var best *WindowRule
	for i := range sr.Rules {
		r := &sr.Rules[i]
		if !r.Matches(class) {
			continue
		}
		if best == nil || r.Priority > best.Priority {
			best = r
		}
	}
	if best != nil {
		return best.Scope
	}

	if sr.AppClasses != nil {
		for _, c := range sr.AppClasses.Scoped {
			if c == class {
				return state.ScopeScoped
			}
		}
		for _, c := range sr.AppClasses.Global {
			if c == class {
				return state.ScopeGlobal
			}
		}
	}

	return state.ScopeGlobal
}

// MarshalRules serialises rules back to their on-disk form (prefixes kept).
func MarshalRules(rules []WindowRule) ([]byte, error) {
	return json.MarshalIndent(rules, "", "  ")
}
