package launch

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vpittamp/i3pm/internal/config"
	"github.com/vpittamp/i3pm/internal/log"
	"github.com/vpittamp/i3pm/internal/proc"
	"github.com/vpittamp/i3pm/internal/state"
)

// Confidence grades a Tier-0 match. Matches at or above Medium are
// accepted.
type Confidence int

const (
	ConfidenceNone Confidence = iota
	ConfidenceLow
	ConfidenceMedium
	ConfidenceHigh
	ConfidenceExact
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceLow:
		return "LOW"
	case ConfidenceMedium:
		return "MEDIUM"
	case ConfidenceHigh:
		return "HIGH"
	case ConfidenceExact:
		return "EXACT"
	default:
		return "NONE"
	}
}

// AcceptThreshold is the minimum confidence for a Tier-0 accept.
const AcceptThreshold = ConfidenceMedium

// Tier identifies which matcher tier classified a window.
type Tier int

const (
	TierNone     Tier = -1
	TierRegistry Tier = 0
	TierEnviron  Tier = 1
	TierHeuristic Tier = 2
)

// Classification is the matcher's verdict for one new window.
type Classification struct {
	Tier       Tier          `json:"tier"`
	Confidence Confidence    `json:"confidence"`
	AppName    string        `json:"app_name,omitempty"`
	Scope      state.Scope   `json:"scope"`
	Project    string        `json:"project,omitempty"`
	TargetWS   int           `json:"target_workspace,omitempty"`
	LaunchID   string        `json:"launch_id,omitempty"`
	IsPWA      bool          `json:"is_pwa,omitempty"`
	PWAType    state.PWAType `json:"pwa_type,omitempty"`
	PWAID      string        `json:"pwa_id,omitempty"`
	Env        map[string]string `json:"i3pm_env,omitempty"`
}

// ffpwaClassRe matches Firefox PWA classes: FFPWA-<26-char ULID>.
var ffpwaClassRe = regexp.MustCompile(`^FFPWA-([0-9A-HJKMNP-TV-Z]{26})$`)

// chromeClass is the shared class of all Chromium PWAs; the instance is
// the unique identity.
const chromeClass = "Google-chrome"

// Matcher runs the identity tiers for new windows.
type Matcher struct {
	registry *Registry
	env      proc.Environment
	cfg      *config.Store
	now      func() time.Time
}

// NewMatcher wires the matcher to its sources.
func NewMatcher(registry *Registry, env proc.Environment, cfg *config.Store) *Matcher {
	return &Matcher{registry: registry, env: env, cfg: cfg, now: time.Now}
}

// Classify runs the tiers in order and stops at the first confident hit.
// It never returns an error: an unidentified window falls back to global
// scope with no app association.
func (m *Matcher) Classify(ctx context.Context, w *state.Window) Classification {
	if c, ok := m.tier0(w); ok {
		log.Info(log.CatMatch, "tier0 match", "window", w.WindowID, "app", c.AppName, "confidence", c.Confidence.String())
		return c
	}
	if c, ok := m.tier1(ctx, w); ok {
		log.Info(log.CatMatch, "tier1 match", "window", w.WindowID, "app", c.AppName, "project", c.Project)
		return c
	}
	c := m.tier2(w)
	log.Debug(log.CatMatch, "tier2 classification", "window", w.WindowID, "app", c.AppName, "scope", c.Scope, "pwa", c.IsPWA)
	return c
}

// tier0 scores the window against the pending-launch registry.
func (m *Matcher) tier0(w *state.Window) (Classification, bool) {
	class := w.MatchClass()
	if class == "" {
		return Classification{}, false
	}

	now := m.now()
	var best *PendingLaunch
	bestConfidence := ConfidenceNone

	for _, p := range m.registry.candidates() {
		// Class match is required; exact first, case-insensitive second.
		exact := p.ExpectedClass == class || p.ExpectedClass == w.AppID || p.ExpectedClass == w.Instance
		loose := !exact && strings.EqualFold(p.ExpectedClass, class)
		if !exact && !loose {
			continue
		}

		confidence := m.score(p, w, exact, now)
		if confidence > bestConfidence {
			bestConfidence = confidence
			best = p
		}
	}

	if best == nil || bestConfidence < AcceptThreshold {
		return Classification{}, false
	}
	if !m.registry.consume(best.LaunchID) {
		// Lost the race to another window; rescan would find nothing
		// better, so fall through to the next tier.
		return Classification{}, false
	}

	c := Classification{
		Tier:       TierRegistry,
		Confidence: bestConfidence,
		AppName:    best.AppName,
		LaunchID:   best.LaunchID,
		TargetWS:   best.WorkspaceNum,
		Scope:      state.ScopeGlobal,
	}
	if best.ProjectName != "" {
		c.Scope = state.ScopeScoped
		c.Project = best.ProjectName
	}
	return c, true
}

// score combines the Tier-0 signals: time delta buckets, workspace match,
// and launcher parent-PID linkage.
func (m *Matcher) score(p *PendingLaunch, w *state.Window, exactClass bool, now time.Time) Confidence {
	age := p.Age(now)
	if age > Expiry {
		return ConfidenceNone
	}

	var points int
	switch {
	case age <= time.Second:
		points += 10 // 1.0
	case age <= 2*time.Second:
		points += 8 // 0.8
	default:
		points += 6 // 0.6
	}
	if exactClass {
		points += 2
	}
	if p.WorkspaceNum != 0 && p.WorkspaceNum == w.WorkspaceNum {
		points += 3
	}
	if linker, ok := m.env.(proc.ParentLinker); ok && w.PID > 0 && p.LauncherPID > 0 {
		if w.PID == p.LauncherPID || linker.IsParentOf(p.LauncherPID, w.PID) {
			points += 4
		}
	}

	switch {
	case points >= 15:
		return ConfidenceExact
	case points >= 12:
		return ConfidenceHigh
	case points >= 9:
		return ConfidenceMedium
	case points >= 6:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}

// tier1 reads the I3PM_* environment. Present variables are authoritative.
func (m *Matcher) tier1(ctx context.Context, w *state.Window) (Classification, bool) {
	res := m.env.Read(ctx, w.PID)
	if !res.HasLaunchVars() {
		return Classification{}, false
	}

	c := Classification{
		Tier:       TierEnviron,
		Confidence: ConfidenceExact,
		AppName:    res.Env[proc.EnvAppName],
		Scope:      state.ScopeGlobal,
		Env:        res.Env,
	}
	if res.Env[proc.EnvScope] == string(state.ScopeScoped) {
		c.Scope = state.ScopeScoped
		c.Project = res.Env[proc.EnvProjectName]
	}
	if wsStr := res.Env[proc.EnvTargetWorkspace]; wsStr != "" {
		if ws, err := strconv.Atoi(wsStr); err == nil && ws >= state.MinWorkspace && ws <= state.MaxWorkspace {
			c.TargetWS = ws
		}
	}
	// Scoped without a project name is not usable; treat as global.
	if c.Scope == state.ScopeScoped && c.Project == "" {
		c.Scope = state.ScopeGlobal
	}
	return c, true
}

// tier2 applies heuristics: PWA recognition, then the app registry.
func (m *Matcher) tier2(w *state.Window) Classification {
	class := w.MatchClass()

	// Firefox PWA: unique class per PWA.
	if match := ffpwaClassRe.FindStringSubmatch(class); match != nil {
		c := Classification{
			Tier:       TierHeuristic,
			Confidence: ConfidenceHigh,
			Scope:      state.ScopeGlobal,
			IsPWA:      true,
			PWAType:    state.PWAFirefox,
			PWAID:      match[1],
		}
		if pwa, ok := m.cfg.PWAs().ByULID(match[1]); ok {
			c.AppName = pwa.Name
			c.TargetWS = pwa.PreferredWorkspace
			if pwa.Scope.Valid() {
				c.Scope = pwa.Scope
			}
		}
		return c
	}

	// Chromium PWA: shared class, unique instance.
	if class == chromeClass && w.Instance != "" {
		c := Classification{
			Tier:       TierHeuristic,
			Confidence: ConfidenceHigh,
			Scope:      state.ScopeGlobal,
			IsPWA:      true,
			PWAType:    state.PWAChrome,
			PWAID:      w.Instance,
		}
		if pwa, ok := m.cfg.PWAs().ByInstance(w.Instance); ok {
			c.AppName = pwa.Name
			c.TargetWS = pwa.PreferredWorkspace
			if pwa.Scope.Valid() {
				c.Scope = pwa.Scope
			}
		}
		return c
	}

	// App registry by class/app_id/instance.
	if app, ok := m.cfg.Applications().ByClass(class, w.AppID, w.Instance); ok {
		scope := app.Scope
		if !scope.Valid() {
			scope = state.ScopeGlobal
		}
		return Classification{
			Tier:       TierHeuristic,
			Confidence: ConfidenceMedium,
			AppName:    app.Name,
			Scope:      scope,
			TargetWS:   app.PreferredWorkspace,
		}
	}

	// Window-rules scope resolution as the final fallback.
	var activeProject *state.Project
	return Classification{
		Tier:       TierHeuristic,
		Confidence: ConfidenceLow,
		Scope:      m.cfg.Resolver().Resolve(class, activeProject),
	}
}
