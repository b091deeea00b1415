package launch

import (
	"github.com/vpittamp/i3pm/internal/state"
)

// MatchStrategy says which window property identifies a PWA.
type MatchStrategy string

const (
	MatchByClass    MatchStrategy = "class"
	MatchByInstance MatchStrategy = "instance"
)

// Guidance is configuration advice for a PWA window: what expected_class
// to register and how it will be matched.
type Guidance struct {
	PWAType                  state.PWAType `json:"pwa_type"`
	PWAID                    string        `json:"pwa_id"`
	RecommendedExpectedClass string        `json:"recommended_expected_class"`
	RecommendedMatchStrategy MatchStrategy `json:"recommended_match_strategy"`
}

// GuidanceFor inspects a window's class/instance and returns registration
// advice. Firefox PWAs carry a unique class (FFPWA-<ULID>), so the class
// itself is the expected class; Chromium PWAs share the Google-chrome
// class and are identified by instance.
func GuidanceFor(class, instance string) (Guidance, bool) {
	if match := ffpwaClassRe.FindStringSubmatch(class); match != nil {
		return Guidance{
			PWAType:                  state.PWAFirefox,
			PWAID:                    match[1],
			RecommendedExpectedClass: class,
			RecommendedMatchStrategy: MatchByClass,
		}, true
	}
	if class == chromeClass && instance != "" {
		return Guidance{
			PWAType:                  state.PWAChrome,
			PWAID:                    instance,
			RecommendedExpectedClass: instance,
			RecommendedMatchStrategy: MatchByInstance,
		}, true
	}
	return Guidance{}, false
}
