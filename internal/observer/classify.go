package observer

import (
	"net/url"
	"strings"
)

// The hosted payment page issues many intermediate navigations; only three
// target patterns are meaningful. Matching is by path substring, not exact
// URL, since query strings vary between providers and sessions.
const (
	successPathMarker = "/payment/success"
	cancelPathMarker  = "/payment/cancel"
	goHomeSignal      = "GO_HOME"
)

// TargetKind classifies a single navigation target.
type TargetKind int

const (
	// TargetIrrelevant is any navigation the observer ignores.
	TargetIrrelevant TargetKind = iota
	// TargetSuccess is the provider's success return path.
	TargetSuccess
	// TargetCancel is the provider's cancel return path.
	TargetCancel
	// TargetGoHome is the app-internal explicit-exit signal posted from the
	// hosted page.
	TargetGoHome
)

// Match is the result of classifying one navigation target.
type Match struct {
	Kind TargetKind
	// SessionRef is the session_id query parameter extracted from a cancel
	// target, empty when absent.
	SessionRef string
}

// ClassifyTarget inspects a navigation target string and matches it against
// the known patterns. Pure: no lookups, no state.
func ClassifyTarget(target string) Match {
	if target == goHomeSignal {
		return Match{Kind: TargetGoHome}
	}

	if strings.Contains(target, successPathMarker) {
		return Match{Kind: TargetSuccess}
	}

	if strings.Contains(target, cancelPathMarker) {
		return Match{Kind: TargetCancel, SessionRef: extractSessionRef(target)}
	}

	return Match{Kind: TargetIrrelevant}
}

func extractSessionRef(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return u.Query().Get("session_id")
}
