package observer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTarget_Success(t *testing.T) {
	m := ClassifyTarget("https://pay.example.com/payment/success?session_id=cs_123")
	assert.Equal(t, TargetSuccess, m.Kind)
}

func TestClassifyTarget_CancelWithSessionRef(t *testing.T) {
	m := ClassifyTarget("https://pay.example.com/payment/cancel?session_id=cs_abc&foo=bar")
	assert.Equal(t, TargetCancel, m.Kind)
	assert.Equal(t, "cs_abc", m.SessionRef)
}

func TestClassifyTarget_CancelWithoutSessionRef(t *testing.T) {
	m := ClassifyTarget("https://pay.example.com/payment/cancel")
	assert.Equal(t, TargetCancel, m.Kind)
	assert.Empty(t, m.SessionRef)
}

func TestClassifyTarget_GoHomeSignal(t *testing.T) {
	m := ClassifyTarget("GO_HOME")
	assert.Equal(t, TargetGoHome, m.Kind)
}

func TestClassifyTarget_IgnoresIntermediateNavigations(t *testing.T) {
	targets := []string{
		"https://pay.example.com/",
		"https://pay.example.com/c/pay/cs_123",
		"https://pay.example.com/3ds/challenge",
		"about:blank",
		"",
	}
	for _, target := range targets {
		m := ClassifyTarget(target)
		assert.Equal(t, TargetIrrelevant, m.Kind, "target %q", target)
	}
}

func TestClassifyTarget_MatchesBySubstringNotExactURL(t *testing.T) {
	// Query strings and hosts vary between providers; only the path marker
	// matters.
	m := ClassifyTarget("https://other-provider.io/v2/payment/success/redirect?x=1")
	assert.Equal(t, TargetSuccess, m.Kind)
}
