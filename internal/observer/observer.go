// Package observer watches the navigation targets visited inside the hosted
// payment page and classifies them into a terminal exit for the session.
package observer

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/avelora/storefront/internal/domain"
	"github.com/avelora/storefront/internal/gateway"
)

// Observer classifies hosted-page navigation events for one payment session.
// It emits at most one classification; once a terminal classification is
// produced, further navigation events are ignored.
type Observer struct {
	gateway gateway.Client
	logger  *slog.Logger
	done    atomic.Bool
}

// New creates an observer bound to one payment session.
func New(gw gateway.Client, logger *slog.Logger) *Observer {
	return &Observer{
		gateway: gw,
		logger:  logger,
	}
}

// Observe inspects a single navigation target. It returns nil for irrelevant
// targets and for any event after the observer has already classified.
//
// On a cancel target it looks up the settlement status to distinguish a card
// decline from a voluntary cancel; when the lookup fails or carries no
// decline info, it fails open to the less alarming voluntary-cancel
// classification.
func (o *Observer) Observe(ctx context.Context, target string) *domain.ExitClassification {
	match := ClassifyTarget(target)
	if match.Kind == TargetIrrelevant {
		return nil
	}

	if !o.done.CompareAndSwap(false, true) {
		o.logger.DebugContext(ctx, "navigation after terminal classification ignored",
			slog.String("target", target),
		)
		return nil
	}

	switch match.Kind {
	case TargetSuccess:
		return &domain.ExitClassification{Kind: domain.ExitSuccess}

	case TargetGoHome:
		return &domain.ExitClassification{Kind: domain.ExitUserClosedPage}

	case TargetCancel:
		return o.classifyCancel(ctx, match.SessionRef)

	default:
		return nil
	}
}

func (o *Observer) classifyCancel(ctx context.Context, sessionRef string) *domain.ExitClassification {
	if sessionRef == "" {
		return &domain.ExitClassification{Kind: domain.ExitUserCancelled}
	}

	status, err := o.gateway.GetSettlementStatus(ctx, sessionRef)
	if err != nil {
		// Advisory lookup; never surfaced. Default to voluntary cancel.
		o.logger.WarnContext(ctx, "settlement status lookup failed, treating as voluntary cancel",
			slog.String("session_ref", sessionRef),
			slog.String("error", err.Error()),
		)
		return &domain.ExitClassification{Kind: domain.ExitUserCancelled}
	}

	if status.Failed() {
		return &domain.ExitClassification{
			Kind:        domain.ExitDeclined,
			DeclineCode: status.DeclineCode,
		}
	}

	return &domain.ExitClassification{Kind: domain.ExitUserCancelled}
}
