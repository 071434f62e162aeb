// Package cart holds the checkout core's view of the cart collaborator: a
// resync operation that refetches authoritative cart state after any event
// that may have changed it server-side.
package cart

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
)

const snapshotKeyPrefix = "cart:snapshot:"

// Resyncer re-fetches authoritative cart state. Idempotent and safe to call
// more than once per session; the orchestrator treats it as fire-and-forget.
type Resyncer interface {
	Resync(ctx context.Context, userID string)
}

// HTTPDoer executes HTTP requests (satisfied by the pkg/httpclient clients).
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// GatewayResyncer invalidates the locally cached cart snapshot and re-fetches
// the cart from the gateway so the next read sees post-checkout stock state.
type GatewayResyncer struct {
	httpClient HTTPDoer
	redis      *redis.Client
	baseURL    string
	logger     *slog.Logger
}

// NewGatewayResyncer creates a resyncer against the gateway's cart endpoint.
func NewGatewayResyncer(httpClient HTTPDoer, redisClient *redis.Client, baseURL string, logger *slog.Logger) *GatewayResyncer {
	return &GatewayResyncer{
		httpClient: httpClient,
		redis:      redisClient,
		baseURL:    baseURL,
		logger:     logger,
	}
}

// Resync drops the cached snapshot and refreshes it from the gateway. All
// failures are logged and absorbed; a stale snapshot self-heals on the next
// cart read.
func (r *GatewayResyncer) Resync(ctx context.Context, userID string) {
	if r.redis != nil {
		if err := r.redis.Del(ctx, snapshotKeyPrefix+userID).Err(); err != nil {
			r.logger.WarnContext(ctx, "failed to drop cart snapshot",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/cart", http.NoBody)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to build cart refresh request",
			slog.String("error", err.Error()),
		)
		return
	}
	req.Header.Set("X-User-ID", userID)

	resp, err := r.httpClient.Do(ctx, req)
	if err != nil {
		r.logger.WarnContext(ctx, "cart refresh failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.WarnContext(ctx, "cart refresh returned non-200",
			slog.String("user_id", userID),
			slog.Int("status", resp.StatusCode),
		)
		return
	}

	r.logger.DebugContext(ctx, "cart resynced", slog.String("user_id", userID))
}
