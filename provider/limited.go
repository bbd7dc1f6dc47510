package provider

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/tkral/annomine/model"
)

// Limited wraps a Provider with a token-bucket rate limiter. Remote
// annotation databases are rate-limited and a run can take hours, so the
// limiter is applied at the provider boundary rather than inside the engine.
type Limited struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewLimited wraps p so Find proceeds at most at r calls per second with the
// given burst.
func NewLimited(p Provider, r rate.Limit, burst int) *Limited {
	return &Limited{inner: p, limiter: rate.NewLimiter(r, burst)}
}

// Find waits for limiter clearance, then delegates. Context cancellation
// during the wait is returned as-is so the engine can stop promptly.
func (l *Limited) Find(ctx context.Context, id model.CompoundID) ([]model.Hit, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.inner.Find(ctx, id)
}
