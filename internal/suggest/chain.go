package suggest

import (
	"context"

	"github.com/sirupsen/logrus"

	"domainflip/internal/discovery"
)

// ExpanderSuggester derives names from the keyword expansion word lists. It needs no network
// and always answers the same way for the same keyword.
type ExpanderSuggester struct{}

// Enabled always reports true.
func (ExpanderSuggester) Enabled() bool { return true }

// Suggest returns the first limit expansion base names for keyword.
func (ExpanderSuggester) Suggest(_ context.Context, keyword string, limit int) ([]string, error) {
	names, err := discovery.BaseNames(keyword)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}

type suggesterChain struct {
	primary  Suggester
	fallback Suggester
}

// WithFallback returns a suggester that first tries the primary implementation and falls
// back when the primary is disabled, fails, or returns nothing.
func WithFallback(primary, fallback Suggester) Suggester {
	if primary == nil {
		return fallback
	}
	if fallback == nil {
		return primary
	}
	return &suggesterChain{primary: primary, fallback: fallback}
}

func (c *suggesterChain) Enabled() bool {
	return (c.primary != nil && c.primary.Enabled()) || (c.fallback != nil && c.fallback.Enabled())
}

func (c *suggesterChain) Suggest(ctx context.Context, keyword string, limit int) ([]string, error) {
	if c.primary != nil && c.primary.Enabled() {
		names, err := c.primary.Suggest(ctx, keyword, limit)
		if err == nil && len(names) > 0 {
			return names, nil
		}
		if err != nil {
			logrus.WithError(err).WithField("keyword", keyword).Warn("ai suggester failed, using fallback")
		}
	}
	if c.fallback != nil && c.fallback.Enabled() {
		return c.fallback.Suggest(ctx, keyword, limit)
	}
	return nil, ErrDisabled
}
