package enrich

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/disaster-coordination-service/internal/cache"
	"github.com/couchcryptid/disaster-coordination-service/internal/domain"
	"github.com/couchcryptid/disaster-coordination-service/internal/observability"
)

const socialSearchLimit = 20

// SocialSearchRemote searches social content matching a query.
type SocialSearchRemote interface {
	Search(ctx context.Context, query string, limit int) ([]domain.SocialPost, error)
}

// SocialSearcher resolves matching posts with cache-aside semantics. An
// upstream rate-limit signal produces a distinguishable rate-limited result
// (not cached); any other remote error yields an empty result set.
type SocialSearcher struct {
	cache   cache.Store
	remote  SocialSearchRemote
	ttl     time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewSocialSearcher creates the social-content search adapter. The ttl is
// typically shorter than the other capabilities: feeds go stale quickly.
func NewSocialSearcher(store cache.Store, remote SocialSearchRemote, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *SocialSearcher {
	return &SocialSearcher{cache: store, remote: remote, ttl: ttl, logger: logger, metrics: metrics}
}

// Resolve returns social content matching the query.
func (s *SocialSearcher) Resolve(ctx context.Context, query string) domain.SocialSearchResult {
	norm := strings.ToLower(strings.TrimSpace(query))
	key := capSocial + ":" + hashInput(norm)

	var cached []domain.SocialPost
	if cacheGet(ctx, s.cache, s.metrics, capSocial, key, &cached) {
		return domain.SocialSearchResult{Posts: cached}
	}

	start := time.Now()
	posts, err := s.remote.Search(ctx, query, socialSearchLimit)
	observe(s.metrics, capSocial, start)

	switch {
	case err == nil:
		cachePut(ctx, s.cache, s.logger, key, posts, s.ttl)
		s.metrics.EnrichRequests.WithLabelValues(capSocial, outcomeSuccess).Inc()
		return domain.SocialSearchResult{Posts: posts}

	case errors.Is(err, domain.ErrRateLimited):
		// Distinguishable marker so the caller can substitute content.
		s.logger.Info("social search rate limited", "query", query)
		s.metrics.EnrichRequests.WithLabelValues(capSocial, outcomeRateLimited).Inc()
		return domain.SocialSearchResult{RateLimited: true}

	default:
		s.logger.Warn("social search failed, returning empty result", "query", query, "error", err)
		s.metrics.EnrichRequests.WithLabelValues(capSocial, outcomeError).Inc()
		return domain.SocialSearchResult{}
	}
}
