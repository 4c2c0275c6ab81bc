package enrich

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/disaster-coordination-service/internal/cache"
	"github.com/couchcryptid/disaster-coordination-service/internal/domain"
	"github.com/couchcryptid/disaster-coordination-service/internal/observability"
)

// ImageScoreRemote judges the authenticity of the image at a URL.
type ImageScoreRemote interface {
	ScoreImage(ctx context.Context, imageURL string) (domain.ImageScore, error)
}

// ImageScorer resolves an authenticity score with cache-aside semantics. It
// never fails: remote failures (including missing upstream credentials)
// produce a fixed degraded result, which is cached too so repeated calls on
// the same unreachable image don't repeat the remote attempt within the ttl
// window.
type ImageScorer struct {
	cache   cache.Store
	remote  ImageScoreRemote
	ttl     time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewImageScorer creates the image-authenticity adapter.
func NewImageScorer(store cache.Store, remote ImageScoreRemote, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *ImageScorer {
	return &ImageScorer{cache: store, remote: remote, ttl: ttl, logger: logger, metrics: metrics}
}

// Resolve returns the authenticity assessment for the image URL.
func (s *ImageScorer) Resolve(ctx context.Context, imageURL string) domain.ImageScore {
	key := capImageScore + ":" + hashInput(strings.TrimSpace(imageURL))

	var cached domain.ImageScore
	if cacheGet(ctx, s.cache, s.metrics, capImageScore, key, &cached) {
		return cached
	}

	start := time.Now()
	score, err := s.remote.ScoreImage(ctx, imageURL)
	observe(s.metrics, capImageScore, start)

	if err != nil {
		degraded := domain.ImageScore{
			Score:           nil,
			LikelyAuthentic: false,
			Analysis:        "image verification unavailable: " + err.Error(),
		}
		cachePut(ctx, s.cache, s.logger, key, degraded, s.ttl)
		s.logger.Warn("image scoring degraded", "image_url", imageURL, "error", err)
		s.metrics.EnrichRequests.WithLabelValues(capImageScore, outcomeDegraded).Inc()
		return degraded
	}

	cachePut(ctx, s.cache, s.logger, key, score, s.ttl)
	s.metrics.EnrichRequests.WithLabelValues(capImageScore, outcomeSuccess).Inc()
	return score
}
