// Package proximity answers "what resources are near this point".
//
// The primary path is a geospatial radius query against the store. When the
// query mechanism itself is unavailable — not when it legitimately returns
// zero rows — the resolver degrades to an unfiltered bounded sample so the
// caller always receives a non-error response. The two cases log distinctly
// so they stay distinguishable operationally.
package proximity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/disaster-coordination-service/internal/domain"
)

// FallbackSampleSize caps the unfiltered sample returned when the radius
// query mechanism is down.
const FallbackSampleSize = 10

// ResourceFinder is the slice of the store the resolver needs.
type ResourceFinder interface {
	// QueryNear returns resources within radiusMeters of center. An error
	// means the query mechanism failed, not that nothing matched.
	QueryNear(ctx context.Context, center domain.Geo, radiusMeters float64, limit int) ([]domain.Resource, error)

	// Sample returns up to limit resources with no spatial filter.
	Sample(ctx context.Context, limit int) ([]domain.Resource, error)
}

// Resolver serves proximity queries with a degraded-sample fallback.
type Resolver struct {
	finder ResourceFinder
	logger *slog.Logger
}

// NewResolver creates a proximity resolver over the given store.
func NewResolver(finder ResourceFinder, logger *slog.Logger) *Resolver {
	return &Resolver{finder: finder, logger: logger}
}

// Nearby returns resources within radiusMeters of center, capped at limit.
func (r *Resolver) Nearby(ctx context.Context, center domain.Geo, radiusMeters float64, limit int) ([]domain.Resource, error) {
	resources, err := r.finder.QueryNear(ctx, center, radiusMeters, limit)
	if err == nil {
		// Zero rows is a legitimate answer, not a trigger for the fallback.
		r.logger.Debug("proximity query served",
			"lat", center.Lat, "lon", center.Lon,
			"radius_m", radiusMeters, "count", len(resources),
		)
		return resources, nil
	}

	r.logger.Warn("proximity query mechanism unavailable, returning bounded sample",
		"error", err, "fallback", "sample", "cap", FallbackSampleSize,
	)
	sample, sErr := r.finder.Sample(ctx, FallbackSampleSize)
	if sErr != nil {
		return nil, fmt.Errorf("proximity fallback sample: %w", sErr)
	}
	return sample, nil
}
