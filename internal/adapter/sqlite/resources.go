package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/couchcryptid/disaster-coordination-service/internal/domain"
)

const (
	earthRadiusMeters = 6371000
	metersPerDegree   = 111320
)

// ResourceStore persists relief resources and serves the proximity queries
// over them. The radius query prefilters with a bounding box on the indexed
// lat/lon columns and refines with a haversine distance check.
type ResourceStore struct {
	db *sql.DB
}

// NewResourceStore creates a resource store over the shared database.
func NewResourceStore(db *DB) *ResourceStore {
	return &ResourceStore{db: db.db}
}

// InsertResource stores a new resource, assigning its ID.
func (s *ResourceStore) InsertResource(ctx context.Context, res domain.Resource) (domain.Resource, error) {
	res.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resources (id, disaster_id, name, type, location_name, lat, lon, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.DisasterID, res.Name, res.Type, res.LocationName,
		res.Coordinate.Lat, res.Coordinate.Lon, res.CreatedAt.UTC(),
	)
	if err != nil {
		return domain.Resource{}, fmt.Errorf("insert resource: %w", err)
	}
	return res, nil
}

// ListByDisaster returns the resources attached to a disaster, oldest first.
func (s *ResourceStore) ListByDisaster(ctx context.Context, disasterID string) ([]domain.Resource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, disaster_id, name, type, location_name, lat, lon, created_at
		 FROM resources WHERE disaster_id = ? ORDER BY created_at`, disasterID)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return collectResources(rows)
}

// QueryNear returns up to limit resources within radiusMeters of center.
// Zero matches is a legitimate empty result, not an error.
func (s *ResourceStore) QueryNear(ctx context.Context, center domain.Geo, radiusMeters float64, limit int) ([]domain.Resource, error) {
	latDelta := radiusMeters / metersPerDegree
	lonScale := math.Cos(center.Lat * math.Pi / 180)
	if lonScale < 0.01 {
		lonScale = 0.01 // near the poles every longitude is close
	}
	lonDelta := radiusMeters / (metersPerDegree * lonScale)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, disaster_id, name, type, location_name, lat, lon, created_at
		 FROM resources
		 WHERE lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?`,
		center.Lat-latDelta, center.Lat+latDelta,
		center.Lon-lonDelta, center.Lon+lonDelta,
	)
	if err != nil {
		return nil, fmt.Errorf("query near: %w", err)
	}
	candidates, err := collectResources(rows)
	if err != nil {
		return nil, err
	}

	// The box is a superset of the circle; drop the corners.
	out := make([]domain.Resource, 0, len(candidates))
	for _, res := range candidates {
		if haversineMeters(center, res.Coordinate) <= radiusMeters {
			out = append(out, res)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Sample returns up to limit resources with no spatial filter, newest first.
func (s *ResourceStore) Sample(ctx context.Context, limit int) ([]domain.Resource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, disaster_id, name, type, location_name, lat, lon, created_at
		 FROM resources ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sample resources: %w", err)
	}
	return collectResources(rows)
}

func collectResources(rows *sql.Rows) ([]domain.Resource, error) {
	defer rows.Close()
	var out []domain.Resource
	for rows.Next() {
		var res domain.Resource
		err := rows.Scan(&res.ID, &res.DisasterID, &res.Name, &res.Type,
			&res.LocationName, &res.Coordinate.Lat, &res.Coordinate.Lon, &res.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func haversineMeters(a, b domain.Geo) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*sinLon*sinLon
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
