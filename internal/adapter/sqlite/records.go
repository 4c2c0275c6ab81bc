package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/couchcryptid/disaster-coordination-service/internal/domain"
)

// RecordStore persists disaster records. Tags and the audit trail are stored
// as JSON columns; the optional coordinate as a nullable lat/lon pair.
type RecordStore struct {
	db *sql.DB
}

// NewRecordStore creates a record store over the shared database.
func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db.db}
}

// InsertDisaster stores a new record, assigning its ID.
func (s *RecordStore) InsertDisaster(ctx context.Context, rec domain.DisasterRecord) (domain.DisasterRecord, error) {
	rec.ID = uuid.NewString()

	tags, audit, err := marshalAux(rec)
	if err != nil {
		return domain.DisasterRecord{}, err
	}
	lat, lon := coordColumns(rec.Coordinate)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO disasters (id, title, description, location_name, lat, lon, tags, owner_id, audit_trail, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Title, rec.Description, rec.LocationName, lat, lon,
		tags, rec.OwnerID, audit, rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(),
	)
	if err != nil {
		return domain.DisasterRecord{}, fmt.Errorf("insert disaster: %w", err)
	}
	return rec, nil
}

// UpdateDisaster overwrites an existing record.
func (s *RecordStore) UpdateDisaster(ctx context.Context, rec domain.DisasterRecord) error {
	tags, audit, err := marshalAux(rec)
	if err != nil {
		return err
	}
	lat, lon := coordColumns(rec.Coordinate)

	res, err := s.db.ExecContext(ctx,
		`UPDATE disasters
		 SET title = ?, description = ?, location_name = ?, lat = ?, lon = ?, tags = ?, audit_trail = ?, updated_at = ?
		 WHERE id = ?`,
		rec.Title, rec.Description, rec.LocationName, lat, lon,
		tags, audit, rec.UpdatedAt.UTC(), rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update disaster: %w", err)
	}
	return requireRow(res, rec.ID)
}

// DeleteDisaster removes a record and, via the foreign key, its resources.
func (s *RecordStore) DeleteDisaster(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM disasters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete disaster: %w", err)
	}
	return requireRow(res, id)
}

// FindDisaster loads a record by ID.
func (s *RecordStore) FindDisaster(ctx context.Context, id string) (domain.DisasterRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, location_name, lat, lon, tags, owner_id, audit_trail, created_at, updated_at
		 FROM disasters WHERE id = ?`, id)
	rec, err := scanDisaster(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DisasterRecord{}, fmt.Errorf("disaster %s: %w", id, domain.ErrNotFound)
	}
	return rec, err
}

// ListDisasters returns records newest-first, optionally filtered by tag.
func (s *RecordStore) ListDisasters(ctx context.Context, tag string) ([]domain.DisasterRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, location_name, lat, lon, tags, owner_id, audit_trail, created_at, updated_at
		 FROM disasters ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list disasters: %w", err)
	}
	defer rows.Close()

	var out []domain.DisasterRecord
	for rows.Next() {
		rec, err := scanDisaster(rows)
		if err != nil {
			return nil, err
		}
		if tag != "" && !rec.HasTag(tag) {
			continue
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDisaster(row rowScanner) (domain.DisasterRecord, error) {
	var (
		rec      domain.DisasterRecord
		lat, lon sql.NullFloat64
		tags     []byte
		audit    []byte
	)
	err := row.Scan(&rec.ID, &rec.Title, &rec.Description, &rec.LocationName,
		&lat, &lon, &tags, &rec.OwnerID, &audit, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return domain.DisasterRecord{}, err
	}
	if lat.Valid && lon.Valid {
		rec.Coordinate = &domain.Geo{Lat: lat.Float64, Lon: lon.Float64}
	}
	if err := json.Unmarshal(tags, &rec.Tags); err != nil {
		return domain.DisasterRecord{}, fmt.Errorf("decode tags for %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal(audit, &rec.AuditTrail); err != nil {
		return domain.DisasterRecord{}, fmt.Errorf("decode audit trail for %s: %w", rec.ID, err)
	}
	return rec, nil
}

func marshalAux(rec domain.DisasterRecord) (tags, audit []byte, err error) {
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	if rec.AuditTrail == nil {
		rec.AuditTrail = []domain.AuditEntry{}
	}
	tags, err = json.Marshal(rec.Tags)
	if err != nil {
		return nil, nil, fmt.Errorf("encode tags: %w", err)
	}
	audit, err = json.Marshal(rec.AuditTrail)
	if err != nil {
		return nil, nil, fmt.Errorf("encode audit trail: %w", err)
	}
	return tags, audit, nil
}

func coordColumns(geo *domain.Geo) (lat, lon sql.NullFloat64) {
	if geo == nil {
		return
	}
	return sql.NullFloat64{Float64: geo.Lat, Valid: true},
		sql.NullFloat64{Float64: geo.Lon, Valid: true}
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("disaster %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
