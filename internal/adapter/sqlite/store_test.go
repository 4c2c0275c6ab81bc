package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-coordination-service/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_MigratesAndPings(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.Ping(context.Background()))
}

// --- records ---

func sampleRecord() domain.DisasterRecord {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return domain.DisasterRecord{
		Title:        "Flood",
		Description:  "Heavy flooding downtown",
		LocationName: "Mumbai",
		Coordinate:   &domain.Geo{Lat: 19.0760, Lon: 72.8777},
		Tags:         []string{"flood", "priority"},
		OwnerID:      "citizen1",
		AuditTrail: []domain.AuditEntry{
			{Action: "create", ActorID: "citizen1", Timestamp: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRecordStore_InsertAndFind(t *testing.T) {
	store := NewRecordStore(openTestDB(t))
	ctx := context.Background()

	stored, err := store.InsertDisaster(ctx, sampleRecord())
	require.NoError(t, err)
	require.NotEmpty(t, stored.ID)

	got, err := store.FindDisaster(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "Flood", got.Title)
	assert.Equal(t, []string{"flood", "priority"}, got.Tags)
	require.NotNil(t, got.Coordinate)
	assert.InDelta(t, 19.0760, got.Coordinate.Lat, 1e-9)
	require.Len(t, got.AuditTrail, 1)
	assert.Equal(t, "create", got.AuditTrail[0].Action)
}

func TestRecordStore_NilCoordinateRoundTrips(t *testing.T) {
	store := NewRecordStore(openTestDB(t))
	ctx := context.Background()

	rec := sampleRecord()
	rec.Coordinate = nil
	stored, err := store.InsertDisaster(ctx, rec)
	require.NoError(t, err)

	got, err := store.FindDisaster(ctx, stored.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Coordinate)
}

func TestRecordStore_FindMissing(t *testing.T) {
	store := NewRecordStore(openTestDB(t))

	_, err := store.FindDisaster(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordStore_UpdateAndDelete(t *testing.T) {
	store := NewRecordStore(openTestDB(t))
	ctx := context.Background()

	stored, err := store.InsertDisaster(ctx, sampleRecord())
	require.NoError(t, err)

	stored.Title = "Flood - day 2"
	require.NoError(t, store.UpdateDisaster(ctx, stored))

	got, err := store.FindDisaster(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "Flood - day 2", got.Title)

	require.NoError(t, store.DeleteDisaster(ctx, stored.ID))
	_, err = store.FindDisaster(ctx, stored.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordStore_UpdateMissing(t *testing.T) {
	store := NewRecordStore(openTestDB(t))

	rec := sampleRecord()
	rec.ID = "nope"
	assert.ErrorIs(t, store.UpdateDisaster(context.Background(), rec), domain.ErrNotFound)
	assert.ErrorIs(t, store.DeleteDisaster(context.Background(), "nope"), domain.ErrNotFound)
}

func TestRecordStore_ListFiltersByTag(t *testing.T) {
	store := NewRecordStore(openTestDB(t))
	ctx := context.Background()

	first := sampleRecord()
	_, err := store.InsertDisaster(ctx, first)
	require.NoError(t, err)

	second := sampleRecord()
	second.Title = "Quake"
	second.Tags = []string{"earthquake"}
	second.CreatedAt = second.CreatedAt.Add(time.Hour)
	_, err = store.InsertDisaster(ctx, second)
	require.NoError(t, err)

	all, err := store.ListDisasters(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Quake", all[0].Title, "newest first")

	flooded, err := store.ListDisasters(ctx, "flood")
	require.NoError(t, err)
	require.Len(t, flooded, 1)
	assert.Equal(t, "Flood", flooded[0].Title)
}

// --- resources ---

func insertResource(t *testing.T, store *ResourceStore, disasterID, name string, geo domain.Geo) domain.Resource {
	t.Helper()
	res, err := store.InsertResource(context.Background(), domain.Resource{
		DisasterID: disasterID,
		Name:       name,
		Type:       "shelter",
		Coordinate: geo,
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	return res
}

func seedDisaster(t *testing.T, db *DB) string {
	t.Helper()
	stored, err := NewRecordStore(db).InsertDisaster(context.Background(), sampleRecord())
	require.NoError(t, err)
	return stored.ID
}

func TestResourceStore_QueryNear(t *testing.T) {
	db := openTestDB(t)
	store := NewResourceStore(db)
	disasterID := seedDisaster(t, db)

	// Bandra is ~5km from the center; Pune is ~120km away.
	center := domain.Geo{Lat: 19.0760, Lon: 72.8777}
	insertResource(t, store, disasterID, "Bandra Shelter", domain.Geo{Lat: 19.0596, Lon: 72.8295})
	insertResource(t, store, disasterID, "Pune Depot", domain.Geo{Lat: 18.5204, Lon: 73.8567})

	got, err := store.QueryNear(context.Background(), center, 10000, 50)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Bandra Shelter", got[0].Name)
}

func TestResourceStore_QueryNearEmpty(t *testing.T) {
	store := NewResourceStore(openTestDB(t))

	got, err := store.QueryNear(context.Background(), domain.Geo{Lat: 19, Lon: 72}, 1000, 50)
	require.NoError(t, err)
	assert.Empty(t, got, "no matches is not an error")
}

func TestResourceStore_SampleAndList(t *testing.T) {
	db := openTestDB(t)
	store := NewResourceStore(db)
	disasterID := seedDisaster(t, db)

	for i := 0; i < 5; i++ {
		insertResource(t, store, disasterID, "Shelter", domain.Geo{Lat: 19, Lon: 72})
	}

	sample, err := store.Sample(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, sample, 3)

	listed, err := store.ListByDisaster(context.Background(), disasterID)
	require.NoError(t, err)
	assert.Len(t, listed, 5)
}

func TestResourceStore_DeleteCascades(t *testing.T) {
	db := openTestDB(t)
	resources := NewResourceStore(db)
	records := NewRecordStore(db)
	disasterID := seedDisaster(t, db)
	insertResource(t, resources, disasterID, "Shelter", domain.Geo{Lat: 19, Lon: 72})

	require.NoError(t, records.DeleteDisaster(context.Background(), disasterID))

	left, err := resources.ListByDisaster(context.Background(), disasterID)
	require.NoError(t, err)
	assert.Empty(t, left)
}

// --- cache ---

func TestCacheStore_PutGetAndExpiry(t *testing.T) {
	db := openTestDB(t)
	clock := clockwork.NewFakeClock()
	store := NewCacheStore(db, clock, discardLogger())
	ctx := context.Background()

	store.Put(ctx, "geocode:mumbai", []byte(`{"lat":19.076}`), time.Hour)

	got, ok := store.Get(ctx, "geocode:mumbai")
	require.True(t, ok)
	assert.Equal(t, []byte(`{"lat":19.076}`), got)

	clock.Advance(time.Hour + time.Second)
	_, ok = store.Get(ctx, "geocode:mumbai")
	assert.False(t, ok, "expired entry behaves like a miss")
}

func TestCacheStore_OverwriteExtendsEntry(t *testing.T) {
	db := openTestDB(t)
	clock := clockwork.NewFakeClock()
	store := NewCacheStore(db, clock, discardLogger())
	ctx := context.Background()

	store.Put(ctx, "k", []byte("old"), time.Minute)
	store.Put(ctx, "k", []byte("new"), time.Hour)

	clock.Advance(30 * time.Minute)
	got, ok := store.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("new"), got)
}

func TestCacheStore_MissOnAbsentKey(t *testing.T) {
	store := NewCacheStore(openTestDB(t), clockwork.NewFakeClock(), discardLogger())

	_, ok := store.Get(context.Background(), "absent")
	assert.False(t, ok)
}

func TestCacheStore_PurgeExpired(t *testing.T) {
	db := openTestDB(t)
	clock := clockwork.NewFakeClock()
	store := NewCacheStore(db, clock, discardLogger())
	ctx := context.Background()

	store.Put(ctx, "short", []byte("v"), time.Minute)
	store.Put(ctx, "long", []byte("v"), time.Hour)
	clock.Advance(10 * time.Minute)

	require.NoError(t, store.PurgeExpired(ctx))

	_, ok := store.Get(ctx, "long")
	assert.True(t, ok)
}
