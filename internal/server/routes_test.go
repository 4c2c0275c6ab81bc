package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-coordination-service/internal/broadcast"
	"github.com/couchcryptid/disaster-coordination-service/internal/coordinator"
	"github.com/couchcryptid/disaster-coordination-service/internal/domain"
	"github.com/couchcryptid/disaster-coordination-service/internal/observability"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- stubs ---

type stubMutator struct {
	created  coordinator.CreateInput
	identity domain.Identity
	err      error
}

func (m *stubMutator) CreateDisaster(_ context.Context, identity domain.Identity, input coordinator.CreateInput) (domain.DisasterRecord, error) {
	m.identity = identity
	m.created = input
	if m.err != nil {
		return domain.DisasterRecord{}, m.err
	}
	return domain.DisasterRecord{ID: "rec-1", Title: input.Title, OwnerID: identity.UserID}, nil
}

func (m *stubMutator) UpdateDisaster(_ context.Context, identity domain.Identity, id string, _ coordinator.UpdatePatch) (domain.DisasterRecord, error) {
	m.identity = identity
	if m.err != nil {
		return domain.DisasterRecord{}, m.err
	}
	return domain.DisasterRecord{ID: id}, nil
}

func (m *stubMutator) DeleteDisaster(_ context.Context, identity domain.Identity, _ string) error {
	m.identity = identity
	return m.err
}

type stubReader struct {
	record domain.DisasterRecord
	err    error
}

func (r *stubReader) FindDisaster(_ context.Context, id string) (domain.DisasterRecord, error) {
	if r.err != nil {
		return domain.DisasterRecord{}, r.err
	}
	rec := r.record
	rec.ID = id
	return rec, nil
}

func (r *stubReader) ListDisasters(_ context.Context, _ string) ([]domain.DisasterRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []domain.DisasterRecord{r.record}, nil
}

type stubResources struct {
	inserted []domain.Resource
}

func (s *stubResources) InsertResource(_ context.Context, res domain.Resource) (domain.Resource, error) {
	res.ID = "res-1"
	s.inserted = append(s.inserted, res)
	return res, nil
}

func (s *stubResources) ListByDisaster(_ context.Context, _ string) ([]domain.Resource, error) {
	return s.inserted, nil
}

type stubProximity struct {
	result []domain.Resource
	radius float64
}

func (p *stubProximity) Nearby(_ context.Context, _ domain.Geo, radiusMeters float64, _ int) ([]domain.Resource, error) {
	p.radius = radiusMeters
	return p.result, nil
}

type stubExtractor struct{ name string }

func (e *stubExtractor) Extract(_ context.Context, _ string) string { return e.name }

type stubGeocoder struct {
	geo domain.Geo
	err error
}

func (g *stubGeocoder) Resolve(_ context.Context, _ string) (domain.Geo, error) {
	return g.geo, g.err
}

type stubReverse struct {
	name string
	err  error
}

func (r *stubReverse) Resolve(_ context.Context, _ domain.Geo) (string, error) {
	return r.name, r.err
}

type stubVerifier struct{ score domain.ImageScore }

func (v *stubVerifier) Resolve(_ context.Context, _ string) domain.ImageScore { return v.score }

type stubSocial struct{ result domain.SocialSearchResult }

func (s *stubSocial) Resolve(_ context.Context, _ string) domain.SocialSearchResult { return s.result }

type fixture struct {
	e         *echo.Echo
	mutator   *stubMutator
	reader    *stubReader
	resources *stubResources
	proximity *stubProximity
	extractor *stubExtractor
	geocoder  *stubGeocoder
	reverse   *stubReverse
	registry  *broadcast.Registry
}

func newFixture() *fixture {
	f := &fixture{
		e:         echo.New(),
		mutator:   &stubMutator{},
		reader:    &stubReader{record: domain.DisasterRecord{Title: "Flood", LocationName: "Mumbai", OwnerID: "citizen1"}},
		resources: &stubResources{},
		proximity: &stubProximity{},
		extractor: &stubExtractor{},
		geocoder:  &stubGeocoder{geo: domain.Geo{Lat: 19.0760, Lon: 72.8777}},
		reverse:   &stubReverse{name: "Mumbai, Maharashtra"},
		registry:  broadcast.NewRegistry(30*time.Second, clockwork.NewFakeClock(), discardLogger(), observability.NewMetricsForTesting()),
	}
	h := NewHandlers(f.mutator, f.reader, f.resources, f.proximity, f.extractor, f.geocoder,
		f.reverse, &stubVerifier{}, &stubSocial{}, f.registry, clockwork.NewFakeClock(), discardLogger())
	h.RegisterRoutes(f.e)
	return f
}

func (f *fixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

var asOwner = map[string]string{"X-User-ID": "citizen1"}

// --- tests ---

func TestCreateDisaster_PassesIdentityFromHeaders(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/disasters", `{"title":"Flood","description":"water rising"}`,
		map[string]string{"X-User-ID": "citizen1", "X-User-Role": "admin"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "citizen1", f.mutator.identity.UserID)
	assert.Equal(t, domain.RoleAdmin, f.mutator.identity.Role)
}

func TestCreateDisaster_ExtractsLocationWhenAbsent(t *testing.T) {
	f := newFixture()
	f.extractor.name = "Mumbai"

	rec := f.do(http.MethodPost, "/disasters", `{"title":"Flood","description":"flooding in Mumbai"}`, asOwner)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Mumbai", f.mutator.created.LocationName)
}

func TestCreateDisaster_SuppliedLocationSkipsExtraction(t *testing.T) {
	f := newFixture()
	f.extractor.name = "Elsewhere"

	f.do(http.MethodPost, "/disasters", `{"title":"Flood","description":"d","location_name":"Delhi"}`, asOwner)

	assert.Equal(t, "Delhi", f.mutator.created.LocationName)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden", fmt.Errorf("update: %w", domain.ErrForbidden), http.StatusForbidden},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"validation", &domain.ValidationError{Field: "title", Reason: "empty"}, http.StatusBadRequest},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests},
		{"upstream down", domain.ErrUpstreamUnavailable, http.StatusBadGateway},
		{"persistence", domain.ErrPersistence, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.mutator.err = tc.err

			rec := f.do(http.MethodPost, "/disasters", `{"title":"t","description":"d"}`, asOwner)

			assert.Equal(t, tc.want, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestGetDisaster_NotFound(t *testing.T) {
	f := newFixture()
	f.reader.err = domain.ErrNotFound

	rec := f.do(http.MethodGet, "/disasters/nope", "", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteDisaster_NoContent(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodDelete, "/disasters/rec-1", "", asOwner)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestNearbyResources_ValidatesCoordinates(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodGet, "/resources/nearby?lat=abc&lon=72.8", "", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNearbyResources_DefaultRadius(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodGet, "/resources/nearby?lat=19.07&lon=72.87", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(defaultNearbyRadiusMeters), f.proximity.radius)
	assert.JSONEq(t, "[]", rec.Body.String(), "empty result serializes as an array")
}

func TestCreateResource_GeocodesNamedLocation(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/disasters/rec-1/resources",
		`{"name":"Shelter A","type":"shelter","location_name":"Bandra"}`, asOwner)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, f.resources.inserted, 1)
	assert.InDelta(t, 19.0760, f.resources.inserted[0].Coordinate.Lat, 1e-9)
}

func TestCreateResource_RequiresCoordinateOrLocation(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/disasters/rec-1/resources", `{"name":"Shelter A"}`, asOwner)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGeocode_ExtractsFromDescription(t *testing.T) {
	f := newFixture()
	f.extractor.name = "Mumbai"

	rec := f.do(http.MethodPost, "/geocode", `{"description":"flooding in Mumbai"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Mumbai")
	assert.Contains(t, rec.Body.String(), "19.076")
}

func TestGeocode_RequiresInput(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/geocode", `{}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReverseGeocode(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodGet, "/geocode/reverse?lat=19.076&lon=72.8777", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Mumbai, Maharashtra")
}

func TestReverseGeocode_UpstreamFailureSurfaces(t *testing.T) {
	f := newFixture()
	f.reverse.err = domain.ErrUpstreamUnavailable

	rec := f.do(http.MethodGet, "/geocode/reverse?lat=19.076&lon=72.8777", "", nil)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestVerifyImage_UnknownDisaster(t *testing.T) {
	f := newFixture()
	f.reader.err = domain.ErrNotFound

	rec := f.do(http.MethodPost, "/disasters/nope/verify-image", `{"image_url":"https://x/img.jpg"}`, asOwner)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubscribe_SendsConnectedAck(t *testing.T) {
	f := newFixture()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/subscribe", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.e.ServeHTTP(rec, req)
	}()

	assert.Eventually(t, func() bool {
		return f.registry.Size() == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, 0, f.registry.Size(), "disconnect unregisters the observer")
	body := rec.Body.String()
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/event-stream")
}
