package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/couchcryptid/disaster-coordination-service/internal/coordinator"
	"github.com/couchcryptid/disaster-coordination-service/internal/domain"
)

// Identity headers, filled in upstream by the API gateway.
const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

const defaultNearbyRadiusMeters = 10000

// Mutator runs the disaster mutation pipeline.
type Mutator interface {
	CreateDisaster(ctx context.Context, identity domain.Identity, input coordinator.CreateInput) (domain.DisasterRecord, error)
	UpdateDisaster(ctx context.Context, identity domain.Identity, id string, patch coordinator.UpdatePatch) (domain.DisasterRecord, error)
	DeleteDisaster(ctx context.Context, identity domain.Identity, id string) error
}

// RecordReader serves read-only record lookups.
type RecordReader interface {
	FindDisaster(ctx context.Context, id string) (domain.DisasterRecord, error)
	ListDisasters(ctx context.Context, tag string) ([]domain.DisasterRecord, error)
}

// ResourceStore persists and lists relief resources.
type ResourceStore interface {
	InsertResource(ctx context.Context, res domain.Resource) (domain.Resource, error)
	ListByDisaster(ctx context.Context, disasterID string) ([]domain.Resource, error)
}

// ProximityFinder answers radius queries over resources.
type ProximityFinder interface {
	Nearby(ctx context.Context, center domain.Geo, radiusMeters float64, limit int) ([]domain.Resource, error)
}

// PlaceNameExtractor pulls a place name out of free text.
type PlaceNameExtractor interface {
	Extract(ctx context.Context, text string) string
}

// Geocoder resolves a place name to a coordinate.
type Geocoder interface {
	Resolve(ctx context.Context, name string) (domain.Geo, error)
}

// ReverseGeocoder resolves a coordinate back to a place name.
type ReverseGeocoder interface {
	Resolve(ctx context.Context, geo domain.Geo) (string, error)
}

// ImageVerifier scores an image's authenticity.
type ImageVerifier interface {
	Resolve(ctx context.Context, imageURL string) domain.ImageScore
}

// SocialSearcher finds social posts for a query.
type SocialSearcher interface {
	Resolve(ctx context.Context, query string) domain.SocialSearchResult
}

// Handlers wires the HTTP surface to the coordination core.
type Handlers struct {
	mutator   Mutator
	records   RecordReader
	resources ResourceStore
	proximity ProximityFinder
	extractor PlaceNameExtractor
	geocoder  Geocoder
	reverse   ReverseGeocoder
	verifier  ImageVerifier
	social    SocialSearcher
	registry  Registry
	clock     clockwork.Clock
	logger    *slog.Logger
}

// NewHandlers creates the API handler set.
func NewHandlers(
	mutator Mutator,
	records RecordReader,
	resources ResourceStore,
	proximity ProximityFinder,
	extractor PlaceNameExtractor,
	geocoder Geocoder,
	reverse ReverseGeocoder,
	verifier ImageVerifier,
	social SocialSearcher,
	registry Registry,
	clock clockwork.Clock,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		mutator:   mutator,
		records:   records,
		resources: resources,
		proximity: proximity,
		extractor: extractor,
		geocoder:  geocoder,
		reverse:   reverse,
		verifier:  verifier,
		social:    social,
		registry:  registry,
		clock:     clock,
		logger:    logger,
	}
}

// RegisterRoutes attaches the API routes to the Echo instance.
func (h *Handlers) RegisterRoutes(e *echo.Echo) {
	e.POST("/disasters", h.createDisaster)
	e.GET("/disasters", h.listDisasters)
	e.GET("/disasters/:id", h.getDisaster)
	e.PUT("/disasters/:id", h.updateDisaster)
	e.DELETE("/disasters/:id", h.deleteDisaster)

	e.POST("/disasters/:id/verify-image", h.verifyImage)
	e.GET("/disasters/:id/social-media", h.socialMedia)

	e.POST("/disasters/:id/resources", h.createResource)
	e.GET("/disasters/:id/resources", h.listResources)
	e.GET("/resources/nearby", h.nearbyResources)

	e.POST("/geocode", h.geocode)
	e.GET("/geocode/reverse", h.reverseGeocode)
	e.GET("/subscribe", h.subscribe)
}

type createDisasterRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	LocationName string   `json:"location_name"`
	Tags         []string `json:"tags"`
}

func (h *Handlers) createDisaster(c echo.Context) error {
	var req createDisasterRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, &domain.ValidationError{Field: "body", Reason: "malformed JSON"})
	}

	ctx := c.Request().Context()
	if req.LocationName == "" {
		if name := h.extractor.Extract(ctx, req.Title+" "+req.Description); name != "" {
			req.LocationName = name
		}
	}

	rec, err := h.mutator.CreateDisaster(ctx, identity(c), coordinator.CreateInput{
		Title:        req.Title,
		Description:  req.Description,
		LocationName: req.LocationName,
		Tags:         req.Tags,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handlers) listDisasters(c echo.Context) error {
	records, err := h.records.ListDisasters(c.Request().Context(), c.QueryParam("tag"))
	if err != nil {
		return writeError(c, err)
	}
	if records == nil {
		records = []domain.DisasterRecord{}
	}
	return c.JSON(http.StatusOK, records)
}

func (h *Handlers) getDisaster(c echo.Context) error {
	rec, err := h.records.FindDisaster(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

type updateDisasterRequest struct {
	Title        *string  `json:"title"`
	Description  *string  `json:"description"`
	LocationName *string  `json:"location_name"`
	Tags         []string `json:"tags"`
}

func (h *Handlers) updateDisaster(c echo.Context) error {
	var req updateDisasterRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, &domain.ValidationError{Field: "body", Reason: "malformed JSON"})
	}

	rec, err := h.mutator.UpdateDisaster(c.Request().Context(), identity(c), c.Param("id"), coordinator.UpdatePatch{
		Title:        req.Title,
		Description:  req.Description,
		LocationName: req.LocationName,
		Tags:         req.Tags,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handlers) deleteDisaster(c echo.Context) error {
	if err := h.mutator.DeleteDisaster(c.Request().Context(), identity(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type verifyImageRequest struct {
	ImageURL string `json:"image_url"`
}

func (h *Handlers) verifyImage(c echo.Context) error {
	var req verifyImageRequest
	if err := c.Bind(&req); err != nil || req.ImageURL == "" {
		return writeError(c, &domain.ValidationError{Field: "image_url", Reason: "must not be empty"})
	}

	ctx := c.Request().Context()
	if _, err := h.records.FindDisaster(ctx, c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, h.verifier.Resolve(ctx, req.ImageURL))
}

func (h *Handlers) socialMedia(c echo.Context) error {
	ctx := c.Request().Context()
	rec, err := h.records.FindDisaster(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	query := rec.Title
	if rec.LocationName != "" {
		query += " " + rec.LocationName
	}
	return c.JSON(http.StatusOK, h.social.Resolve(ctx, query))
}

type createResourceRequest struct {
	Name         string      `json:"name"`
	Type         string      `json:"type"`
	LocationName string      `json:"location_name"`
	Coordinate   *domain.Geo `json:"coordinate"`
}

func (h *Handlers) createResource(c echo.Context) error {
	var req createResourceRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, &domain.ValidationError{Field: "body", Reason: "malformed JSON"})
	}
	if req.Name == "" {
		return writeError(c, &domain.ValidationError{Field: "name", Reason: "must not be empty"})
	}

	ctx := c.Request().Context()
	disasterID := c.Param("id")
	if _, err := h.records.FindDisaster(ctx, disasterID); err != nil {
		return writeError(c, err)
	}

	// A named location without a coordinate gets geocoded on the way in.
	coord := req.Coordinate
	if coord == nil {
		if req.LocationName == "" {
			return writeError(c, &domain.ValidationError{Field: "coordinate", Reason: "coordinate or location_name required"})
		}
		geo, err := h.geocoder.Resolve(ctx, req.LocationName)
		if err != nil {
			return writeError(c, err)
		}
		coord = &geo
	}

	res, err := h.resources.InsertResource(ctx, domain.Resource{
		DisasterID:   disasterID,
		Name:         req.Name,
		Type:         req.Type,
		LocationName: req.LocationName,
		Coordinate:   *coord,
		CreatedAt:    h.clock.Now().UTC(),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handlers) listResources(c echo.Context) error {
	resources, err := h.resources.ListByDisaster(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	if resources == nil {
		resources = []domain.Resource{}
	}
	return c.JSON(http.StatusOK, resources)
}

func (h *Handlers) nearbyResources(c echo.Context) error {
	lat, errLat := strconv.ParseFloat(c.QueryParam("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.QueryParam("lon"), 64)
	if errLat != nil || errLon != nil {
		return writeError(c, &domain.ValidationError{Field: "lat/lon", Reason: "must be valid coordinates"})
	}

	radius := float64(defaultNearbyRadiusMeters)
	if raw := c.QueryParam("radius"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			return writeError(c, &domain.ValidationError{Field: "radius", Reason: "must be a positive number of meters"})
		}
		radius = parsed
	}

	resources, err := h.proximity.Nearby(c.Request().Context(), domain.Geo{Lat: lat, Lon: lon}, radius, 50)
	if err != nil {
		return writeError(c, err)
	}
	if resources == nil {
		resources = []domain.Resource{}
	}
	return c.JSON(http.StatusOK, resources)
}

type geocodeRequest struct {
	LocationName string `json:"location_name"`
	Description  string `json:"description"`
}

type geocodeResponse struct {
	LocationName string     `json:"location_name"`
	Coordinate   domain.Geo `json:"coordinate"`
}

func (h *Handlers) geocode(c echo.Context) error {
	var req geocodeRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, &domain.ValidationError{Field: "body", Reason: "malformed JSON"})
	}

	ctx := c.Request().Context()
	name := req.LocationName
	if name == "" {
		if req.Description == "" {
			return writeError(c, &domain.ValidationError{Field: "location_name", Reason: "location_name or description required"})
		}
		name = h.extractor.Extract(ctx, req.Description)
	}

	geo, err := h.geocoder.Resolve(ctx, name)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, geocodeResponse{LocationName: name, Coordinate: geo})
}

func (h *Handlers) reverseGeocode(c echo.Context) error {
	lat, errLat := strconv.ParseFloat(c.QueryParam("lat"), 64)
	lon, errLon := strconv.ParseFloat(c.QueryParam("lon"), 64)
	if errLat != nil || errLon != nil {
		return writeError(c, &domain.ValidationError{Field: "lat/lon", Reason: "must be valid coordinates"})
	}

	name, err := h.reverse.Resolve(c.Request().Context(), domain.Geo{Lat: lat, Lon: lon})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"location_name": name})
}

// identity reads the caller identity from the gateway headers. An absent
// user ID yields the zero identity, which the coordinator rejects.
func identity(c echo.Context) domain.Identity {
	id := domain.Identity{
		UserID: c.Request().Header.Get(headerUserID),
		Role:   domain.RoleContributor,
	}
	if c.Request().Header.Get(headerUserRole) == string(domain.RoleAdmin) {
		id.Role = domain.RoleAdmin
	}
	return id
}

// writeError maps domain errors onto HTTP statuses.
func writeError(c echo.Context, err error) error {
	var verr *domain.ValidationError

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		status = http.StatusBadGateway
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
