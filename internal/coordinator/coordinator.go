// Package coordinator orchestrates record mutations through the fixed
// sequence authorize → enrich → persist → broadcast → audit.
//
// Enrichment is best-effort: a hard geocoding failure degrades to "no
// resolved coordinate" and never blocks the record's existence. A store
// failure is terminal — no broadcast or audit step runs after it. Broadcast
// is always attempted after a successful persist and is fire-and-forget:
// zero fan-out is not an error.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-coordination-service/internal/domain"
	"github.com/couchcryptid/disaster-coordination-service/internal/observability"
)

// RecordStore is the slice of the persistence collaborator the coordinator
// needs. Insert returns the stored record with its assigned ID.
type RecordStore interface {
	InsertDisaster(ctx context.Context, rec domain.DisasterRecord) (domain.DisasterRecord, error)
	UpdateDisaster(ctx context.Context, rec domain.DisasterRecord) error
	DeleteDisaster(ctx context.Context, id string) error
	FindDisaster(ctx context.Context, id string) (domain.DisasterRecord, error)
}

// Geocoder resolves a place name to a coordinate.
type Geocoder interface {
	Resolve(ctx context.Context, name string) (domain.Geo, error)
}

// Publisher fans a committed mutation out to live observers.
type Publisher interface {
	Publish(event domain.BroadcastEvent)
}

// priorityTag is added to records whose text matches a priority keyword.
const priorityTag = "priority"

// CreateInput carries the user-supplied fields of a new record.
type CreateInput struct {
	Title        string
	Description  string
	LocationName string
	Tags         []string
}

// UpdatePatch carries the changed fields of an update; nil pointers leave
// the current value untouched.
type UpdatePatch struct {
	Title        *string
	Description  *string
	LocationName *string
	Tags         []string
}

// Coordinator runs the mutation state machine.
type Coordinator struct {
	store    RecordStore
	geocoder Geocoder
	radio    Publisher
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a mutation coordinator.
func New(store RecordStore, geocoder Geocoder, radio Publisher, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Coordinator {
	return &Coordinator{
		store:    store,
		geocoder: geocoder,
		radio:    radio,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// CreateDisaster inserts a new record. Creation has no prior owner to check,
// so authorization only requires an identity to be present.
func (c *Coordinator) CreateDisaster(ctx context.Context, identity domain.Identity, input CreateInput) (domain.DisasterRecord, error) {
	if identity.IsZero() {
		return c.fail("create", "unauthorized", domain.ErrUnauthorized)
	}
	if err := domain.ValidateNewRecord(input.Title, input.Description); err != nil {
		return c.fail("create", "invalid", err)
	}

	now := c.clock.Now().UTC()
	rec := domain.DisasterRecord{
		Title:        strings.TrimSpace(input.Title),
		Description:  strings.TrimSpace(input.Description),
		LocationName: strings.TrimSpace(input.LocationName),
		Tags:         input.Tags,
		OwnerID:      identity.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
		AuditTrail: []domain.AuditEntry{
			{Action: "create", ActorID: identity.UserID, Timestamp: now},
		},
	}
	rec.Tags = c.classify(rec)
	rec.Coordinate = c.enrich(ctx, rec.LocationName)

	stored, err := c.store.InsertDisaster(ctx, rec)
	if err != nil {
		return c.fail("create", "persistence_error", fmt.Errorf("%w: insert disaster: %v", domain.ErrPersistence, err))
	}

	c.radio.Publish(domain.CreatedEvent(stored, now))
	c.metrics.Mutations.WithLabelValues("create", "success").Inc()
	c.logger.Info("disaster created", "id", stored.ID, "owner", stored.OwnerID, "location", stored.LocationName)
	return stored, nil
}

// UpdateDisaster applies a patch to an existing record.
func (c *Coordinator) UpdateDisaster(ctx context.Context, identity domain.Identity, id string, patch UpdatePatch) (domain.DisasterRecord, error) {
	rec, err := c.authorize(ctx, "update", identity, id)
	if err != nil {
		return domain.DisasterRecord{}, err
	}

	if patch.Title != nil {
		rec.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		rec.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Tags != nil {
		rec.Tags = patch.Tags
	}
	if err := domain.ValidateNewRecord(rec.Title, rec.Description); err != nil {
		return c.fail("update", "invalid", err)
	}

	if patch.LocationName != nil && strings.TrimSpace(*patch.LocationName) != rec.LocationName {
		rec.LocationName = strings.TrimSpace(*patch.LocationName)
		rec.Coordinate = c.enrich(ctx, rec.LocationName)
	}
	rec.Tags = c.classify(rec)

	now := c.clock.Now().UTC()
	rec.UpdatedAt = now
	rec.AuditTrail = append(rec.AuditTrail, domain.AuditEntry{
		Action: "update", ActorID: identity.UserID, Timestamp: now,
	})

	if err := c.store.UpdateDisaster(ctx, rec); err != nil {
		return c.fail("update", "persistence_error", fmt.Errorf("%w: update disaster %s: %v", domain.ErrPersistence, id, err))
	}

	c.radio.Publish(domain.UpdatedEvent(rec, now))
	c.metrics.Mutations.WithLabelValues("update", "success").Inc()
	c.logger.Info("disaster updated", "id", rec.ID, "actor", identity.UserID)
	return rec, nil
}

// DeleteDisaster removes a record. The audit step for deletes is advisory
// logging: there is no row left to carry the trail.
func (c *Coordinator) DeleteDisaster(ctx context.Context, identity domain.Identity, id string) error {
	if _, err := c.authorize(ctx, "delete", identity, id); err != nil {
		return err
	}

	if err := c.store.DeleteDisaster(ctx, id); err != nil {
		_, err = c.fail("delete", "persistence_error", fmt.Errorf("%w: delete disaster %s: %v", domain.ErrPersistence, id, err))
		return err
	}

	now := c.clock.Now().UTC()
	c.radio.Publish(domain.DeletedEvent(id, now))
	c.metrics.Mutations.WithLabelValues("delete", "success").Inc()
	c.logger.Info("disaster deleted", "id", id, "actor", identity.UserID, "action", "delete")
	return nil
}

// authorize loads the record and checks the identity against it.
func (c *Coordinator) authorize(ctx context.Context, action string, identity domain.Identity, id string) (domain.DisasterRecord, error) {
	if identity.IsZero() {
		return c.fail(action, "unauthorized", domain.ErrUnauthorized)
	}

	rec, err := c.store.FindDisaster(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.fail(action, "not_found", fmt.Errorf("disaster %s: %w", id, domain.ErrNotFound))
	case err != nil:
		return c.fail(action, "persistence_error", fmt.Errorf("%w: find disaster %s: %v", domain.ErrPersistence, id, err))
	}

	if !identity.CanMutate(rec.OwnerID) {
		return c.fail(action, "forbidden", fmt.Errorf("%s disaster %s: %w", action, id, domain.ErrForbidden))
	}
	return rec, nil
}

// enrich resolves a coordinate for the location name, degrading to nil on
// any failure. Enrichment never blocks a mutation.
func (c *Coordinator) enrich(ctx context.Context, locationName string) *domain.Geo {
	if locationName == "" {
		return nil
	}
	geo, err := c.geocoder.Resolve(ctx, locationName)
	if err != nil {
		c.logger.Warn("enrichment degraded, persisting without coordinate",
			"location", locationName, "error", err)
		return nil
	}
	return &geo
}

// classify ensures the priority tag matches the record's current text.
func (c *Coordinator) classify(rec domain.DisasterRecord) []string {
	urgent := domain.IsPriority(rec.Title + " " + rec.Description)
	if urgent && !rec.HasTag(priorityTag) {
		return append(rec.Tags, priorityTag)
	}
	if !urgent {
		out := rec.Tags[:0:0]
		for _, t := range rec.Tags {
			if t != priorityTag {
				out = append(out, t)
			}
		}
		return out
	}
	return rec.Tags
}

func (c *Coordinator) fail(action, outcome string, err error) (domain.DisasterRecord, error) {
	c.metrics.Mutations.WithLabelValues(action, outcome).Inc()
	return domain.DisasterRecord{}, err
}
