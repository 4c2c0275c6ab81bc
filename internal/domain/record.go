package domain

import (
	"strings"
	"time"
)

// Role distinguishes administrators from regular contributors.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleContributor Role = "contributor"
)

// Identity names the caller of an entry point. A zero identity means the
// request carried no authentication at all.
type Identity struct {
	UserID string
	Role   Role
}

// IsZero reports whether no identity is attached.
func (i Identity) IsZero() bool {
	return i.UserID == ""
}

// CanMutate reports whether the identity may update or delete a record owned
// by ownerID. Admins may mutate anything.
func (i Identity) CanMutate(ownerID string) bool {
	return i.Role == RoleAdmin || i.UserID == ownerID
}

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// AuditEntry is one element of a record's append-only audit trail.
type AuditEntry struct {
	Action    string    `json:"action"` // "create", "update", "delete"
	ActorID   string    `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
}

// DisasterRecord is the coordinated unit: a disaster report with optional
// derived location enrichment.
type DisasterRecord struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	LocationName string       `json:"location_name,omitempty"`
	Coordinate   *Geo         `json:"coordinate,omitempty"` // derived via geocoding, never user-supplied
	Tags         []string     `json:"tags,omitempty"`
	OwnerID      string       `json:"owner_id"`
	AuditTrail   []AuditEntry `json:"audit_trail,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// HasTag reports whether the record carries the given tag.
func (r DisasterRecord) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Resource is a relief resource (shelter, hospital, supply point) tied to a
// disaster and positioned for proximity queries.
type Resource struct {
	ID           string    `json:"id"`
	DisasterID   string    `json:"disaster_id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"` // "shelter", "hospital", "food", ...
	LocationName string    `json:"location_name,omitempty"`
	Coordinate   Geo       `json:"coordinate"`
	CreatedAt    time.Time `json:"created_at"`
}

// ValidationError reports a missing or malformed required field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Field + ": " + e.Reason
}

// ValidateNewRecord checks the required fields of a record about to be created.
func ValidateNewRecord(title, description string) error {
	if strings.TrimSpace(title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if strings.TrimSpace(description) == "" {
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	return nil
}
