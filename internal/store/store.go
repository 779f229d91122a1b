// Package store defines the storage interface for the CLI catalog.
package store

import (
	"context"
	"errors"

	"github.com/scbrown/clicat/internal/model"
)

var (
	// ErrNotFound is returned when a slug or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSlugTaken is returned when a new profile is committed under a slug
	// another profile already owns.
	ErrSlugTaken = errors.New("slug already taken")
)

// Reader is the read model consumed by the CLI, the HTTP API and workflow
// chain checks.
type Reader interface {
	// GetProfile returns the current state of a profile, including its
	// compatibility list. Returns ErrNotFound for unknown slugs.
	GetProfile(ctx context.Context, slug string) (*model.Profile, error)

	// ListProfiles returns profiles matching opts, ordered by slug.
	ListProfiles(ctx context.Context, opts ListOpts) ([]model.Profile, error)

	// ListByBinary returns every profile exposing binary, ordered by slug.
	// Colliding tools are all returned.
	ListByBinary(ctx context.Context, binary string) ([]model.Profile, error)

	// VersionHistory returns all listing versions of slug in order.
	VersionHistory(ctx context.Context, slug string) ([]model.ListingVersion, error)

	// GetCompatibility returns the stored record for (slug, agent).
	GetCompatibility(ctx context.Context, slug, agent string) (*model.CompatibilityRecord, error)

	// ListCompatibility returns all compatibility records of slug.
	ListCompatibility(ctx context.Context, slug string) ([]model.CompatibilityRecord, error)

	// CommandExists reports whether slug currently has an active command id.
	CommandExists(ctx context.Context, slug, id string) (bool, error)

	// ListCuration returns unresolved curation items, oldest first.
	ListCuration(ctx context.Context, opts CurationOpts) ([]model.CurationItem, error)
}

// Store is the persistence interface. It performs no merge logic.
type Store interface {
	Reader

	// Commit writes a whole merged profile and, when v is non-nil, appends v
	// to the ledger in the same transaction. The version number is assigned
	// inside the transaction as max+1 and returned; with a nil v the current
	// version is returned. A profile with Version 0 is a new profile and
	// fails with ErrSlugTaken if the slug already exists.
	Commit(ctx context.Context, p model.Profile, v *model.ListingVersion) (int, error)

	// SaveScores updates the derived popularity and trust signals.
	SaveScores(ctx context.Context, slug string, sc Scores) error

	// UpsertCompatibility stores a compatibility record.
	UpsertCompatibility(ctx context.Context, rec model.CompatibilityRecord) error

	// EnqueueCuration adds an item to the curation queue. Items identical to
	// a pending one are ignored; the return value reports whether the item
	// was added.
	EnqueueCuration(ctx context.Context, item model.CurationItem) (bool, error)

	// Close releases any resources held by the store.
	Close() error
}

// ListOpts controls filtering for ListProfiles.
type ListOpts struct {
	Tag      string // Only profiles carrying this tag.
	Category string // Only profiles in this category.
	Limit    int    // Maximum results; 0 means no limit.
}

// CurationOpts controls filtering for ListCuration.
type CurationOpts struct {
	Kind  model.CurationKind // Filter by kind.
	Slug  string             // Filter by slug.
	Limit int                // Maximum results; 0 means no limit.
}

// Scores are the derived signals of a profile.
type Scores struct {
	Popularity float64 `json:"popularity"`
	Trust      float64 `json:"trust"`
	Downloads  int64   `json:"downloads"`
}
