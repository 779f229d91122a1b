package model

import "time"

// FieldChange is one field-level delta. Before and After are rendered
// values; an empty Before means the field was unset.
type FieldChange struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// ListingVersion is one immutable ledger entry for a profile. Numbers start
// at 1 and are gap-free per slug.
type ListingVersion struct {
	ID            string        `json:"id"`
	Slug          string        `json:"slug"`
	Number        int           `json:"version_number"`
	ChangedFields []string      `json:"changed_fields"`
	Changes       []FieldChange `json:"changes,omitempty"`
	Changelog     string        `json:"changelog"`
	Provenance    Provenance    `json:"provenance"`
	Timestamp     time.Time     `json:"timestamp"`
}

// CurationKind classifies a pending curation item.
type CurationKind string

const (
	CurationAmbiguous         CurationKind = "ambiguous-identity"
	CurationCollision         CurationKind = "collision-exhausted"
	CurationVerifiedConflict  CurationKind = "verified-conflict"
	CurationPossibleDuplicate CurationKind = "possible-duplicate"
)

// CurationItem is a change or record the pipeline refused to guess about
// and left for a human.
type CurationItem struct {
	ID         string        `json:"id"`
	Kind       CurationKind  `json:"kind"`
	Slug       string        `json:"slug,omitempty"`
	Candidate  string        `json:"candidate"`
	Reason     string        `json:"reason"`
	Related    []string      `json:"related,omitempty"`
	Proposed   []FieldChange `json:"proposed,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
}
