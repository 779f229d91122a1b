// Package ledger builds listing versions and replays them into diffs.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scbrown/clicat/internal/merge"
	"github.com/scbrown/clicat/internal/model"
)

// ErrRange is returned for an invalid version range.
var ErrRange = errors.New("invalid version range")

// InitialChangelog is the changelog of every profile's first version.
const InitialChangelog = "Initial listing"

// Changelog summarizes changes for a version. number is the version number
// the changelog belongs to.
func Changelog(number int, changes []model.FieldChange) string {
	if number <= 1 {
		return InitialChangelog
	}
	fields := make([]string, len(changes))
	for i, c := range changes {
		fields[i] = c.Field
	}
	merge.SortFields(fields)
	return "Updated " + strings.Join(fields, ", ")
}

// NewVersion builds the pending version for a merge. The store assigns the
// final number on commit; next is the number expected at build time and only
// drives the changelog wording.
func NewVersion(slug string, next int, res merge.Result, prov model.Provenance, now time.Time) *model.ListingVersion {
	if res.Empty() {
		return nil
	}
	changes := append([]model.FieldChange(nil), res.Changes...)
	return &model.ListingVersion{
		ID:            newID(),
		Slug:          slug,
		Number:        next,
		ChangedFields: res.ChangedFields(),
		Changes:       changes,
		Changelog:     Changelog(next, changes),
		Provenance:    prov,
		Timestamp:     now.UTC(),
	}
}

// Diff replays versions in (from, to] and returns the net change per field:
// the earliest Before and the latest After. Fields that end where they
// started are dropped. versions may be in any order.
func Diff(versions []model.ListingVersion, from, to int) ([]model.FieldChange, error) {
	if from < 0 || to < from {
		return nil, fmt.Errorf("%w: %d..%d", ErrRange, from, to)
	}
	latest := 0
	for _, v := range versions {
		if v.Number > latest {
			latest = v.Number
		}
	}
	if to > latest {
		return nil, fmt.Errorf("%w: %d..%d (latest is %d)", ErrRange, from, to, latest)
	}

	inRange := make([]model.ListingVersion, 0, to-from)
	for _, v := range versions {
		if v.Number > from && v.Number <= to {
			inRange = append(inRange, v)
		}
	}
	sort.SliceStable(inRange, func(i, j int) bool { return inRange[i].Number < inRange[j].Number })

	net := make(map[string]*model.FieldChange)
	for _, v := range inRange {
		for _, c := range v.Changes {
			if prev, ok := net[c.Field]; ok {
				prev.After = c.After
				continue
			}
			cc := c
			net[c.Field] = &cc
		}
	}

	fields := make([]string, 0, len(net))
	for f, c := range net {
		if c.Before != c.After {
			fields = append(fields, f)
		}
	}
	merge.SortFields(fields)
	out := make([]model.FieldChange, len(fields))
	for i, f := range fields {
		out[i] = *net[f]
	}
	return out, nil
}

// newID returns a time-ordered id, falling back to a random one.
func newID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
