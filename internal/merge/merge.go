// Package merge folds an accepted candidate into a profile and reports the
// field-level diff.
//
// Scalar fields take the incoming value unless the profile is verified and
// the change comes from a scrape; such changes are returned as proposals for
// human review instead. Multi-valued fields are always unioned by key.
package merge

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/scbrown/clicat/internal/model"
	"github.com/scbrown/clicat/internal/normalize"
)

// ErrCommandReuse is returned when a curated command reuses the id of a
// soft-deleted command for a different command.
var ErrCommandReuse = errors.New("command id reuse")

// Result is the outcome of one merge.
type Result struct {
	Profile model.Profile
	// Changes are the applied field changes, in canonical field order.
	Changes []model.FieldChange
	// Proposed are scalar changes blocked by verified-field protection.
	Proposed []model.FieldChange
	// Created is true when the merge started from an empty template.
	Created bool
	// Removed lists command ids soft-deleted by this merge.
	Removed []string
}

// Empty reports whether nothing was applied.
func (r Result) Empty() bool {
	return len(r.Changes) == 0
}

// ChangedFields returns the names of the applied changes.
func (r Result) ChangedFields() []string {
	out := make([]string, len(r.Changes))
	for i, c := range r.Changes {
		out[i] = c.Field
	}
	return out
}

// Template returns the empty profile a new slug starts from.
func Template(slug string, now time.Time) model.Profile {
	return model.Profile{
		Slug:         slug,
		Verification: model.Unverified,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Merge applies c to prev (nil for a new slug) and returns the new state.
// prev is never modified.
func Merge(prev *model.Profile, slug string, c model.Candidate, now time.Time) (Result, error) {
	var before model.Profile
	created := prev == nil
	if created {
		before = Template(slug, now)
	} else {
		before = prev.Clone()
	}
	next := before.Clone()

	var res Result
	switch c.Provenance {
	case model.ProvenanceCuration:
		if c.Curated == nil {
			return Result{}, fmt.Errorf("curation candidate %s has no profile", c.Slug)
		}
		removed, err := applyCuration(&next, *c.Curated, now)
		if err != nil {
			return Result{}, err
		}
		res.Removed = removed
	default:
		res.Proposed = applyScrape(&next, c)
	}

	res.Changes = Diff(before, next)
	if created && len(res.Changes) == 0 {
		// A new profile always yields its first version.
		res.Changes = []model.FieldChange{{Field: FieldBinaries, After: render(FieldBinaries, next)}}
	}
	if len(res.Changes) > 0 {
		next.UpdatedAt = now
	}
	res.Profile = next
	res.Created = created
	return res, nil
}

// applyScrape merges a scrape candidate and returns blocked scalar changes.
func applyScrape(p *model.Profile, c model.Candidate) []model.FieldChange {
	protected := p.Verification == model.Verified

	var proposed []model.FieldChange
	setScalar := func(field string, dst *string, v string) {
		if v == "" || *dst == v {
			return
		}
		if protected {
			proposed = append(proposed, model.FieldChange{Field: field, Before: *dst, After: v})
			return
		}
		*dst = v
	}

	setScalar(FieldName, &p.Name, c.Name)
	setScalar(FieldDescription, &p.Description, c.Description)
	setScalar(FieldWebsite, &p.Website, c.Website)
	setScalar(FieldRepository, &p.Repository, c.Repository)
	setScalar(FieldDocs, &p.Docs, c.Docs)
	setScalar(FieldLatestVersion, &p.LatestVersion, c.Version)
	if c.Category != "" {
		cats := model.SortedSet([]string{c.Category})
		if !equalStrings(p.Categories, cats) {
			if protected {
				proposed = append(proposed, model.FieldChange{
					Field: FieldCategories, Before: joinList(p.Categories), After: joinList(cats),
				})
			} else {
				p.Categories = cats
			}
		}
	}
	// Publisher is an identity signal: a scrape may fill it, never flip it.
	if p.Publisher == "" {
		p.Publisher = c.Publisher
	}

	p.Tags = model.SortedSet(p.Tags, c.Tags)
	p.Binaries = appendUnique(p.Binaries, c.Binary)
	if c.PURL != "" {
		p.Packages = model.SortedSet(p.Packages, []string{c.PURL})
	}
	if c.Install != nil {
		var blocked *model.FieldChange
		p.Install, blocked = upsertRecipe(p.Install, *c.Install, protected)
		if blocked != nil {
			proposed = append(proposed, *blocked)
		}
	}
	return proposed
}

// applyCuration applies an authoritative curated profile.
func applyCuration(p *model.Profile, cur model.Profile, now time.Time) ([]string, error) {
	setIf := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setIf(&p.Name, cur.Name)
	setIf(&p.Publisher, cur.Publisher)
	setIf(&p.Description, cur.Description)
	setIf(&p.Website, cur.Website)
	if repo := normalize.RepositoryURL(cur.Repository); repo != "" {
		p.Repository = repo
	} else {
		setIf(&p.Repository, strings.TrimSpace(cur.Repository))
	}
	setIf(&p.Docs, cur.Docs)
	setIf(&p.LatestVersion, cur.LatestVersion)
	if len(cur.Categories) > 0 {
		p.Categories = model.SortedSet(cur.Categories)
	}
	if cur.Verification.Valid() {
		p.Verification = cur.Verification
	}
	if len(cur.Permissions) > 0 {
		p.Permissions = model.SortedSet(cur.Permissions)
	}

	p.Tags = model.SortedSet(p.Tags, cur.Tags)
	for _, b := range cur.Binaries {
		p.Binaries = appendUnique(p.Binaries, strings.ToLower(strings.TrimSpace(b)))
	}
	pkgs := make([]string, 0, len(cur.Packages))
	for _, pkg := range cur.Packages {
		if id := normalize.PackageID(pkg); id != "" {
			pkgs = append(pkgs, id)
		}
	}
	p.Packages = model.SortedSet(p.Packages, pkgs)
	for _, r := range cur.Install {
		p.Install, _ = upsertRecipe(p.Install, r, false)
	}
	if cur.Auth != nil {
		a := *cur.Auth
		sort.SliceStable(a.Steps, func(i, j int) bool { return a.Steps[i].Order < a.Steps[j].Order })
		p.Auth = &a
	}
	if cur.Commands == nil {
		return nil, nil
	}
	return mergeCommands(p, cur.Commands, now)
}

// mergeCommands upserts curated commands and soft-deletes active commands
// the curated set no longer lists. Deleted ids are never reused for a
// different command.
func mergeCommands(p *model.Profile, incoming []model.CommandSpec, now time.Time) ([]string, error) {
	existing := make(map[string]int, len(p.Commands))
	for i, c := range p.Commands {
		existing[c.ID] = i
	}
	wanted := make(map[string]bool, len(incoming))
	for _, in := range incoming {
		if in.ID == "" {
			return nil, fmt.Errorf("curated command %q has no id", in.Command)
		}
		wanted[in.ID] = true
		in = in.Clone()
		in.DeletedAt = nil
		i, ok := existing[in.ID]
		if !ok {
			p.Commands = append(p.Commands, in)
			existing[in.ID] = len(p.Commands) - 1
			continue
		}
		old := p.Commands[i]
		if old.DeletedAt != nil && old.Command != in.Command {
			return nil, fmt.Errorf("%w: %s/%s was %q", ErrCommandReuse, p.Slug, in.ID, old.Command)
		}
		p.Commands[i] = in
	}

	var removed []string
	for i, c := range p.Commands {
		if c.DeletedAt == nil && !wanted[c.ID] {
			t := now
			p.Commands[i].DeletedAt = &t
			removed = append(removed, c.ID)
		}
	}
	sort.SliceStable(p.Commands, func(i, j int) bool { return p.Commands[i].ID < p.Commands[j].ID })
	sort.Strings(removed)
	return removed, nil
}

// upsertRecipe inserts r keyed by (os, package manager). An existing recipe
// with the same key is replaced unless protected, in which case the change is
// returned as a proposal. Recipes stay sorted by key.
func upsertRecipe(recipes []model.InstallRecipe, r model.InstallRecipe, protected bool) ([]model.InstallRecipe, *model.FieldChange) {
	out := append([]model.InstallRecipe(nil), recipes...)
	for i, ex := range out {
		if ex.Key() != r.Key() {
			continue
		}
		if ex.Command == r.Command && ex.Checksum == r.Checksum && equalStrings(ex.Dependencies, r.Dependencies) {
			return out, nil
		}
		if protected {
			return out, &model.FieldChange{Field: FieldInstall, Before: renderRecipe(ex), After: renderRecipe(r)}
		}
		out[i] = r
		return out, nil
	}
	out = append(out, r)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
