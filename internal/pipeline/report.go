package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/scbrown/clicat/internal/chain"
	"github.com/scbrown/clicat/internal/model"
)

// Rejection is one record that could not be ingested.
type Rejection struct {
	Pos    int    `json:"pos"`
	Slug   string `json:"slug,omitempty"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

// Failure is a slug whose transaction failed.
type Failure struct {
	Slug  string `json:"slug"`
	Error string `json:"error"`
}

// Change is one applied (or, in a dry run, would-be) profile write.
type Change struct {
	Slug      string              `json:"slug"`
	Version   int                 `json:"version"`
	Created   bool                `json:"created"`
	Changelog string              `json:"changelog"`
	Changes   []model.FieldChange `json:"changes"`
}

// Report summarizes one ingestion run. Slices are sorted once the run ends.
type Report struct {
	DryRun    bool                 `json:"dry_run"`
	Total     int                  `json:"total"`
	Skipped   int                  `json:"skipped"`
	Created   []string             `json:"created"`
	Updated   []string             `json:"updated"`
	Unchanged []string             `json:"unchanged"`
	Changes   []Change             `json:"changes"`
	Rejected  []Rejection          `json:"rejected"`
	Queued    []model.CurationItem `json:"queued"`
	Failed    []Failure            `json:"failed"`
	Broken    []chain.Broken       `json:"broken_chains,omitempty"`

	mu sync.Mutex
}

func (r *Report) add(fn func(*Report)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r)
}

// Count returns the number of queued items of the given kind.
func (r *Report) Count(kind model.CurationKind) int {
	n := 0
	for _, q := range r.Queued {
		if q.Kind == kind {
			n++
		}
	}
	return n
}

// Partial reports whether anything needs attention: rejected records,
// blocking curation items or failed slugs. Possible duplicates are advisory.
func (r *Report) Partial() bool {
	return len(r.Rejected) > 0 || len(r.Failed) > 0 ||
		len(r.Queued) > r.Count(model.CurationPossibleDuplicate)
}

// Summary is a one-line count summary.
func (r *Report) Summary() string {
	parts := []string{
		fmt.Sprintf("%d records", r.Total),
		fmt.Sprintf("%d created", len(r.Created)),
		fmt.Sprintf("%d updated", len(r.Updated)),
		fmt.Sprintf("%d unchanged", len(r.Unchanged)),
	}
	add := func(n int, label string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, label))
		}
	}
	add(r.Skipped, "skipped")
	add(len(r.Rejected), "rejected")
	add(r.Count(model.CurationAmbiguous), "ambiguous")
	add(r.Count(model.CurationCollision), "collision-exhausted")
	add(r.Count(model.CurationVerifiedConflict), "verified conflicts")
	add(r.Count(model.CurationPossibleDuplicate), "possible duplicates")
	add(len(r.Failed), "failed")
	add(len(r.Broken), "broken chain refs")
	s := strings.Join(parts, ", ")
	if r.DryRun {
		s += " (dry run)"
	}
	return s
}

func (r *Report) finish() {
	created := setOf(r.Created)
	updated := setOf(r.Updated)
	for slug := range created {
		delete(updated, slug)
	}
	unchanged := setOf(r.Unchanged)
	for slug := range unchanged {
		if created[slug] || updated[slug] {
			delete(unchanged, slug)
		}
	}
	r.Created, r.Updated, r.Unchanged = sorted(created), sorted(updated), sorted(unchanged)

	sort.SliceStable(r.Changes, func(i, j int) bool {
		if r.Changes[i].Slug != r.Changes[j].Slug {
			return r.Changes[i].Slug < r.Changes[j].Slug
		}
		return r.Changes[i].Version < r.Changes[j].Version
	})
	sort.SliceStable(r.Rejected, func(i, j int) bool { return r.Rejected[i].Pos < r.Rejected[j].Pos })
	sort.SliceStable(r.Queued, func(i, j int) bool {
		a, b := r.Queued[i], r.Queued[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Slug != b.Slug {
			return a.Slug < b.Slug
		}
		return a.Candidate < b.Candidate
	})
	sort.SliceStable(r.Failed, func(i, j int) bool { return r.Failed[i].Slug < r.Failed[j].Slug })
}

func setOf(s []string) map[string]bool {
	m := make(map[string]bool, len(s))
	for _, v := range s {
		m[v] = true
	}
	return m
}

func sorted(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
