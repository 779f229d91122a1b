// Package resolve decides whether a normalized candidate describes a tool
// already in the catalog.
//
// Signals are evaluated in a fixed order and the first decisive one wins:
//
//  1. canonical repository URL
//  2. a package name previously ingested into the profile
//  3. binary name and publisher together
//
// Anything else is a new identity. Binary name alone never merges.
package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/scbrown/clicat/internal/model"
	"github.com/scbrown/clicat/internal/normalize"
	"github.com/scbrown/clicat/internal/similarity"
)

// ErrAmbiguous is returned for candidates matching several identities
// equally well.
var ErrAmbiguous = errors.New("ambiguous identity")

// Outcome is the kind of resolution.
type Outcome int

const (
	NewIdentity Outcome = iota
	Match
	Ambiguous
)

func (o Outcome) String() string {
	switch o {
	case Match:
		return "match"
	case Ambiguous:
		return "ambiguous"
	default:
		return "new"
	}
}

// Rule names the signal that decided a resolution.
type Rule string

const (
	RuleNone            Rule = ""
	RuleRepository      Rule = "repository"
	RulePackage         Rule = "package"
	RuleBinaryPublisher Rule = "binary+publisher"
	RuleSlug            Rule = "slug"
)

// DefaultDuplicateThreshold is the description similarity above which a new
// identity sharing a binary with an existing profile is flagged for review.
const DefaultDuplicateThreshold = 0.85

// Resolution is the result of resolving one candidate.
type Resolution struct {
	Outcome Outcome
	Rule    Rule
	// Slug is the matched slug for Match. For NewIdentity it is empty unless
	// the candidate is curated, in which case it is the curated slug.
	Slug string
	// Candidates lists the tied slugs for Ambiguous.
	Candidates []string
	// PossibleDuplicate names an existing profile that shares the binary and
	// has a near-identical description. It never changes the outcome.
	PossibleDuplicate string
}

// Err returns ErrAmbiguous wrapped with the tied slugs, or nil.
func (r Resolution) Err() error {
	if r.Outcome != Ambiguous {
		return nil
	}
	return fmt.Errorf("%w: %s matches %s", ErrAmbiguous, r.Rule, strings.Join(r.Candidates, ", "))
}

// Resolver resolves candidates against an Index.
type Resolver struct {
	index     *Index
	threshold float64
}

// New returns a Resolver over ix.
func New(ix *Index) *Resolver {
	return &Resolver{index: ix, threshold: DefaultDuplicateThreshold}
}

// WithDuplicateThreshold overrides the possible-duplicate threshold.
func (r *Resolver) WithDuplicateThreshold(t float64) *Resolver {
	r.threshold = t
	return r
}

// Resolve returns Match, NewIdentity or Ambiguous for c.
func (r *Resolver) Resolve(c model.Candidate) Resolution {
	// Curation events name their slug; they are the identity.
	if c.Provenance == model.ProvenanceCuration {
		if _, ok := r.index.Entry(c.Slug); ok {
			return Resolution{Outcome: Match, Rule: RuleSlug, Slug: c.Slug}
		}
		return Resolution{Outcome: NewIdentity, Rule: RuleSlug, Slug: c.Slug}
	}

	if res, ok := decide(RuleRepository, r.index.SlugsByRepository(c.Repository)); ok {
		return res
	}
	if res, ok := decide(RulePackage, r.index.SlugsByPackage(c.PURL)); ok {
		return res
	}
	if res, ok := decide(RuleBinaryPublisher, r.byBinaryAndPublisher(c)); ok {
		return res
	}

	return Resolution{Outcome: NewIdentity, PossibleDuplicate: r.possibleDuplicate(c)}
}

// decide turns one signal's matches into a resolution. No matches means the
// signal is not decisive and the next one is tried.
func decide(rule Rule, slugs []string) (Resolution, bool) {
	switch len(slugs) {
	case 0:
		return Resolution{}, false
	case 1:
		return Resolution{Outcome: Match, Rule: rule, Slug: slugs[0]}, true
	default:
		return Resolution{Outcome: Ambiguous, Rule: rule, Candidates: slugs}, true
	}
}

func (r *Resolver) byBinaryAndPublisher(c model.Candidate) []string {
	pub := normalize.Slug(c.Publisher)
	if pub == "" {
		return nil
	}
	var out []string
	for _, slug := range r.index.SlugsByBinary(c.Binary) {
		if e, ok := r.index.Entry(slug); ok && e.Publisher == pub {
			out = append(out, slug)
		}
	}
	return out
}

func (r *Resolver) possibleDuplicate(c model.Candidate) string {
	if c.Description == "" {
		return ""
	}
	best, bestScore := "", 0.0
	for _, slug := range r.index.SlugsByBinary(c.Binary) {
		e, ok := r.index.Entry(slug)
		if !ok {
			continue
		}
		if s := similarity.Score(c.Description, e.Description); s >= r.threshold && s > bestScore {
			best, bestScore = slug, s
		}
	}
	return best
}
