// Package collision assigns slugs to new identities whose natural slug is
// already held by a different tool.
//
// Suffixes are derived from the record itself (publisher token, then package
// scope), never from counters or randomness, so re-running ingestion over the
// same input always yields the same slugs.
package collision

import (
	"errors"
	"fmt"
	"strings"

	"github.com/scbrown/clicat/internal/model"
	"github.com/scbrown/clicat/internal/normalize"
)

// ErrExhausted is returned when every deterministic slug is taken. The
// record must go to manual curation.
var ErrExhausted = errors.New("no available slug")

// Claimer reserves slugs. resolve.Index implements it.
type Claimer interface {
	Claim(slug string) bool
}

// Strategy names how a slug was derived.
type Strategy string

const (
	StrategyNatural   Strategy = "natural"
	StrategyPublisher Strategy = "publisher"
	StrategyScope     Strategy = "scope"
)

// Assignment is a claimed slug.
type Assignment struct {
	Slug     string
	Strategy Strategy
	Tried    []string
}

// Assign claims the first available slug for c from the chain: natural slug,
// natural slug + publisher token, natural slug + package scope token.
func Assign(c model.Candidate, claims Claimer) (Assignment, error) {
	chain := Chain(c)
	var tried []string
	for _, step := range chain {
		tried = append(tried, step.Slug)
		if claims.Claim(step.Slug) {
			return Assignment{Slug: step.Slug, Strategy: step.Strategy, Tried: tried}, nil
		}
	}
	return Assignment{Tried: tried}, fmt.Errorf("%w for %s (tried %s)", ErrExhausted, c.Key(), strings.Join(tried, ", "))
}

// Chain lists the deterministic slug choices for c in order, without
// duplicates.
func Chain(c model.Candidate) []Assignment {
	var out []Assignment
	seen := make(map[string]bool)
	add := func(slug string, s Strategy) {
		slug = normalize.Slug(slug)
		if slug == "" || seen[slug] {
			return
		}
		seen[slug] = true
		out = append(out, Assignment{Slug: slug, Strategy: s})
	}

	add(c.Slug, StrategyNatural)
	if tok := c.PublisherToken; tok != "" && !hasToken(c.Slug, tok) {
		add(c.Slug+"-"+tok, StrategyPublisher)
	}
	if scope := scopeToken(c.Scope); scope != "" && !hasToken(c.Slug, scope) {
		add(c.Slug+"-"+scope, StrategyScope)
	}
	return out
}

// scopeToken reduces a package scope to its first alphanumeric token.
func scopeToken(scope string) string {
	return normalize.PublisherToken(scope)
}

// hasToken reports whether slug already ends with token, so suffixes never
// stutter ("better-auth" + "auth").
func hasToken(slug, token string) bool {
	return slug == token || strings.HasSuffix(slug, "-"+token)
}
