package resolve

import (
	"sort"
	"sync"

	"github.com/scbrown/clicat/internal/model"
	"github.com/scbrown/clicat/internal/normalize"
)

// Entry is the identity-relevant projection of a profile.
type Entry struct {
	Slug        string
	Publisher   string // normalized publisher key
	Description string
	Repository  string
	Binaries    []string
	Packages    []string
}

// Index answers the lookups identity resolution and collision handling need
// (binary → slugs, repository → slugs, package → slugs, slug taken?) without
// scanning the catalog. It is safe for concurrent use.
type Index struct {
	mu        sync.RWMutex
	entries   map[string]Entry
	claimed   map[string]bool
	byBinary  map[string]map[string]bool
	byRepo    map[string]map[string]bool
	byPackage map[string]map[string]bool
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		entries:   make(map[string]Entry),
		claimed:   make(map[string]bool),
		byBinary:  make(map[string]map[string]bool),
		byRepo:    make(map[string]map[string]bool),
		byPackage: make(map[string]map[string]bool),
	}
}

// NewIndexFrom builds an index over existing profiles.
func NewIndexFrom(profiles []model.Profile) *Index {
	ix := NewIndex()
	for _, p := range profiles {
		ix.Put(p)
	}
	return ix
}

// EntryFor projects a profile into an index entry.
func EntryFor(p model.Profile) Entry {
	return Entry{
		Slug:        p.Slug,
		Publisher:   normalize.Slug(p.Publisher),
		Description: p.Description,
		Repository:  p.Repository,
		Binaries:    append([]string(nil), p.Binaries...),
		Packages:    append([]string(nil), p.Packages...),
	}
}

// Put inserts or replaces the entry for p.Slug.
func (ix *Index) Put(p model.Profile) {
	e := EntryFor(p)
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if old, ok := ix.entries[e.Slug]; ok {
		ix.unlink(old)
	}
	ix.entries[e.Slug] = e
	ix.claimed[e.Slug] = true
	for _, b := range e.Binaries {
		link(ix.byBinary, b, e.Slug)
	}
	for _, pkg := range e.Packages {
		link(ix.byPackage, pkg, e.Slug)
	}
	if e.Repository != "" {
		link(ix.byRepo, e.Repository, e.Slug)
	}
}

func (ix *Index) unlink(e Entry) {
	for _, b := range e.Binaries {
		delete(ix.byBinary[b], e.Slug)
	}
	for _, pkg := range e.Packages {
		delete(ix.byPackage[pkg], e.Slug)
	}
	if e.Repository != "" {
		delete(ix.byRepo[e.Repository], e.Slug)
	}
}

func link(m map[string]map[string]bool, key, slug string) {
	if key == "" {
		return
	}
	set := m[key]
	if set == nil {
		set = make(map[string]bool)
		m[key] = set
	}
	set[slug] = true
}

// Claim reserves slug if nobody holds it and reports whether it succeeded.
// Claims stop two new identities in one run from taking the same slug.
func (ix *Index) Claim(slug string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.claimed[slug] {
		return false
	}
	ix.claimed[slug] = true
	return true
}

// Release drops a claim that never turned into a profile.
func (ix *Index) Release(slug string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.entries[slug]; !ok {
		delete(ix.claimed, slug)
	}
}

// Taken reports whether slug is held by a profile or a pending claim.
func (ix *Index) Taken(slug string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.claimed[slug]
}

// Entry returns the entry for slug.
func (ix *Index) Entry(slug string) (Entry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	e, ok := ix.entries[slug]
	return e, ok
}

// Len returns the number of indexed profiles.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// SlugsByBinary returns every slug exposing binary, sorted. Collisions are
// expected: many unrelated tools ship a binary called "cli".
func (ix *Index) SlugsByBinary(binary string) []string {
	return ix.lookup(ix.byBinary, binary)
}

// SlugsByRepository returns the slugs whose canonical repository is repo.
func (ix *Index) SlugsByRepository(repo string) []string {
	return ix.lookup(ix.byRepo, repo)
}

// SlugsByPackage returns the slugs that have ingested package purl.
func (ix *Index) SlugsByPackage(purl string) []string {
	return ix.lookup(ix.byPackage, purl)
}

func (ix *Index) lookup(m map[string]map[string]bool, key string) []string {
	if key == "" {
		return nil
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	set := m[key]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
