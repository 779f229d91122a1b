package pipeline

import (
	"sort"

	"github.com/scbrown/clicat/internal/collision"
	"github.com/scbrown/clicat/internal/model"
	"github.com/scbrown/clicat/internal/normalize"
	"github.com/scbrown/clicat/internal/resolve"
)

// components groups candidates that could touch the same slug: they share a
// binary, repository, package, a possible slug, or an existing profile any
// of those lead to. Each group is processed in input order by one worker,
// so the outcome of a run does not depend on scheduling.
func components(cands []model.Candidate, ix *resolve.Index) [][]int {
	parent := make([]int, len(cands))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if ra < rb {
			parent[rb] = ra
		} else {
			parent[ra] = rb
		}
	}

	owner := make(map[string]int)
	link := func(i int, key string) {
		if j, ok := owner[key]; ok {
			union(i, j)
			return
		}
		owner[key] = i
	}

	for i, c := range cands {
		for _, k := range groupKeys(c, ix) {
			link(i, k)
		}
	}

	groups := make(map[int][]int)
	for i := range cands {
		r := find(i)
		groups[r] = append(groups[r], i)
	}
	out := make([][]int, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func groupKeys(c model.Candidate, ix *resolve.Index) []string {
	var keys []string
	slug := func(s string) {
		if s != "" {
			keys = append(keys, "slug:"+s)
		}
	}

	if c.Provenance == model.ProvenanceCuration {
		slug(c.Slug)
		if c.Repository != "" {
			keys = append(keys, "repo:"+c.Repository)
		}
		if c.Curated != nil {
			for _, b := range c.Curated.Binaries {
				if b = normalize.Binary(b); b != "" {
					keys = append(keys, "bin:"+b)
				}
			}
			for _, pkg := range c.Curated.Packages {
				if id := normalize.PackageID(pkg); id != "" {
					keys = append(keys, "pkg:"+id)
				}
			}
		}
		return keys
	}

	for _, a := range collision.Chain(c) {
		slug(a.Slug)
	}
	if c.Binary != "" {
		keys = append(keys, "bin:"+c.Binary)
		for _, s := range ix.SlugsByBinary(c.Binary) {
			slug(s)
		}
	}
	if c.Repository != "" {
		keys = append(keys, "repo:"+c.Repository)
		for _, s := range ix.SlugsByRepository(c.Repository) {
			slug(s)
		}
	}
	if c.PURL != "" {
		keys = append(keys, "pkg:"+c.PURL)
		for _, s := range ix.SlugsByPackage(c.PURL) {
			slug(s)
		}
	}
	return keys
}
