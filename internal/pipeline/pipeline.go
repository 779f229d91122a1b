// Package pipeline runs ingestion: normalize, resolve identity, assign
// slugs, merge, version and store, with per-slug serialization.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/scbrown/clicat/internal/chain"
	"github.com/scbrown/clicat/internal/collision"
	"github.com/scbrown/clicat/internal/keylock"
	"github.com/scbrown/clicat/internal/ledger"
	"github.com/scbrown/clicat/internal/merge"
	"github.com/scbrown/clicat/internal/model"
	"github.com/scbrown/clicat/internal/normalize"
	"github.com/scbrown/clicat/internal/resolve"
	"github.com/scbrown/clicat/internal/score"
	"github.com/scbrown/clicat/internal/source"
	"github.com/scbrown/clicat/internal/store"
)

// Rejection reasons beyond the normalizer's.
const (
	ReasonMalformed    = "malformed"
	ReasonCommandReuse = "command_reuse"
)

// Options control one run.
type Options struct {
	// Workers bounds parallelism; 0 means runtime.NumCPU().
	Workers int
	// DryRun computes diffs without writing anything.
	DryRun bool
	// Only restricts the run to these slugs when non-empty.
	Only map[string]bool
	// Chains are checked for dangling command references after the run.
	Chains []model.WorkflowChain
}

// Runner executes ingestion runs against a store.
type Runner struct {
	store  store.Store
	scorer *score.Scorer
	log    *slog.Logger
	now    func() time.Time
}

// New returns a Runner. scorer may be nil to skip score refreshes.
func New(st store.Store, scorer *score.Scorer, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Runner{store: st, scorer: scorer, log: log, now: time.Now}
}

// WithClock overrides the clock used for timestamps.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// run is the state of one Run call.
type run struct {
	*Runner
	opts   Options
	report *Report
	index  *resolve.Index
	res    *resolve.Resolver
	locks  keylock.Map

	mu      sync.Mutex
	cache   map[string]*model.Profile
	removed map[string]bool
}

// Run ingests items. The returned error is structural (the catalog could
// not be read, or ctx was cancelled); per-record problems are in the report.
func (r *Runner) Run(ctx context.Context, items []source.Item, opts Options) (*Report, error) {
	existing, err := r.store.ListProfiles(ctx, store.ListOpts{})
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	ix := resolve.NewIndexFrom(existing)
	cache := make(map[string]*model.Profile, len(existing))
	for i := range existing {
		cache[existing[i].Slug] = &existing[i]
	}

	st := &run{
		Runner:  r,
		opts:    opts,
		report:  &Report{DryRun: opts.DryRun, Total: len(items)},
		index:   ix,
		res:     resolve.New(ix),
		cache:   cache,
		removed: make(map[string]bool),
	}

	cands := make([]model.Candidate, 0, len(items))
	pos := make([]int, 0, len(items))
	for _, it := range items {
		c, err := candidateFor(it)
		if err != nil {
			st.reject(it.Pos, "", err)
			continue
		}
		cands = append(cands, c)
		pos = append(pos, it.Pos)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	groups := components(cands, ix)
	r.log.Info("ingestion started", "records", len(items), "candidates", len(cands),
		"groups", len(groups), "workers", workers, "dry_run", opts.DryRun)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, grp := range groups {
		g.Go(func() error {
			for _, i := range grp {
				if err := gctx.Err(); err != nil {
					return err
				}
				st.process(gctx, pos[i], cands[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(opts.Chains) > 0 {
		if err := st.checkChains(ctx); err != nil {
			return nil, err
		}
	}

	st.report.finish()
	r.log.Info("ingestion finished", "summary", st.report.Summary())
	return st.report, nil
}

// candidateFor turns an input item into a candidate or a rejection.
func candidateFor(it source.Item) (model.Candidate, error) {
	switch {
	case it.Err != nil:
		return model.Candidate{}, &normalize.RejectError{Reason: ReasonMalformed, Err: it.Err}
	case it.Curated != nil:
		p := it.Curated
		if normalize.Slug(p.Slug) != p.Slug {
			return model.Candidate{}, &normalize.RejectError{Reason: normalize.ReasonInvalidSlug, Slug: p.Slug}
		}
		return model.Candidate{
			Provenance:  model.ProvenanceCuration,
			Slug:        p.Slug,
			Name:        p.Name,
			Binary:      p.PrimaryBinary(),
			Publisher:   p.Publisher,
			Description: p.Description,
			Repository:  normalize.RepositoryURL(p.Repository),
			Curated:     p,
		}, nil
	case it.Raw != nil:
		return normalize.Normalize(*it.Raw)
	}
	return model.Candidate{}, &normalize.RejectError{Reason: ReasonMalformed}
}

// process handles one candidate. All outcomes land in the report.
func (st *run) process(ctx context.Context, pos int, c model.Candidate) {
	log := st.log.With("pos", pos, "candidate", c.Key())

	res := st.res.Resolve(c)
	if res.Outcome == resolve.Ambiguous {
		log.Warn("ambiguous identity", "rule", string(res.Rule), "slugs", strings.Join(res.Candidates, ","))
		st.enqueue(ctx, model.CurationItem{
			Kind:      model.CurationAmbiguous,
			Candidate: c.Key(),
			Reason:    res.Err().Error(),
			Related:   res.Candidates,
		})
		return
	}

	slug := res.Slug
	claimed := false
	if res.Outcome == resolve.NewIdentity && c.Provenance == model.ProvenanceScrape {
		if !st.wantedAny(collision.Chain(c)) {
			st.skip()
			return
		}
		a, err := collision.Assign(c, st.index)
		if errors.Is(err, collision.ErrExhausted) {
			log.Warn("slug collision exhausted", "tried", strings.Join(a.Tried, ","))
			st.enqueue(ctx, model.CurationItem{
				Kind:      model.CurationCollision,
				Candidate: c.Key(),
				Reason:    err.Error(),
				Related:   a.Tried,
			})
			return
		}
		if err != nil {
			st.fail(slug, err)
			return
		}
		slug, claimed = a.Slug, true
		if a.Strategy != collision.StrategyNatural {
			log.Info("slug disambiguated", "slug", slug, "strategy", string(a.Strategy))
		}
	}
	if !claimed && !st.wanted(slug) {
		st.skip()
		return
	}
	log = log.With("slug", slug)

	if res.PossibleDuplicate != "" {
		st.enqueue(ctx, model.CurationItem{
			Kind:      model.CurationPossibleDuplicate,
			Slug:      slug,
			Candidate: c.Key(),
			Reason:    "description nearly identical to a profile sharing the binary",
			Related:   []string{res.PossibleDuplicate},
		})
	}

	unlock := st.locks.Lock(slug)
	defer unlock()

	prev, err := st.current(ctx, slug)
	if err != nil {
		st.fail(slug, err)
		st.release(slug, claimed)
		return
	}

	now := st.now()
	m, err := merge.Merge(prev, slug, c, now)
	if errors.Is(err, merge.ErrCommandReuse) {
		st.reject(pos, slug, &normalize.RejectError{Reason: ReasonCommandReuse, Slug: slug, Err: err})
		st.release(slug, claimed)
		return
	}
	if err != nil {
		st.fail(slug, err)
		st.release(slug, claimed)
		return
	}

	if len(m.Proposed) > 0 {
		log.Info("verified fields protected", "fields", len(m.Proposed))
		st.enqueue(ctx, model.CurationItem{
			Kind:      model.CurationVerifiedConflict,
			Slug:      slug,
			Candidate: c.Key(),
			Reason:    "scrape proposes changes to a verified profile",
			Proposed:  m.Proposed,
		})
	}

	if m.Empty() {
		st.report.add(func(r *Report) { r.Unchanged = append(r.Unchanged, slug) })
		if prev != nil && c.Downloads > 0 && c.Downloads != prev.Downloads {
			st.refreshScores(ctx, log, slug, c.Downloads)
		}
		return
	}

	next := 1
	if prev != nil {
		next = prev.Version + 1
	}
	v := ledger.NewVersion(slug, next, m, c.Provenance, now)
	p := m.Profile

	if !st.opts.DryRun {
		n, err := st.store.Commit(ctx, p, v)
		if err != nil {
			log.Error("commit failed", "error", err)
			st.fail(slug, err)
			st.release(slug, claimed)
			return
		}
		next = n
	}
	p.Version = next
	v.Number = next

	st.mu.Lock()
	st.cache[slug] = &p
	if len(m.Removed) > 0 {
		st.removed[slug] = true
	}
	st.mu.Unlock()
	st.index.Put(p)

	st.report.add(func(r *Report) {
		if m.Created {
			r.Created = append(r.Created, slug)
		} else {
			r.Updated = append(r.Updated, slug)
		}
		r.Changes = append(r.Changes, Change{
			Slug: slug, Version: next, Created: m.Created, Changelog: v.Changelog, Changes: m.Changes,
		})
	})
	log.Debug("profile written", "version", next, "fields", strings.Join(m.ChangedFields(), ","))

	downloads := int64(-1)
	if c.Downloads > 0 {
		downloads = c.Downloads
	}
	st.refreshScores(ctx, log, slug, downloads)
}

// current returns the latest known state of slug, or nil for a new slug.
func (st *run) current(ctx context.Context, slug string) (*model.Profile, error) {
	st.mu.Lock()
	p, ok := st.cache[slug]
	st.mu.Unlock()
	if ok {
		c := p.Clone()
		return &c, nil
	}
	if st.opts.DryRun {
		return nil, nil
	}
	p, err := st.store.GetProfile(ctx, slug)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", slug, err)
	}
	return p, nil
}

func (st *run) refreshScores(ctx context.Context, log *slog.Logger, slug string, downloads int64) {
	if st.scorer == nil || st.opts.DryRun {
		return
	}
	if _, err := st.scorer.Refresh(ctx, slug, downloads); err != nil {
		log.Warn("score refresh failed", "error", err)
	}
}

func (st *run) wanted(slug string) bool {
	return len(st.opts.Only) == 0 || st.opts.Only[slug]
}

func (st *run) wantedAny(chain []collision.Assignment) bool {
	if len(st.opts.Only) == 0 {
		return true
	}
	for _, a := range chain {
		if st.opts.Only[a.Slug] {
			return true
		}
	}
	return false
}

func (st *run) release(slug string, claimed bool) {
	if claimed {
		st.index.Release(slug)
	}
}

func (st *run) skip() {
	st.report.add(func(r *Report) { r.Skipped++ })
}

func (st *run) reject(pos int, slug string, err error) {
	reason := ReasonMalformed
	var rej *normalize.RejectError
	if errors.As(err, &rej) {
		reason = rej.Reason
		if slug == "" {
			slug = rej.Slug
		}
	}
	st.log.Warn("record rejected", "pos", pos, "reason", reason, "error", err)
	st.report.add(func(r *Report) {
		r.Rejected = append(r.Rejected, Rejection{Pos: pos, Slug: slug, Reason: reason, Error: err.Error()})
	})
}

func (st *run) fail(slug string, err error) {
	st.log.Error("slug failed", "slug", slug, "error", err)
	st.report.add(func(r *Report) {
		r.Failed = append(r.Failed, Failure{Slug: slug, Error: err.Error()})
	})
}

// enqueue records a curation item and, outside dry runs, persists it.
func (st *run) enqueue(ctx context.Context, item model.CurationItem) {
	item.ID = newID()
	item.CreatedAt = st.now()
	st.report.add(func(r *Report) { r.Queued = append(r.Queued, item) })
	if st.opts.DryRun {
		return
	}
	added, err := st.store.EnqueueCuration(ctx, item)
	if err != nil {
		st.log.Error("enqueue curation failed", "kind", string(item.Kind), "error", err)
		return
	}
	if added {
		st.log.Info("queued for curation", "kind", string(item.Kind), "slug", item.Slug, "candidate", item.Candidate)
	}
}

// checkChains flags chain steps that reference commands removed during the
// run, reading through the run's own view of the catalog.
func (st *run) checkChains(ctx context.Context) error {
	only := make(map[string]bool)
	st.mu.Lock()
	for slug := range st.removed {
		only[slug] = true
	}
	st.mu.Unlock()
	if len(only) == 0 {
		return nil
	}
	broken, err := chain.Check(ctx, runView{st}, st.opts.Chains, only)
	if err != nil {
		return fmt.Errorf("check chains: %w", err)
	}
	for _, b := range broken {
		st.log.Warn("workflow chain references a missing command", "chain", b.Chain, "step", b.Step,
			"slug", b.Slug, "command", b.CommandID)
	}
	st.report.Broken = broken
	return nil
}

// runView answers command lookups from the run's cache, so dry runs see
// their own unwritten changes.
type runView struct{ st *run }

func (v runView) CommandExists(ctx context.Context, slug, id string) (bool, error) {
	p, err := v.st.current(ctx, slug)
	if err != nil || p == nil {
		return false, err
	}
	return p.HasCommand(id), nil
}

func newID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
