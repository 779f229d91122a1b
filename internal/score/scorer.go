package score

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/scbrown/clicat/internal/keylock"
	"github.com/scbrown/clicat/internal/model"
	"github.com/scbrown/clicat/internal/store"
)

var (
	// ErrUnknownSlug is returned for verification results about a slug the
	// catalog does not hold.
	ErrUnknownSlug = errors.New("unknown slug")
	// ErrUnknownCommand is returned when a result names a command the
	// profile does not have.
	ErrUnknownCommand = errors.New("unknown command")
)

// Store is the subset of store.Store the scorer needs.
type Store interface {
	GetProfile(ctx context.Context, slug string) (*model.Profile, error)
	ListProfiles(ctx context.Context, opts store.ListOpts) ([]model.Profile, error)
	GetCompatibility(ctx context.Context, slug, agent string) (*model.CompatibilityRecord, error)
	UpsertCompatibility(ctx context.Context, rec model.CompatibilityRecord) error
	SaveScores(ctx context.Context, slug string, sc store.Scores) error
}

// Scorer applies verification results and recomputes profile scores.
type Scorer struct {
	store Store
	log   *slog.Logger
	now   func() time.Time

	slugs keylock.Map
	pairs keylock.Map
}

// New returns a Scorer over st. A nil logger discards output.
func New(st Store, log *slog.Logger) *Scorer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Scorer{store: st, log: log, now: time.Now}
}

// WithClock overrides the clock used for results without a timestamp.
func (s *Scorer) WithClock(now func() time.Time) *Scorer {
	s.now = now
	return s
}

// Record folds one verification result into the (slug, agent) record.
// Results for the same pair are applied one at a time.
func (s *Scorer) Record(ctx context.Context, r model.VerificationResult) (model.CompatibilityRecord, error) {
	r.Agent = strings.TrimSpace(r.Agent)
	if r.Slug == "" || r.Agent == "" {
		return model.CompatibilityRecord{}, fmt.Errorf("verification result needs slug and agent")
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = s.now()
	}

	unlock := s.pairs.Lock(r.Slug + "\x00" + r.Agent)
	defer unlock()

	p, err := s.store.GetProfile(ctx, r.Slug)
	if errors.Is(err, store.ErrNotFound) {
		return model.CompatibilityRecord{}, fmt.Errorf("%w: %s", ErrUnknownSlug, r.Slug)
	}
	if err != nil {
		return model.CompatibilityRecord{}, err
	}
	if r.CommandID != "" && len(p.ActiveCommands()) > 0 && !p.HasCommand(r.CommandID) {
		return model.CompatibilityRecord{}, fmt.Errorf("%w: %s/%s", ErrUnknownCommand, r.Slug, r.CommandID)
	}

	prev := model.CompatibilityRecord{Slug: r.Slug, Agent: r.Agent}
	stored, err := s.store.GetCompatibility(ctx, r.Slug, r.Agent)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return model.CompatibilityRecord{}, err
	default:
		prev = *stored
	}

	next := CompatUpdate(prev, r.Success, r.Timestamp)
	if err := s.store.UpsertCompatibility(ctx, next); err != nil {
		return model.CompatibilityRecord{}, err
	}
	if next.Status != prev.Status {
		s.log.Info("compatibility status changed",
			"slug", r.Slug, "agent", r.Agent, "from", string(prev.Status), "to", string(next.Status),
			"rate", next.SuccessRate)
	}
	return next, nil
}

// Refresh recomputes popularity and trust for slug. downloads replaces the
// stored usage proxy when non-negative.
func (s *Scorer) Refresh(ctx context.Context, slug string, downloads int64) (store.Scores, error) {
	unlock := s.slugs.Lock(slug)
	defer unlock()

	p, err := s.store.GetProfile(ctx, slug)
	if err != nil {
		return store.Scores{}, err
	}
	sc := Compute(*p, downloads)
	if err := s.store.SaveScores(ctx, slug, sc); err != nil {
		return store.Scores{}, err
	}
	s.log.Debug("scores refreshed", "slug", slug, "popularity", sc.Popularity, "trust", sc.Trust)
	return sc, nil
}

// Compute returns the smoothed scores p should hold after a refresh.
func Compute(p model.Profile, downloads int64) store.Scores {
	if downloads < 0 {
		downloads = p.Downloads
	}
	pop := Popularity(downloads)
	return store.Scores{
		Popularity: Smooth(p.Popularity, pop),
		Trust:      Smooth(p.Trust, Trust(p, pop)),
		Downloads:  downloads,
	}
}

// RefreshAll recomputes scores for the whole catalog and returns the number
// of profiles updated. Failures are logged and counted, not fatal.
func (s *Scorer) RefreshAll(ctx context.Context) (int, error) {
	profiles, err := s.store.ListProfiles(ctx, store.ListOpts{})
	if err != nil {
		return 0, fmt.Errorf("list profiles: %w", err)
	}
	var updated, failed int
	for _, p := range profiles {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		if _, err := s.Refresh(ctx, p.Slug, -1); err != nil {
			s.log.Error("score refresh failed", "slug", p.Slug, "error", err)
			failed++
			continue
		}
		updated++
	}
	if failed > 0 {
		return updated, fmt.Errorf("refresh scores: %d of %d failed", failed, len(profiles))
	}
	return updated, nil
}
