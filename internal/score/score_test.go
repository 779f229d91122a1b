package score

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scbrown/clicat/internal/model"
	"github.com/scbrown/clicat/internal/store"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestPopularity(t *testing.T) {
	assert.Equal(t, 0.0, Popularity(0))
	assert.Equal(t, 0.0, Popularity(-5))
	assert.InDelta(t, 100*3.0/7, Popularity(999), 0.01)
	assert.Equal(t, 100.0, Popularity(10_000_000))
	assert.Equal(t, 100.0, Popularity(1<<40))
	assert.Less(t, Popularity(1000), Popularity(10_000))
}

func TestTrust(t *testing.T) {
	bare := model.Profile{Verification: model.Unverified}
	assert.Equal(t, 6.0, Trust(bare, 0))

	full := model.Profile{
		Verification: model.Verified,
		Repository:   "github.com/cli/cli",
		Install:      make([]model.InstallRecipe, 6),
	}
	assert.Equal(t, 100.0, Trust(full, 100))

	curated := model.Profile{Verification: model.CommunityCurated, Install: make([]model.InstallRecipe, 2)}
	// 0.35*0.5 + 0.30*0.6 + 0.20*0.5 = 0.455
	assert.Equal(t, 45.5, Trust(curated, 50))
}

func TestSmooth(t *testing.T) {
	assert.Equal(t, 80.0, Smooth(0, 80), "unscored profiles are seeded")
	assert.Equal(t, 73.0, Smooth(70, 80))
	assert.Equal(t, 70.0, Smooth(70, 70))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		rate float64
		want model.CompatStatus
	}{
		{1, model.CompatVerified},
		{0.91, model.CompatVerified},
		{0.9, model.CompatPartial},
		{0.5, model.CompatPartial},
		{0.49, model.CompatBroken},
		{0, model.CompatBroken},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.rate), "rate %v", tt.rate)
	}
}

func TestCompatUpdateSeedsAndSmooths(t *testing.T) {
	rec := CompatUpdate(model.CompatibilityRecord{Slug: "gh", Agent: "claude"}, false, t0)
	assert.Equal(t, 0.0, rec.SuccessRate)
	assert.Equal(t, 1, rec.Samples)
	assert.Equal(t, model.CompatBroken, rec.Status)
	assert.Equal(t, t0, rec.LastVerified)

	rec = CompatUpdate(rec, true, t0.Add(time.Minute))
	assert.InDelta(t, Alpha, rec.SuccessRate, 1e-4)
	assert.Equal(t, 2, rec.Samples)
}

func TestCompatUpdateSteadyRate(t *testing.T) {
	// 95% success over 1000 samples, one failure every 20.
	rec := model.CompatibilityRecord{Slug: "gh", Agent: "claude"}
	at := t0
	for i := 1; i <= 1000; i++ {
		at = at.Add(time.Minute)
		rec = CompatUpdate(rec, i%20 != 0, at)
	}
	assert.InDelta(t, 0.95, rec.SuccessRate, 0.03)
	assert.Equal(t, model.CompatVerified, rec.Status)
	assert.Equal(t, 1000, rec.Samples)
}

func TestEWMATimeDecay(t *testing.T) {
	fresh := EWMA(1, 0, time.Minute)
	stale := EWMA(1, 0, 60*24*time.Hour)
	assert.InDelta(t, 0.98, fresh, 1e-3)
	assert.InDelta(t, 0.98*0.25, stale, 1e-3)
	assert.Equal(t, EWMA(1, 0, 0), EWMA(1, 0, -time.Hour), "out-of-order samples do not decay")
}

func TestViewStaleness(t *testing.T) {
	rec := model.CompatibilityRecord{Status: model.CompatVerified, SuccessRate: 0.97, LastVerified: t0}

	v := View(rec, t0.Add(24*time.Hour), DefaultStaleAfter)
	assert.Equal(t, model.CompatVerified, v.Status)

	v = View(rec, t0.Add(31*24*time.Hour), DefaultStaleAfter)
	assert.Equal(t, model.CompatUnknown, v.Status)
	assert.Equal(t, 0.97, v.SuccessRate)
	assert.Equal(t, model.CompatVerified, rec.Status, "input untouched")

	assert.Equal(t, model.CompatUnknown, View(model.CompatibilityRecord{}, t0, 0).Status)
}

func newScorer(t *testing.T) (*Scorer, *store.SQLiteStore) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	p := model.Profile{
		Slug:         "gh",
		Binaries:     []string{"gh"},
		Verification: model.Verified,
		Repository:   "github.com/cli/cli",
		Install:      []model.InstallRecipe{{OS: "macos", PackageManager: "brew", Command: "brew install gh"}},
		Commands:     []model.CommandSpec{{ID: "pr-list", Command: "gh pr list"}},
		CreatedAt:    t0,
		UpdatedAt:    t0,
	}
	_, err = st.Commit(context.Background(), p, &model.ListingVersion{
		ID: "v1", ChangedFields: []string{"binaries"}, Changelog: "Initial listing",
		Provenance: model.ProvenanceCuration, Timestamp: t0,
	})
	require.NoError(t, err)
	return New(st, nil).WithClock(func() time.Time { return t0 }), st
}

func TestScorerRecord(t *testing.T) {
	s, st := newScorer(t)
	ctx := context.Background()

	rec, err := s.Record(ctx, model.VerificationResult{Slug: "gh", Agent: "claude", CommandID: "pr-list", Success: true})
	require.NoError(t, err)
	assert.Equal(t, 1.0, rec.SuccessRate)
	assert.Equal(t, model.CompatVerified, rec.Status)
	assert.Equal(t, t0, rec.LastVerified)

	_, err = s.Record(ctx, model.VerificationResult{Slug: "gh", Agent: "claude", Success: false, Timestamp: t0.Add(time.Hour)})
	require.NoError(t, err)

	stored, err := st.GetCompatibility(ctx, "gh", "claude")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Samples)
	assert.InDelta(t, 0.98, stored.SuccessRate, 2e-3)

	// Nothing about scores or compatibility lands in the ledger.
	hist, err := st.VersionHistory(ctx, "gh")
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestScorerRecordRejects(t *testing.T) {
	s, _ := newScorer(t)
	ctx := context.Background()

	_, err := s.Record(ctx, model.VerificationResult{Slug: "nope", Agent: "claude", Success: true})
	assert.ErrorIs(t, err, ErrUnknownSlug)

	_, err = s.Record(ctx, model.VerificationResult{Slug: "gh", Agent: "claude", CommandID: "repo-nuke", Success: true})
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = s.Record(ctx, model.VerificationResult{Slug: "gh", Success: true})
	assert.Error(t, err)
}

func TestScorerRefresh(t *testing.T) {
	s, st := newScorer(t)
	ctx := context.Background()

	sc, err := s.Refresh(ctx, "gh", 999)
	require.NoError(t, err)
	pop := Popularity(999)
	assert.Equal(t, pop, sc.Popularity, "first refresh seeds")
	// 0.35*pop/100 + 0.30 + 0.20*0.25 + 0.15
	assert.InDelta(t, 100*(0.35*pop/100+0.30+0.05+0.15), sc.Trust, 0.01)

	again, err := s.Refresh(ctx, "gh", 9_999_999)
	require.NoError(t, err)
	assert.InDelta(t, 0.7*pop+0.3*100, again.Popularity, 0.01)

	p, err := st.GetProfile(ctx, "gh")
	require.NoError(t, err)
	assert.Equal(t, again.Popularity, p.Popularity)
	assert.Equal(t, int64(9_999_999), p.Downloads)

	n, err := s.RefreshAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	p, err = st.GetProfile(ctx, "gh")
	require.NoError(t, err)
	assert.Equal(t, int64(9_999_999), p.Downloads, "RefreshAll keeps stored downloads")

	_, err = s.Refresh(ctx, "nope", 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
