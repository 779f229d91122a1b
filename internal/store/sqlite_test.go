package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/scbrown/clicat/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var ts = time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC)

func ghProfile() model.Profile {
	return model.Profile{
		Slug:         "gh",
		Name:         "GitHub CLI",
		Publisher:    "GitHub",
		Description:  "Work with GitHub from the command line",
		Categories:   []string{"devtools"},
		Tags:         []string{"git", "github"},
		Repository:   "github.com/cli/cli",
		Binaries:     []string{"gh"},
		Packages:     []string{"pkg:brew/gh"},
		Verification: model.Verified,
		Install: []model.InstallRecipe{
			{OS: "macos", PackageManager: "brew", Command: "brew install gh"},
			{OS: "linux", PackageManager: "apt", Command: "apt install gh", Dependencies: []string{"git"}},
		},
		Auth: &model.AuthFlow{Type: model.AuthLoginCommand, Steps: []model.AuthStep{{Order: 1, Instruction: "Log in", Command: "gh auth login"}}},
		Commands: []model.CommandSpec{
			{ID: "pr-list", Command: "gh pr list", Description: "List pull requests"},
		},
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func version(slug string, fields ...string) *model.ListingVersion {
	v := &model.ListingVersion{
		ID:            slug + "-" + time.Now().Format(time.RFC3339Nano) + "-" + fields[0],
		Slug:          slug,
		ChangedFields: fields,
		Changelog:     "Updated",
		Provenance:    model.ProvenanceScrape,
		Timestamp:     ts,
	}
	for _, f := range fields {
		v.Changes = append(v.Changes, model.FieldChange{Field: f, After: f + "-value"})
	}
	return v
}

func TestNewCreatesDir(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c")
	s, err := New(filepath.Join(nested, "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	if _, err := os.Stat(nested); err != nil {
		t.Errorf("expected directory %s to exist: %v", nested, err)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s1, err := New(dbPath)
	if err != nil {
		t.Fatalf("first New: %v", err)
	}
	s1.Close()

	// Opening again should not fail (migration is idempotent).
	s2, err := New(dbPath)
	if err != nil {
		t.Fatalf("second New: %v", err)
	}
	s2.Close()
}

func TestCommitAndGetProfile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v := version("gh", "name")
	n, err := s.Commit(ctx, ghProfile(), v)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if n != 1 || v.Number != 1 {
		t.Fatalf("version = %d (v.Number %d), want 1", n, v.Number)
	}

	got, err := s.GetProfile(ctx, "gh")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.Version != 1 || got.Name != "GitHub CLI" || got.Verification != model.Verified {
		t.Errorf("unexpected profile: %+v", got)
	}
	if len(got.Install) != 2 || got.Install[0].Key() != "linux/apt" {
		t.Fatalf("Install = %+v", got.Install)
	}
	if len(got.Install[0].Dependencies) != 1 || got.Install[0].Dependencies[0] != "git" {
		t.Errorf("Dependencies = %v", got.Install[0].Dependencies)
	}
	if got.Auth == nil || got.Auth.Type != model.AuthLoginCommand || len(got.Auth.Steps) != 1 {
		t.Errorf("Auth = %+v", got.Auth)
	}
	if len(got.Commands) != 1 || got.Commands[0].Description != "List pull requests" {
		t.Errorf("Commands = %+v", got.Commands)
	}
	if !got.CreatedAt.Equal(ts) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, ts)
	}
}

func TestGetProfileNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetProfile(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.VersionHistory(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("VersionHistory err = %v, want ErrNotFound", err)
	}
}

func TestCommitAssignsSequentialVersions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := ghProfile()
	n, err := s.Commit(ctx, p, version("gh", "name"))
	if err != nil {
		t.Fatalf("Commit 1: %v", err)
	}
	p.Version = n
	p.Description = "changed"
	n, err = s.Commit(ctx, p, version("gh", "description"))
	if err != nil {
		t.Fatalf("Commit 2: %v", err)
	}
	if n != 2 {
		t.Fatalf("second version = %d, want 2", n)
	}

	// A nil version writes state without touching the ledger.
	p.Version = n
	n, err = s.Commit(ctx, p, nil)
	if err != nil {
		t.Fatalf("Commit 3: %v", err)
	}
	if n != 2 {
		t.Fatalf("version after nil commit = %d, want 2", n)
	}

	hist, err := s.VersionHistory(ctx, "gh")
	if err != nil {
		t.Fatalf("VersionHistory: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(hist))
	}
	for i, v := range hist {
		if v.Number != i+1 {
			t.Errorf("history[%d].Number = %d", i, v.Number)
		}
	}
	if hist[1].ChangedFields[0] != "description" || hist[1].Changes[0].After != "description-value" {
		t.Errorf("unexpected version: %+v", hist[1])
	}
}

func TestCommitConcurrentSameSlug(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Commit(ctx, ghProfile(), version("gh", "name")); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := ghProfile()
			p.Version = 1
			v := version("gh", "tags")
			v.ID = v.ID + string(rune('a'+i))
			if _, err := s.Commit(ctx, p, v); err != nil {
				t.Errorf("Commit %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	hist, err := s.VersionHistory(ctx, "gh")
	if err != nil {
		t.Fatalf("VersionHistory: %v", err)
	}
	if len(hist) != 9 {
		t.Fatalf("len(history) = %d, want 9", len(hist))
	}
	for i, v := range hist {
		if v.Number != i+1 {
			t.Fatalf("gap or duplicate at %d: %d", i, v.Number)
		}
	}
}

func TestCommitNewProfileSlugTaken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Commit(ctx, ghProfile(), version("gh", "name")); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	_, err := s.Commit(ctx, ghProfile(), version("gh", "publisher"))
	if !errors.Is(err, ErrSlugTaken) {
		t.Fatalf("err = %v, want ErrSlugTaken", err)
	}
	hist, _ := s.VersionHistory(ctx, "gh")
	if len(hist) != 1 {
		t.Errorf("failed commit left %d versions", len(hist))
	}
}

func TestListByBinaryReturnsAllColliding(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := ghProfile()
	a.Slug, a.Binaries = "tsx", []string{"tsx"}
	b := ghProfile()
	b.Slug, b.Binaries = "tsx-anysphere", []string{"tsx", "tsx-tools"}
	for _, p := range []model.Profile{b, a} {
		if _, err := s.Commit(ctx, p, version(p.Slug, "name")); err != nil {
			t.Fatalf("Commit %s: %v", p.Slug, err)
		}
	}

	got, err := s.ListByBinary(ctx, "TSX")
	if err != nil {
		t.Fatalf("ListByBinary: %v", err)
	}
	if len(got) != 2 || got[0].Slug != "tsx" || got[1].Slug != "tsx-anysphere" {
		t.Fatalf("ListByBinary = %v", slugsOf(got))
	}
	if got[1].PrimaryBinary() != "tsx" {
		t.Errorf("binary order lost: %v", got[1].Binaries)
	}

	none, err := s.ListByBinary(ctx, "missing")
	if err != nil || len(none) != 0 {
		t.Errorf("ListByBinary(missing) = %v, %v", none, err)
	}
}

func TestListProfilesFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := ghProfile()
	b := ghProfile()
	b.Slug, b.Tags, b.Categories = "kubectl", []string{"k8s"}, []string{"cloud"}
	for _, p := range []model.Profile{a, b} {
		if _, err := s.Commit(ctx, p, version(p.Slug, "name")); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}

	all, err := s.ListProfiles(ctx, ListOpts{})
	if err != nil || len(all) != 2 {
		t.Fatalf("ListProfiles = %v, %v", slugsOf(all), err)
	}
	byTag, _ := s.ListProfiles(ctx, ListOpts{Tag: "K8S"})
	if len(byTag) != 1 || byTag[0].Slug != "kubectl" {
		t.Errorf("by tag = %v", slugsOf(byTag))
	}
	byCat, _ := s.ListProfiles(ctx, ListOpts{Category: "devtools"})
	if len(byCat) != 1 || byCat[0].Slug != "gh" {
		t.Errorf("by category = %v", slugsOf(byCat))
	}
	limited, _ := s.ListProfiles(ctx, ListOpts{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limit = %d", len(limited))
	}
}

func TestCommandsSoftDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := ghProfile()
	n, err := s.Commit(ctx, p, version("gh", "name"))
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	ok, err := s.CommandExists(ctx, "gh", "pr-list")
	if err != nil || !ok {
		t.Fatalf("CommandExists = %v, %v", ok, err)
	}

	deleted := ts.Add(time.Hour)
	p.Version = n
	p.Commands[0].DeletedAt = &deleted
	if _, err := s.Commit(ctx, p, version("gh", "commands")); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	ok, _ = s.CommandExists(ctx, "gh", "pr-list")
	if ok {
		t.Error("soft-deleted command should not exist")
	}
	got, _ := s.GetProfile(ctx, "gh")
	if len(got.Commands) != 1 || got.Commands[0].DeletedAt == nil || !got.Commands[0].DeletedAt.Equal(deleted) {
		t.Errorf("Commands = %+v", got.Commands)
	}

	// Dropping a command from the profile never removes its row.
	p.Commands = nil
	p.Version = 2
	if _, err := s.Commit(ctx, p, nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got, _ = s.GetProfile(ctx, "gh")
	if len(got.Commands) != 1 {
		t.Errorf("command row removed: %+v", got.Commands)
	}
}

func TestSaveScores(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.Commit(ctx, ghProfile(), version("gh", "name")); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := s.SaveScores(ctx, "gh", Scores{Popularity: 71.5, Trust: 88.25, Downloads: 1000}); err != nil {
		t.Fatalf("SaveScores: %v", err)
	}
	got, _ := s.GetProfile(ctx, "gh")
	if got.Popularity != 71.5 || got.Trust != 88.25 || got.Downloads != 1000 {
		t.Errorf("scores = %v/%v/%v", got.Popularity, got.Trust, got.Downloads)
	}

	// A later content commit leaves scores alone.
	p := ghProfile()
	p.Version = 1
	if _, err := s.Commit(ctx, p, version("gh", "tags")); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got, _ = s.GetProfile(ctx, "gh")
	if got.Trust != 88.25 {
		t.Errorf("Trust reset to %v", got.Trust)
	}

	if err := s.SaveScores(ctx, "nope", Scores{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCompatibility(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := model.CompatibilityRecord{Slug: "gh", Agent: "claude", Status: model.CompatPartial, SuccessRate: 0.7, Samples: 3, LastVerified: ts}
	if err := s.UpsertCompatibility(ctx, rec); err != nil {
		t.Fatalf("UpsertCompatibility: %v", err)
	}
	rec.SuccessRate, rec.Status, rec.Samples = 0.95, model.CompatVerified, 4
	if err := s.UpsertCompatibility(ctx, rec); err != nil {
		t.Fatalf("UpsertCompatibility: %v", err)
	}
	if err := s.UpsertCompatibility(ctx, model.CompatibilityRecord{Slug: "gh", Agent: "aider", Status: model.CompatBroken, LastVerified: ts}); err != nil {
		t.Fatalf("UpsertCompatibility: %v", err)
	}

	got, err := s.GetCompatibility(ctx, "gh", "claude")
	if err != nil {
		t.Fatalf("GetCompatibility: %v", err)
	}
	if got.SuccessRate != 0.95 || got.Status != model.CompatVerified || got.Samples != 4 || !got.LastVerified.Equal(ts) {
		t.Errorf("unexpected record: %+v", got)
	}
	list, err := s.ListCompatibility(ctx, "gh")
	if err != nil || len(list) != 2 || list[0].Agent != "aider" {
		t.Errorf("ListCompatibility = %+v, %v", list, err)
	}
	if _, err := s.GetCompatibility(ctx, "gh", "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCurationQueueDedupes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := model.CurationItem{
		ID:        "c1",
		Kind:      model.CurationVerifiedConflict,
		Slug:      "gh",
		Candidate: "pkg:npm/gh",
		Reason:    "scrape changes verified fields",
		Proposed:  []model.FieldChange{{Field: "description", Before: "D1", After: "D2"}},
		CreatedAt: ts,
	}
	added, err := s.EnqueueCuration(ctx, item)
	if err != nil || !added {
		t.Fatalf("EnqueueCuration = %v, %v", added, err)
	}
	item.ID = "c2"
	added, err = s.EnqueueCuration(ctx, item)
	if err != nil || added {
		t.Fatalf("duplicate EnqueueCuration = %v, %v", added, err)
	}
	item.ID = "c3"
	item.Proposed[0].After = "D3"
	if added, _ = s.EnqueueCuration(ctx, item); !added {
		t.Fatal("different proposal should be queued")
	}
	if _, err := s.EnqueueCuration(ctx, model.CurationItem{
		ID: "c4", Kind: model.CurationAmbiguous, Candidate: "pkg:npm/x", Reason: "two matches",
		Related: []string{"a", "b"}, CreatedAt: ts.Add(time.Minute),
	}); err != nil {
		t.Fatalf("EnqueueCuration: %v", err)
	}

	all, err := s.ListCuration(ctx, CurationOpts{})
	if err != nil {
		t.Fatalf("ListCuration: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c1" || all[2].ID != "c4" {
		t.Fatalf("ListCuration = %+v", all)
	}
	if all[0].Proposed[0].After != "D2" || len(all[2].Related) != 2 {
		t.Errorf("decoded items: %+v", all)
	}
	amb, _ := s.ListCuration(ctx, CurationOpts{Kind: model.CurationAmbiguous})
	if len(amb) != 1 || amb[0].Slug != "" {
		t.Errorf("by kind = %+v", amb)
	}
}

func TestIsBusy(t *testing.T) {
	if IsBusy(nil) || IsBusy(errors.New("boom")) {
		t.Error("non-busy errors reported busy")
	}
	if !IsBusy(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Error("busy error not detected")
	}
}

func TestRetry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("Retry = %v after %d calls", err, calls)
	}

	calls = 0
	boom := errors.New("boom")
	err = Retry(context.Background(), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("Retry = %v after %d calls, want boom after 1", err, calls)
	}
}

func slugsOf(ps []model.Profile) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Slug
	}
	return out
}
