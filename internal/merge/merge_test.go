package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scbrown/clicat/internal/model"
	"github.com/scbrown/clicat/internal/normalize"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func scrape(binary, desc string) model.Candidate {
	return model.Candidate{
		Provenance:  model.ProvenanceScrape,
		Slug:        binary,
		Name:        binary,
		Binary:      binary,
		PURL:        "pkg:npm/" + binary,
		Publisher:   "Acme",
		Description: desc,
		Category:    "devtools",
		Tags:        []string{"cli"},
		Install:     &model.InstallRecipe{OS: "any", PackageManager: "npm", Command: "npm install -g " + binary},
	}
}

func TestMergeNewProfile(t *testing.T) {
	res, err := Merge(nil, "tsx", scrape("tsx", "Run TypeScript"), t0)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.Empty())
	assert.Equal(t, "tsx", res.Profile.Slug)
	assert.Equal(t, model.Unverified, res.Profile.Verification)
	assert.Equal(t, []string{"tsx"}, res.Profile.Binaries)
	assert.Equal(t, []string{"devtools"}, res.Profile.Categories)
	assert.Len(t, res.Profile.Install, 1)
	assert.Equal(t, t0, res.Profile.CreatedAt)

	fields := res.ChangedFields()
	assert.Equal(t, FieldName, fields[0])
	assert.Contains(t, fields, FieldDescription)
	assert.NotContains(t, fields, FieldVerification)
}

func TestMergeIdempotent(t *testing.T) {
	c := scrape("tsx", "Run TypeScript")
	first, err := Merge(nil, "tsx", c, t0)
	require.NoError(t, err)

	second, err := Merge(&first.Profile, "tsx", c, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, second.Empty(), "changes: %+v", second.Changes)
	assert.Empty(t, second.Proposed)
	assert.Equal(t, first.Profile.UpdatedAt, second.Profile.UpdatedAt)
}

func TestMergeScalarUpdateUnverified(t *testing.T) {
	first, err := Merge(nil, "tsx", scrape("tsx", "D1"), t0)
	require.NoError(t, err)

	res, err := Merge(&first.Profile, "tsx", scrape("tsx", "D2"), t0)
	require.NoError(t, err)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, model.FieldChange{Field: FieldDescription, Before: "D1", After: "D2"}, res.Changes[0])
	assert.Equal(t, "D2", res.Profile.Description)
	// Input is never mutated.
	assert.Equal(t, "D1", first.Profile.Description)
}

func TestMergeVerifiedFieldProtection(t *testing.T) {
	first, err := Merge(nil, "tsx", scrape("tsx", "D1"), t0)
	require.NoError(t, err)
	prev := first.Profile
	prev.Verification = model.Verified

	res, err := Merge(&prev, "tsx", scrape("tsx", "D2"), t0)
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Equal(t, "D1", res.Profile.Description)
	require.Len(t, res.Proposed, 1)
	assert.Equal(t, FieldDescription, res.Proposed[0].Field)
	assert.Equal(t, "D2", res.Proposed[0].After)
}

func TestMergeVerifiedStillUnionsTags(t *testing.T) {
	first, err := Merge(nil, "tsx", scrape("tsx", "D1"), t0)
	require.NoError(t, err)
	prev := first.Profile
	prev.Verification = model.Verified

	c := scrape("tsx", "D1")
	c.Tags = []string{"typescript"}
	res, err := Merge(&prev, "tsx", c, t0)
	require.NoError(t, err)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, FieldTags, res.Changes[0].Field)
	assert.Equal(t, []string{"cli", "typescript"}, res.Profile.Tags)
}

func TestMergePublisherSetOnce(t *testing.T) {
	first, err := Merge(nil, "tsx", scrape("tsx", "D1"), t0)
	require.NoError(t, err)

	c := scrape("tsx", "D1")
	c.Publisher = "Someone Else"
	res, err := Merge(&first.Profile, "tsx", c, t0)
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Equal(t, "Acme", res.Profile.Publisher)
}

func TestMergeBinariesKeepPrimaryFirst(t *testing.T) {
	first, err := Merge(nil, "tsx", scrape("tsx", "D1"), t0)
	require.NoError(t, err)

	c := scrape("tsx", "D1")
	c.Binary = "tsx-node"
	res, err := Merge(&first.Profile, "tsx", c, t0)
	require.NoError(t, err)
	assert.Equal(t, []string{"tsx", "tsx-node"}, res.Profile.Binaries)
	assert.Equal(t, "tsx", res.Profile.PrimaryBinary())
}

func TestMergeInstallUpsertsByKey(t *testing.T) {
	first, err := Merge(nil, "tsx", scrape("tsx", "D1"), t0)
	require.NoError(t, err)

	c := scrape("tsx", "D1")
	c.Install = &model.InstallRecipe{OS: "ANY", PackageManager: "NPM", Command: "npm i -g tsx@latest"}
	res, err := Merge(&first.Profile, "tsx", c, t0)
	require.NoError(t, err)
	require.Len(t, res.Profile.Install, 1)
	assert.Equal(t, "npm i -g tsx@latest", res.Profile.Install[0].Command)

	c.Install = &model.InstallRecipe{OS: "macos", PackageManager: "brew", Command: "brew install tsx"}
	res, err = Merge(&res.Profile, "tsx", c, t0)
	require.NoError(t, err)
	require.Len(t, res.Profile.Install, 2)
	assert.Equal(t, "any/npm", res.Profile.Install[0].Key())
	assert.Equal(t, "macos/brew", res.Profile.Install[1].Key())
}

func curation(p model.Profile) model.Candidate {
	return model.Candidate{Provenance: model.ProvenanceCuration, Slug: p.Slug, Curated: &p}
}

func TestMergeCurationOverridesVerified(t *testing.T) {
	first, err := Merge(nil, "tsx", scrape("tsx", "D1"), t0)
	require.NoError(t, err)
	prev := first.Profile
	prev.Verification = model.Verified

	res, err := Merge(&prev, "tsx", curation(model.Profile{
		Slug:        "tsx",
		Publisher:   "Privatenumber",
		Description: "TypeScript Execute",
		Auth:        &model.AuthFlow{Type: model.AuthNone},
	}), t0)
	require.NoError(t, err)
	assert.Equal(t, []string{FieldPublisher, FieldDescription, FieldAuth}, res.ChangedFields())
	assert.Equal(t, "Privatenumber", res.Profile.Publisher)
	assert.Equal(t, model.Verified, res.Profile.Verification)
}

func TestMergeCurationCanonicalizesIdentity(t *testing.T) {
	base := Template("gh", t0)
	res, err := Merge(&base, "gh", curation(model.Profile{
		Slug:       "gh",
		Repository: "https://github.com/Cli/CLI.git",
		Packages:   []string{"gh", "pkg:npm/gh", "@cli/gh"},
	}), t0)
	require.NoError(t, err)
	assert.Equal(t, "github.com/cli/cli", res.Profile.Repository)
	assert.ElementsMatch(t, []string{normalize.PURL("npm", "cli", "gh"), "pkg:npm/gh"}, res.Profile.Packages)

	res, err = Merge(&base, "gh", curation(model.Profile{Slug: "gh", Repository: "https://cli.github.com"}), t0)
	require.NoError(t, err)
	assert.Equal(t, "https://cli.github.com", res.Profile.Repository, "non-code-host URLs are kept as given")
}

func TestMergeCurationCommands(t *testing.T) {
	base := Template("gh", t0)
	res, err := Merge(&base, "gh", curation(model.Profile{
		Slug: "gh",
		Commands: []model.CommandSpec{
			{ID: "pr-list", Command: "gh pr list"},
			{ID: "auth-login", Command: "gh auth login"},
		},
	}), t0)
	require.NoError(t, err)
	require.Len(t, res.Profile.Commands, 2)
	assert.Equal(t, "auth-login", res.Profile.Commands[0].ID)

	later := t0.Add(24 * time.Hour)
	res, err = Merge(&res.Profile, "gh", curation(model.Profile{
		Slug:     "gh",
		Commands: []model.CommandSpec{{ID: "auth-login", Command: "gh auth login"}},
	}), later)
	require.NoError(t, err)
	assert.Equal(t, []string{"pr-list"}, res.Removed)
	assert.Equal(t, []string{FieldCommands}, res.ChangedFields())
	assert.False(t, res.Profile.HasCommand("pr-list"))
	require.Len(t, res.Profile.Commands, 2, "soft-deleted commands are kept")
	assert.Equal(t, later, *res.Profile.Commands[1].DeletedAt)

	// Restoring the same command is allowed.
	restored, err := Merge(&res.Profile, "gh", curation(model.Profile{
		Slug: "gh",
		Commands: []model.CommandSpec{
			{ID: "auth-login", Command: "gh auth login"},
			{ID: "pr-list", Command: "gh pr list"},
		},
	}), later)
	require.NoError(t, err)
	assert.True(t, restored.Profile.HasCommand("pr-list"))

	// Reusing the id for something else is not.
	_, err = Merge(&res.Profile, "gh", curation(model.Profile{
		Slug: "gh",
		Commands: []model.CommandSpec{
			{ID: "auth-login", Command: "gh auth login"},
			{ID: "pr-list", Command: "gh pr view"},
		},
	}), later)
	assert.ErrorIs(t, err, ErrCommandReuse)
}

func TestMergeCurationWithoutCommandsKeepsThem(t *testing.T) {
	base := Template("gh", t0)
	base.Commands = []model.CommandSpec{{ID: "pr-list", Command: "gh pr list"}}
	res, err := Merge(&base, "gh", curation(model.Profile{Slug: "gh", Description: "GitHub CLI"}), t0)
	require.NoError(t, err)
	assert.True(t, res.Profile.HasCommand("pr-list"))
	assert.Empty(t, res.Removed)
}

func TestMergeCurationMissingProfile(t *testing.T) {
	_, err := Merge(nil, "gh", model.Candidate{Provenance: model.ProvenanceCuration, Slug: "gh"}, t0)
	assert.Error(t, err)
}

func TestDiffCanonicalOrder(t *testing.T) {
	before := model.Profile{Name: "a", Description: "x", Verification: model.Unverified}
	after := model.Profile{Name: "b", Description: "y", Verification: model.Verified, Tags: []string{"t"}}
	changes := Diff(before, after)
	var fields []string
	for _, c := range changes {
		fields = append(fields, c.Field)
	}
	assert.Equal(t, []string{FieldName, FieldDescription, FieldTags, FieldVerification}, fields)

	shuffled := []string{FieldVerification, "unknown", FieldName, FieldTags}
	SortFields(shuffled)
	assert.Equal(t, []string{FieldName, FieldTags, FieldVerification, "unknown"}, shuffled)
}

func TestDiffIgnoresScores(t *testing.T) {
	before := model.Profile{Slug: "x", Popularity: 10, Trust: 20, Downloads: 5}
	after := model.Profile{Slug: "x", Popularity: 90, Trust: 80, Downloads: 500}
	assert.Empty(t, Diff(before, after))
}
