package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scbrown/clicat/internal/model"
)

// seedCatalog ingests the tsx pair plus a curated gh profile and returns the
// database path.
func seedCatalog(t *testing.T) string {
	t.Helper()
	resetFlags(t)
	db := filepath.Join(t.TempDir(), "catalog.db")
	if _, err := runCLI(t, "ingest", "--input", writeFile(t, "scrape.jsonl", tsxJSONL), "--db", db); err != nil {
		t.Fatalf("seed ingest: %v", err)
	}
	resetFlags(t)
	if _, err := runCLI(t, "curate", "--input", writeFile(t, "gh.yaml", ghCurated), "--db", db); err != nil {
		t.Fatalf("seed curate: %v", err)
	}
	resetFlags(t)
	return db
}

func TestListTable(t *testing.T) {
	db := seedCatalog(t)
	out, err := runCLI(t, "list", "--db", db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"SLUG", "PUBLISHER", "gh", "tsx-tsx", "Anysphere", "verified", "v1"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestListFilters(t *testing.T) {
	db := seedCatalog(t)
	out, err := runCLI(t, "list", "--db", db, "--json", "--category", "runtime")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var profiles []model.Profile
	if err := json.Unmarshal([]byte(out), &profiles); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(profiles) != 1 || profiles[0].Slug != "tsx" {
		t.Errorf("category filter = %+v", profiles)
	}

	resetFlags(t)
	out, err = runCLI(t, "list", "--db", db, "--json", "--limit", "2")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	profiles = nil
	if err := json.Unmarshal([]byte(out), &profiles); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(profiles) != 2 || profiles[0].Slug != "gh" || profiles[1].Slug != "tsx" {
		t.Errorf("limit = %+v", profiles)
	}
}

func TestListEmptyJSON(t *testing.T) {
	resetFlags(t)
	out, err := runCLI(t, "list", "--db", filepath.Join(t.TempDir(), "empty.db"), "--json")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("empty list = %q, want []", out)
	}
}
