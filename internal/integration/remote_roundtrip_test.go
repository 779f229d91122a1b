//go:build integration

package integration

import (
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scbrown/clicat/internal/score"
	"github.com/scbrown/clicat/internal/server"
	"github.com/scbrown/clicat/internal/store"
)

// newRemoteEnv returns an env in remote mode plus the env that owns the
// server's database, so fixtures can be ingested locally on the server side.
func newRemoteEnv(t *testing.T) (client, owner *env) {
	t.Helper()
	owner = newEnv(t)
	owner.dbPath = filepath.Join(t.TempDir(), "server.db")
	owner.writeConfig("")
	owner.mustRun(nil, "ingest", "--input", owner.writeFile("scrape.jsonl", scrapeJSONL))
	owner.mustRun(nil, "curate", "--input", owner.writeFile("gh.yaml", ghCurated))

	s, err := store.New(owner.dbPath)
	if err != nil {
		t.Fatalf("open server store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	log := slog.New(slog.DiscardHandler)
	ts := httptest.NewServer(server.New(s, score.New(s, log), log).Handler())
	t.Cleanup(ts.Close)

	client = newEnv(t)
	client.writeConfig("store_mode = \"remote\"\nremote_url = \"" + ts.URL + "\"\n")
	return client, owner
}

func TestRemoteReadCommands(t *testing.T) {
	t.Parallel()
	e, _ := newRemoteEnv(t)

	stdout := e.mustRun(nil, "list", "--json")
	var profiles []map[string]any
	if err := json.Unmarshal([]byte(stdout), &profiles); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(profiles) != 4 {
		t.Errorf("remote list returned %d profiles, want 4", len(profiles))
	}

	if out := e.mustRun(nil, "binary", "tsx"); !strings.Contains(out, "Anysphere") {
		t.Errorf("remote binary output:\n%s", out)
	}
	if out := e.mustRun(nil, "diff", "gh", "0", "1"); !strings.Contains(out, "GitHub CLI") {
		t.Errorf("remote diff output:\n%s", out)
	}

	chains := e.writeFile("chains.yaml", `id: review
title: Review a PR
steps:
  - slug: gh
    commands: [pr-list, pr-merge]
`)
	stdout, _, code := e.run(nil, "chains", "check", chains)
	if code != 1 || !strings.Contains(stdout, "gh/pr-merge") {
		t.Errorf("remote chains check exit %d:\n%s", code, stdout)
	}
}

func TestRemoteVerifySubmitsBatches(t *testing.T) {
	t.Parallel()
	e, owner := newRemoteEnv(t)

	var in strings.Builder
	for i := 0; i < 5; i++ {
		in.WriteString(`{"slug":"jq","agent":"codex","success":true}` + "\n")
	}
	stdout := e.mustRun([]byte(in.String()), "verify", "--input", "-", "--batch", "2")
	if !strings.Contains(stdout, "5 results read") {
		t.Errorf("verify output: %s", stdout)
	}

	// Written on the server side, not in the client's database.
	out := owner.mustRun(nil, "compat", "jq", "codex", "--json")
	var rec map[string]any
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["samples"].(float64) != 5 {
		t.Errorf("server-side samples = %v", rec["samples"])
	}
}

func TestRemoteUnknownSlug(t *testing.T) {
	t.Parallel()
	e, _ := newRemoteEnv(t)
	_, stderr, code := e.run(nil, "show", "tssx")
	if code == 0 || !strings.Contains(stderr, "not found") {
		t.Errorf("exit %d, stderr %q", code, stderr)
	}
}
