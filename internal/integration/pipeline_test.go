//go:build integration

package integration

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestIngestExitCodes(t *testing.T) {
	e := newEnv(t)
	good := e.writeFile("good.jsonl", scrapeJSONL)
	partial := e.writeFile("partial.jsonl", `{"slug":"fd","binary":"fd","publisher":"sharkdp"}
{oops
`)

	if _, stderr, code := e.run(nil, "ingest", "--input", good); code != 0 {
		t.Fatalf("good ingest exited %d: %s", code, stderr)
	}
	if _, _, code := e.run(nil, "ingest", "--input", partial); code != 1 {
		t.Errorf("partial ingest exit = %d, want 1", code)
	}
	_, stderr, code := e.run(nil, "ingest", "--input", e.home+"/missing.jsonl")
	if code != 2 {
		t.Errorf("missing input exit = %d, want 2", code)
	}
	if !strings.HasPrefix(stderr, "clicat:") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	e := newEnv(t)
	input := e.writeFile("scrape.jsonl", scrapeJSONL)
	e.mustRun(nil, "ingest", "--input", input)
	stdout := e.mustRun(nil, "ingest", "--input", input, "--json")

	var rep struct {
		Created   []string `json:"created"`
		Updated   []string `json:"updated"`
		Unchanged []string `json:"unchanged"`
	}
	if err := json.Unmarshal([]byte(stdout), &rep); err != nil {
		t.Fatalf("decode report: %v\n%s", err, stdout)
	}
	if len(rep.Created)+len(rep.Updated) != 0 || len(rep.Unchanged) != 3 {
		t.Errorf("second run = %+v", rep)
	}

	var versions []map[string]any
	if err := json.Unmarshal([]byte(e.mustRun(nil, "history", "tsx", "--json")), &versions); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(versions) != 1 {
		t.Errorf("tsx has %d versions, want 1", len(versions))
	}
}

func TestCurateThenScrapeQueuesConflict(t *testing.T) {
	e := newEnv(t)
	e.mustRun(nil, "curate", "--input", e.writeFile("gh.yaml", ghCurated))

	scrape := e.writeFile("gh.jsonl", `{"slug":"gh","packageName":"gh","binary":"gh","name":"GitHub CLI","publisher":"GitHub","description":"scraped text"}`+"\n")
	if _, _, code := e.run(nil, "ingest", "--input", scrape); code != 1 {
		t.Errorf("conflicting scrape exit = %d, want 1", code)
	}

	var p map[string]any
	if err := json.Unmarshal([]byte(e.mustRun(nil, "show", "gh", "--json")), &p); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if p["description"] != "Work with GitHub from the command line" {
		t.Errorf("verified description overwritten: %v", p["description"])
	}
	if !strings.Contains(e.mustRun(nil, "pending"), "verified-conflict") {
		t.Error("expected a verified-conflict item in pending")
	}
}

func TestVerifyFromStdin(t *testing.T) {
	e := newEnv(t)
	e.mustRun(nil, "curate", "--input", e.writeFile("gh.yaml", ghCurated))

	var in strings.Builder
	for i := 0; i < 10; i++ {
		in.WriteString(`{"slug":"gh","agent":"codex","command_id":"pr-list","success":true}` + "\n")
	}
	in.WriteString(`{"slug":"gh","agent":"codex","command_id":"nope","success":true}` + "\n")
	_, _, code := e.run([]byte(in.String()), "verify", "--input", "-")
	if code != 1 {
		t.Errorf("verify exit = %d, want 1 for the unknown command", code)
	}

	stdout := e.mustRun(nil, "compat", "gh", "codex", "--json")
	var rec map[string]any
	if err := json.Unmarshal([]byte(stdout), &rec); err != nil {
		t.Fatalf("decode compat: %v", err)
	}
	if rec["status"] != "verified" || rec["samples"].(float64) != 10 {
		t.Errorf("compat = %v", rec)
	}
}
