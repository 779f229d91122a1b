package cli

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSourcesCmdTable(t *testing.T) {
	resetFlags(t)
	out, err := runCLI(t, "sources")
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	for _, want := range []string{"NAME", "DESCRIPTION", "jsonl", "curated"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestSourcesCmdJSON(t *testing.T) {
	resetFlags(t)
	out, err := runCLI(t, "sources", "--json")
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	var infos []sourceInfo
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	names := make(map[string]bool)
	for _, s := range infos {
		names[s.Name] = true
		if s.Description == "" {
			t.Errorf("source %s has no description", s.Name)
		}
	}
	for _, want := range []string{"json", "jsonl", "yaml", "curated"} {
		if !names[want] {
			t.Errorf("missing source %q", want)
		}
	}
}
