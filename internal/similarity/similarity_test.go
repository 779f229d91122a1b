package similarity

import (
	"math"
	"testing"
)

func TestSuggestExactMatch(t *testing.T) {
	results := Suggest("gh", []string{"gh", "git", "glab"})
	if len(results) == 0 {
		t.Fatal("expected at least one suggestion for exact match")
	}
	if results[0].Name != "gh" {
		t.Errorf("Name = %q, want %q", results[0].Name, "gh")
	}
	if results[0].Score != 1.0 {
		t.Errorf("Score = %f, want 1.0", results[0].Score)
	}
}

func TestSuggestHyphenVsCamelCase(t *testing.T) {
	results := Suggest("docker-compose", []string{"dockerCompose"})
	if len(results) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(results))
	}
	if results[0].Score != 1.0 {
		t.Errorf("Score = %f, want 1.0 for normalized match", results[0].Score)
	}
}

func TestSuggestRespectsTopNAndThreshold(t *testing.T) {
	known := []string{"kubectl", "kubectx", "kubens", "helm", "k9s"}
	results := SuggestN("kubect", known, 2, 0.5)
	if len(results) != 2 {
		t.Fatalf("expected 2 suggestions, got %d: %v", len(results), results)
	}
	for _, r := range results {
		if r.Name == "helm" {
			t.Errorf("helm should not pass the threshold")
		}
	}
	if results[0].Score < results[1].Score {
		t.Errorf("results not sorted: %v", results)
	}
}

func TestSuggestEmpty(t *testing.T) {
	if got := Suggest("", []string{"gh"}); got != nil {
		t.Errorf("Suggest(\"\") = %v, want nil", got)
	}
	if got := Suggest("gh", nil); got != nil {
		t.Errorf("Suggest(nil known) = %v, want nil", got)
	}
}

func TestScoreDescriptions(t *testing.T) {
	a := "TypeScript Execute: Node.js enhanced to run TypeScript & ESM"
	b := "TypeScript execute - Node.js enhanced to run TypeScript and ESM"
	if s := Score(a, b); s < 0.85 {
		t.Errorf("Score(similar descriptions) = %f, want >= 0.85", s)
	}
	c := "The GitHub CLI brings pull requests to your terminal"
	if s := Score(a, c); s > 0.5 {
		t.Errorf("Score(unrelated descriptions) = %f, want <= 0.5", s)
	}
	if s := Score("", ""); s != 0 {
		t.Errorf("Score(empty, empty) = %f, want 0", s)
	}
}

func TestScoreSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"better-auth cli", "Better Auth CLI tool"},
		{"forge", "foundry forge"},
	}
	for _, p := range pairs {
		ab, ba := Score(p[0], p[1]), Score(p[1], p[0])
		if math.Abs(ab-ba) > 1e-9 {
			t.Errorf("Score(%q,%q)=%f but reverse=%f", p[0], p[1], ab, ba)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ReadFile", "read file"},
		{"XMLParser", "xml parser"},
		{"docker_cli", "docker cli"},
		{"Node.js  runtime!", "node js runtime"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
