package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/scbrown/clicat/internal/model"
)

func TestNewTableHeaders(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "SLUG", "STATUS")
	tbl.Row("gh", tbl.Verification(model.Verified))
	tbl.Row("tsx", tbl.Compat(model.CompatBroken))
	if err := tbl.Flush(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"SLUG", "STATUS", "gh", "verified", "broken"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	// Not a TTY, so no escape codes.
	if strings.Contains(out, "\x1b[") {
		t.Errorf("unexpected ANSI codes: %q", out)
	}
	if tbl.Width() != defaultTermWidth {
		t.Errorf("Width() = %d", tbl.Width())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"héllo wörld", 8, "héllo..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestAgoAndCount(t *testing.T) {
	if got := ago(time.Time{}); got != "never" {
		t.Errorf("ago(zero) = %q", got)
	}
	if got := ago(time.Now().Add(-3 * time.Hour)); !strings.Contains(got, "hours ago") {
		t.Errorf("ago(3h) = %q", got)
	}
	if got := count(1234567); got != "1,234,567" {
		t.Errorf("count = %q", got)
	}
}
