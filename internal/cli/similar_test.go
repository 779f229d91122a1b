package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/scbrown/clicat/internal/similarity"
)

func TestWriteSimilarTable(t *testing.T) {
	var buf bytes.Buffer
	writeSimilarTable(&buf, "tsx-cli", []similarity.Suggestion{
		{Name: "tsx", Score: 0.82},
		{Name: "tsx-tsx", Score: 0.65},
	})
	out := buf.String()
	for _, want := range []string{"RANK", "NAME", "SCORE", "tsx", "0.82", "0.65"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestWriteSimilarTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	writeSimilarTable(&buf, "zzz", nil)
	if !strings.Contains(buf.String(), `No suggestions found for "zzz"`) {
		t.Errorf("output = %q", buf.String())
	}
}

func TestSimilarCmd(t *testing.T) {
	db := seedCatalog(t)
	out, err := runCLI(t, "similar", "tsxx", "--db", db, "--json")
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	var got []similarity.Suggestion
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(got) == 0 || got[0].Name != "tsx" {
		t.Errorf("suggestions = %+v", got)
	}
}
