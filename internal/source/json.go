package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/scbrown/clicat/internal/model"
)

// maxLine bounds one JSONL record.
const maxLine = 4 << 20

// jsonArray reads a JSON array of raw records.
type jsonArray struct{}

// jsonLines reads one raw record per line.
type jsonLines struct{}

func init() {
	Register(&jsonArray{})
	Register(&jsonLines{})
}

// Name returns "json".
func (jsonArray) Name() string { return "json" }
func (jsonArray) Description() string {
	return "JSON array of scraped registry records"
}

// Read decodes the array element by element so a bad element only rejects
// itself.
func (jsonArray) Read(r io.Reader) ([]Item, error) {
	var elems []json.RawMessage
	if err := json.NewDecoder(r).Decode(&elems); err != nil {
		return nil, fmt.Errorf("json: decoding array: %w", err)
	}
	items := make([]Item, 0, len(elems))
	for i, raw := range elems {
		items = append(items, decodeRecord(i, raw))
	}
	return items, nil
}

// Name returns "jsonl".
func (jsonLines) Name() string { return "jsonl" }
func (jsonLines) Description() string {
	return "one scraped registry record per line"
}

// Read decodes each non-blank line as one record.
func (jsonLines) Read(r io.Reader) ([]Item, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	var items []Item
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		items = append(items, decodeRecord(line, append([]byte(nil), b...)))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("jsonl: reading line %d: %w", line+1, err)
	}
	return items, nil
}

func decodeRecord(pos int, raw []byte) Item {
	var rec model.RawRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Item{Pos: pos, Err: fmt.Errorf("record %d: %w", pos, err)}
	}
	return Item{Pos: pos, Raw: &rec}
}
