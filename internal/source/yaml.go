package source

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/scbrown/clicat/internal/model"
)

// yamlRecords reads raw records from YAML: a sequence per document, or one
// record per document.
type yamlRecords struct{}

// curated reads hand-authored profiles in the same shapes.
type curated struct{}

func init() {
	Register(&yamlRecords{})
	Register(&curated{})
}

// Name returns "yaml".
func (yamlRecords) Name() string { return "yaml" }
func (yamlRecords) Description() string {
	return "YAML list of scraped registry records"
}

func (yamlRecords) Read(r io.Reader) ([]Item, error) {
	return readYAML(r, "yaml", func(n *yaml.Node) Item {
		var rec model.RawRecord
		if err := n.Decode(&rec); err != nil {
			return Item{Pos: n.Line, Err: fmt.Errorf("record at line %d: %w", n.Line, err)}
		}
		return Item{Pos: n.Line, Raw: &rec}
	})
}

// Name returns "curated".
func (curated) Name() string { return "curated" }
func (curated) Description() string {
	return "authoritative YAML profiles written by curators"
}

func (curated) Read(r io.Reader) ([]Item, error) {
	return readYAML(r, "curated", func(n *yaml.Node) Item {
		var p model.Profile
		if err := n.Decode(&p); err != nil {
			return Item{Pos: n.Line, Err: fmt.Errorf("profile at line %d: %w", n.Line, err)}
		}
		if p.Slug == "" {
			return Item{Pos: n.Line, Err: fmt.Errorf("profile at line %d: missing slug", n.Line)}
		}
		if p.Verification != "" && !p.Verification.Valid() {
			return Item{Pos: n.Line, Err: fmt.Errorf("profile %s: unknown verification %q", p.Slug, p.Verification)}
		}
		if p.Auth != nil && !p.Auth.Type.Valid() {
			return Item{Pos: n.Line, Err: fmt.Errorf("profile %s: unknown auth type %q", p.Slug, p.Auth.Type)}
		}
		return Item{Pos: n.Line, Curated: &p}
	})
}

func readYAML(r io.Reader, name string, decode func(*yaml.Node) Item) ([]Item, error) {
	dec := yaml.NewDecoder(r)
	var items []Item
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: decoding document: %w", name, err)
		}
		if len(doc.Content) == 0 {
			continue
		}
		root := doc.Content[0]
		switch root.Kind {
		case yaml.SequenceNode:
			for _, n := range root.Content {
				items = append(items, decode(n))
			}
		case yaml.MappingNode:
			items = append(items, decode(root))
		default:
			return nil, fmt.Errorf("%s: line %d: expected a mapping or a sequence", name, root.Line)
		}
	}
	return items, nil
}
