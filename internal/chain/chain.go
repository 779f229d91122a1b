// Package chain checks workflow chains against the catalog and reports steps
// whose command ids no longer exist.
package chain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/scbrown/clicat/internal/model"
	"github.com/scbrown/clicat/internal/store"
)

// Checker answers whether a command currently exists on a profile.
type Checker interface {
	CommandExists(ctx context.Context, slug, id string) (bool, error)
}

// Broken is one dangling chain reference.
type Broken struct {
	Chain     string `json:"chain"`
	Step      int    `json:"step"`
	Slug      string `json:"slug"`
	CommandID string `json:"command_id"`
}

func (b Broken) String() string {
	return fmt.Sprintf("%s step %d: %s/%s", b.Chain, b.Step, b.Slug, b.CommandID)
}

// Load reads chains from YAML or JSON. A document may hold one chain or a
// list of chains.
func Load(r io.Reader) ([]model.WorkflowChain, error) {
	dec := yaml.NewDecoder(r)
	var out []model.WorkflowChain
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode chains: %w", err)
		}
		if len(doc.Content) == 0 {
			continue
		}
		root := doc.Content[0]
		if root.Kind == yaml.SequenceNode {
			var chains []model.WorkflowChain
			if err := root.Decode(&chains); err != nil {
				return nil, fmt.Errorf("decode chains at line %d: %w", root.Line, err)
			}
			out = append(out, chains...)
			continue
		}
		var c model.WorkflowChain
		if err := root.Decode(&c); err != nil {
			return nil, fmt.Errorf("decode chain at line %d: %w", root.Line, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Check returns every step command that does not exist. When only is
// non-empty, steps on other slugs are skipped. Unknown slugs count as
// broken references.
func Check(ctx context.Context, c Checker, chains []model.WorkflowChain, only map[string]bool) ([]Broken, error) {
	type key struct{ slug, id string }
	cache := make(map[key]bool)

	var out []Broken
	for _, ch := range chains {
		name := ch.ID
		if name == "" {
			name = ch.Slug
		}
		for i, step := range ch.Steps {
			if len(only) > 0 && !only[step.Slug] {
				continue
			}
			for _, id := range step.Commands {
				k := key{step.Slug, id}
				ok, seen := cache[k]
				if !seen {
					var err error
					ok, err = c.CommandExists(ctx, step.Slug, id)
					if errors.Is(err, store.ErrNotFound) {
						ok, err = false, nil
					}
					if err != nil {
						return nil, fmt.Errorf("check %s/%s: %w", step.Slug, id, err)
					}
					cache[k] = ok
				}
				if !ok {
					out = append(out, Broken{Chain: name, Step: i + 1, Slug: step.Slug, CommandID: id})
				}
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Chain != out[j].Chain {
			return out[i].Chain < out[j].Chain
		}
		return out[i].Step < out[j].Step
	})
	return out, nil
}
