package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/scbrown/clicat/internal/model"
)

// StreamVerifications decodes a stream of verification results (JSON
// objects, one after another, as JSONL) and calls fn for each until EOF or
// ctx is done. fn errors are not fatal; they are passed to onErr.
func StreamVerifications(ctx context.Context, r io.Reader, fn func(model.VerificationResult) error, onErr func(n int, err error)) (int, error) {
	dec := json.NewDecoder(r)
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		var res model.VerificationResult
		err := dec.Decode(&res)
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("verification %d: %w", n+1, err)
		}
		n++
		if err := fn(res); err != nil && onErr != nil {
			onErr(n, err)
		}
	}
}
