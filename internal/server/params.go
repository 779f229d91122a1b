package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/scbrown/clicat/internal/model"
	"github.com/scbrown/clicat/internal/store"
)

func parseInt(r *http.Request, key string) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, s)
	}
	return n, nil
}

func parseListOpts(r *http.Request) (store.ListOpts, error) {
	limit, err := parseInt(r, "limit")
	if err != nil {
		return store.ListOpts{}, err
	}
	return store.ListOpts{
		Tag:      r.URL.Query().Get("tag"),
		Category: r.URL.Query().Get("category"),
		Limit:    limit,
	}, nil
}

func parseCurationOpts(r *http.Request) (store.CurationOpts, error) {
	limit, err := parseInt(r, "limit")
	if err != nil {
		return store.CurationOpts{}, err
	}
	kind := model.CurationKind(r.URL.Query().Get("kind"))
	switch kind {
	case "", model.CurationAmbiguous, model.CurationCollision,
		model.CurationVerifiedConflict, model.CurationPossibleDuplicate:
	default:
		return store.CurationOpts{}, fmt.Errorf("invalid kind %q", kind)
	}
	return store.CurationOpts{
		Kind:  kind,
		Slug:  r.URL.Query().Get("slug"),
		Limit: limit,
	}, nil
}
