package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/scbrown/clicat/internal/model"
)

// RemoteStore implements Reader by forwarding requests over HTTP to a
// clicat serve instance.
type RemoteStore struct {
	baseURL string
	client  *http.Client
}

var _ Reader = (*RemoteStore)(nil)

// NewRemote creates a RemoteStore pointing at the given base URL (e.g., "http://localhost:7274").
func NewRemote(baseURL string) *RemoteStore {
	return &RemoteStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (r *RemoteStore) GetProfile(ctx context.Context, slug string) (*model.Profile, error) {
	var p model.Profile
	if err := r.getJSON(ctx, "/api/v1/profiles/"+url.PathEscape(slug), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *RemoteStore) ListProfiles(ctx context.Context, opts ListOpts) ([]model.Profile, error) {
	q := url.Values{}
	if opts.Tag != "" {
		q.Set("tag", opts.Tag)
	}
	if opts.Category != "" {
		q.Set("category", opts.Category)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	var profiles []model.Profile
	if err := r.getJSON(ctx, "/api/v1/profiles", q, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *RemoteStore) ListByBinary(ctx context.Context, binary string) ([]model.Profile, error) {
	var profiles []model.Profile
	if err := r.getJSON(ctx, "/api/v1/binaries/"+url.PathEscape(binary), nil, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *RemoteStore) VersionHistory(ctx context.Context, slug string) ([]model.ListingVersion, error) {
	var versions []model.ListingVersion
	if err := r.getJSON(ctx, "/api/v1/profiles/"+url.PathEscape(slug)+"/versions", nil, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

func (r *RemoteStore) GetCompatibility(ctx context.Context, slug, agent string) (*model.CompatibilityRecord, error) {
	var rec model.CompatibilityRecord
	path := "/api/v1/profiles/" + url.PathEscape(slug) + "/compatibility/" + url.PathEscape(agent)
	if err := r.getJSON(ctx, path, nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RemoteStore) ListCompatibility(ctx context.Context, slug string) ([]model.CompatibilityRecord, error) {
	var recs []model.CompatibilityRecord
	if err := r.getJSON(ctx, "/api/v1/profiles/"+url.PathEscape(slug)+"/compatibility", nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *RemoteStore) CommandExists(ctx context.Context, slug, id string) (bool, error) {
	var resp struct {
		Exists bool `json:"exists"`
	}
	path := "/api/v1/profiles/" + url.PathEscape(slug) + "/commands/" + url.PathEscape(id)
	if err := r.getJSON(ctx, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.Exists, nil
}

func (r *RemoteStore) ListCuration(ctx context.Context, opts CurationOpts) ([]model.CurationItem, error) {
	q := url.Values{}
	if opts.Kind != "" {
		q.Set("kind", string(opts.Kind))
	}
	if opts.Slug != "" {
		q.Set("slug", opts.Slug)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	var items []model.CurationItem
	if err := r.getJSON(ctx, "/api/v1/curation", q, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SubmitVerifications posts verification results to the remote scorer.
func (r *RemoteStore) SubmitVerifications(ctx context.Context, results []model.VerificationResult) error {
	return r.postJSON(ctx, "/api/v1/verifications", results, nil)
}

// Close is a no-op for the remote store.
func (r *RemoteStore) Close() error {
	return nil
}

// getJSON performs a GET request and decodes the JSON response into dst.
func (r *RemoteStore) getJSON(ctx context.Context, path string, query url.Values, dst any) error {
	u := r.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return remoteError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// postJSON performs a POST request with a JSON body and optionally decodes the response.
func (r *RemoteStore) postJSON(ctx context.Context, path string, body any, dst any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	u := r.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return remoteError(resp)
	}
	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// remoteError reads an error response from the server and returns it as an
// error. 404 responses wrap ErrNotFound.
func remoteError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var errResp struct {
		Error string `json:"error"`
	}
	msg := http.StatusText(resp.StatusCode)
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		msg = errResp.Error
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("remote store: %s: %w", msg, ErrNotFound)
	}
	return fmt.Errorf("remote store (%d): %s", resp.StatusCode, msg)
}
