package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dyluth/assay/pkg/bioactivity"
)

// maxPages bounds pagination so a misbehaving server cannot loop forever.
const maxPages = 10000

// TargetQuery selects the biological target and activity kind to fetch.
type TargetQuery struct {
	Keyword      string // free-text target search, e.g. "acetylcholinesterase"
	Index        int    // which search hit to use
	ActivityType string // e.g. "Ki"
}

// Target is one hit of a target search.
type Target struct {
	ChEMBLID   string `json:"target_chembl_id"`
	PrefName   string `json:"pref_name"`
	Organism   string `json:"organism"`
	TargetType string `json:"target_type"`
}

// Source returns raw bioactivity records for a target query.
type Source interface {
	Fetch(ctx context.Context, q TargetQuery) ([]bioactivity.RawRecord, error)
}

// ChEMBLClient fetches bioactivity records from the ChEMBL REST API.
type ChEMBLClient struct {
	baseURL    *url.URL
	pageSize   int
	httpClient *http.Client
}

// NewChEMBLClient creates a client for the given API base URL,
// e.g. https://www.ebi.ac.uk/chembl/api/data.
func NewChEMBLClient(baseURL string, pageSize int, httpClient *http.Client) (*ChEMBLClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ChEMBL base URL: %w", err)
	}
	if pageSize < 1 {
		return nil, fmt.Errorf("page size must be >= 1, got %d", pageSize)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	return &ChEMBLClient{
		baseURL:    u,
		pageSize:   pageSize,
		httpClient: httpClient,
	}, nil
}

// SearchTargets runs a free-text target search.
func (c *ChEMBLClient) SearchTargets(ctx context.Context, keyword string) ([]Target, error) {
	params := url.Values{}
	params.Set("q", keyword)
	params.Set("format", "json")

	var resp struct {
		Targets []Target `json:"targets"`
	}
	if err := c.getJSON(ctx, c.endpoint("target/search.json", params), &resp); err != nil {
		return nil, fmt.Errorf("failed to search targets: %w", err)
	}

	return resp.Targets, nil
}

// Fetch resolves the query's target and returns all of its activities of the
// requested type, following pagination.
func (c *ChEMBLClient) Fetch(ctx context.Context, q TargetQuery) ([]bioactivity.RawRecord, error) {
	targets, err := c.SearchTargets(ctx, q.Keyword)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: no targets match %q", bioactivity.ErrDataQuality, q.Keyword)
	}
	if q.Index < 0 || q.Index >= len(targets) {
		return nil, fmt.Errorf("%w: target index %d out of range (%d targets match %q)",
			bioactivity.ErrConfiguration, q.Index, len(targets), q.Keyword)
	}

	target := targets[q.Index]
	log.Printf("[Ingest] Selected target %s (%s, %s)", target.ChEMBLID, target.PrefName, target.Organism)

	return c.FetchActivities(ctx, target.ChEMBLID, q.ActivityType)
}

// FetchActivities pages through the activities of one target.
func (c *ChEMBLClient) FetchActivities(ctx context.Context, targetID, activityType string) ([]bioactivity.RawRecord, error) {
	params := url.Values{}
	params.Set("target_chembl_id", targetID)
	params.Set("standard_type", activityType)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(c.pageSize))

	next := c.endpoint("activity.json", params)
	var records []bioactivity.RawRecord

	for page := 0; next != ""; page++ {
		if page >= maxPages {
			return nil, fmt.Errorf("activity pagination exceeded %d pages", maxPages)
		}

		var resp activityPage
		if err := c.getJSON(ctx, next, &resp); err != nil {
			return nil, fmt.Errorf("failed to fetch activities page %d: %w", page, err)
		}

		for i, a := range resp.Activities {
			if a.MoleculeID == nil {
				return nil, fmt.Errorf("%w: activity %d on page %d has no molecule_chembl_id",
					bioactivity.ErrDataQuality, i, page)
			}
			records = append(records, bioactivity.RawRecord{
				MoleculeID:      *a.MoleculeID,
				CanonicalSmiles: a.CanonicalSmiles,
				StandardValue:   a.StandardValue.ptr(),
				StandardType:    a.StandardType,
				StandardUnits:   a.StandardUnits,
			})
		}

		nextURL, err := c.resolveNext(resp.PageMeta.Next)
		if err != nil {
			return nil, err
		}
		next = nextURL
	}

	log.Printf("[Ingest] Fetched %d %s activities for %s", len(records), activityType, targetID)
	return records, nil
}

// endpoint builds an absolute URL under the base path.
func (c *ChEMBLClient) endpoint(path string, params url.Values) string {
	u := *c.baseURL
	u.Path = joinPath(u.Path, path)
	u.RawQuery = params.Encode()
	return u.String()
}

// resolveNext turns page_meta.next (absolute path or full URL) into a URL.
func (c *ChEMBLClient) resolveNext(next *string) (string, error) {
	if next == nil || *next == "" {
		return "", nil
	}
	ref, err := url.Parse(*next)
	if err != nil {
		return "", fmt.Errorf("invalid next page link %q: %w", *next, err)
	}
	return c.baseURL.ResolveReference(ref).String(), nil
}

func (c *ChEMBLClient) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: invalid JSON response: %v", bioactivity.ErrDataQuality, err)
	}

	return nil
}

type activityPage struct {
	Activities []activityJSON `json:"activities"`
	PageMeta   struct {
		Next       *string `json:"next"`
		TotalCount int     `json:"total_count"`
	} `json:"page_meta"`
}

type activityJSON struct {
	MoleculeID      *string       `json:"molecule_chembl_id"`
	CanonicalSmiles *string       `json:"canonical_smiles"`
	StandardValue   nullableFloat `json:"standard_value"`
	StandardType    string        `json:"standard_type"`
	StandardUnits   string        `json:"standard_units"`
}

// nullableFloat decodes a JSON number, a numeric string, or null.
// ChEMBL serializes standard_value as a string.
type nullableFloat struct {
	value float64
	valid bool
}

func (n *nullableFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = nullableFloat{}
		return nil
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		if raw == "" {
			*n = nullableFloat{}
			return nil
		}
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid standard_value %q: %w", raw, err)
	}
	*n = nullableFloat{value: v, valid: true}
	return nil
}

func (n nullableFloat) ptr() *float64 {
	if !n.valid {
		return nil
	}
	v := n.value
	return &v
}

func joinPath(base, elem string) string {
	if len(base) > 0 && base[len(base)-1] == '/' {
		return base + elem
	}
	return base + "/" + elem
}

// truncate limits a string to maxLen characters, appending "..." if truncated
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
