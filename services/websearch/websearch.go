// Package websearch implements a minimal gateway.Service reference stub
// for the "web_search" tool. Web-search ranking algorithms are explicitly
// out of scope (spec.md's Non-goals); this stub is a thin HTTP client over
// a caller-configured search endpoint returning a uniform {title, url,
// snippet} result shape, so end-to-end scenarios have a real collaborator
// to exercise without depending on any one search provider's SDK.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/opencode-ai/orchestrator/orcherrors"
)

// CapabilitySearch is the method name this service exposes.
const CapabilitySearch = "web_search"

// HTTPClient is the subset of *http.Client the Service needs, so tests can
// substitute a server-backed client without network access.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Service queries endpoint with the task's "query" parameter and returns
// up to DefaultLimit results.
type Service struct {
	client   HTTPClient
	endpoint string
}

// DefaultLimit bounds how many results Execute returns per search.
const DefaultLimit = 5

// New constructs a websearch Service that queries endpoint (expected to
// accept a "q" query parameter and respond with a JSON array of Result).
func New(client HTTPClient, endpoint string) *Service {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Service{client: client, endpoint: endpoint}
}

// ServiceID identifies this service to the Gateway.
func (s *Service) ServiceID() string { return "websearch" }

// Capabilities lists the methods this service exposes.
func (s *Service) Capabilities() []string { return []string{CapabilitySearch} }

// Execute issues the search query carried in params["query"].
func (s *Service) Execute(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	if method != CapabilitySearch {
		return nil, orcherrors.Wrap(orcherrors.KindBusiness, fmt.Errorf("websearch: unsupported method %q", method))
	}
	query, _ := params["query"].(string)
	if query == "" {
		return nil, orcherrors.Wrap(orcherrors.KindBusiness, fmt.Errorf("websearch: %s requires a non-empty query", CapabilitySearch))
	}

	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, orcherrors.Wrap(orcherrors.KindBusiness, fmt.Errorf("websearch: invalid endpoint: %w", err))
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, orcherrors.Wrap(orcherrors.KindBusiness, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, orcherrors.Wrap(orcherrors.KindTransientTransport, fmt.Errorf("websearch: request failed: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return nil, orcherrors.Wrap(orcherrors.KindTransientTransport, fmt.Errorf("websearch: endpoint returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return nil, orcherrors.Wrap(orcherrors.KindBusiness, fmt.Errorf("websearch: endpoint returned %d", resp.StatusCode))
	}

	var results []Result
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, orcherrors.Wrap(orcherrors.KindBusiness, fmt.Errorf("websearch: decode response: %w", err))
	}
	if len(results) > DefaultLimit {
		results = results[:DefaultLimit]
	}

	out := make([]any, 0, len(results))
	for _, r := range results {
		out = append(out, map[string]any{"title": r.Title, "url": r.URL, "snippet": r.Snippet})
	}
	return map[string]any{"results": out}, nil
}

// HealthCheck probes the configured endpoint.
func (s *Service) HealthCheck(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.endpoint, nil)
	if err != nil {
		return false, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500, nil
}

// Shutdown releases no resources.
func (s *Service) Shutdown(context.Context) error { return nil }
