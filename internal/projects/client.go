// Package projects fetches project portfolio data from the AirSaas API and
// assembles it into the snapshot consumed by report generation.
package projects

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AirSaas/flash-reports-poc-sub000/internal/cache"
	"github.com/AirSaas/flash-reports-poc-sub000/internal/config"
)

const (
	maxRateLimitRetries = 3
	defaultPageSize     = 20
	referenceCacheKey   = "reference_data"
)

type Client struct {
	baseURL    string
	apiKey     string
	maxPages   int
	httpClient *http.Client
	refCache   *cache.TTLCache
	log        *zap.SugaredLogger
}

func NewClient(cfg *config.Config, refCache *cache.TTLCache) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.Projects.BaseURL, "/"),
		apiKey:     cfg.Projects.APIKey,
		maxPages:   cfg.Projects.MaxPages,
		httpClient: &http.Client{Timeout: cfg.Projects.Timeout},
		refCache:   refCache,
		log:        zap.S().Named("projects"),
	}
}

// FetchProjectData pulls everything the report needs for one project. Partial
// failures on secondary endpoints degrade to empty sections instead of
// failing the whole fetch; only a missing project itself is an error.
func (c *Client) FetchProjectData(ctx context.Context, projectID string) (map[string]any, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("missing projects API key")
	}

	results := map[string]any{}

	refData, err := c.fetchReferenceData(ctx)
	if err != nil {
		c.log.Errorw("failed to fetch reference data", "error", err)
		refData = map[string]any{"moods": []any{}, "statuses": []any{}, "risks": []any{}}
	}
	results[referenceCacheKey] = refData

	projectURL := fmt.Sprintf("%s/projects/%s/?expand=owner,program,goals,teams,requesting_team", c.baseURL, projectID)
	project, err := c.getJSON(ctx, projectURL)
	if err != nil {
		return nil, fmt.Errorf("fetching project %s: %w", projectID, err)
	}
	results["project"] = project

	simpleEndpoints := []struct {
		key string
		url string
	}{
		{"members", fmt.Sprintf("%s/projects/%s/members/", c.baseURL, projectID)},
		{"efforts", fmt.Sprintf("%s/projects/%s/efforts/", c.baseURL, projectID)},
		{"budget_lines", fmt.Sprintf("%s/projects/%s/budget_lines/", c.baseURL, projectID)},
		{"budget_values", fmt.Sprintf("%s/projects/%s/budget_values/", c.baseURL, projectID)},
	}
	for _, ep := range simpleEndpoints {
		data, err := c.getJSON(ctx, ep.url)
		if err != nil {
			c.log.Errorw("failed to fetch endpoint", "endpoint", ep.key, "error", err)
			results[ep.key] = nil
			continue
		}
		if inner, ok := data["results"]; ok {
			results[ep.key] = inner
		} else {
			results[ep.key] = data
		}
	}

	paginatedEndpoints := []struct {
		key string
		url string
	}{
		{"milestones", fmt.Sprintf("%s/milestones/?project=%s&expand=owner,team,project", c.baseURL, projectID)},
		{"decisions", fmt.Sprintf("%s/decisions/?project=%s&expand=owner,decision_maker,project", c.baseURL, projectID)},
		{"attention_points", fmt.Sprintf("%s/attention_points/?project=%s&expand=owner,project", c.baseURL, projectID)},
	}
	for _, ep := range paginatedEndpoints {
		items, err := c.fetchPaginated(ctx, ep.url)
		if err != nil {
			c.log.Errorw("failed to fetch endpoint", "endpoint", ep.key, "error", err)
			results[ep.key] = []any{}
			continue
		}
		results[ep.key] = items
	}

	return results, nil
}

// fetchReferenceData loads the shared lookup tables (moods, statuses, risks)
// behind a TTL cache since they barely ever change.
func (c *Client) fetchReferenceData(ctx context.Context) (map[string]any, error) {
	if cached, found := c.refCache.Get(referenceCacheKey); found {
		if refData, ok := cached.(map[string]any); ok {
			return refData, nil
		}
	}

	refData := map[string]any{}
	for _, name := range []string{"moods", "statuses", "risks"} {
		url := fmt.Sprintf("%s/projects_%s/", c.baseURL, name)
		data, err := c.getJSON(ctx, url)
		if err != nil {
			c.log.Warnw("failed to fetch reference endpoint", "endpoint", name, "error", err)
			refData[name] = []any{}
			continue
		}
		if inner, ok := data["results"]; ok {
			refData[name] = inner
		} else {
			refData[name] = []any{}
		}
	}

	c.refCache.Set(referenceCacheKey, refData)
	return refData, nil
}

// fetchPaginated walks a paginated endpoint following the "next" links up to
// the configured page limit.
func (c *Client) fetchPaginated(ctx context.Context, baseURL string) ([]any, error) {
	url := baseURL
	if !strings.Contains(url, "page_size=") {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url += sep + "page_size=" + strconv.Itoa(defaultPageSize)
	}

	var all []any
	pageCount := 0
	for url != "" {
		data, err := c.getJSON(ctx, url)
		if err != nil {
			if pageCount == 0 {
				return nil, err
			}
			c.log.Errorw("failed to fetch page, returning partial results", "url", url, "error", err)
			break
		}

		if items, ok := data["results"].([]any); ok {
			all = append(all, items...)
		}
		pageCount++

		if c.maxPages > 0 && pageCount >= c.maxPages {
			if count, ok := data["count"].(float64); ok && int(count) > len(all) {
				c.log.Infow("reached page limit", "pages", pageCount, "fetched", len(all), "total", int(count))
			}
			break
		}

		url, _ = data["next"].(string)
	}

	if all == nil {
		all = []any{}
	}
	return all, nil
}

// getJSON performs a GET with rate limit handling: a 429 response is retried
// after the Retry-After delay, up to maxRateLimitRetries attempts.
func (c *Client) getJSON(ctx context.Context, url string) (map[string]any, error) {
	for attempt := 0; attempt < maxRateLimitRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Api-Key "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfter(resp, attempt)
			resp.Body.Close()
			c.log.Warnw("rate limited", "url", url, "wait", wait)
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("GET %s returned %d", url, resp.StatusCode)
		}

		var data map[string]any
		if err := json.Unmarshal(body, &data); err != nil {
			return nil, fmt.Errorf("decoding response from %s: %w", url, err)
		}
		return data, nil
	}

	return nil, fmt.Errorf("GET %s failed after %d retries due to rate limiting", url, maxRateLimitRetries)
}

func retryAfter(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return time.Duration(attempt+1) * time.Second
}
