package taiga

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const apiPrefix = "/api/v1"

// Client is a thin HTTP client for the Taiga REST API. It handles Bearer
// token authentication and resolves pagination internally: every list
// method returns the complete collection, never a partial page.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a Taiga client for the given instance base URL
// (e.g. https://api.taiga.io) authenticating with an auth token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListIssues returns all issues in the project.
func (c *Client) ListIssues(ctx context.Context, projectID int) ([]*Record, error) {
	return c.listRecords(ctx, "/issues", url.Values{"project": {strconv.Itoa(projectID)}})
}

// ListUserStories returns all user stories in the project.
func (c *Client) ListUserStories(ctx context.Context, projectID int) ([]*Record, error) {
	return c.listRecords(ctx, "/userstories", url.Values{"project": {strconv.Itoa(projectID)}})
}

// ListStoryTasks returns all tasks attached to the given user story.
func (c *Client) ListStoryTasks(ctx context.Context, userStoryID int) ([]*Record, error) {
	return c.listRecords(ctx, "/tasks", url.Values{"user_story": {strconv.Itoa(userStoryID)}})
}

// listRecords walks a paginated list endpoint until the API reports no
// further pages.
func (c *Client) listRecords(ctx context.Context, path string, params url.Values) ([]*Record, error) {
	var all []*Record

	for page := 1; ; page++ {
		pageParams := url.Values{}
		for key, values := range params {
			pageParams[key] = values
		}
		pageParams.Set("page", strconv.Itoa(page))

		records, hasNext, err := c.getPage(ctx, path, pageParams)
		if err != nil {
			return nil, err
		}

		all = append(all, records...)
		if !hasNext {
			return all, nil
		}
	}
}

// getPage fetches a single page and reports whether the API advertises a
// subsequent one (via the x-pagination-next header).
func (c *Client) getPage(ctx context.Context, path string, params url.Values) ([]*Record, bool, error) {
	endpoint := c.baseURL + apiPrefix + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("cannot create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("cannot execute GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("cannot read response from GET %s: %w", path, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, false, fmt.Errorf("authentication failed (401) for %s: check your auth token", c.baseURL)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Detail != "" {
			return nil, false, fmt.Errorf("taiga API error (%d) on GET %s: %s", resp.StatusCode, path, apiErr.Detail)
		}
		return nil, false, fmt.Errorf("unexpected status %d on GET %s: %s", resp.StatusCode, path, string(body))
	}

	var records []*Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, false, fmt.Errorf("cannot unmarshal response from GET %s: %w", path, err)
	}

	hasNext := resp.Header.Get("X-Pagination-Next") != ""
	return records, hasNext, nil
}
