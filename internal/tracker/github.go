// Package tracker provides the GitHub-backed issue/PR system of record.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultAPIEndpoint is the GitHub REST API base URL.
const DefaultAPIEndpoint = "https://api.github.com"

// DefaultTimeout bounds each individual API call.
const DefaultTimeout = 30 * time.Second

// maxRetryElapsed caps the total time spent retrying transient failures.
const maxRetryElapsed = 2 * time.Minute

// Client talks to the GitHub REST API for one repository.
type Client struct {
	Token      string
	Owner      string
	Repo       string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new GitHub client.
func NewClient(token, owner, repo string) *Client {
	return &Client{
		Token:   token,
		Owner:   owner,
		Repo:    repo,
		BaseURL: DefaultAPIEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithBaseURL returns a new client with a custom base URL (for testing
// or GitHub Enterprise).
func (c *Client) WithBaseURL(baseURL string) *Client {
	return &Client{
		Token:      c.Token,
		Owner:      c.Owner,
		Repo:       c.Repo,
		BaseURL:    baseURL,
		HTTPClient: c.HTTPClient,
	}
}

// repoPath returns the "owner/repo" path segment.
func (c *Client) repoPath() string {
	return c.Owner + "/" + c.Repo
}

// transientError marks an API failure worth retrying (5xx, rate limit).
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// doRequest performs an HTTP request with authentication, retrying
// transient failures with exponential backoff until the context or the
// retry budget expires.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var jsonBody []byte
	if body != nil {
		var err error
		jsonBody, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}
	urlStr := c.BaseURL + path

	var respBody []byte
	op := func() error {
		var reqBody io.Reader
		if jsonBody != nil {
			reqBody = bytes.NewReader(jsonBody)
		}
		req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+c.Token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return &transientError{err: fmt.Errorf("request failed: %w", err)}
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &transientError{err: fmt.Errorf("failed to read response: %w", err)}
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			respBody = data
			return nil
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return &transientError{err: fmt.Errorf("github returned %d: %s", resp.StatusCode, string(data))}
		default:
			return backoff.Permanent(fmt.Errorf("github returned %d: %s", resp.StatusCode, string(data)))
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxRetryElapsed
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return respBody, nil
}

// CreateIssue creates a new issue and returns its number and URL.
func (c *Client) CreateIssue(ctx context.Context, title, body string, labels []string) (int, string, error) {
	payload := map[string]interface{}{
		"title":  title,
		"body":   body,
		"labels": labels,
	}
	data, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/issues", c.repoPath()), payload)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create issue: %w", err)
	}
	var out struct {
		Number  int    `json:"number"`
		HTMLURL string `json:"html_url"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, "", fmt.Errorf("failed to parse issue response: %w", err)
	}
	return out.Number, out.HTMLURL, nil
}

// CloseIssue closes an issue, recording the reason as a comment first so
// it survives in the tracker's history.
func (c *Client) CloseIssue(ctx context.Context, number int, reason string) error {
	if reason != "" {
		comment := map[string]interface{}{"body": "Closing: " + reason}
		if _, err := c.doRequest(ctx, http.MethodPost,
			fmt.Sprintf("/repos/%s/issues/%d/comments", c.repoPath(), number), comment); err != nil {
			return fmt.Errorf("failed to comment on issue %d: %w", number, err)
		}
	}
	payload := map[string]interface{}{"state": "closed"}
	if _, err := c.doRequest(ctx, http.MethodPatch,
		fmt.Sprintf("/repos/%s/issues/%d", c.repoPath(), number), payload); err != nil {
		return fmt.Errorf("failed to close issue %d: %w", number, err)
	}
	return nil
}

// MergePR merges a pull request with the given strategy
// (merge, squash or rebase).
func (c *Client) MergePR(ctx context.Context, pr int, strategy string) error {
	if strategy == "" {
		strategy = "merge"
	}
	payload := map[string]interface{}{"merge_method": strategy}
	if _, err := c.doRequest(ctx, http.MethodPut,
		fmt.Sprintf("/repos/%s/pulls/%d/merge", c.repoPath(), pr), payload); err != nil {
		return fmt.Errorf("failed to merge PR %d: %w", pr, err)
	}
	return nil
}

// ReviewPR submits a review on a pull request. verdict is "approve" or
// "request-changes".
func (c *Client) ReviewPR(ctx context.Context, pr int, verdict, body string) error {
	event := ""
	switch verdict {
	case "approve":
		event = "APPROVE"
	case "request-changes":
		event = "REQUEST_CHANGES"
	default:
		return fmt.Errorf("unknown review verdict: %s", verdict)
	}
	payload := map[string]interface{}{"event": event, "body": body}
	if _, err := c.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("/repos/%s/pulls/%d/reviews", c.repoPath(), pr), payload); err != nil {
		return fmt.Errorf("failed to review PR %d: %w", pr, err)
	}
	return nil
}

// FetchIssueBody returns the body text of an issue.
func (c *Client) FetchIssueBody(ctx context.Context, number int) (string, error) {
	data, err := c.doRequest(ctx, http.MethodGet,
		fmt.Sprintf("/repos/%s/issues/%d", c.repoPath(), number), nil)
	if err != nil {
		return "", fmt.Errorf("failed to fetch issue %d: %w", number, err)
	}
	var out struct {
		Body string `json:"body"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("failed to parse issue response: %w", err)
	}
	return out.Body, nil
}
