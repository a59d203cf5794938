package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("tok", "octo", "demo").WithBaseURL(srv.URL)
}

func TestCreateIssue(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]interface{}
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"number": 42, "html_url": "https://github.com/octo/demo/issues/42"}`))
	})

	number, url, err := c.CreateIssue(context.Background(), "login fails", "body text", []string{"bug"})
	require.NoError(t, err)
	assert.Equal(t, 42, number)
	assert.Equal(t, "https://github.com/octo/demo/issues/42", url)
	assert.Equal(t, "POST /repos/octo/demo/issues", gotPath)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "login fails", gotBody["title"])
	assert.Equal(t, []interface{}{"bug"}, gotBody["labels"])
}

func TestCloseIssueCommentsFirst(t *testing.T) {
	var calls []string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	})

	require.NoError(t, c.CloseIssue(context.Background(), 7, "duplicate"))
	assert.Equal(t, []string{
		"POST /repos/octo/demo/issues/7/comments",
		"PATCH /repos/octo/demo/issues/7",
	}, calls, "the reason lands in tracker history before the close")
}

func TestCloseIssueWithoutReasonSkipsComment(t *testing.T) {
	var calls []string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	})

	require.NoError(t, c.CloseIssue(context.Background(), 7, ""))
	assert.Equal(t, []string{"PATCH /repos/octo/demo/issues/7"}, calls)
}

func TestMergePRStrategy(t *testing.T) {
	var gotBody map[string]interface{}
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PUT", r.Method)
		assert.Equal(t, "/repos/octo/demo/pulls/87/merge", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"merged": true}`))
	})

	require.NoError(t, c.MergePR(context.Background(), 87, "squash"))
	assert.Equal(t, "squash", gotBody["merge_method"])

	require.NoError(t, c.MergePR(context.Background(), 87, ""))
	assert.Equal(t, "merge", gotBody["merge_method"], "empty strategy falls back to merge")
}

func TestReviewPRVerdicts(t *testing.T) {
	var gotBody map[string]interface{}
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/octo/demo/pulls/87/reviews", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{}`))
	})

	require.NoError(t, c.ReviewPR(context.Background(), 87, "approve", "lgtm"))
	assert.Equal(t, "APPROVE", gotBody["event"])

	require.NoError(t, c.ReviewPR(context.Background(), 87, "request-changes", "missing tests"))
	assert.Equal(t, "REQUEST_CHANGES", gotBody["event"])
	assert.Equal(t, "missing tests", gotBody["body"])

	err := c.ReviewPR(context.Background(), 87, "maybe", "")
	assert.Error(t, err, "unknown verdicts never reach the wire")
}

func TestFetchIssueBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET /repos/octo/demo/issues/42", r.Method+" "+r.URL.Path)
		_, _ = w.Write([]byte(`{"body": "the details"}`))
	})

	body, err := c.FetchIssueBody(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "the details", body)
}

func TestRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"number": 1, "html_url": "u"}`))
	})

	number, _, err := c.CreateIssue(context.Background(), "t", "b", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, number)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message": "Validation Failed"}`))
	})

	_, _, err := c.CreateIssue(context.Background(), "t", "b", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Equal(t, int32(1), calls.Load(), "4xx is permanent")
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := c.CreateIssue(ctx, "t", "b", nil)
	require.Error(t, err)
}
