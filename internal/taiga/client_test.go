package taiga

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ListIssues_Pagination(t *testing.T) {
	var authHeaders []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeaders = append(authHeaders, r.Header.Get("Authorization"))

		assert.Equal(t, "/api/v1/issues", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("project"))

		switch r.URL.Query().Get("page") {
		case "1":
			w.Header().Set("X-Pagination-Next", "http://next-page")
			fmt.Fprint(w, `[{"id": 1, "ref": 10, "subject": "First"}, {"id": 2, "ref": 11, "subject": "Second"}]`)
		case "2":
			fmt.Fprint(w, `[{"id": 3, "ref": 12, "subject": "Third"}]`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-token")
	records, err := client.ListIssues(context.Background(), 42)

	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "First", records[0].Subject)
	assert.Equal(t, 12, records[2].Ref)
	assert.Equal(t, []string{"Bearer secret-token", "Bearer secret-token"}, authHeaders)
}

func TestClient_ListStoryTasks_FiltersByStory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tasks", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("user_story"))
		fmt.Fprint(w, `[{"id": 1, "ref": 100, "subject": "A task", "user_story": 7}]`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-token")
	records, err := client.ListStoryTasks(context.Background(), 7)

	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].UserStory)
	assert.Equal(t, 7, *records[0].UserStory)
}

func TestClient_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "bad-token")
	_, err := client.ListIssues(context.Background(), 42)

	require.Error(t, err)
	assert.ErrorContains(t, err, "authentication failed (401)")
	assert.ErrorContains(t, err, "check your auth token")
}

func TestClient_APIErrorDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"_error_type": "taiga.base.exceptions.NotFound", "_error_message": "No project found"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-token")
	_, err := client.ListIssues(context.Background(), 42)

	require.Error(t, err)
	assert.ErrorContains(t, err, "taiga API error (404)")
	assert.ErrorContains(t, err, "No project found")
}

func TestRecord_UnmarshalKeepsRawObject(t *testing.T) {
	payload := `{
		"id": 1, "ref": 10, "subject": "First",
		"status": 3, "status_extra_info": {"name": "Open", "is_closed": false},
		"generated_user_stories": {"count": 2}
	}`

	var record Record
	require.NoError(t, json.Unmarshal([]byte(payload), &record))

	assert.Equal(t, 3, record.StatusID)
	require.NotNil(t, record.StatusInfo)
	assert.Equal(t, "Open", record.StatusInfo.Name)

	// unlisted fields stay reachable through the raw object
	require.Contains(t, record.Raw, "generated_user_stories")
	nested := record.Raw["generated_user_stories"].(map[string]any)
	assert.Equal(t, float64(2), nested["count"])
}

func TestTagList_Unmarshal(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected TagList
	}{
		{"plain strings", `["backend", "urgent"]`, TagList{"backend", "urgent"}},
		{"name-color pairs", `[["backend", "#a8c6f0"], ["urgent", null]]`, TagList{"backend", "urgent"}},
		{"null tags", `null`, TagList{}},
		{"empty list", `[]`, TagList{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var tags TagList
			require.NoError(t, json.Unmarshal([]byte(tc.input), &tags))
			assert.Equal(t, tc.expected, tags)
		})
	}
}
