package executor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petr-muller/taiga-query/internal/search/parser"
	"github.com/petr-muller/taiga-query/internal/search/query"
	"github.com/petr-muller/taiga-query/internal/taiga"
)

// fixedNow keeps the relative-time vocabulary deterministic in tests.
var fixedNow = time.Date(2026, time.March, 18, 12, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	issues     []*taiga.Record
	stories    []*taiga.Record
	tasks      map[int][]*taiga.Record
	taskErrors map[int]error
	listErr    error

	storyTaskCalls []int
}

func (f *fakeFetcher) ListIssues(_ context.Context, _ int) ([]*taiga.Record, error) {
	return f.issues, f.listErr
}

func (f *fakeFetcher) ListUserStories(_ context.Context, _ int) ([]*taiga.Record, error) {
	return f.stories, f.listErr
}

func (f *fakeFetcher) ListStoryTasks(_ context.Context, userStoryID int) ([]*taiga.Record, error) {
	f.storyTaskCalls = append(f.storyTaskCalls, userStoryID)
	if err := f.taskErrors[userStoryID]; err != nil {
		return nil, err
	}
	return f.tasks[userStoryID], nil
}

func newTestExecutor(fetcher Fetcher) *Executor {
	e := New(fetcher)
	e.now = func() time.Time { return fixedNow }
	return e
}

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }

func issue(ref int, status string, priority int, opts ...func(*taiga.Record)) *taiga.Record {
	r := &taiga.Record{
		ID:         ref * 100,
		Ref:        ref,
		Subject:    fmt.Sprintf("Issue %d", ref),
		StatusInfo: &taiga.StatusInfo{Name: status},
		Priority:   intPtr(priority),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func story(ref int, points float64, opts ...func(*taiga.Record)) *taiga.Record {
	r := &taiga.Record{
		ID:          ref * 100,
		Ref:         ref,
		Subject:     fmt.Sprintf("Story %d", ref),
		TotalPoints: floatPtr(points),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func withMilestone(name string) func(*taiga.Record) {
	return func(r *taiga.Record) { r.MilestoneName = name }
}

func withAssignee(username string) func(*taiga.Record) {
	return func(r *taiga.Record) {
		r.AssignedToInfo = &taiga.UserInfo{Username: username}
	}
}

func withCreated(date string) func(*taiga.Record) {
	return func(r *taiga.Record) { r.CreatedDate = date }
}

func withPriorityName(name string) func(*taiga.Record) {
	return func(r *taiga.Record) {
		if r.Raw == nil {
			r.Raw = map[string]any{}
		}
		r.Raw["priority_extra_info"] = map[string]any{"name": name}
	}
}

func refs(records []*taiga.Record) []int {
	out := make([]int, 0, len(records))
	for _, r := range records {
		out = append(out, r.Ref)
	}
	return out
}

func mustParse(t *testing.T, text string, entity query.EntityType) *query.Spec {
	t.Helper()
	spec, err := parser.Parse(text, entity)
	require.NoError(t, err)
	return spec
}

func TestExecute_FilterAndOrderAndLimit(t *testing.T) {
	fetcher := &fakeFetcher{issues: []*taiga.Record{
		issue(1, "Open", 3, withCreated("2026-03-01T10:00:00Z")),
		issue(2, "Closed", 3, withCreated("2026-03-05T10:00:00Z")),
		issue(3, "Open", 1, withCreated("2026-03-10T10:00:00Z")),
		issue(4, "Open", 3, withCreated("2026-02-01T10:00:00Z")),
	}}
	e := newTestExecutor(fetcher)

	spec := mustParse(t, "status:open LIMIT 2 ORDER BY created DESC", query.EntityIssue)
	result, err := e.Execute(context.Background(), spec, 42)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, []int{3, 1}, refs(result.Results))
	assert.Equal(t, fixedNow, result.ExecutedAt)
}

func TestExecute_AndRequiresAllClauses(t *testing.T) {
	fetcher := &fakeFetcher{issues: []*taiga.Record{
		issue(1, "Open", 3),
		issue(2, "Open", 1),
		issue(3, "Closed", 3),
	}}
	e := newTestExecutor(fetcher)

	spec := mustParse(t, "status:open AND priority:3", query.EntityIssue)
	result, err := e.Execute(context.Background(), spec, 42)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, refs(result.Results))
}

func TestExecute_PriorityMatchesByName(t *testing.T) {
	fetcher := &fakeFetcher{issues: []*taiga.Record{
		issue(1, "Open", 7, withPriorityName("High")),
		issue(2, "Open", 3, withPriorityName("Low")),
		issue(3, "Closed", 7, withPriorityName("High")),
	}}
	e := newTestExecutor(fetcher)

	spec := mustParse(t, "status:open AND priority:high", query.EntityIssue)
	result, err := e.Execute(context.Background(), spec, 42)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, refs(result.Results))
}

func TestExecute_AndSubsetOfOr(t *testing.T) {
	fetcher := &fakeFetcher{issues: []*taiga.Record{
		issue(1, "Open", 3),
		issue(2, "Open", 1),
		issue(3, "Closed", 3),
		issue(4, "Closed", 1),
	}}
	e := newTestExecutor(fetcher)

	andSpec := mustParse(t, "status:open AND priority:3", query.EntityIssue)
	orSpec := mustParse(t, "status:open OR priority:3", query.EntityIssue)

	andResult, err := e.Execute(context.Background(), andSpec, 42)
	require.NoError(t, err)
	orResult, err := e.Execute(context.Background(), orSpec, 42)
	require.NoError(t, err)

	orRefs := refs(orResult.Results)
	for _, ref := range refs(andResult.Results) {
		assert.Contains(t, orRefs, ref)
	}
	assert.Equal(t, []int{1, 2, 3}, orRefs)
}

func TestExecute_NegatedClause(t *testing.T) {
	fetcher := &fakeFetcher{issues: []*taiga.Record{
		issue(1, "Open", 3),
		issue(2, "Closed", 3),
	}}
	e := newTestExecutor(fetcher)

	spec := mustParse(t, "NOT status:closed", query.EntityIssue)
	result, err := e.Execute(context.Background(), spec, 42)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, refs(result.Results))
}

func TestExecute_BetweenEquivalentToBoundPair(t *testing.T) {
	fetcher := &fakeFetcher{stories: []*taiga.Record{
		story(1, 2), story(2, 3), story(3, 5), story(4, 8), story(5, 13),
	}}
	e := newTestExecutor(fetcher)

	between := mustParse(t, "points:between:[3,8]", query.EntityUserStory)
	bounds := mustParse(t, "points:>=3 AND points:<=8", query.EntityUserStory)

	betweenResult, err := e.Execute(context.Background(), between, 42)
	require.NoError(t, err)
	boundsResult, err := e.Execute(context.Background(), bounds, 42)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3, 4}, refs(betweenResult.Results))
	assert.Equal(t, refs(boundsResult.Results), refs(betweenResult.Results))
}

func TestExecute_MilestoneActiveMeansPresence(t *testing.T) {
	fetcher := &fakeFetcher{issues: []*taiga.Record{
		issue(1, "Open", 3, withMilestone("Sprint 12")),
		issue(2, "Open", 3),
		issue(3, "Closed", 3, withMilestone("Sprint 11")),
	}}
	e := newTestExecutor(fetcher)

	spec := mustParse(t, "milestone:active", query.EntityIssue)
	result, err := e.Execute(context.Background(), spec, 42)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3}, refs(result.Results))
}

func TestExecute_AssigneeEmptyAndNotEmptyPartition(t *testing.T) {
	fetcher := &fakeFetcher{issues: []*taiga.Record{
		issue(1, "Open", 3, withAssignee("alice")),
		issue(2, "Open", 3),
		issue(3, "Open", 3, withAssignee("bob")),
	}}
	e := newTestExecutor(fetcher)

	empty := mustParse(t, "assignee:empty", query.EntityIssue)
	notEmpty := mustParse(t, "assignee:notempty", query.EntityIssue)

	emptyResult, err := e.Execute(context.Background(), empty, 42)
	require.NoError(t, err)
	notEmptyResult, err := e.Execute(context.Background(), notEmpty, 42)
	require.NoError(t, err)

	assert.Equal(t, []int{2}, refs(emptyResult.Results))
	assert.Equal(t, []int{1, 3}, refs(notEmptyResult.Results))
	assert.Equal(t, 3, emptyResult.Total+notEmptyResult.Total)
}

func TestExecute_RelativeTime(t *testing.T) {
	fetcher := &fakeFetcher{issues: []*taiga.Record{
		issue(1, "Open", 3, func(r *taiga.Record) { r.ModifiedDate = "2026-03-16T08:00:00Z" }),
		issue(2, "Open", 3, func(r *taiga.Record) { r.ModifiedDate = "2026-02-01T08:00:00Z" }),
		issue(3, "Open", 3),
	}}
	e := newTestExecutor(fetcher)

	within := mustParse(t, "modified:7d", query.EntityIssue)
	older := mustParse(t, "modified:>7d", query.EntityIssue)

	withinResult, err := e.Execute(context.Background(), within, 42)
	require.NoError(t, err)
	olderResult, err := e.Execute(context.Background(), older, 42)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, refs(withinResult.Results))
	assert.Equal(t, []int{2}, refs(olderResult.Results))
}

func TestExecute_SortIsStableAndMissingValuesSortFirst(t *testing.T) {
	fetcher := &fakeFetcher{issues: []*taiga.Record{
		issue(1, "Open", 3, withMilestone("Beta")),
		issue(2, "Open", 3),
		issue(3, "Open", 3, withMilestone("Alpha")),
		issue(4, "Open", 3, withMilestone("Beta")),
		issue(5, "Open", 3),
	}}
	e := newTestExecutor(fetcher)

	asc := mustParse(t, "status:open ORDER BY milestone ASC", query.EntityIssue)
	ascResult, err := e.Execute(context.Background(), asc, 42)
	require.NoError(t, err)
	// nil first, then Alpha, then the two Betas in input order
	assert.Equal(t, []int{2, 5, 3, 1, 4}, refs(ascResult.Results))

	desc := mustParse(t, "status:open ORDER BY milestone DESC", query.EntityIssue)
	descResult, err := e.Execute(context.Background(), desc, 42)
	require.NoError(t, err)
	// nil still first even descending
	assert.Equal(t, []int{2, 5, 1, 4, 3}, refs(descResult.Results))
}

func TestExecute_LimitIsPrefixOfUnlimited(t *testing.T) {
	fetcher := &fakeFetcher{issues: []*taiga.Record{
		issue(1, "Open", 3), issue(2, "Open", 2), issue(3, "Open", 1), issue(4, "Open", 5),
	}}
	e := newTestExecutor(fetcher)

	full := mustParse(t, "status:open ORDER BY priority", query.EntityIssue)
	limited := mustParse(t, "status:open ORDER BY priority LIMIT 2", query.EntityIssue)

	fullResult, err := e.Execute(context.Background(), full, 42)
	require.NoError(t, err)
	limitedResult, err := e.Execute(context.Background(), limited, 42)
	require.NoError(t, err)

	assert.Equal(t, refs(fullResult.Results)[:2], refs(limitedResult.Results))
	assert.Equal(t, fullResult.Total, limitedResult.Total)
}

func TestExecute_GroupByPartitionsAllMatches(t *testing.T) {
	fetcher := &fakeFetcher{issues: []*taiga.Record{
		issue(1, "Open", 3),
		issue(2, "Closed", 3),
		issue(3, "Open", 3),
		issue(4, "New", 3, func(r *taiga.Record) { r.StatusInfo = nil }),
	}}
	e := newTestExecutor(fetcher)

	spec := mustParse(t, "priority:3 GROUP BY status", query.EntityIssue)
	result, err := e.Execute(context.Background(), spec, 42)
	require.NoError(t, err)

	require.Len(t, result.Groups, 3)
	assert.Empty(t, result.Results)

	total := 0
	for _, group := range result.Groups {
		assert.Equal(t, len(group.Items), group.Count)
		total += group.Count
	}
	assert.Equal(t, result.Total, total)

	// first-seen order, unresolvable key buckets under "undefined"
	assert.Equal(t, "Open", result.Groups[0].Value)
	assert.Equal(t, "Closed", result.Groups[1].Value)
	assert.Equal(t, "undefined", result.Groups[2].Value)
	assert.Equal(t, 2, result.Groups[0].Count)
}

func TestExecute_LimitTruncatesGroups(t *testing.T) {
	fetcher := &fakeFetcher{issues: []*taiga.Record{
		issue(1, "Open", 3), issue(2, "Closed", 3), issue(3, "New", 3),
	}}
	e := newTestExecutor(fetcher)

	spec := mustParse(t, "priority:3 GROUP BY status LIMIT 2", query.EntityIssue)
	result, err := e.Execute(context.Background(), spec, 42)
	require.NoError(t, err)

	assert.Len(t, result.Groups, 2)
	assert.Equal(t, 3, result.Total)
}

func TestExecute_TagsMatchAnyElement(t *testing.T) {
	fetcher := &fakeFetcher{issues: []*taiga.Record{
		issue(1, "Open", 3, func(r *taiga.Record) { r.Tags = taiga.TagList{"backend", "urgent"} }),
		issue(2, "Open", 3, func(r *taiga.Record) { r.Tags = taiga.TagList{"frontend"} }),
		issue(3, "Open", 3),
	}}
	e := newTestExecutor(fetcher)

	spec := mustParse(t, "tags:urgent", query.EntityIssue)
	result, err := e.Execute(context.Background(), spec, 42)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, refs(result.Results))
}

func TestExecute_InMembership(t *testing.T) {
	fetcher := &fakeFetcher{issues: []*taiga.Record{
		issue(1, "Open", 3),
		issue(2, "In Progress", 3),
		issue(3, "Done", 3),
	}}
	e := newTestExecutor(fetcher)

	spec := mustParse(t, `status:in:[open,"in progress"]`, query.EntityIssue)
	result, err := e.Execute(context.Background(), spec, 42)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, refs(result.Results))

	notIn := mustParse(t, `status:not_in:[open,"in progress"]`, query.EntityIssue)
	notInResult, err := e.Execute(context.Background(), notIn, 42)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, refs(notInResult.Results))
}

func TestExecute_TaskFanOutSkipsFailedStories(t *testing.T) {
	task := func(ref int, storyID int) *taiga.Record {
		return &taiga.Record{Ref: ref, Subject: fmt.Sprintf("Task %d", ref), UserStory: intPtr(storyID)}
	}
	fetcher := &fakeFetcher{
		stories: []*taiga.Record{
			{ID: 100, Ref: 1}, {ID: 200, Ref: 2}, {ID: 300, Ref: 3},
		},
		tasks: map[int][]*taiga.Record{
			100: {task(11, 100), task(12, 100)},
			300: {task(31, 300)},
		},
		taskErrors: map[int]error{200: fmt.Errorf("boom")},
	}
	e := newTestExecutor(fetcher)

	spec := mustParse(t, "subject:contains:task", query.EntityTask)
	result, err := e.Execute(context.Background(), spec, 42)
	require.NoError(t, err)

	assert.Equal(t, []int{11, 12, 31}, refs(result.Results))
	assert.Equal(t, []int{100, 200, 300}, fetcher.storyTaskCalls)
}

func TestExecute_FetchFailureIsExecutionError(t *testing.T) {
	fetcher := &fakeFetcher{listErr: fmt.Errorf("connection refused")}
	e := newTestExecutor(fetcher)

	spec := mustParse(t, "status:open", query.EntityIssue)
	result, err := e.Execute(context.Background(), spec, 42)

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsExecutionError(err))
	assert.ErrorContains(t, err, "connection refused")
}

func TestExecute_DeterministicAcrossRuns(t *testing.T) {
	fetcher := &fakeFetcher{issues: []*taiga.Record{
		issue(1, "Open", 3, withMilestone("Beta")),
		issue(2, "Open", 2, withMilestone("Beta")),
		issue(3, "Open", 1, withMilestone("Alpha")),
	}}
	e := newTestExecutor(fetcher)

	spec := mustParse(t, "status:open ORDER BY milestone GROUP BY milestone", query.EntityIssue)

	first, err := e.Execute(context.Background(), spec, 42)
	require.NoError(t, err)
	second, err := e.Execute(context.Background(), spec, 42)
	require.NoError(t, err)

	assert.Equal(t, first.Groups, second.Groups)
	assert.Equal(t, first.Total, second.Total)
}
