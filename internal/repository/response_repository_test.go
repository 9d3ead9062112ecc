package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoelGresham/teamPoll/internal/domain/poll"
	"github.com/JoelGresham/teamPoll/internal/testutil"
)

func TestResponseRepository_UpsertReplacesAnswer(t *testing.T) {
	polls, responses, _ := testutil.NewRepositories(t)
	ctx := context.Background()

	require.NoError(t, polls.CreateSession(ctx, newSession("ups001", time.Now()), sampleQuestions()))
	q, err := polls.GetQuestionByIndex(ctx, "ups001", 0)
	require.NoError(t, err)

	first, err := responses.Upsert(ctx, &poll.Response{
		ID: "first", SessionID: "ups001", QuestionID: q.ID, ConnectionID: "conn-a", Answer: "Red", SubmittedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, "first", first)

	second, err := responses.Upsert(ctx, &poll.Response{
		ID: "second", SessionID: "ups001", QuestionID: q.ID, ConnectionID: "conn-a", Answer: "Blue", SubmittedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, "first", second)

	agg, err := responses.Aggregate(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, agg.Total)
	assert.Equal(t, map[string]int{"Blue": 1}, agg.Breakdown)
}

func TestResponseRepository_Aggregates(t *testing.T) {
	polls, responses, _ := testutil.NewRepositories(t)
	ctx := context.Background()

	require.NoError(t, polls.CreateSession(ctx, newSession("agg001", time.Now()), sampleQuestions()))
	questions, err := polls.GetQuestions(ctx, "agg001")
	require.NoError(t, err)

	submit := func(id, conn string, q poll.Question, answer string) {
		_, err := responses.Upsert(ctx, &poll.Response{
			ID: id, SessionID: "agg001", QuestionID: q.ID, ConnectionID: conn, Answer: answer, SubmittedAt: time.Now(),
		})
		require.NoError(t, err)
	}
	submit("r1", "a", questions[0], "Red")
	submit("r2", "b", questions[0], "Red")
	submit("r3", "c", questions[0], "Blue")
	submit("r4", "a", questions[2], "4")

	results, err := responses.SessionAggregate(ctx, "agg001")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 0, results[0].Index)
	assert.Equal(t, 3, results[0].Total)
	assert.Equal(t, map[string]int{"Red": 2, "Blue": 1}, results[0].Breakdown)
	assert.Equal(t, []string{"Red", "Blue"}, results[0].Options)

	assert.Equal(t, 1, results[1].Index)
	assert.Equal(t, 0, results[1].Total)
	assert.Empty(t, results[1].Breakdown)
	assert.NotNil(t, results[1].Breakdown)

	assert.Equal(t, map[string]int{"4": 1}, results[2].Breakdown)

	counts, err := responses.CountByQuestion(ctx, "agg001")
	require.NoError(t, err)
	assert.Equal(t, 3, counts[questions[0].ID])
	assert.Equal(t, 0, counts[questions[1].ID])

	total, err := responses.CountBySession(ctx, "agg001")
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}

func TestResponseRepository_EmptySession(t *testing.T) {
	_, responses, _ := testutil.NewRepositories(t)

	results, err := responses.SessionAggregate(context.Background(), "none00")
	require.NoError(t, err)
	assert.Empty(t, results)

	agg, err := responses.Aggregate(context.Background(), 99)
	require.NoError(t, err)
	assert.Equal(t, 0, agg.Total)
	assert.NotNil(t, agg.Breakdown)
}
