package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoelGresham/teamPoll/internal/domain/poll"
	"github.com/JoelGresham/teamPoll/internal/events"
	"github.com/JoelGresham/teamPoll/internal/ratelimit"
	"github.com/JoelGresham/teamPoll/internal/registry"
	"github.com/JoelGresham/teamPoll/internal/testutil"
	poll_errors "github.com/JoelGresham/teamPoll/pkg/errors"
)

type recordedAttach struct {
	connID   string
	audience events.Audience
}

type fakeFanout struct {
	mu        sync.Mutex
	attached  []recordedAttach
	delivered []events.Event
	// onDeliver runs inside Deliver, while the session lock is held.
	onDeliver func(evts []events.Event)
}

func (m *fakeFanout) Attach(connID string, audience events.Audience) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attached = append(m.attached, recordedAttach{connID: connID, audience: audience})
}

func (m *fakeFanout) Deliver(_ context.Context, evts []events.Event) {
	m.mu.Lock()
	m.delivered = append(m.delivered, evts...)
	hook := m.onDeliver
	m.mu.Unlock()
	if hook != nil {
		hook(evts)
	}
}

func (m *fakeFanout) deliveredTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return eventTypes(m.delivered)
}

func intp(v int) *int { return &v }

func newTestService(t *testing.T, opts ...Option) *PollService {
	t.Helper()
	polls, responses, _ := testutil.NewRepositories(t)
	return NewPollService(polls, responses, registry.New(), ratelimit.NewMemoryLimiter(10, time.Minute), opts...)
}

func sampleSpec() poll.SessionSpec {
	return poll.SessionSpec{
		Name: "Team sync",
		Questions: []poll.QuestionSpec{
			{Text: "Favourite colour?", Type: "multiple_choice", Options: []string{"Red", "Blue", "Green"}},
			{Text: "Ship it?", Type: "yes_no"},
			{Text: "How was the week?", Type: "rating", ScaleMin: intp(1), ScaleMax: intp(5)},
			{Text: "Anything else?", Type: "text"},
		},
	}
}

func eventTypes(evts []events.Event) []string {
	out := make([]string, 0, len(evts))
	for _, e := range evts {
		out = append(out, e.Type)
	}
	return out
}

// startedSession creates and starts a session with admin-1 in control.
func startedSession(t *testing.T, s *PollService) (poll.Session, []poll.Question) {
	t.Helper()
	ctx := context.Background()

	session, _, err := s.CreateSession(ctx, sampleSpec(), "")
	require.NoError(t, err)
	_, err = s.AdminJoin(ctx, session.ID, "admin-1")
	require.NoError(t, err)
	_, _, err = s.StartSession(ctx, session.ID, "admin-1")
	require.NoError(t, err)

	questions, err := s.polls.GetQuestions(ctx, session.ID)
	require.NoError(t, err)
	return session, questions
}

func TestCreateSession(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	session, evts, err := s.CreateSession(ctx, sampleSpec(), "")
	require.NoError(t, err)
	assert.Len(t, session.ID, sessionIDLength)
	assert.Equal(t, poll.StatusPending, session.Status)
	assert.Equal(t, poll.NoQuestion, session.CurrentQuestionIndex)
	assert.False(t, session.IsRerun)
	assert.Equal(t, []string{events.TypeSessionCreated}, eventTypes(evts))

	questions, err := s.polls.GetQuestions(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, questions, 4)
	assert.Equal(t, poll.TypeFreeText, questions[3].Type)
	assert.Equal(t, 0, questions[0].Index)
	assert.Equal(t, 3, questions[3].Index)
}

func TestCreateSessionRejectsInvalidInput(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		spec poll.SessionSpec
	}{
		{"no questions", poll.SessionSpec{Name: "empty"}},
		{"blank text", poll.SessionSpec{Questions: []poll.QuestionSpec{{Text: "  ", Type: "yes_no"}}}},
		{"unknown type", poll.SessionSpec{Questions: []poll.QuestionSpec{{Text: "q", Type: "essay"}}}},
		{"one option", poll.SessionSpec{Questions: []poll.QuestionSpec{{Text: "q", Type: "multiple_choice", Options: []string{"A"}}}}},
		{"rating without scale", poll.SessionSpec{Questions: []poll.QuestionSpec{{Text: "q", Type: "rating"}}}},
		{"inverted scale", poll.SessionSpec{Questions: []poll.QuestionSpec{{Text: "q", Type: "rating", ScaleMin: intp(5), ScaleMax: intp(1)}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.CreateSession(ctx, tt.spec, "")
			assert.ErrorIs(t, err, poll_errors.ErrValidation)
		})
	}
}

func TestCreateSessionRetriesOnIDCollision(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	first, _, err := s.CreateSession(ctx, sampleSpec(), "")
	require.NoError(t, err)

	ids := []string{first.ID, first.ID, "zzzzzz"}
	s.newID = func() (string, error) {
		id := ids[0]
		ids = ids[1:]
		return id, nil
	}
	second, _, err := s.CreateSession(ctx, sampleSpec(), "")
	require.NoError(t, err)
	assert.Equal(t, "zzzzzz", second.ID)

	s.newID = func() (string, error) { return first.ID, nil }
	_, _, err = s.CreateSession(ctx, sampleSpec(), "")
	assert.ErrorIs(t, err, poll_errors.ErrInfrastructure)
}

func TestFullLifecycle(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	session, questions := startedSession(t, s)

	q, evts, err := s.RevealQuestion(ctx, session.ID, 0, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, questions[0].ID, q.ID)
	require.Len(t, evts, 1)
	payload := evts[0].Payload.(events.QuestionRevealedPayload)
	assert.Equal(t, 4, payload.TotalQuestions)
	assert.ElementsMatch(t, []events.Audience{events.Participants(session.ID), events.Admins(session.ID)}, evts[0].Audiences)

	for i, answer := range []string{"Red", "Blue", "Red"} {
		_, evts, err := s.SubmitResponse(ctx, Submission{
			SessionID:    session.ID,
			QuestionID:   q.ID,
			Answer:       answer,
			ConnectionID: fmt.Sprintf("p%d", i),
			Origin:       fmt.Sprintf("10.0.0.%d", i),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{events.TypeResponseSubmitted, events.TypeResponseReceived}, eventTypes(evts))
	}

	agg, err := s.Aggregate(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, agg.Total)
	assert.Equal(t, 2, agg.Breakdown["Red"])
	assert.Equal(t, 1, agg.Breakdown["Blue"])

	evts, err = s.CloseQuestion(ctx, session.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, []string{events.TypeQuestionClosed}, eventTypes(evts))

	ended, evts, err := s.EndSession(ctx, session.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, poll.StatusCompleted, ended.Status)
	assert.Equal(t, []string{events.TypeSessionEnded, events.TypeAdminStatusChanged}, eventTypes(evts))
	assert.False(t, s.HasActiveAdmin(session.ID))

	results, err := s.SessionAggregate(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, 3, results[0].Total)
	assert.Equal(t, 0, results[1].Total)
}

func TestStartTransitions(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	session, _, err := s.CreateSession(ctx, sampleSpec(), "")
	require.NoError(t, err)

	_, evts, err := s.StartSession(ctx, session.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{events.TypeSessionStarted}, eventTypes(evts))

	// already active
	started, evts, err := s.StartSession(ctx, session.ID, "")
	require.NoError(t, err)
	assert.Empty(t, evts)
	assert.Equal(t, poll.StatusActive, started.Status)

	_, _, err = s.EndSession(ctx, session.ID, "")
	require.NoError(t, err)
	_, _, err = s.StartSession(ctx, session.ID, "")
	assert.ErrorIs(t, err, poll_errors.ErrInvalidState)
	_, _, err = s.EndSession(ctx, session.ID, "")
	assert.ErrorIs(t, err, poll_errors.ErrInvalidState)
	_, err = s.CloseQuestion(ctx, session.ID, "")
	assert.ErrorIs(t, err, poll_errors.ErrInvalidState)

	_, _, err = s.StartSession(ctx, "nope42", "")
	assert.ErrorIs(t, err, poll_errors.ErrNotFound)
}

func TestRevealRules(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	pending, _, err := s.CreateSession(ctx, sampleSpec(), "")
	require.NoError(t, err)
	_, _, err = s.RevealQuestion(ctx, pending.ID, 0, "")
	assert.ErrorIs(t, err, poll_errors.ErrInvalidState)

	session, _ := startedSession(t, s)
	_, _, err = s.RevealQuestion(ctx, session.ID, 4, "admin-1")
	assert.ErrorIs(t, err, poll_errors.ErrNotFound)
	_, _, err = s.RevealQuestion(ctx, session.ID, -1, "admin-1")
	assert.ErrorIs(t, err, poll_errors.ErrNotFound)

	// out of order, then the same question again
	_, _, err = s.RevealQuestion(ctx, session.ID, 2, "admin-1")
	require.NoError(t, err)
	_, evts, err := s.RevealQuestion(ctx, session.ID, 2, "admin-1")
	require.NoError(t, err)
	assert.Len(t, evts, 1)

	got, err := s.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentQuestionIndex)
}

func TestCloseWithNothingRevealed(t *testing.T) {
	s := newTestService(t)
	session, _ := startedSession(t, s)

	evts, err := s.CloseQuestion(context.Background(), session.ID, "admin-1")
	require.NoError(t, err)
	assert.Empty(t, evts)
}

func TestAdminCommandsRequireControl(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	session, _ := startedSession(t, s)

	_, _, err := s.RevealQuestion(ctx, session.ID, 0, "intruder")
	assert.ErrorIs(t, err, poll_errors.ErrUnauthorized)
	_, err = s.CloseQuestion(ctx, session.ID, "intruder")
	assert.ErrorIs(t, err, poll_errors.ErrUnauthorized)
	_, _, err = s.EndSession(ctx, session.ID, "intruder")
	assert.ErrorIs(t, err, poll_errors.ErrUnauthorized)

	// a later admin join takes control over
	_, err = s.AdminJoin(ctx, session.ID, "admin-2")
	require.NoError(t, err)
	_, _, err = s.RevealQuestion(ctx, session.ID, 0, "admin-1")
	assert.ErrorIs(t, err, poll_errors.ErrUnauthorized)
	_, _, err = s.RevealQuestion(ctx, session.ID, 0, "admin-2")
	assert.NoError(t, err)
}

func TestSubmitResponseRules(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	session, questions := startedSession(t, s)

	submit := func(q poll.Question, answer, conn string) (string, error) {
		id, _, err := s.SubmitResponse(ctx, Submission{
			SessionID: session.ID, QuestionID: q.ID, Answer: answer, ConnectionID: conn, Origin: conn,
		})
		return id, err
	}

	_, err := submit(questions[0], "Red", "p1")
	assert.ErrorIs(t, err, poll_errors.ErrNotRevealed)

	_, _, err = s.RevealQuestion(ctx, session.ID, 2, "")
	require.NoError(t, err)

	_, err = submit(questions[3], "later", "p1")
	assert.ErrorIs(t, err, poll_errors.ErrNotRevealed)

	// earlier questions stay answerable while a later one is current
	_, err = submit(questions[1], "Yes", "p1")
	assert.NoError(t, err)

	tests := []struct {
		name   string
		q      poll.Question
		answer string
	}{
		{"not an option", questions[0], "Purple"},
		{"yes_no lowercase", questions[1], "yes"},
		{"rating not a number", questions[2], "five"},
		{"rating out of range", questions[2], "6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := submit(tt.q, tt.answer, "p2")
			assert.ErrorIs(t, err, poll_errors.ErrValidation)
		})
	}

	_, err = submit(questions[2], " 4 ", "p2")
	require.NoError(t, err)
	agg, err := s.Aggregate(ctx, questions[2].ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"4": 1}, agg.Breakdown)

	_, _, err = s.SubmitResponse(ctx, Submission{SessionID: session.ID, QuestionID: questions[2].ID, Answer: "3"})
	assert.ErrorIs(t, err, poll_errors.ErrValidation)

	_, err = s.CloseQuestion(ctx, session.ID, "")
	require.NoError(t, err)
	_, err = submit(questions[0], "Red", "p3")
	assert.ErrorIs(t, err, poll_errors.ErrNotRevealed)
}

func TestFreeTextAcceptsLongAnswers(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	session, questions := startedSession(t, s)
	_, _, err := s.RevealQuestion(ctx, session.ID, 3, "")
	require.NoError(t, err)

	long := strings.Repeat("a", 5000)
	_, _, err = s.SubmitResponse(ctx, Submission{
		SessionID: session.ID, QuestionID: questions[3].ID, Answer: "  " + long + "\n", ConnectionID: "p1", Origin: "p1",
	})
	require.NoError(t, err)

	agg, err := s.Aggregate(ctx, questions[3].ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{long: 1}, agg.Breakdown)
}

func TestSubmitForeignQuestion(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	session, _ := startedSession(t, s)
	other, _, err := s.CreateSession(ctx, sampleSpec(), "")
	require.NoError(t, err)
	otherQuestions, err := s.polls.GetQuestions(ctx, other.ID)
	require.NoError(t, err)

	_, _, err = s.SubmitResponse(ctx, Submission{
		SessionID: session.ID, QuestionID: otherQuestions[0].ID, Answer: "Red", ConnectionID: "p1", Origin: "p1",
	})
	assert.ErrorIs(t, err, poll_errors.ErrNotFound)
}

func TestResubmitReplacesAnswerAndKeepsID(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	session, questions := startedSession(t, s)
	_, _, err := s.RevealQuestion(ctx, session.ID, 0, "")
	require.NoError(t, err)

	sub := Submission{SessionID: session.ID, QuestionID: questions[0].ID, Answer: "Red", ConnectionID: "p1", Origin: "1.1.1.1"}
	first, _, err := s.SubmitResponse(ctx, sub)
	require.NoError(t, err)

	sub.Answer = "Green"
	second, evts, err := s.SubmitResponse(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	received := evts[1].Payload.(events.ResponseReceivedPayload)
	assert.Equal(t, 1, received.Results.Total)
	assert.Equal(t, map[string]int{"Green": 1}, received.Results.Breakdown)
}

func TestSubmitRateLimited(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	session, questions := startedSession(t, s)
	_, _, err := s.RevealQuestion(ctx, session.ID, 3, "")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, _, err := s.SubmitResponse(ctx, Submission{
			SessionID: session.ID, QuestionID: questions[3].ID, Answer: "hi",
			ConnectionID: fmt.Sprintf("p%d", i), Origin: "203.0.113.9",
		})
		require.NoError(t, err)
	}
	_, _, err = s.SubmitResponse(ctx, Submission{
		SessionID: session.ID, QuestionID: questions[3].ID, Answer: "hi", ConnectionID: "p10", Origin: "203.0.113.9",
	})
	assert.ErrorIs(t, err, poll_errors.ErrRateLimited)

	// another origin is unaffected
	_, _, err = s.SubmitResponse(ctx, Submission{
		SessionID: session.ID, QuestionID: questions[3].ID, Answer: "hi", ConnectionID: "p11", Origin: "203.0.113.10",
	})
	assert.NoError(t, err)
}

func TestConcurrentSubmissions(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	session, questions := startedSession(t, s)
	_, _, err := s.RevealQuestion(ctx, session.ID, 1, "")
	require.NoError(t, err)

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			answer := "Yes"
			if i%5 == 0 {
				answer = "No"
			}
			_, _, err := s.SubmitResponse(ctx, Submission{
				SessionID: session.ID, QuestionID: questions[1].ID, Answer: answer,
				ConnectionID: fmt.Sprintf("p%d", i), Origin: fmt.Sprintf("origin-%d", i),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	agg, err := s.Aggregate(ctx, questions[1].ID)
	require.NoError(t, err)
	assert.Equal(t, n, agg.Total)
	assert.Equal(t, 5, agg.Breakdown["No"])
	assert.Equal(t, 20, agg.Breakdown["Yes"])
	assert.Equal(t, 0, s.locks.size())
}

func TestUpdateSession(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	session, _, err := s.CreateSession(ctx, sampleSpec(), "")
	require.NoError(t, err)

	updated, err := s.UpdateSession(ctx, session.ID, poll.SessionSpec{
		Name:      "Renamed",
		Questions: []poll.QuestionSpec{{Text: "Only one", Type: "yes_no"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	count, err := s.polls.CountQuestions(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, _, err = s.StartSession(ctx, session.ID, "")
	require.NoError(t, err)
	_, err = s.UpdateSession(ctx, session.ID, sampleSpec())
	assert.ErrorIs(t, err, poll_errors.ErrInvalidState)
}

func TestRerunSession(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	session, _ := startedSession(t, s)
	_, _, err := s.EndSession(ctx, session.ID, "")
	require.NoError(t, err)

	rerun, evts, err := s.RerunSession(ctx, session.ID)
	require.NoError(t, err)
	assert.NotEqual(t, session.ID, rerun.ID)
	assert.Equal(t, "Team sync", rerun.Name)
	assert.True(t, rerun.IsRerun)
	assert.Equal(t, session.ID, rerun.OriginalPollID)
	assert.Equal(t, poll.StatusPending, rerun.Status)
	assert.Equal(t, []string{events.TypeSessionCreated}, eventTypes(evts))

	original, err := s.polls.GetQuestions(ctx, session.ID)
	require.NoError(t, err)
	cloned, err := s.polls.GetQuestions(ctx, rerun.ID)
	require.NoError(t, err)
	require.Len(t, cloned, len(original))
	for i := range original {
		assert.NotEqual(t, original[i].ID, cloned[i].ID)
		assert.Equal(t, original[i].Text, cloned[i].Text)
		assert.Equal(t, original[i].Options, cloned[i].Options)
		assert.Equal(t, original[i].ScaleMax, cloned[i].ScaleMax)
	}

	_, _, err = s.RerunSession(ctx, "gone22")
	assert.ErrorIs(t, err, poll_errors.ErrNotFound)
}

func TestDeleteSession(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	session, _ := startedSession(t, s)
	_, err := s.JoinSession(ctx, session.ID, "p1")
	require.NoError(t, err)

	evts, err := s.DeleteSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{events.TypeSessionDeleted, events.TypeAdminStatusChanged}, eventTypes(evts))
	assert.Equal(t, 0, s.ParticipantCount(session.ID))
	assert.False(t, s.HasActiveAdmin(session.ID))

	_, err = s.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, poll_errors.ErrNotFound)
	_, err = s.DeleteSession(ctx, session.ID)
	assert.ErrorIs(t, err, poll_errors.ErrNotFound)
}

func TestSweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	s := newTestService(t, WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	old, _, err := s.CreateSession(ctx, sampleSpec(), "")
	require.NoError(t, err)
	_, _, err = s.EndSession(ctx, old.ID, "")
	require.NoError(t, err)
	stale, _, err := s.CreateSession(ctx, sampleSpec(), "")
	require.NoError(t, err)

	clock = now.Add(48 * time.Hour)
	fresh, _, err := s.CreateSession(ctx, sampleSpec(), "")
	require.NoError(t, err)
	_, _, err = s.EndSession(ctx, fresh.ID, "")
	require.NoError(t, err)

	ids, evts, err := s.Sweep(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{old.ID}, ids)
	assert.Len(t, evts, 2)

	// not completed, so kept
	_, err = s.GetSession(ctx, stale.ID)
	assert.NoError(t, err)
	_, err = s.GetSession(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestSweepForgetsLiveStateUnderSessionLock(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	fanout := &fakeFanout{}
	s := newTestService(t, WithClock(func() time.Time { return clock }), WithFanout(fanout))
	ctx := context.Background()

	old, _, err := s.CreateSession(ctx, sampleSpec(), "")
	require.NoError(t, err)
	_, err = s.JoinSession(ctx, old.ID, "p1")
	require.NoError(t, err)
	_, _, err = s.EndSession(ctx, old.ID, "")
	require.NoError(t, err)
	require.Equal(t, 1, s.ParticipantCount(old.ID))

	var lockedDuringDelivery []bool
	fanout.onDeliver = func(evts []events.Event) {
		lockedDuringDelivery = append(lockedDuringDelivery, s.locks.held(old.ID))
	}

	clock = now.Add(48 * time.Hour)
	ids, _, err := s.Sweep(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{old.ID}, ids)
	assert.Zero(t, s.ParticipantCount(old.ID))
	assert.Equal(t, []bool{true}, lockedDuringDelivery)
	assert.Contains(t, fanout.deliveredTypes(), events.TypeSessionDeleted)
	assert.Zero(t, s.locks.size())
}

func TestEventsDeliveredWhileSessionLocked(t *testing.T) {
	fanout := &fakeFanout{}
	s := newTestService(t, WithFanout(fanout))
	ctx := context.Background()
	session, questions := startedSession(t, s)

	var unlocked []string
	fanout.onDeliver = func(evts []events.Event) {
		for _, e := range evts {
			if e.SessionID == session.ID && !s.locks.held(session.ID) {
				unlocked = append(unlocked, e.Type)
			}
		}
	}

	_, _, err := s.RevealQuestion(ctx, session.ID, 1, "admin-1")
	require.NoError(t, err)
	_, _, err = s.SubmitResponse(ctx, Submission{
		SessionID: session.ID, QuestionID: questions[1].ID, Answer: "Yes", ConnectionID: "p1", Origin: "p1",
	})
	require.NoError(t, err)
	_, err = s.CloseQuestion(ctx, session.ID, "admin-1")
	require.NoError(t, err)
	_, _, err = s.EndSession(ctx, session.ID, "admin-1")
	require.NoError(t, err)
	s.Disconnect(ctx, "admin-1")

	assert.Empty(t, unlocked)
	assert.Equal(t, []string{
		events.TypeQuestionRevealed,
		events.TypeResponseSubmitted, events.TypeResponseReceived,
		events.TypeQuestionClosed,
		events.TypeSessionEnded, events.TypeAdminStatusChanged,
	}, fanout.deliveredTypes()[len(fanout.deliveredTypes())-6:])
}

func TestRevealRacingEndNeverDeliveredAfterEnd(t *testing.T) {
	for i := 0; i < 20; i++ {
		fanout := &fakeFanout{}
		s := newTestService(t, WithFanout(fanout))
		ctx := context.Background()
		session, _ := startedSession(t, s)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, _ = s.RevealQuestion(ctx, session.ID, 0, "admin-1")
		}()
		go func() {
			defer wg.Done()
			_, _, _ = s.EndSession(ctx, session.ID, "")
		}()
		wg.Wait()

		types := fanout.deliveredTypes()
		ended := -1
		for idx, typ := range types {
			if typ == events.TypeSessionEnded {
				ended = idx
			}
			if typ == events.TypeQuestionRevealed {
				require.Equal(t, -1, ended, "question revealed after the poll ended: %v", types)
			}
		}
		require.NotEqual(t, -1, ended)
	}
}

func TestListSessionsReportsAdmin(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	controlled, _ := startedSession(t, s)
	idle, _, err := s.CreateSession(ctx, sampleSpec(), "")
	require.NoError(t, err)

	list, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	byID := map[string]bool{}
	for _, summary := range list {
		byID[summary.ID] = summary.HasActiveAdmin
	}
	assert.True(t, byID[controlled.ID])
	assert.False(t, byID[idle.ID])
}

func TestGetActiveSession(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.GetActiveSession(ctx)
	assert.ErrorIs(t, err, poll_errors.ErrNotFound)

	session, _ := startedSession(t, s)
	active, err := s.GetActiveSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.ID, active.ID)
}
