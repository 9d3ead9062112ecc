package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JoelGresham/teamPoll/internal/domain/poll"
	"github.com/JoelGresham/teamPoll/internal/events"
	"github.com/JoelGresham/teamPoll/internal/ratelimit"
	"github.com/JoelGresham/teamPoll/internal/registry"
	"github.com/JoelGresham/teamPoll/internal/repository"
	poll_errors "github.com/JoelGresham/teamPoll/pkg/errors"
	"github.com/JoelGresham/teamPoll/pkg/logger"
)

const sessionIDAttempts = 5

// Fanout subscribes sockets to audiences and delivers events to them. Both are
// called while the session lock is held, so joins and broadcasts of one session
// reach sockets in the order the state changed.
type Fanout interface {
	Attach(connID string, audience events.Audience)
	Deliver(ctx context.Context, evts []events.Event)
}

// PollService is the poll state machine: every lifecycle transition, reveal,
// close and submission goes through it, serialized per session.
type PollService struct {
	polls      repository.PollRepository
	responses  repository.ResponseRepository
	registry   *registry.Registry
	limiter    ratelimit.Limiter
	fanout     Fanout
	locks      *sessionLocks
	logger     *logger.Logger
	now        func() time.Time
	newID      func() (string, error)
}

type Option func(*PollService)

func WithFanout(f Fanout) Option {
	return func(s *PollService) { s.fanout = f }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *PollService) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *PollService) { s.now = now }
}

func NewPollService(
	polls repository.PollRepository,
	responses repository.ResponseRepository,
	reg *registry.Registry,
	limiter ratelimit.Limiter,
	opts ...Option,
) *PollService {
	s := &PollService{
		polls:     polls,
		responses: responses,
		registry:  reg,
		limiter:   limiter,
		locks:     newSessionLocks(),
		logger:    logger.NewNop(),
		now:       time.Now,
		newID:     newSessionID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetFanout wires the socket gateway after construction.
func (s *PollService) SetFanout(f Fanout) {
	s.fanout = f
}

func (s *PollService) Registry() *registry.Registry {
	return s.registry
}

func (s *PollService) attach(connID string, audience events.Audience) {
	if s.fanout != nil {
		s.fanout.Attach(connID, audience)
	}
}

// emit delivers evts and returns them. Locked operations call it before unlocking.
func (s *PollService) emit(ctx context.Context, evts []events.Event) []events.Event {
	if s.fanout != nil && len(evts) > 0 {
		s.fanout.Deliver(context.WithoutCancel(ctx), evts)
	}
	return evts
}

// authorize checks that actor controls the session. An empty actor is a trusted
// caller such as the admin HTTP API.
func (s *PollService) authorize(sessionID, actor string) error {
	if actor == "" || s.registry.IsController(sessionID, actor) {
		return nil
	}
	return fmt.Errorf("%w: connection does not control session %s", poll_errors.ErrUnauthorized, sessionID)
}

// CreateSession persists a pending session with its questions in order.
func (s *PollService) CreateSession(ctx context.Context, spec poll.SessionSpec, rerunOf string) (poll.Session, []events.Event, error) {
	name, questions, err := normalizeSession(spec)
	if err != nil {
		return poll.Session{}, nil, err
	}
	session, err := s.insertSession(ctx, name, questions, rerunOf)
	if err != nil {
		return poll.Session{}, nil, err
	}
	s.logger.Infof("poll %s created with %d questions", session.ID, len(questions))
	return session, s.emit(ctx, []events.Event{
		events.New(events.TypeSessionCreated, session.ID, events.SessionPayload{Session: session}, events.Everyone()),
	}), nil
}

func (s *PollService) insertSession(ctx context.Context, name string, questions []poll.QuestionInput, rerunOf string) (poll.Session, error) {
	for attempt := 0; attempt < sessionIDAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return poll.Session{}, poll_errors.Infra(err)
		}
		session := poll.Session{
			ID:                   id,
			Name:                 name,
			Status:               poll.StatusPending,
			CurrentQuestionIndex: poll.NoQuestion,
			IsRerun:              rerunOf != "",
			OriginalPollID:       rerunOf,
			CreatedAt:            s.now().UTC().Truncate(time.Millisecond),
		}
		err = s.polls.CreateSession(ctx, &session, questions)
		if errors.Is(err, poll_errors.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return poll.Session{}, err
		}
		return session, nil
	}
	return poll.Session{}, poll_errors.Infra(fmt.Errorf("no free session id after %d attempts", sessionIDAttempts))
}

// UpdateSession replaces name and questions of a session that has never started.
func (s *PollService) UpdateSession(ctx context.Context, sessionID string, spec poll.SessionSpec) (poll.Session, error) {
	name, questions, err := normalizeSession(spec)
	if err != nil {
		return poll.Session{}, err
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.polls.GetSession(ctx, sessionID)
	if err != nil {
		return poll.Session{}, err
	}
	if session.Status != poll.StatusPending || session.HasRevealed() {
		return poll.Session{}, fmt.Errorf("%w: poll %s can no longer be edited", poll_errors.ErrInvalidState, sessionID)
	}
	answered, err := s.responses.CountBySession(ctx, sessionID)
	if err != nil {
		return poll.Session{}, err
	}
	if answered > 0 {
		return poll.Session{}, fmt.Errorf("%w: poll %s already has responses", poll_errors.ErrInvalidState, sessionID)
	}
	if err := s.polls.ReplaceQuestions(ctx, sessionID, name, questions); err != nil {
		return poll.Session{}, err
	}
	session.Name = name
	return session, nil
}

// StartSession moves a pending session to active. Starting an active session is a no-op.
func (s *PollService) StartSession(ctx context.Context, sessionID, actor string) (poll.Session, []events.Event, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	if err := s.authorize(sessionID, actor); err != nil {
		return poll.Session{}, nil, err
	}
	session, err := s.polls.GetSession(ctx, sessionID)
	if err != nil {
		return poll.Session{}, nil, err
	}
	switch session.Status {
	case poll.StatusActive:
		return session, nil, nil
	case poll.StatusCompleted:
		return poll.Session{}, nil, fmt.Errorf("%w: poll %s is completed", poll_errors.ErrInvalidState, sessionID)
	}

	if err := s.polls.UpdateStatus(ctx, sessionID, poll.StatusActive); err != nil {
		return poll.Session{}, nil, err
	}
	session.Status = poll.StatusActive
	s.logger.Infof("poll %s started", sessionID)
	return session, s.emit(ctx, []events.Event{
		events.ToSession(events.TypeSessionStarted, sessionID, events.SessionPayload{Session: session}),
	}), nil
}

// RevealQuestion makes the question at index current. Any index may be revealed in
// any order; revealing the current question again re-sends it.
func (s *PollService) RevealQuestion(ctx context.Context, sessionID string, index int, actor string) (poll.Question, []events.Event, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	if err := s.authorize(sessionID, actor); err != nil {
		return poll.Question{}, nil, err
	}
	session, err := s.polls.GetSession(ctx, sessionID)
	if err != nil {
		return poll.Question{}, nil, err
	}
	if session.Status != poll.StatusActive {
		return poll.Question{}, nil, fmt.Errorf("%w: poll %s is %s", poll_errors.ErrInvalidState, sessionID, session.Status)
	}
	if index < 0 {
		return poll.Question{}, nil, fmt.Errorf("%w: question index %d", poll_errors.ErrNotFound, index)
	}
	question, err := s.polls.GetQuestionByIndex(ctx, sessionID, index)
	if err != nil {
		return poll.Question{}, nil, err
	}
	total, err := s.polls.CountQuestions(ctx, sessionID)
	if err != nil {
		return poll.Question{}, nil, err
	}
	if session.CurrentQuestionIndex != index {
		if err := s.polls.UpdateCurrentQuestion(ctx, sessionID, index); err != nil {
			return poll.Question{}, nil, err
		}
	}

	s.logger.Infof("question %d (id %d) revealed in poll %s", index+1, question.ID, sessionID)
	return question, s.emit(ctx, []events.Event{
		events.ToSession(events.TypeQuestionRevealed, sessionID, events.QuestionRevealedPayload{
			Question:       question,
			QuestionIndex:  index,
			TotalQuestions: total,
		}),
	}), nil
}

// CloseQuestion clears the current question. Closing with nothing revealed is a no-op.
func (s *PollService) CloseQuestion(ctx context.Context, sessionID, actor string) ([]events.Event, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	if err := s.authorize(sessionID, actor); err != nil {
		return nil, err
	}
	session, err := s.polls.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == poll.StatusCompleted {
		return nil, fmt.Errorf("%w: poll %s is completed", poll_errors.ErrInvalidState, sessionID)
	}
	if !session.HasRevealed() {
		return nil, nil
	}
	if err := s.polls.UpdateCurrentQuestion(ctx, sessionID, poll.NoQuestion); err != nil {
		return nil, err
	}

	s.logger.Infof("question %d closed in poll %s", session.CurrentQuestionIndex+1, sessionID)
	return s.emit(ctx, []events.Event{
		events.ToSession(events.TypeQuestionClosed, sessionID, events.QuestionClosedPayload{
			QuestionIndex: session.CurrentQuestionIndex,
		}),
	}), nil
}

type Submission struct {
	SessionID    string
	QuestionID   int64
	Answer       string
	ConnectionID string
	Origin       string
}

// SubmitResponse records an answer for a revealed question. A second answer from the
// same connection replaces the first and keeps its response id.
func (s *PollService) SubmitResponse(ctx context.Context, sub Submission) (string, []events.Event, error) {
	if sub.ConnectionID == "" {
		return "", nil, fmt.Errorf("%w: missing participant id", poll_errors.ErrValidation)
	}
	allowed, err := s.limiter.Allow(ctx, ratelimit.Key(sub.Origin, sub.SessionID))
	if err != nil {
		return "", nil, poll_errors.Infra(err)
	}
	if !allowed {
		return "", nil, fmt.Errorf("%w: too many submissions, try again shortly", poll_errors.ErrRateLimited)
	}

	unlock := s.locks.Lock(sub.SessionID)
	defer unlock()

	session, err := s.polls.GetSession(ctx, sub.SessionID)
	if err != nil {
		return "", nil, err
	}
	if session.Status != poll.StatusActive {
		return "", nil, fmt.Errorf("%w: poll is not active", poll_errors.ErrInvalidState)
	}
	question, err := s.polls.GetQuestion(ctx, sub.QuestionID)
	if err != nil {
		return "", nil, err
	}
	if question.SessionID != sub.SessionID {
		return "", nil, fmt.Errorf("%w: question %d does not belong to poll %s", poll_errors.ErrNotFound, sub.QuestionID, sub.SessionID)
	}
	if question.Index > session.CurrentQuestionIndex {
		return "", nil, fmt.Errorf("%w: question %d", poll_errors.ErrNotRevealed, question.Index+1)
	}
	answer, err := checkAnswer(question, sub.Answer)
	if err != nil {
		return "", nil, err
	}

	responseID, err := s.upsertResponse(ctx, &poll.Response{
		SessionID:    sub.SessionID,
		QuestionID:   question.ID,
		ConnectionID: sub.ConnectionID,
		Answer:       answer,
		SubmittedAt:  s.now(),
	})
	if err != nil {
		return "", nil, err
	}
	results, err := s.responses.Aggregate(ctx, question.ID)
	if err != nil {
		return "", nil, err
	}

	return responseID, s.emit(ctx, []events.Event{
		events.New(events.TypeResponseSubmitted, sub.SessionID, events.ResponseSubmittedPayload{
			ResponseID: responseID,
			QuestionID: question.ID,
		}, events.Connection(sub.ConnectionID)),
		events.New(events.TypeResponseReceived, sub.SessionID, events.ResponseReceivedPayload{
			QuestionID: question.ID,
			Results:    results,
		}, events.Admins(sub.SessionID)),
	}), nil
}

func (s *PollService) upsertResponse(ctx context.Context, r *poll.Response) (string, error) {
	for attempt := 0; attempt < 2; attempt++ {
		id, err := newResponseID()
		if err != nil {
			return "", poll_errors.Infra(err)
		}
		r.ID = id
		stored, err := s.responses.Upsert(ctx, r)
		if errors.Is(err, poll_errors.ErrAlreadyExists) {
			continue
		}
		return stored, err
	}
	return "", poll_errors.Infra(errors.New("response id collision"))
}

// EndSession completes a session and releases its admin control.
func (s *PollService) EndSession(ctx context.Context, sessionID, actor string) (poll.Session, []events.Event, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	if err := s.authorize(sessionID, actor); err != nil {
		return poll.Session{}, nil, err
	}
	session, err := s.polls.GetSession(ctx, sessionID)
	if err != nil {
		return poll.Session{}, nil, err
	}
	if session.Status == poll.StatusCompleted {
		return poll.Session{}, nil, fmt.Errorf("%w: poll %s already ended", poll_errors.ErrInvalidState, sessionID)
	}
	if err := s.polls.UpdateStatus(ctx, sessionID, poll.StatusCompleted); err != nil {
		return poll.Session{}, nil, err
	}
	session.Status = poll.StatusCompleted
	s.registry.ClearAdmin(sessionID)

	s.logger.Infof("poll %s ended", sessionID)
	return session, s.emit(ctx, []events.Event{
		events.ToSession(events.TypeSessionEnded, sessionID, events.SessionPayload{Session: session}),
		events.New(events.TypeAdminStatusChanged, sessionID, events.AdminStatusPayload{
			SessionID:      sessionID,
			HasActiveAdmin: false,
		}, events.Everyone()),
	}), nil
}

// RerunSession clones the question definitions of a session into a new pending one.
func (s *PollService) RerunSession(ctx context.Context, sessionID string) (poll.Session, []events.Event, error) {
	original, err := s.polls.GetSession(ctx, sessionID)
	if err != nil {
		return poll.Session{}, nil, err
	}
	questions, err := s.polls.GetQuestions(ctx, sessionID)
	if err != nil {
		return poll.Session{}, nil, err
	}
	inputs := make([]poll.QuestionInput, 0, len(questions))
	for _, q := range questions {
		inputs = append(inputs, q.Input())
	}

	session, err := s.insertSession(ctx, original.Name, inputs, sessionID)
	if err != nil {
		return poll.Session{}, nil, err
	}
	s.logger.Infof("poll %s rerun as %s", sessionID, session.ID)
	return session, s.emit(ctx, []events.Event{
		events.New(events.TypeSessionCreated, session.ID, events.SessionPayload{Session: session}, events.Everyone()),
	}), nil
}

// DeleteSession removes a session with its questions and responses and forgets its live state.
func (s *PollService) DeleteSession(ctx context.Context, sessionID string) ([]events.Event, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	if err := s.polls.DeleteSession(ctx, sessionID); err != nil {
		return nil, err
	}
	s.registry.ClearSession(sessionID)
	s.logger.Infof("poll %s deleted", sessionID)
	return s.emit(ctx, deletedEvents(sessionID)), nil
}

// Sweep purges completed sessions created more than horizon ago.
func (s *PollService) Sweep(ctx context.Context, horizon time.Duration) ([]string, []events.Event, error) {
	cutoff := s.now().Add(-horizon)
	ids, err := s.polls.DeleteCompletedBefore(ctx, cutoff)
	if err != nil {
		return nil, nil, err
	}
	var evts []events.Event
	for _, id := range ids {
		evts = append(evts, s.forgetSession(ctx, id)...)
	}
	if len(ids) > 0 {
		s.logger.Infof("retention sweep removed %d polls completed before %s", len(ids), cutoff.Format(time.RFC3339))
	}
	return ids, evts, nil
}

// forgetSession drops live state of a purged session. The lock keeps a join that
// already read the session from re-adding state afterwards unnoticed.
func (s *PollService) forgetSession(ctx context.Context, sessionID string) []events.Event {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	s.registry.ClearSession(sessionID)
	return s.emit(ctx, deletedEvents(sessionID))
}

func deletedEvents(sessionID string) []events.Event {
	return []events.Event{
		events.ToSession(events.TypeSessionDeleted, sessionID, nil),
		events.New(events.TypeAdminStatusChanged, sessionID, events.AdminStatusPayload{
			SessionID:      sessionID,
			HasActiveAdmin: false,
		}, events.Everyone()),
	}
}
