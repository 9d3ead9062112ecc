package services

import (
	"context"
	"fmt"

	"github.com/JoelGresham/teamPoll/internal/domain/poll"
	"github.com/JoelGresham/teamPoll/internal/events"
	poll_errors "github.com/JoelGresham/teamPoll/pkg/errors"
)

// JoinSession registers a participant connection and sends it the current state,
// including the revealed question for late joiners.
func (s *PollService) JoinSession(ctx context.Context, sessionID, connID string) ([]events.Event, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.polls.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	count := s.registry.JoinAsParticipant(sessionID, connID)
	s.attach(connID, events.Participants(sessionID))

	evts := []events.Event{
		events.New(events.TypeSessionJoined, sessionID, events.SessionJoinedPayload{
			Session:          session,
			ParticipantCount: count,
		}, events.Connection(connID)),
	}
	if session.Status == poll.StatusActive && session.HasRevealed() {
		question, err := s.polls.GetQuestionByIndex(ctx, sessionID, session.CurrentQuestionIndex)
		if err != nil {
			return nil, err
		}
		total, err := s.polls.CountQuestions(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		evts = append(evts, events.New(events.TypeQuestionRevealed, sessionID, events.QuestionRevealedPayload{
			Question:       question,
			QuestionIndex:  session.CurrentQuestionIndex,
			TotalQuestions: total,
		}, events.Connection(connID)))
	}
	evts = append(evts, events.New(events.TypeParticipantCount, sessionID,
		events.ParticipantCountPayload{Count: count}, events.Admins(sessionID)))
	return s.emit(ctx, evts), nil
}

// AdminJoin claims control of a session for connID. A later claim from another
// connection takes control over.
func (s *PollService) AdminJoin(ctx context.Context, sessionID, connID string) ([]events.Event, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.polls.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	questions, err := s.polls.GetQuestions(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	controlled := false
	if session.Status != poll.StatusCompleted {
		if previous := s.registry.JoinAsAdmin(sessionID, connID); previous != "" && previous != connID {
			s.logger.Infof("admin control of poll %s moved from %s to %s", sessionID, previous, connID)
		}
		controlled = true
	}
	s.attach(connID, events.Admins(sessionID))
	count := s.registry.ParticipantCount(sessionID)

	evts := []events.Event{
		events.New(events.TypeAdminJoined, sessionID, events.AdminJoinedPayload{
			Session:          session,
			Questions:        questions,
			ParticipantCount: count,
		}, events.Connection(connID)),
		events.New(events.TypeParticipantCount, sessionID,
			events.ParticipantCountPayload{Count: count}, events.Connection(connID)),
	}
	if controlled {
		evts = append(evts, events.New(events.TypeAdminStatusChanged, sessionID, events.AdminStatusPayload{
			SessionID:      sessionID,
			HasActiveAdmin: true,
		}, events.Everyone()))
	}
	return s.emit(ctx, evts), nil
}

// Disconnect releases admin control and participant membership held by connID.
func (s *PollService) Disconnect(ctx context.Context, connID string) []events.Event {
	var evts []events.Event
	for _, sessionID := range s.registry.SessionsOf(connID) {
		evts = append(evts, s.leave(ctx, sessionID, connID)...)
	}
	return evts
}

func (s *PollService) leave(ctx context.Context, sessionID, connID string) []events.Event {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	var evts []events.Event
	if s.registry.ReleaseAdmin(sessionID, connID) {
		s.logger.Infof("admin %s released control of poll %s", connID, sessionID)
		evts = append(evts, events.New(events.TypeAdminStatusChanged, sessionID, events.AdminStatusPayload{
			SessionID:      sessionID,
			HasActiveAdmin: false,
		}, events.Everyone()))
	}
	if s.registry.IsParticipant(sessionID, connID) {
		count := s.registry.LeaveParticipant(sessionID, connID)
		evts = append(evts, events.New(events.TypeParticipantCount, sessionID,
			events.ParticipantCountPayload{Count: count}, events.Admins(sessionID)))
	}
	return s.emit(ctx, evts)
}

// RequestResults answers a results query on the requesting connection only.
// With a question id the single aggregate is sent, otherwise the whole session.
func (s *PollService) RequestResults(ctx context.Context, sessionID string, questionID int64, connID string) ([]events.Event, error) {
	if questionID != 0 {
		question, err := s.polls.GetQuestion(ctx, questionID)
		if err != nil {
			return nil, err
		}
		if question.SessionID != sessionID {
			return nil, fmt.Errorf("%w: question %d does not belong to poll %s", poll_errors.ErrNotFound, questionID, sessionID)
		}
		results, err := s.responses.Aggregate(ctx, questionID)
		if err != nil {
			return nil, err
		}
		return s.emit(ctx, []events.Event{
			events.New(events.TypeResultsUpdate, sessionID, events.ResponseReceivedPayload{
				QuestionID: questionID,
				Results:    results,
			}, events.Connection(connID)),
		}), nil
	}

	results, err := s.SessionAggregate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.emit(ctx, []events.Event{
		events.New(events.TypeSessionResults, sessionID, events.ResultsPayload{Results: results}, events.Connection(connID)),
	}), nil
}

func (s *PollService) GetSession(ctx context.Context, sessionID string) (poll.Session, error) {
	return s.polls.GetSession(ctx, sessionID)
}

func (s *PollService) GetActiveSession(ctx context.Context) (poll.Session, error) {
	return s.polls.GetActiveSession(ctx)
}

// GetSessionDetail returns the session with its questions and per-question response counts.
func (s *PollService) GetSessionDetail(ctx context.Context, sessionID string) (poll.SessionDetail, error) {
	session, err := s.polls.GetSession(ctx, sessionID)
	if err != nil {
		return poll.SessionDetail{}, err
	}
	questions, err := s.polls.GetQuestions(ctx, sessionID)
	if err != nil {
		return poll.SessionDetail{}, err
	}
	counts, err := s.responses.CountByQuestion(ctx, sessionID)
	if err != nil {
		return poll.SessionDetail{}, err
	}

	detail := poll.SessionDetail{Session: session, Questions: make([]poll.QuestionWithCount, 0, len(questions))}
	for _, q := range questions {
		detail.Questions = append(detail.Questions, poll.QuestionWithCount{Question: q, ResponseCount: counts[q.ID]})
	}
	return detail, nil
}

// ListSessions returns every session newest first with its admin status.
func (s *PollService) ListSessions(ctx context.Context) ([]poll.SessionSummary, error) {
	sessions, err := s.polls.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	controlled := s.registry.ControlledSessions()
	out := make([]poll.SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, poll.SessionSummary{Session: session, HasActiveAdmin: controlled[session.ID]})
	}
	return out, nil
}

func (s *PollService) Aggregate(ctx context.Context, questionID int64) (poll.Aggregate, error) {
	if _, err := s.polls.GetQuestion(ctx, questionID); err != nil {
		return poll.Aggregate{}, err
	}
	return s.responses.Aggregate(ctx, questionID)
}

// SessionAggregate returns results for every question of the session in position order.
func (s *PollService) SessionAggregate(ctx context.Context, sessionID string) ([]poll.QuestionResult, error) {
	if _, err := s.polls.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.responses.SessionAggregate(ctx, sessionID)
}

func (s *PollService) ParticipantCount(sessionID string) int {
	return s.registry.ParticipantCount(sessionID)
}

func (s *PollService) HasActiveAdmin(sessionID string) bool {
	_, ok := s.registry.HasControl(sessionID)
	return ok
}
