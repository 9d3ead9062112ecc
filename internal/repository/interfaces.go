package repository

import (
	"context"
	"time"

	"github.com/JoelGresham/teamPoll/internal/domain/poll"
)

type PollRepository interface {
	CreateSession(ctx context.Context, s *poll.Session, questions []poll.QuestionInput) error
	GetSession(ctx context.Context, sessionID string) (poll.Session, error)
	ListSessions(ctx context.Context) ([]poll.Session, error)
	GetActiveSession(ctx context.Context) (poll.Session, error)
	ReplaceQuestions(ctx context.Context, sessionID, name string, questions []poll.QuestionInput) error

	GetQuestions(ctx context.Context, sessionID string) ([]poll.Question, error)
	GetQuestion(ctx context.Context, questionID int64) (poll.Question, error)
	GetQuestionByIndex(ctx context.Context, sessionID string, index int) (poll.Question, error)
	CountQuestions(ctx context.Context, sessionID string) (int, error)

	UpdateStatus(ctx context.Context, sessionID string, status poll.Status) error
	UpdateCurrentQuestion(ctx context.Context, sessionID string, index int) error

	DeleteSession(ctx context.Context, sessionID string) error
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

type ResponseRepository interface {
	Upsert(ctx context.Context, r *poll.Response) (string, error)
	Aggregate(ctx context.Context, questionID int64) (poll.Aggregate, error)
	SessionAggregate(ctx context.Context, sessionID string) ([]poll.QuestionResult, error)
	CountByQuestion(ctx context.Context, sessionID string) (map[int64]int, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
}
