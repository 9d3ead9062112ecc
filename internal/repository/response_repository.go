package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/JoelGresham/teamPoll/internal/domain/poll"
	"github.com/JoelGresham/teamPoll/pkg/database"
	poll_errors "github.com/JoelGresham/teamPoll/pkg/errors"
)

// A resubmission from the same connection keeps the first response_id and replaces the answer.
const upsertResponseSuffix = "ON CONFLICT (question_id, connection_id) DO UPDATE " +
	"SET answer = excluded.answer, submitted_at = excluded.submitted_at " +
	"RETURNING response_id"

type SQLResponseRepository struct {
	db DBTX
	sq sq.StatementBuilderType
}

func NewResponseRepository(db DBTX, dialect database.Dialect) ResponseRepository {
	return &SQLResponseRepository{db: db, sq: builder(dialect)}
}

func (r *SQLResponseRepository) Upsert(ctx context.Context, resp *poll.Response) (string, error) {
	query, args, err := r.sq.Insert("responses").
		Columns("response_id", "session_id", "question_id", "connection_id", "answer", "submitted_at").
		Values(resp.ID, resp.SessionID, resp.QuestionID, resp.ConnectionID, resp.Answer, toMillis(resp.SubmittedAt)).
		Suffix(upsertResponseSuffix).
		ToSql()
	if err != nil {
		return "", poll_errors.Infra(err)
	}

	var id string
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if isUniqueViolation(err) {
			return "", poll_errors.ErrAlreadyExists
		}
		return "", poll_errors.Infra(err)
	}
	resp.ID = id
	return id, nil
}

func (r *SQLResponseRepository) Aggregate(ctx context.Context, questionID int64) (poll.Aggregate, error) {
	query, args, err := r.sq.Select("answer", "COUNT(*)").
		From("responses").
		Where(sq.Eq{"question_id": questionID}).
		GroupBy("answer").
		ToSql()
	if err != nil {
		return poll.Aggregate{}, poll_errors.Infra(err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return poll.Aggregate{}, poll_errors.Infra(err)
	}
	defer rows.Close()

	agg := poll.EmptyAggregate()
	for rows.Next() {
		var (
			answer string
			count  int
		)
		if err := rows.Scan(&answer, &count); err != nil {
			return poll.Aggregate{}, poll_errors.Infra(err)
		}
		agg.Breakdown[answer] = count
		agg.Total += count
	}
	if err := rows.Err(); err != nil {
		return poll.Aggregate{}, poll_errors.Infra(err)
	}
	return agg, nil
}

// SessionAggregate returns one result per question in position order, including unanswered ones.
func (r *SQLResponseRepository) SessionAggregate(ctx context.Context, sessionID string) ([]poll.QuestionResult, error) {
	query, args, err := r.sq.Select(
		"q.question_id", "q.question_index", "q.question_text", "q.question_type", "q.options",
		"r.answer", "COUNT(r.response_id)",
	).
		From("questions q").
		LeftJoin("responses r ON r.question_id = q.question_id").
		Where(sq.Eq{"q.session_id": sessionID}).
		GroupBy("q.question_id", "q.question_index", "q.question_text", "q.question_type", "q.options", "r.answer").
		OrderBy("q.question_index", "r.answer").
		ToSql()
	if err != nil {
		return nil, poll_errors.Infra(err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, poll_errors.Infra(err)
	}
	defer rows.Close()

	results := []poll.QuestionResult{}
	for rows.Next() {
		var (
			qr      poll.QuestionResult
			qType   string
			options sql.NullString
			answer  sql.NullString
			count   int
		)
		if err := rows.Scan(&qr.QuestionID, &qr.Index, &qr.Text, &qType, &options, &answer, &count); err != nil {
			return nil, poll_errors.Infra(err)
		}
		if n := len(results); n == 0 || results[n-1].QuestionID != qr.QuestionID {
			decoded, err := decodeOptions(options)
			if err != nil {
				return nil, poll_errors.Infra(err)
			}
			qr.Type = poll.QuestionType(qType)
			qr.Options = decoded
			qr.Aggregate = poll.EmptyAggregate()
			results = append(results, qr)
		}
		if answer.Valid {
			cur := &results[len(results)-1]
			cur.Breakdown[answer.String] = count
			cur.Total += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, poll_errors.Infra(err)
	}
	return results, nil
}

func (r *SQLResponseRepository) CountByQuestion(ctx context.Context, sessionID string) (map[int64]int, error) {
	query, args, err := r.sq.Select("question_id", "COUNT(*)").
		From("responses").
		Where(sq.Eq{"session_id": sessionID}).
		GroupBy("question_id").
		ToSql()
	if err != nil {
		return nil, poll_errors.Infra(err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, poll_errors.Infra(err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var (
			questionID int64
			count      int
		)
		if err := rows.Scan(&questionID, &count); err != nil {
			return nil, poll_errors.Infra(err)
		}
		counts[questionID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, poll_errors.Infra(err)
	}
	return counts, nil
}

func (r *SQLResponseRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	query, args, err := r.sq.Select("COUNT(*)").From("responses").Where(sq.Eq{"session_id": sessionID}).ToSql()
	if err != nil {
		return 0, poll_errors.Infra(err)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, poll_errors.Infra(fmt.Errorf("count responses: %w", err))
	}
	return n, nil
}
