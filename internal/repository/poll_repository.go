package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/JoelGresham/teamPoll/internal/domain/poll"
	"github.com/JoelGresham/teamPoll/pkg/database"
	poll_errors "github.com/JoelGresham/teamPoll/pkg/errors"
)

var sessionColumns = []string{
	"session_id", "created_at", "status", "current_question_index",
	"poll_name", "is_rerun", "original_poll_id",
}

var questionColumns = []string{
	"question_id", "session_id", "question_index", "question_text",
	"question_type", "options", "scale_min", "scale_max",
}

type SQLPollRepository struct {
	db DBTX
	sq sq.StatementBuilderType
}

func NewPollRepository(db DBTX, dialect database.Dialect) PollRepository {
	return &SQLPollRepository{db: db, sq: builder(dialect)}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (poll.Session, error) {
	var (
		s         poll.Session
		createdAt int64
		status    string
		name      sql.NullString
		original  sql.NullString
	)
	if err := row.Scan(&s.ID, &createdAt, &status, &s.CurrentQuestionIndex, &name, &s.IsRerun, &original); err != nil {
		return poll.Session{}, err
	}
	s.CreatedAt = fromMillis(createdAt)
	s.Status = poll.Status(status)
	s.Name = name.String
	s.OriginalPollID = original.String
	return s, nil
}

func scanQuestion(row rowScanner) (poll.Question, error) {
	var (
		q        poll.Question
		qType    string
		options  sql.NullString
		scaleMin sql.NullInt64
		scaleMax sql.NullInt64
	)
	if err := row.Scan(&q.ID, &q.SessionID, &q.Index, &q.Text, &qType, &options, &scaleMin, &scaleMax); err != nil {
		return poll.Question{}, err
	}
	decoded, err := decodeOptions(options)
	if err != nil {
		return poll.Question{}, err
	}
	q.Type = poll.QuestionType(qType)
	q.Options = decoded
	q.ScaleMin = intPtr(scaleMin)
	q.ScaleMax = intPtr(scaleMax)
	return q, nil
}

func (r *SQLPollRepository) CreateSession(ctx context.Context, s *poll.Session, questions []poll.QuestionInput) error {
	query, args, err := r.sq.Insert("poll_sessions").
		Columns(sessionColumns...).
		Values(s.ID, toMillis(s.CreatedAt), string(s.Status), s.CurrentQuestionIndex,
			nullString(s.Name), s.IsRerun, nullString(s.OriginalPollID)).
		ToSql()
	if err != nil {
		return poll_errors.Infra(err)
	}

	err = WithTx(ctx, r.db, func(tx DBTX) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isUniqueViolation(err) {
				return poll_errors.ErrAlreadyExists
			}
			return err
		}
		return r.insertQuestions(ctx, tx, s.ID, questions)
	})
	if errors.Is(err, poll_errors.ErrAlreadyExists) {
		return err
	}
	return poll_errors.Infra(err)
}

func (r *SQLPollRepository) insertQuestions(ctx context.Context, tx DBTX, sessionID string, questions []poll.QuestionInput) error {
	for i, q := range questions {
		options, err := encodeOptions(q.Options)
		if err != nil {
			return err
		}
		query, args, err := r.sq.Insert("questions").
			Columns("session_id", "question_index", "question_text", "question_type", "options", "scale_min", "scale_max").
			Values(sessionID, i, q.Text, string(q.Type), options, nullInt(q.ScaleMin), nullInt(q.ScaleMax)).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert question %d: %w", i, err)
		}
	}
	return nil
}

func (r *SQLPollRepository) GetSession(ctx context.Context, sessionID string) (poll.Session, error) {
	query, args, err := r.sq.Select(sessionColumns...).
		From("poll_sessions").
		Where(sq.Eq{"session_id": sessionID}).
		ToSql()
	if err != nil {
		return poll.Session{}, poll_errors.Infra(err)
	}
	s, err := scanSession(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return poll.Session{}, fmt.Errorf("%w: session %s", poll_errors.ErrNotFound, sessionID)
		}
		return poll.Session{}, poll_errors.Infra(err)
	}
	return s, nil
}

func (r *SQLPollRepository) ListSessions(ctx context.Context) ([]poll.Session, error) {
	query, args, err := r.sq.Select(sessionColumns...).
		From("poll_sessions").
		OrderBy("created_at DESC", "session_id").
		ToSql()
	if err != nil {
		return nil, poll_errors.Infra(err)
	}
	return r.querySessions(ctx, query, args)
}

// GetActiveSession returns the newest session that has not completed.
func (r *SQLPollRepository) GetActiveSession(ctx context.Context) (poll.Session, error) {
	query, args, err := r.sq.Select(sessionColumns...).
		From("poll_sessions").
		Where(sq.Eq{"status": []string{string(poll.StatusPending), string(poll.StatusActive)}}).
		OrderBy("created_at DESC", "session_id").
		Limit(1).
		ToSql()
	if err != nil {
		return poll.Session{}, poll_errors.Infra(err)
	}
	s, err := scanSession(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return poll.Session{}, fmt.Errorf("%w: no active poll", poll_errors.ErrNotFound)
		}
		return poll.Session{}, poll_errors.Infra(err)
	}
	return s, nil
}

func (r *SQLPollRepository) querySessions(ctx context.Context, query string, args []interface{}) ([]poll.Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, poll_errors.Infra(err)
	}
	defer rows.Close()

	sessions := []poll.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, poll_errors.Infra(err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, poll_errors.Infra(err)
	}
	return sessions, nil
}

// ReplaceQuestions swaps the whole question list and the poll name in one transaction.
func (r *SQLPollRepository) ReplaceQuestions(ctx context.Context, sessionID, name string, questions []poll.QuestionInput) error {
	err := WithTx(ctx, r.db, func(tx DBTX) error {
		query, args, err := r.sq.Update("poll_sessions").
			Set("poll_name", nullString(name)).
			Where(sq.Eq{"session_id": sessionID}).
			ToSql()
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: session %s", poll_errors.ErrNotFound, sessionID)
		}
		for _, table := range []string{"responses", "questions"} {
			query, args, err := r.sq.Delete(table).Where(sq.Eq{"session_id": sessionID}).ToSql()
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return err
			}
		}
		return r.insertQuestions(ctx, tx, sessionID, questions)
	})
	if errors.Is(err, poll_errors.ErrNotFound) {
		return err
	}
	return poll_errors.Infra(err)
}

func (r *SQLPollRepository) GetQuestions(ctx context.Context, sessionID string) ([]poll.Question, error) {
	query, args, err := r.sq.Select(questionColumns...).
		From("questions").
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("question_index").
		ToSql()
	if err != nil {
		return nil, poll_errors.Infra(err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, poll_errors.Infra(err)
	}
	defer rows.Close()

	questions := []poll.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, poll_errors.Infra(err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, poll_errors.Infra(err)
	}
	return questions, nil
}

func (r *SQLPollRepository) GetQuestion(ctx context.Context, questionID int64) (poll.Question, error) {
	return r.getQuestionWhere(ctx, sq.Eq{"question_id": questionID}, fmt.Sprintf("question %d", questionID))
}

func (r *SQLPollRepository) GetQuestionByIndex(ctx context.Context, sessionID string, index int) (poll.Question, error) {
	return r.getQuestionWhere(ctx, sq.Eq{"session_id": sessionID, "question_index": index},
		fmt.Sprintf("question %d of session %s", index, sessionID))
}

func (r *SQLPollRepository) getQuestionWhere(ctx context.Context, pred sq.Eq, what string) (poll.Question, error) {
	query, args, err := r.sq.Select(questionColumns...).From("questions").Where(pred).ToSql()
	if err != nil {
		return poll.Question{}, poll_errors.Infra(err)
	}
	q, err := scanQuestion(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return poll.Question{}, fmt.Errorf("%w: %s", poll_errors.ErrNotFound, what)
		}
		return poll.Question{}, poll_errors.Infra(err)
	}
	return q, nil
}

func (r *SQLPollRepository) CountQuestions(ctx context.Context, sessionID string) (int, error) {
	query, args, err := r.sq.Select("COUNT(*)").From("questions").Where(sq.Eq{"session_id": sessionID}).ToSql()
	if err != nil {
		return 0, poll_errors.Infra(err)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, poll_errors.Infra(err)
	}
	return n, nil
}

func (r *SQLPollRepository) UpdateStatus(ctx context.Context, sessionID string, status poll.Status) error {
	return r.updateSession(ctx, sessionID, "status", string(status))
}

func (r *SQLPollRepository) UpdateCurrentQuestion(ctx context.Context, sessionID string, index int) error {
	return r.updateSession(ctx, sessionID, "current_question_index", index)
}

func (r *SQLPollRepository) updateSession(ctx context.Context, sessionID, column string, value interface{}) error {
	query, args, err := r.sq.Update("poll_sessions").
		Set(column, value).
		Where(sq.Eq{"session_id": sessionID}).
		ToSql()
	if err != nil {
		return poll_errors.Infra(err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return poll_errors.Infra(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return poll_errors.Infra(err)
	}
	if n == 0 {
		return fmt.Errorf("%w: session %s", poll_errors.ErrNotFound, sessionID)
	}
	return nil
}

// DeleteSession removes the session with its questions and responses atomically.
func (r *SQLPollRepository) DeleteSession(ctx context.Context, sessionID string) error {
	err := WithTx(ctx, r.db, func(tx DBTX) error {
		n, err := r.deleteCascade(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: session %s", poll_errors.ErrNotFound, sessionID)
		}
		return nil
	})
	if errors.Is(err, poll_errors.ErrNotFound) {
		return err
	}
	return poll_errors.Infra(err)
}

func (r *SQLPollRepository) deleteCascade(ctx context.Context, tx DBTX, sessionID string) (int64, error) {
	var affected int64
	for _, table := range []string{"responses", "questions", "poll_sessions"} {
		query, args, err := r.sq.Delete(table).Where(sq.Eq{"session_id": sessionID}).ToSql()
		if err != nil {
			return 0, err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("delete from %s: %w", table, err)
		}
		if table == "poll_sessions" {
			affected, _ = res.RowsAffected()
		}
	}
	return affected, nil
}

// DeleteCompletedBefore purges completed sessions created before cutoff and returns their ids.
func (r *SQLPollRepository) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	query, args, err := r.sq.Select("session_id").
		From("poll_sessions").
		Where(sq.Eq{"status": string(poll.StatusCompleted)}).
		Where(sq.Lt{"created_at": toMillis(cutoff)}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, poll_errors.Infra(err)
	}

	var ids []string
	err = WithTx(ctx, r.db, func(tx DBTX) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for _, id := range ids {
			if _, err := r.deleteCascade(ctx, tx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, poll_errors.Infra(err)
	}
	return ids, nil
}
