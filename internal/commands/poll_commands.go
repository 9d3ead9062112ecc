package commands

import (
	"fmt"

	"github.com/JoelGresham/teamPoll/internal/domain/poll"
	poll_errors "github.com/JoelGresham/teamPoll/pkg/errors"
)

const (
	TypeCreatePoll     = "poll.create"
	TypeUpdatePoll     = "poll.update"
	TypeStartPoll      = "poll.start"
	TypeRevealQuestion = "poll.reveal_question"
	TypeCloseQuestion  = "poll.close_question"
	TypeSubmitResponse = "poll.submit_response"
	TypeEndPoll        = "poll.end"
	TypeRerunPoll      = "poll.rerun"
	TypeDeletePoll     = "poll.delete"

	TypeJoinSession    = "session.join"
	TypeAdminJoin      = "session.admin_join"
	TypeRequestResults = "session.request_results"
	TypeDisconnect     = "session.disconnect"
)

func requireSession(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session_id is required", poll_errors.ErrValidation)
	}
	return nil
}

func requireConnection(connID string) error {
	if connID == "" {
		return fmt.Errorf("%w: connection id is required", poll_errors.ErrValidation)
	}
	return nil
}

// CreatePollCommand creates a pending poll. OriginalPollID marks it as a rerun.
type CreatePollCommand struct {
	Spec           poll.SessionSpec
	OriginalPollID string
}

func (CreatePollCommand) CommandType() string { return TypeCreatePoll }

func (c CreatePollCommand) Validate() error {
	if len(c.Spec.Questions) == 0 {
		return fmt.Errorf("%w: at least one question is required", poll_errors.ErrValidation)
	}
	return nil
}

type UpdatePollCommand struct {
	SessionID string
	Spec      poll.SessionSpec
}

func (UpdatePollCommand) CommandType() string { return TypeUpdatePoll }

func (c UpdatePollCommand) Validate() error { return requireSession(c.SessionID) }

// StartPollCommand and the other admin commands carry the acting connection.
// An empty ActorID comes from the admin HTTP API.
type StartPollCommand struct {
	SessionID string
	ActorID   string
}

func (StartPollCommand) CommandType() string { return TypeStartPoll }

func (c StartPollCommand) Validate() error { return requireSession(c.SessionID) }

type RevealQuestionCommand struct {
	SessionID     string
	QuestionIndex int
	ActorID       string
}

func (RevealQuestionCommand) CommandType() string { return TypeRevealQuestion }

func (c RevealQuestionCommand) Validate() error { return requireSession(c.SessionID) }

type CloseQuestionCommand struct {
	SessionID string
	ActorID   string
}

func (CloseQuestionCommand) CommandType() string { return TypeCloseQuestion }

func (c CloseQuestionCommand) Validate() error { return requireSession(c.SessionID) }

type SubmitResponseCommand struct {
	SessionID    string
	QuestionID   int64
	Answer       string
	ConnectionID string
	Origin       string
}

func (SubmitResponseCommand) CommandType() string { return TypeSubmitResponse }

func (c SubmitResponseCommand) Validate() error {
	if err := requireSession(c.SessionID); err != nil {
		return err
	}
	if c.QuestionID <= 0 {
		return fmt.Errorf("%w: question_id is required", poll_errors.ErrValidation)
	}
	return requireConnection(c.ConnectionID)
}

type EndPollCommand struct {
	SessionID string
	ActorID   string
}

func (EndPollCommand) CommandType() string { return TypeEndPoll }

func (c EndPollCommand) Validate() error { return requireSession(c.SessionID) }

type RerunPollCommand struct {
	SessionID string
}

func (RerunPollCommand) CommandType() string { return TypeRerunPoll }

func (c RerunPollCommand) Validate() error { return requireSession(c.SessionID) }

type DeletePollCommand struct {
	SessionID string
}

func (DeletePollCommand) CommandType() string { return TypeDeletePoll }

func (c DeletePollCommand) Validate() error { return requireSession(c.SessionID) }

type JoinSessionCommand struct {
	SessionID    string
	ConnectionID string
}

func (JoinSessionCommand) CommandType() string { return TypeJoinSession }

func (c JoinSessionCommand) Validate() error {
	if err := requireSession(c.SessionID); err != nil {
		return err
	}
	return requireConnection(c.ConnectionID)
}

type AdminJoinCommand struct {
	SessionID    string
	ConnectionID string
}

func (AdminJoinCommand) CommandType() string { return TypeAdminJoin }

func (c AdminJoinCommand) Validate() error {
	if err := requireSession(c.SessionID); err != nil {
		return err
	}
	return requireConnection(c.ConnectionID)
}

// RequestResultsCommand asks for one question's aggregate, or the whole session's
// when QuestionID is zero.
type RequestResultsCommand struct {
	SessionID    string
	QuestionID   int64
	ConnectionID string
}

func (RequestResultsCommand) CommandType() string { return TypeRequestResults }

func (c RequestResultsCommand) Validate() error {
	if err := requireSession(c.SessionID); err != nil {
		return err
	}
	return requireConnection(c.ConnectionID)
}

type DisconnectCommand struct {
	ConnectionID string
}

func (DisconnectCommand) CommandType() string { return TypeDisconnect }

func (c DisconnectCommand) Validate() error { return requireConnection(c.ConnectionID) }
