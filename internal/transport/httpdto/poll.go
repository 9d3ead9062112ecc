package httpdto

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/JoelGresham/teamPoll/internal/domain/poll"
	poll_errors "github.com/JoelGresham/teamPoll/pkg/errors"
)

// CreatePollRequest is used for POST /api/admin/polls
type CreatePollRequest struct {
	PollName       string              `json:"poll_name"`
	Questions      []poll.QuestionSpec `json:"questions" binding:"required,min=1"`
	IsRerun        bool                `json:"is_rerun,omitempty"`
	OriginalPollID string              `json:"original_poll_id,omitempty"`
}

func (r CreatePollRequest) Spec() poll.SessionSpec {
	return poll.SessionSpec{Name: r.PollName, Questions: r.Questions}
}

// RerunOf returns the original poll id when the request marks a rerun.
func (r CreatePollRequest) RerunOf() string {
	if !r.IsRerun {
		return ""
	}
	return strings.TrimSpace(r.OriginalPollID)
}

// UpdatePollRequest is used for PUT /api/admin/polls/:id
type UpdatePollRequest struct {
	PollName  string              `json:"poll_name"`
	Questions []poll.QuestionSpec `json:"questions" binding:"required,min=1"`
}

func (r UpdatePollRequest) Spec() poll.SessionSpec {
	return poll.SessionSpec{Name: r.PollName, Questions: r.Questions}
}

// RespondRequest is used for POST /api/poll/:id/respond
type RespondRequest struct {
	QuestionID    int64           `json:"question_id" binding:"required,gt=0"`
	Answer        json.RawMessage `json:"answer" binding:"required"`
	ParticipantID string          `json:"participant_id" binding:"required,max=128"`
}

type RespondResponse struct {
	ResponseID string `json:"response_id"`
}

// PollStatusResponse is the participant view of a poll. It never includes questions.
type PollStatusResponse struct {
	SessionID            string      `json:"session_id"`
	Status               poll.Status `json:"status"`
	CurrentQuestionIndex int         `json:"current_question_index"`
}

func FromSession(s poll.Session) PollStatusResponse {
	return PollStatusResponse{
		SessionID:            s.ID,
		Status:               s.Status,
		CurrentQuestionIndex: s.CurrentQuestionIndex,
	}
}

type ListPollsResponse struct {
	Polls []poll.SessionSummary `json:"polls"`
}

// ActivePollResponse carries a null poll when nothing is pending or active.
type ActivePollResponse struct {
	Poll *poll.Session `json:"poll"`
}

type ResultsResponse struct {
	SessionID string                `json:"session_id"`
	Results   []poll.QuestionResult `json:"results"`
}

// ParseAnswer accepts a JSON string or number. Rating answers usually arrive as numbers.
func ParseAnswer(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("%w: answer is required", poll_errors.ErrValidation)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10), nil
		}
		return n.String(), nil
	}
	return "", fmt.Errorf("%w: answer must be a string or a number", poll_errors.ErrValidation)
}
