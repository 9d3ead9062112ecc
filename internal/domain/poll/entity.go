package poll

import (
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeYesNo          QuestionType = "yes_no"
	TypeRating         QuestionType = "rating"
	TypeFreeText       QuestionType = "free_text"
)

// NoQuestion is the current_question_index of a session with nothing revealed.
const NoQuestion = -1

// ParseQuestionType accepts the stored names plus "text" as an alias of free_text.
func ParseQuestionType(s string) (QuestionType, bool) {
	switch QuestionType(s) {
	case TypeMultipleChoice, TypeYesNo, TypeRating, TypeFreeText:
		return QuestionType(s), true
	case "text":
		return TypeFreeText, true
	}
	return "", false
}

var YesNoOptions = []string{"Yes", "No"}

// Session represents poll_sessions
type Session struct {
	ID                   string    `json:"session_id"`
	Name                 string    `json:"poll_name,omitempty"`
	Status               Status    `json:"status"`
	CurrentQuestionIndex int       `json:"current_question_index"`
	IsRerun              bool      `json:"is_rerun"`
	OriginalPollID       string    `json:"original_poll_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

func (s Session) HasRevealed() bool {
	return s.CurrentQuestionIndex != NoQuestion
}

// Question represents questions
type Question struct {
	ID        int64        `json:"question_id"`
	SessionID string       `json:"session_id"`
	Index     int          `json:"question_index"`
	Text      string       `json:"question_text"`
	Type      QuestionType `json:"question_type"`
	Options   []string     `json:"options,omitempty"`
	ScaleMin  *int         `json:"scale_min,omitempty"`
	ScaleMax  *int         `json:"scale_max,omitempty"`
}

// QuestionInput is a question definition before it is persisted.
type QuestionInput struct {
	Text     string
	Type     QuestionType
	Options  []string
	ScaleMin *int
	ScaleMax *int
}

func (q Question) Input() QuestionInput {
	return QuestionInput{
		Text:     q.Text,
		Type:     q.Type,
		Options:  append([]string(nil), q.Options...),
		ScaleMin: q.ScaleMin,
		ScaleMax: q.ScaleMax,
	}
}

// Response represents responses
type Response struct {
	ID           string    `json:"response_id"`
	SessionID    string    `json:"session_id"`
	QuestionID   int64     `json:"question_id"`
	ConnectionID string    `json:"connection_id"`
	Answer       string    `json:"answer"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// Aggregate is the de-duplicated answer distribution of one question.
type Aggregate struct {
	Total     int            `json:"total"`
	Breakdown map[string]int `json:"breakdown"`
}

func EmptyAggregate() Aggregate {
	return Aggregate{Breakdown: map[string]int{}}
}

type QuestionResult struct {
	QuestionID int64        `json:"question_id"`
	Index      int          `json:"question_index"`
	Text       string       `json:"question_text"`
	Type       QuestionType `json:"question_type"`
	Options    []string     `json:"options,omitempty"`
	Aggregate
}

// SessionDetail is a session with its questions and per-question response counts.
type SessionDetail struct {
	Session
	Questions []QuestionWithCount `json:"questions"`
}

type QuestionWithCount struct {
	Question
	ResponseCount int `json:"response_count"`
}

// SessionSummary is the admin list view of a session.
type SessionSummary struct {
	Session
	HasActiveAdmin bool `json:"has_active_admin"`
}
