package events

import (
	"time"

	"github.com/JoelGresham/teamPoll/internal/domain/poll"
)

type AudienceKind int

const (
	AudienceParticipants AudienceKind = iota + 1
	AudienceAdmins
	AudienceConnection
	AudienceGlobal
)

// Audience names one group of sockets an event is delivered to.
type Audience struct {
	Kind         AudienceKind
	SessionID    string
	ConnectionID string
}

func Participants(sessionID string) Audience {
	return Audience{Kind: AudienceParticipants, SessionID: sessionID}
}

func Admins(sessionID string) Audience {
	return Audience{Kind: AudienceAdmins, SessionID: sessionID}
}

func Connection(connID string) Audience {
	return Audience{Kind: AudienceConnection, ConnectionID: connID}
}

func Everyone() Audience {
	return Audience{Kind: AudienceGlobal}
}

// Event is produced by a state transition and delivered by the gateway.
type Event struct {
	Type       string
	SessionID  string
	Payload    interface{}
	Audiences  []Audience
	OccurredAt time.Time
}

func New(eventType, sessionID string, payload interface{}, audiences ...Audience) Event {
	return Event{
		Type:       eventType,
		SessionID:  sessionID,
		Payload:    payload,
		Audiences:  audiences,
		OccurredAt: time.Now().UTC(),
	}
}

// ToSession addresses both the participants and the admins of a session.
func ToSession(eventType, sessionID string, payload interface{}) Event {
	return New(eventType, sessionID, payload, Participants(sessionID), Admins(sessionID))
}

func Error(connID, sessionID, message, code string) Event {
	return New(TypeError, sessionID, ErrorPayload{Message: message, Code: code}, Connection(connID))
}

type QuestionRevealedPayload struct {
	Question       poll.Question `json:"question"`
	QuestionIndex  int           `json:"question_index"`
	TotalQuestions int           `json:"total_questions"`
}

type QuestionClosedPayload struct {
	QuestionIndex int `json:"question_index"`
}

type ResponseSubmittedPayload struct {
	ResponseID string `json:"response_id"`
	QuestionID int64  `json:"question_id"`
}

type ResponseReceivedPayload struct {
	QuestionID int64          `json:"question_id"`
	Results    poll.Aggregate `json:"results"`
}

type SessionPayload struct {
	Session poll.Session `json:"session"`
}

type AdminStatusPayload struct {
	SessionID      string `json:"session_id"`
	HasActiveAdmin bool   `json:"has_active_admin"`
}

type SessionJoinedPayload struct {
	Session          poll.Session `json:"session"`
	ParticipantCount int          `json:"participant_count"`
}

type AdminJoinedPayload struct {
	Session          poll.Session    `json:"session"`
	Questions        []poll.Question `json:"questions"`
	ParticipantCount int             `json:"participant_count"`
}

type ParticipantCountPayload struct {
	Count int `json:"count"`
}

type ResultsPayload struct {
	Results []poll.QuestionResult `json:"results"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}
