package events

// Lifecycle events emitted by the poll state machine.
const (
	TypeSessionCreated     = "session_created"
	TypeSessionStarted     = "session_started"
	TypeQuestionRevealed   = "question_revealed"
	TypeQuestionClosed     = "question_closed"
	TypeResponseSubmitted  = "response_submitted"
	TypeResponseReceived   = "response_received"
	TypeSessionEnded       = "session_ended"
	TypeSessionDeleted     = "session_deleted"
	TypeAdminStatusChanged = "admin_status_changed"
)

// Connection-level events.
const (
	TypeSessionJoined    = "session_joined"
	TypeAdminJoined      = "admin_joined"
	TypeParticipantCount = "participant_count"
	TypeResultsUpdate    = "results_update"
	TypeSessionResults   = "session_results"
	TypeError            = "error"
	TypePong             = "pong"
)
