package database

import "time"

// Turn roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one role-tagged text unit of a session. Turns of a session are
// ordered by ID.
type Turn struct {
	ID        int64     `db:"id"`
	SessionID string    `db:"session_id"`
	Role      string    `db:"role"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

// Summary is the running summary of a session. Turns with an ID up to and
// including LastTurnID are folded into Content.
type Summary struct {
	SessionID  string    `db:"session_id"`
	Content    string    `db:"content"`
	LastTurnID int64     `db:"last_turn_id"`
	UpdatedAt  time.Time `db:"updated_at"`
}
