package domain

import "time"

// HistoryEntry is one record in a game's append-only guess log. Entries are
// never mutated or reordered once written.
type HistoryEntry struct {
	Guess                  string    `json:"guess"`
	Message                string    `json:"message"`
	AttemptsRemainingAfter int       `json:"attempts_remaining_after"`
	CreatedAt              time.Time `json:"created_at"`
}
