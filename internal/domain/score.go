package domain

import "time"

// Score is the record written exactly once when a game finishes as won or
// lost. Cancelled games never produce one.
type Score struct {
	ID          int64      `json:"id"`
	GameID      string     `json:"game_id"`
	UserID      string     `json:"user_id"`
	Difficulty  Difficulty `json:"difficulty"`
	Value       int        `json:"value"`
	CompletedAt time.Time  `json:"completed_at"`
}

// ComputeScore returns floor(1000 * correct / (correct + incorrect)) for a
// finished game, with 0/0 defined as 0. Letter sets are distinct by
// construction, so their lengths are the counts. Calling this on a game
// that is not won or lost is a contract violation.
func ComputeScore(g *Game) (int, error) {
	if g.Status != StatusWon && g.Status != StatusLost {
		return 0, ErrInvalidGameState
	}
	correct := len(g.CorrectLetters)
	incorrect := len(g.IncorrectLetters)
	if correct+incorrect == 0 {
		return 0, nil
	}
	return 1000 * correct / (correct + incorrect), nil
}
