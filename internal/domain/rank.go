package domain

import (
	"math"
	"time"
)

// Ranks below this completion rate are scaled down by it.
const completionRateThreshold = 0.9

// UserRank is a user's standing at one difficulty: win rate (0-1000)
// adjusted for abandonment. Exactly one record exists per (user,
// difficulty) pair; it is fully recomputed, never incrementally merged.
type UserRank struct {
	UserID      string     `json:"user_id"`
	UserName    string     `json:"user_name,omitempty"`
	Difficulty  Difficulty `json:"difficulty"`
	Performance int        `json:"performance"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ComputeRank derives a user's rank at a difficulty from every game they
// have ever played at it. Won and lost games count as finished; cancelled
// games are excluded from the win rate but widen the completion-rate
// denominator, so a user who abandons most games ranks below one who
// finishes consistently.
func ComputeRank(userID string, difficulty Difficulty, games []*Game) UserRank {
	var finished, won, cancelled int
	for _, g := range games {
		switch g.Status {
		case StatusWon:
			finished++
			won++
		case StatusLost:
			finished++
		case StatusCancelled:
			cancelled++
		}
	}

	var performance int
	if finished > 0 {
		winRate := int(math.Round(1000 * float64(won) / float64(finished)))
		completionRate := float64(finished) / float64(finished+cancelled)
		if completionRate < completionRateThreshold {
			performance = int(math.Floor(completionRate * float64(winRate)))
		} else {
			performance = winRate
		}
	}

	return UserRank{
		UserID:      userID,
		Difficulty:  difficulty,
		Performance: performance,
		UpdatedAt:   time.Now().UTC(),
	}
}

// AverageAttemptsRemaining averages attempts remaining over all non-terminal
// games. Used by the out-of-band cache refresh, not by the state machine.
func AverageAttemptsRemaining(games []*Game) float64 {
	var sum, count int
	for _, g := range games {
		if g.Status == StatusInProgress {
			sum += g.AttemptsRemaining
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return float64(sum) / float64(count)
}
