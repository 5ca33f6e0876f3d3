package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Status represents the lifecycle state of a game
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusWon        Status = "won"
	StatusLost       Status = "lost"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s != StatusInProgress
}

// Game is one play-through of a single target word by one user.
//
// CorrectLetters and IncorrectLetters hold distinct single letters in the
// order they were guessed. The target word is lowercased on creation and
// all guesses are compared case-insensitively.
type Game struct {
	ID                string         `json:"id"`
	UserID            string         `json:"user_id"`
	TargetWord        string         `json:"-"`
	CorrectLetters    string         `json:"correct_letters"`
	IncorrectLetters  string         `json:"incorrect_letters"`
	AttemptsAllowed   int            `json:"attempts_allowed"`
	AttemptsRemaining int            `json:"attempts_remaining"`
	Status            Status         `json:"status"`
	History           []HistoryEntry `json:"-"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// GuessResult is the outcome of a single guess. Bad player input (empty,
// repeated, or multi-letter guesses) is reported here as a message, never
// as an error.
type GuessResult struct {
	Message           string   `json:"message"`
	RevealedPattern   string   `json:"revealed_pattern"`
	AttemptsRemaining int      `json:"attempts_remaining"`
	Status            Status   `json:"status"`
	BodyParts         []string `json:"body_parts"`
}

// ValidateNewGame checks the creation parameters before a word is drawn.
func ValidateNewGame(attempts, minLetters, maxLetters int) error {
	if !Difficulty(attempts).Valid() {
		return ErrInvalidDifficulty
	}
	if maxLetters < minLetters {
		return ErrInvalidRange
	}
	return nil
}

// NewGame constructs an in-progress game around the given target word.
func NewGame(id, userID, word string, attempts int) *Game {
	now := time.Now().UTC()
	return &Game{
		ID:                id,
		UserID:            userID,
		TargetWord:        strings.ToLower(word),
		AttemptsAllowed:   attempts,
		AttemptsRemaining: attempts,
		Status:            StatusInProgress,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Difficulty returns the game's attempt budget as a Difficulty.
func (g *Game) Difficulty() Difficulty {
	return Difficulty(g.AttemptsAllowed)
}

// RevealedPattern projects CorrectLetters over the target word: guessed
// letters shown in place, unguessed positions blanked, space-joined.
// A won game always renders the full word. The projection is deterministic
// and idempotent.
func (g *Game) RevealedPattern() string {
	cells := make([]string, 0, len(g.TargetWord))
	for _, r := range g.TargetWord {
		if g.Status == StatusWon || strings.ContainsRune(g.CorrectLetters, r) {
			cells = append(cells, string(r))
		} else {
			cells = append(cells, "_")
		}
	}
	return strings.Join(cells, " ")
}

// ApplyGuess evaluates a single guess against the game, mutating state and
// appending one history entry per accepted guess. Guessing against a
// finished game is an idempotent no-op that appends nothing.
//
// Evaluation order, first match wins:
// empty input, exact solve, multi-letter failed solve (ends the game as a
// loss, intentionally), repeated letter, correct letter, incorrect letter.
// Only a distinct incorrect single letter consumes an attempt.
func (g *Game) ApplyGuess(input string) GuessResult {
	if g.Status.Terminal() {
		return g.result("Game already over!")
	}

	guess := strings.ToLower(strings.TrimSpace(input))
	switch {
	case guess == "":
		return g.accept(guess, "You didn't guess a letter!")

	case guess == g.TargetWord:
		g.Status = StatusWon
		return g.accept(guess, "You solved the puzzle! The word was "+g.TargetWord+".")

	case utf8.RuneCountInString(guess) > 1:
		// A wrong whole-word guess is a failed solve attempt and ends the
		// game regardless of attempts remaining. Length is counted in
		// characters, not bytes, so a single accented letter stays a
		// letter guess.
		g.Status = StatusLost
		return g.accept(guess, "That is not the word! Game over, the word was "+g.TargetWord+".")

	case g.alreadyGuessed(guess):
		return g.accept(guess, "You already guessed that letter!")

	case strings.Contains(g.TargetWord, guess):
		g.CorrectLetters += guess
		if g.revealComplete() {
			g.Status = StatusWon
			return g.accept(guess, "You win! The word was "+g.TargetWord+".")
		}
		return g.accept(guess, "Correct! Guess another letter.")

	default:
		g.IncorrectLetters += guess
		g.AttemptsRemaining--
		if g.AttemptsRemaining <= 0 {
			g.Status = StatusLost
			return g.accept(guess, "Incorrect! That letter is not in the word. Game over, the word was "+g.TargetWord+".")
		}
		return g.accept(guess, "Incorrect! That letter is not in the word.")
	}
}

// Cancel transitions an in-progress game to cancelled and records a history
// entry. Cancelled games never produce a score.
func (g *Game) Cancel() error {
	if g.Status.Terminal() {
		return ErrAlreadyTerminal
	}
	g.Status = StatusCancelled
	g.touch()
	g.History = append(g.History, HistoryEntry{
		Message:                "Game cancelled.",
		AttemptsRemainingAfter: g.AttemptsRemaining,
		CreatedAt:              g.UpdatedAt,
	})
	return nil
}

func (g *Game) alreadyGuessed(letter string) bool {
	return strings.Contains(g.CorrectLetters, letter) ||
		strings.Contains(g.IncorrectLetters, letter)
}

func (g *Game) revealComplete() bool {
	for _, r := range g.TargetWord {
		if !strings.ContainsRune(g.CorrectLetters, r) {
			return false
		}
	}
	return true
}

func (g *Game) touch() {
	g.UpdatedAt = time.Now().UTC()
}

// accept records an accepted guess in the history and returns the result.
func (g *Game) accept(guess, message string) GuessResult {
	g.touch()
	g.History = append(g.History, HistoryEntry{
		Guess:                  guess,
		Message:                message,
		AttemptsRemainingAfter: g.AttemptsRemaining,
		CreatedAt:              g.UpdatedAt,
	})
	return g.result(message)
}

func (g *Game) result(message string) GuessResult {
	return GuessResult{
		Message:           message,
		RevealedPattern:   g.RevealedPattern(),
		AttemptsRemaining: g.AttemptsRemaining,
		Status:            g.Status,
		BodyParts:         g.Difficulty().BodyParts(g.AttemptsAllowed - g.AttemptsRemaining),
	}
}
