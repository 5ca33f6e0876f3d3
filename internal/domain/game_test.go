package domain

import (
	"strings"
	"testing"
)

func newTestGame(word string, attempts int) *Game {
	return NewGame("game-1", "user-1", word, attempts)
}

func TestValidateNewGame(t *testing.T) {
	tests := []struct {
		name       string
		attempts   int
		minLetters int
		maxLetters int
		wantErr    error
	}{
		{name: "hard", attempts: 6, minLetters: 4, maxLetters: 8, wantErr: nil},
		{name: "medium", attempts: 9, minLetters: 6, maxLetters: 12, wantErr: nil},
		{name: "easy", attempts: 12, minLetters: 4, maxLetters: 4, wantErr: nil},
		{name: "invalid attempts", attempts: 7, minLetters: 4, maxLetters: 8, wantErr: ErrInvalidDifficulty},
		{name: "zero attempts", attempts: 0, minLetters: 4, maxLetters: 8, wantErr: ErrInvalidDifficulty},
		{name: "max below min", attempts: 6, minLetters: 8, maxLetters: 4, wantErr: ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNewGame(tt.attempts, tt.minLetters, tt.maxLetters)
			if err != tt.wantErr {
				t.Errorf("ValidateNewGame() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// Walks the exact wolf scenario: correct letter, repeat, incorrect letter,
// then a solve with attempts still remaining.
func TestApplyGuessWolfScenario(t *testing.T) {
	g := newTestGame("wolf", 6)

	res := g.ApplyGuess("w")
	if res.RevealedPattern != "w _ _ _" {
		t.Errorf("pattern after correct guess = %q, want %q", res.RevealedPattern, "w _ _ _")
	}
	if res.Status != StatusInProgress || res.AttemptsRemaining != 6 {
		t.Errorf("unexpected state after correct guess: %+v", res)
	}

	res = g.ApplyGuess("w")
	if !strings.Contains(res.Message, "already guessed") {
		t.Errorf("repeat guess message = %q", res.Message)
	}
	if res.AttemptsRemaining != 6 {
		t.Errorf("repeat guess consumed an attempt: %d", res.AttemptsRemaining)
	}

	res = g.ApplyGuess("z")
	if res.AttemptsRemaining != 5 {
		t.Errorf("incorrect guess: attempts = %d, want 5", res.AttemptsRemaining)
	}

	res = g.ApplyGuess("wolf")
	if res.Status != StatusWon {
		t.Errorf("solve: status = %q, want won", res.Status)
	}
	if res.RevealedPattern != "w o l f" {
		t.Errorf("solve: pattern = %q, want fully revealed", res.RevealedPattern)
	}

	score, err := ComputeScore(g)
	if err != nil {
		t.Fatalf("ComputeScore() error = %v", err)
	}
	if score != 500 {
		t.Errorf("score = %d, want 500 (1 correct, 1 incorrect)", score)
	}
}

func TestApplyGuessEvaluationOrder(t *testing.T) {
	tests := []struct {
		name         string
		word         string
		attempts     int
		prior        []string
		guess        string
		wantStatus   Status
		wantAttempts int
		wantHistory  int
	}{
		{
			name: "empty input consumes nothing", word: "wolf", attempts: 6,
			guess: "", wantStatus: StatusInProgress, wantAttempts: 6, wantHistory: 1,
		},
		{
			name: "solve wins even at one attempt", word: "wolf", attempts: 6,
			prior: []string{"z", "x", "q", "v", "b"},
			guess: "WOLF", wantStatus: StatusWon, wantAttempts: 1, wantHistory: 6,
		},
		{
			name: "wrong word loses at full attempts", word: "wolf", attempts: 9,
			guess: "wold", wantStatus: StatusLost, wantAttempts: 9, wantHistory: 1,
		},
		// A multi-letter guess that is a substring of the target is still a
		// failed solve. Intentional: any non-exact word guess ends the game.
		{
			name: "substring word guess still loses", word: "wolf", attempts: 6,
			guess: "wol", wantStatus: StatusLost, wantAttempts: 6, wantHistory: 1,
		},
		{
			name: "correct letter keeps attempts", word: "wolf", attempts: 6,
			guess: "o", wantStatus: StatusInProgress, wantAttempts: 6, wantHistory: 1,
		},
		{
			name: "last correct letter wins", word: "go", attempts: 6,
			prior: []string{"g"},
			guess: "o", wantStatus: StatusWon, wantAttempts: 6, wantHistory: 2,
		},
		{
			name: "incorrect letter decrements", word: "wolf", attempts: 6,
			guess: "z", wantStatus: StatusInProgress, wantAttempts: 5, wantHistory: 1,
		},
		{
			name: "final incorrect letter loses", word: "go", attempts: 6,
			prior: []string{"a", "b", "c", "d", "e"},
			guess: "f", wantStatus: StatusLost, wantAttempts: 0, wantHistory: 6,
		},
		{
			name: "repeat incorrect letter consumes nothing", word: "wolf", attempts: 6,
			prior: []string{"z"},
			guess: "z", wantStatus: StatusInProgress, wantAttempts: 5, wantHistory: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGame(tt.word, tt.attempts)
			for _, p := range tt.prior {
				g.ApplyGuess(p)
			}
			res := g.ApplyGuess(tt.guess)
			if res.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", res.Status, tt.wantStatus)
			}
			if res.AttemptsRemaining != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", res.AttemptsRemaining, tt.wantAttempts)
			}
			if len(g.History) != tt.wantHistory {
				t.Errorf("history length = %d, want %d", len(g.History), tt.wantHistory)
			}
		})
	}
}

func TestApplyGuessSingleNonASCIILetter(t *testing.T) {
	g := newTestGame("wolf", 6)

	// One character, multiple bytes: still a single-letter guess, so it
	// consumes one attempt rather than ending the game as a failed solve.
	res := g.ApplyGuess("é")
	if g.Status != StatusInProgress {
		t.Fatalf("status = %q, want in_progress", g.Status)
	}
	if g.AttemptsRemaining != 5 {
		t.Errorf("attempts = %d, want 5", g.AttemptsRemaining)
	}
	if res.Message != "Incorrect! That letter is not in the word." {
		t.Errorf("message = %q", res.Message)
	}

	// Repeating it is a no-cost repeat, not a second incorrect letter.
	g.ApplyGuess("é")
	if g.AttemptsRemaining != 5 {
		t.Errorf("attempts after repeat = %d, want 5", g.AttemptsRemaining)
	}
	if len(g.History) != 2 {
		t.Errorf("history length = %d, want 2", len(g.History))
	}
}

func TestAttemptsNeverIncrease(t *testing.T) {
	g := newTestGame("wolf", 6)
	prev := g.AttemptsRemaining
	for _, guess := range []string{"w", "", "w", "z", "z", "o", "x", "l"} {
		g.ApplyGuess(guess)
		if g.AttemptsRemaining > prev {
			t.Fatalf("attempts increased from %d to %d after guess %q", prev, g.AttemptsRemaining, guess)
		}
		prev = g.AttemptsRemaining
	}
}

func TestRevealedPatternDeterministic(t *testing.T) {
	g := newTestGame("wolf", 6)
	g.ApplyGuess("w")
	g.ApplyGuess("l")

	first := g.RevealedPattern()
	second := g.RevealedPattern()
	if first != second {
		t.Errorf("pattern not idempotent: %q vs %q", first, second)
	}
	if first != "w _ l _" {
		t.Errorf("pattern = %q, want %q", first, "w _ l _")
	}
}

func TestRevealedPatternRepeatedLetters(t *testing.T) {
	g := newTestGame("llama", 6)
	g.ApplyGuess("l")
	if got := g.RevealedPattern(); got != "l l _ _ _" {
		t.Errorf("pattern = %q, want %q", got, "l l _ _ _")
	}
	g.ApplyGuess("a")
	if got := g.RevealedPattern(); got != "l l a _ a" {
		t.Errorf("pattern = %q, want %q", got, "l l a _ a")
	}
}

func TestGuessOnFinishedGameIsNoOp(t *testing.T) {
	g := newTestGame("wolf", 6)
	g.ApplyGuess("wolf")

	before := len(g.History)
	res := g.ApplyGuess("x")
	if res.Message != "Game already over!" {
		t.Errorf("message = %q", res.Message)
	}
	if len(g.History) != before {
		t.Error("terminal no-op appended history")
	}
	if g.Status != StatusWon || g.AttemptsRemaining != 6 {
		t.Errorf("terminal no-op mutated state: %+v", g)
	}
}

func TestCancel(t *testing.T) {
	g := newTestGame("wolf", 6)
	if err := g.Cancel(); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if g.Status != StatusCancelled {
		t.Errorf("status = %q, want cancelled", g.Status)
	}
	if len(g.History) != 1 {
		t.Errorf("history length = %d, want 1 cancellation entry", len(g.History))
	}
}

func TestCancelFinishedGame(t *testing.T) {
	g := newTestGame("wolf", 6)
	g.ApplyGuess("wolf")
	before := len(g.History)

	if err := g.Cancel(); err != ErrAlreadyTerminal {
		t.Errorf("Cancel() = %v, want ErrAlreadyTerminal", err)
	}
	if g.Status != StatusWon {
		t.Errorf("status = %q, cancel mutated a terminal game", g.Status)
	}
	if len(g.History) != before {
		t.Error("failed cancel appended history")
	}
}

func TestBodyPartsTrackIncorrectGuesses(t *testing.T) {
	g := newTestGame("wolf", 6)
	res := g.ApplyGuess("z")
	if len(res.BodyParts) != 1 || res.BodyParts[0] != "head" {
		t.Errorf("body parts after one miss = %v", res.BodyParts)
	}
	res = g.ApplyGuess("w")
	if len(res.BodyParts) != 1 {
		t.Errorf("correct guess changed body parts: %v", res.BodyParts)
	}
}

func TestParseDifficulty(t *testing.T) {
	tests := []struct {
		in      string
		want    Difficulty
		wantErr bool
	}{
		{in: "6", want: DifficultyHard},
		{in: "9", want: DifficultyMedium},
		{in: "12", want: DifficultyEasy},
		{in: "hard", want: DifficultyHard},
		{in: "easy", want: DifficultyEasy},
		{in: "8", wantErr: true},
		{in: "impossible", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDifficulty(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDifficulty(%q) error = %v", tt.in, err)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseDifficulty(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
