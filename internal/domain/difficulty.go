package domain

import "strconv"

// Difficulty is the attempt budget for a game. Fewer attempts is harder.
type Difficulty int

const (
	DifficultyHard   Difficulty = 6
	DifficultyMedium Difficulty = 9
	DifficultyEasy   Difficulty = 12
)

type difficultyInfo struct {
	label     string
	bodyParts []string
}

// Policy table: attempt budget to label and hangman figure.
var difficulties = map[Difficulty]difficultyInfo{
	DifficultyHard: {
		label: "hard",
		bodyParts: []string{
			"head", "body", "left leg", "right leg", "left hand",
			"right hand",
		},
	},
	DifficultyMedium: {
		label: "medium",
		bodyParts: []string{
			"head", "eyes", "ears", "hair", "body", "left leg",
			"right leg", "left hand", "right hand",
		},
	},
	DifficultyEasy: {
		label: "easy",
		bodyParts: []string{
			"head", "left eye", "right eye", "mouth", "nose",
			"left ear", "right ear", "body", "left leg", "right leg",
			"left hand", "right hand",
		},
	},
}

// Valid reports whether d is one of the fixed attempt budgets.
func (d Difficulty) Valid() bool {
	_, ok := difficulties[d]
	return ok
}

// Label returns the difficulty name ("hard", "medium", "easy").
func (d Difficulty) Label() string {
	return difficulties[d].label
}

// Attempts returns the attempt budget as a plain int.
func (d Difficulty) Attempts() int {
	return int(d)
}

// BodyParts returns the figure parts drawn after the given number of
// incorrect guesses.
func (d Difficulty) BodyParts(incorrect int) []string {
	parts := difficulties[d].bodyParts
	if incorrect < 0 {
		incorrect = 0
	}
	if incorrect > len(parts) {
		incorrect = len(parts)
	}
	return parts[:incorrect]
}

// ParseDifficulty accepts either an attempt count ("6") or a label ("hard").
func ParseDifficulty(s string) (Difficulty, error) {
	if n, err := strconv.Atoi(s); err == nil {
		d := Difficulty(n)
		if d.Valid() {
			return d, nil
		}
		return 0, ErrInvalidDifficulty
	}
	for d, info := range difficulties {
		if info.label == s {
			return d, nil
		}
	}
	return 0, ErrInvalidDifficulty
}
