package domain

import "errors"

// Domain errors
var (
	ErrInvalidDifficulty = errors.New("attempts allowed must be 6, 9, or 12")
	ErrInvalidRange      = errors.New("maximum letters must not be less than minimum letters")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserExists        = errors.New("a user with that name already exists")
	ErrGameNotFound      = errors.New("game not found")
	ErrRankNotFound      = errors.New("no rank recorded for that user and difficulty")
	ErrAlreadyTerminal   = errors.New("game is already over")
	ErrInvalidGameState  = errors.New("game is not in a scorable state")
	ErrNoWordsAvailable  = errors.New("no words available in the requested length range")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInternalError     = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrGameNotFound)
}
