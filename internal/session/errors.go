package session

import "errors"

var (
	ErrSessionClosed     = errors.New("session closed")
	ErrMissingIdentity   = errors.New("player id or username required")
	ErrNotJoined         = errors.New("join snapshot not applied yet")
	ErrNotConnected      = errors.New("transport not ready, message dropped")
	ErrEmptyGuess        = errors.New("guess is empty")
	ErrGuessNotAccepted  = errors.New("guesses are only accepted during the drawing phase")
	ErrDrawerCannotGuess = errors.New("the drawer cannot guess")
	ErrAlreadyGuessed    = errors.New("already guessed correctly this round")
	ErrRateLimited       = errors.New("too many guesses, slow down")
	ErrInvalidWord       = errors.New("word is not one of the offered choices")
)
