package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation groups request errors the caller can fix (HTTP 400).
	ErrValidation = errors.New("invalid request")
	// ErrQuizNotFound indicates the quiz content could not be loaded or is not published.
	ErrQuizNotFound = errors.New("published quiz not found")
	// ErrLobbyNotFound is returned when a lobby id is unknown.
	ErrLobbyNotFound = errors.New("lobby not found")
	// ErrNotInLobby is returned when a user touches a lobby they do not host.
	ErrNotInLobby = errors.New("you are not in this lobby")
	// ErrParticipationNotFound indicates an unknown or foreign participation record.
	ErrParticipationNotFound = errors.New("participation not found")

	// ErrLobbyNotActive is returned when submitting to a lobby that already ended.
	ErrLobbyNotActive = fmt.Errorf("%w: lobby is not active", ErrValidation)
	// ErrNoActiveQuestion is returned when a lobby has no question to answer.
	ErrNoActiveQuestion = fmt.Errorf("%w: no question is currently active", ErrValidation)
	// ErrAlreadyAnswered is returned on a second answer to the same question.
	ErrAlreadyAnswered = fmt.Errorf("%w: you have already answered this question", ErrValidation)
)

// Message returns the user-facing text of err without the validation prefix.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	prefix := ErrValidation.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
