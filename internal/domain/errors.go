package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrSessionNotFound is returned when a live session id is unknown to the caller.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrPlayerClosed is returned when a command reaches a player that has shut down.
	ErrPlayerClosed = errors.New("quiz session closed")
	// ErrInvalidQuiz wraps authoring validation failures.
	ErrInvalidQuiz = errors.New("invalid quiz")
	// ErrInvalidAttempt wraps attempt validation failures.
	ErrInvalidAttempt = errors.New("invalid attempt")
	// ErrUserExists is returned when registering a taken username.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound is returned when logging in with an unknown username.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned on a password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized indicates a missing or invalid token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the principal lacks the required role.
	ErrForbidden = errors.New("access denied")
)
