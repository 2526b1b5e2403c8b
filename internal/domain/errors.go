package domain

import "errors"

var (
	// ErrQuizNotFound indicates the category's content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrLevelNotFound indicates the requested level does not exist in the category.
	ErrLevelNotFound = errors.New("level not found")
	// ErrSessionNotFound is returned when a quiz session has not been opened.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrInvalidEmail is returned for addresses failing the format check.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrEmailAlreadyUsed blocks replays in one-play-per-email quizzes.
	ErrEmailAlreadyUsed = errors.New("email already used for this quiz")
	// ErrInvalidScore is returned for scores outside [0,100].
	ErrInvalidScore = errors.New("score must be between 0 and 100")
	// ErrWrongPhase is returned when an action is not legal in the current phase.
	ErrWrongPhase = errors.New("action not allowed in current phase")
	// ErrOptionOutOfRange indicates a selected option index is invalid.
	ErrOptionOutOfRange = errors.New("option index out of range")
)
