package domain

import "errors"

var (
	// ErrSessionNotFound is returned when an action references a session that already finished or never existed.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionActive is returned when a session is already running for the key.
	ErrSessionActive = errors.New("quiz session already active")
	// ErrQuizNotFound indicates the quiz definition could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrEmptyQuiz indicates a quiz without questions or without a time limit.
	ErrEmptyQuiz = errors.New("quiz has no playable questions")
	// ErrTransport wraps failures to deliver a question or content to a chat.
	ErrTransport = errors.New("transport failure")
	// ErrRecipientUnavailable means the chat cannot be reached (blocked or disconnected).
	ErrRecipientUnavailable = errors.New("recipient unavailable")
	// ErrEntryExists is returned by stores when the participant already holds a leaderboard entry.
	ErrEntryExists = errors.New("leaderboard entry already exists")
)
