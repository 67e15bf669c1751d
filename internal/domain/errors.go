package domain

import "errors"

var (
	// ErrAllocation is returned when the server could not allocate a game code.
	ErrAllocation = errors.New("game allocation failed")
	// ErrConnection indicates the session channel could not be constructed or opened.
	ErrConnection = errors.New("session connection failed")
	// ErrProtocol marks a malformed or unexpected message from the server.
	ErrProtocol = errors.New("protocol error")
	// ErrCommandRejected is returned when a session-critical command could not be sent.
	ErrCommandRejected = errors.New("command rejected: channel not open")
	// ErrUnexpectedClosure indicates the channel closed abnormally before the game ended.
	ErrUnexpectedClosure = errors.New("connection closed unexpectedly")
	// ErrServerReported wraps an explicit error event sent by the server.
	ErrServerReported = errors.New("server reported error")

	// ErrInvalidQuiz is returned when quiz content fails validation.
	ErrInvalidQuiz = errors.New("invalid quiz")
	// ErrDuplicateQuiz is returned when a collection holds two quizzes with the same id.
	ErrDuplicateQuiz = errors.New("duplicate quiz id")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")

	// ErrNoSession is returned for commands issued while no game is hosted.
	ErrNoSession = errors.New("no active session")
	// ErrInvalidPhase is returned for commands that do not apply to the current phase.
	ErrInvalidPhase = errors.New("command not allowed in current phase")
	// ErrStartNotAllowed is returned when the quiz is not acknowledged or no player joined.
	ErrStartNotAllowed = errors.New("game cannot start yet")
	// ErrHostClosed is returned for commands issued after the host session shut down.
	ErrHostClosed = errors.New("host session closed")
)
