package domain

import "errors"

var (
	// ErrQuizLive is returned when an operation is not allowed mid-quiz.
	ErrQuizLive = errors.New("quiz is live")
	// ErrNoQuestions is returned when starting a quiz without questions.
	ErrNoQuestions = errors.New("quiz has no questions")
	// ErrQuestionNotFound indicates an unknown question ID.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidQuestion indicates a malformed question definition.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrNotHost is returned when a host-only action comes from a non-host.
	ErrNotHost = errors.New("not the quiz host")
)
