package orchestrator

import "errors"

var (
	// ErrClassifierRequired is returned when New is called without a classifier.
	ErrClassifierRequired = errors.New("intent classifier is required")

	// ErrRetrieverRequired is returned when New is called without both retrievers.
	ErrRetrieverRequired = errors.New("vector and graph retrievers are required")

	// ErrInvalidOption is returned by options given unusable values.
	ErrInvalidOption = errors.New("invalid orchestrator option")

	// ErrInvalidTransition is returned when a run is moved to a state that
	// does not follow its current one.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrUnknownResult is returned by Feedback for keys with no cached answer.
	ErrUnknownResult = errors.New("no cached result for key")
)
