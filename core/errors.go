// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"context"
	"errors"
	"fmt"
)

// ErrValidation is the root of every domain validation error.
// Validation failures are permanent and never retried.
var ErrValidation = errors.New("validation failed")

// Domain validation errors
var (
	// ErrInvalidQuery indicates a Query failed validation.
	ErrInvalidQuery = fmt.Errorf("%w: invalid query", ErrValidation)

	// ErrEmptyQueryText indicates the query text is empty.
	ErrEmptyQueryText = errors.New("query text cannot be empty")

	// ErrInvalidEntity indicates an Entity failed validation.
	ErrInvalidEntity = fmt.Errorf("%w: invalid entity", ErrValidation)

	// ErrEmptyEntityID indicates the entity ID is empty.
	ErrEmptyEntityID = errors.New("entity id cannot be empty")

	// ErrEmptyEntityName indicates the entity Name field is empty.
	ErrEmptyEntityName = errors.New("entity name cannot be empty")

	// ErrEmptyEntityType indicates the entity Type field is empty.
	ErrEmptyEntityType = errors.New("entity type cannot be empty")

	// ErrInvalidRelationship indicates a Relationship failed validation.
	ErrInvalidRelationship = fmt.Errorf("%w: invalid relationship", ErrValidation)

	// ErrSelfRelationship indicates a relationship points at its own source.
	ErrSelfRelationship = errors.New("relationship cannot point at itself")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = fmt.Errorf("%w: invalid chunk", ErrValidation)

	// ErrEmptyContent indicates the chunk text is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidUpdate indicates an EntityUpdate failed validation.
	ErrInvalidUpdate = fmt.Errorf("%w: invalid entity update", ErrValidation)

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")

	// ErrInvalidJobTransition indicates a non-monotonic job status change.
	ErrInvalidJobTransition = fmt.Errorf("%w: invalid job status transition", ErrValidation)

	// ErrUnknownJobKind indicates an unsupported job kind.
	ErrUnknownJobKind = fmt.Errorf("%w: unknown job kind", ErrValidation)
)

// ErrorKind is the structured kind carried by pipeline errors.
type ErrorKind string

const (
	KindClassificationTimeout ErrorKind = "classification_timeout"
	KindRetrievalFailure      ErrorKind = "retrieval_failure"
	KindMergeInsufficientData ErrorKind = "merge_insufficient_data"
	KindUpstreamUnavailable   ErrorKind = "upstream_unavailable"
	KindQueryTimeout          ErrorKind = "query_timeout"
	KindCancellationRequested ErrorKind = "cancellation_requested"
	KindValidation            ErrorKind = "validation"
	KindInternal              ErrorKind = "internal"
)

// Pipeline error kinds as sentinels, for use with errors.Is.
var (
	ErrClassificationTimeout = errors.New("classification timed out")
	ErrRetrievalFailure      = errors.New("retrieval failed")
	ErrMergeInsufficientData = errors.New("insufficient data to merge")
	ErrUpstreamUnavailable   = errors.New("upstream unavailable")
	ErrQueryTimeout          = errors.New("query timed out")
	ErrCancellationRequested = errors.New("cancellation requested")
)

var kindSentinels = map[ErrorKind]error{
	KindClassificationTimeout: ErrClassificationTimeout,
	KindRetrievalFailure:      ErrRetrievalFailure,
	KindMergeInsufficientData: ErrMergeInsufficientData,
	KindUpstreamUnavailable:   ErrUpstreamUnavailable,
	KindQueryTimeout:          ErrQueryTimeout,
	KindCancellationRequested: ErrCancellationRequested,
	KindValidation:            ErrValidation,
}

// QueryError is a structured pipeline error. It never carries a stack trace;
// Kind and Message are safe to show to callers.
type QueryError struct {
	Kind    ErrorKind  `json:"kind"`
	Path    SourceType `json:"path,omitempty"`
	Message string     `json:"message"`
	Err     error      `json:"-"`
}

func (e *QueryError) Error() string {
	msg := string(e.Kind)
	if e.Path != "" {
		msg += "(" + string(e.Path) + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *QueryError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewQueryError creates a QueryError of the given kind.
func NewQueryError(kind ErrorKind, message string, cause error) *QueryError {
	return &QueryError{Kind: kind, Message: message, Err: cause}
}

// RetrievalFailure reports that a single retrieval path failed.
func RetrievalFailure(path SourceType, cause error) *QueryError {
	return &QueryError{
		Kind:    KindRetrievalFailure,
		Path:    path,
		Message: string(path) + " retrieval failed",
		Err:     cause,
	}
}

// UpstreamUnavailable reports that a store or model service could not be reached.
func UpstreamUnavailable(service string, cause error) *QueryError {
	return &QueryError{
		Kind:    KindUpstreamUnavailable,
		Message: service + " unavailable",
		Err:     cause,
	}
}

// KindOf classifies an arbitrary error. Context errors map to timeout and
// cancellation; anything unrecognised is internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind
	}
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, context.DeadlineExceeded):
		return KindQueryTimeout
	case errors.Is(err, context.Canceled):
		return KindCancellationRequested
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}
