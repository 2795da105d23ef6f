package models

import (
	"errors"
)

// Failure taxonomy for the generation pipeline. Callers match with errors.Is;
// wrapping adds the human-readable detail that is surfaced to the UI.
var (
	// ErrNotConfigured means the client was built without a credential.
	ErrNotConfigured = errors.New("service is not configured")

	// ErrEmptyInput means the caller passed empty text.
	ErrEmptyInput = errors.New("text cannot be empty")

	// ErrBlocked means the upstream safety filter rejected the prompt.
	ErrBlocked = errors.New("content generation blocked by safety settings")

	// ErrEmptyResponse means the upstream call succeeded but returned no text.
	ErrEmptyResponse = errors.New("empty response from generation service")

	// ErrEmptyGeneration means the generated text was empty once the choice
	// annotations were stripped.
	ErrEmptyGeneration = errors.New("generated story text is empty after stripping choices")

	// ErrUpstream means the upstream service answered with a non-success status.
	ErrUpstream = errors.New("upstream service error")

	// ErrSynthesisFailed means the speech step produced no usable audio.
	ErrSynthesisFailed = errors.New("text-to-speech failed")

	// ErrNoActiveSegment means a continuation was attempted with no prior segment.
	ErrNoActiveSegment = errors.New("cannot continue story without a current segment")

	// ErrGenerationInFlight means a start or continue was attempted while a
	// previous request had not settled yet.
	ErrGenerationInFlight = errors.New("a generation request is already in flight")
)
