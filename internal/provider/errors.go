package provider

import "errors"

var (
	// ErrEmptyResponse marks a call that succeeded at the transport level
	// but carried no usable content. It is retried like any transport
	// failure.
	ErrEmptyResponse = errors.New("empty response")

	// ErrEmptyPrompt rejects blank prompts before any outbound call is
	// made. It is permanent and never retried.
	ErrEmptyPrompt = errors.New("empty prompt")

	// ErrNotConfigured is returned by adapter constructors when required
	// credentials are missing. The failing provider is skipped at startup;
	// the rest keep working.
	ErrNotConfigured = errors.New("provider not configured")
)
