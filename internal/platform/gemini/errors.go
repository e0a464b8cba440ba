package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrEmptyPrompt is returned when a generation call has no prompt.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrNoImageInResponse is returned when the model answered without
	// any image part.
	ErrNoImageInResponse = errors.New("no image in model response")
)
