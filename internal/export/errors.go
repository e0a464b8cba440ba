package export

import "fmt"

// Error kinds, surfaced to clients so the frontend can render targeted
// guidance per failure class.
const (
	KindNoImages       = "no_images"
	KindAnalysisFailed = "analysis_failed"
	KindBuildFailed    = "build_failed"
	KindWriteFailed    = "write_failed"
)

// Error is a structured export failure. Kind classifies the failure,
// Details carries machine-readable context, and HelpText is user-facing
// guidance on how to get past it.
type Error struct {
	Kind     string
	Message  string
	HelpText string
	Details  map[string]any
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("export failed (%s): %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("export failed (%s): %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}
