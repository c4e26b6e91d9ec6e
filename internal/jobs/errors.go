package jobs

import "errors"

var (
	// ErrUnknownJobType is returned at submission for a type outside the fixed set.
	ErrUnknownJobType = errors.New("unknown job type")
	// ErrWorldNotFound is returned when a job references a world that does not exist.
	ErrWorldNotFound = errors.New("world not found")
	// ErrInvalidParameters wraps parameter text that is not valid JSON for the job type.
	ErrInvalidParameters = errors.New("invalid parameters")
	// ErrUnsupportedJobType means no compute strategy is registered for a known type.
	ErrUnsupportedJobType = errors.New("unsupported job type")
	// ErrInvalidTransition is returned by Transition.Validate.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// FailureMessage renders err as the error_message recorded on a failed job.
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrWorldNotFound) {
		return "World not found"
	}
	return err.Error()
}
