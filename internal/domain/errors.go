package domain

import "errors"

var (
	// ErrShapeMismatch is returned when an answer value does not fit its question kind.
	ErrShapeMismatch = errors.New("answer shape does not match question kind")
	// ErrAttemptCreationFailed wraps backend failures while starting an attempt.
	ErrAttemptCreationFailed = errors.New("attempt creation failed")
	// ErrSubmissionFailed wraps backend failures while submitting an attempt.
	ErrSubmissionFailed = errors.New("attempt submission failed")
	// ErrIncompleteCanonicalData marks a verdict without a canonical answer for some question.
	ErrIncompleteCanonicalData = errors.New("verdict is missing canonical answers")
	// ErrStaleTimerEvent marks a timer callback that arrived after the attempt left progress.
	ErrStaleTimerEvent = errors.New("stale timer event")

	// ErrInvalidTransition is returned when an operation is not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid attempt state transition")
	// ErrIncompleteAttempt is returned on manual submit while questions are unanswered.
	ErrIncompleteAttempt = errors.New("all questions must be answered before submitting")
	// ErrIndexOutOfRange is returned for a question index outside the attempt.
	ErrIndexOutOfRange = errors.New("question index out of range")
	// ErrAttemptClosed is returned once an attempt screen has been released.
	ErrAttemptClosed = errors.New("attempt released")

	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrAttemptNotFound indicates an unknown attempt id.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptLimitExceeded is returned by the backend when no attempts are left.
	ErrAttemptLimitExceeded = errors.New("maximum attempts exceeded")
	// ErrAttemptAlreadySubmitted is returned by the backend on a second submission.
	ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")
)

// IsRetryable reports whether err should reach the user as a retryable message.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrAttemptCreationFailed) || errors.Is(err, ErrSubmissionFailed)
}

// ErrSessionNotFound is returned when an attempt screen id is unknown.
var ErrSessionNotFound = errors.New("attempt session not found")

var errorCodes = []struct {
	code string
	err  error
}{
	{"quiz_not_found", ErrQuizNotFound},
	{"attempt_not_found", ErrAttemptNotFound},
	{"attempt_limit_exceeded", ErrAttemptLimitExceeded},
	{"attempt_already_submitted", ErrAttemptAlreadySubmitted},
	{"shape_mismatch", ErrShapeMismatch},
}

// ErrorCode returns the stable wire code for a known error, or "internal".
func ErrorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// ErrorFromCode maps a wire code back to its sentinel; unknown codes yield nil.
func ErrorFromCode(code string) error {
	for _, c := range errorCodes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}
