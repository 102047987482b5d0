package shared

import "errors"

var (
	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a uniqueness violation such as a duplicate email.
	ErrConflict = errors.New("conflict")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthorized indicates a missing or unusable bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidToken indicates a token that failed verification.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrGeneration indicates the content generation collaborator failed.
	ErrGeneration = errors.New("content generation failed")
)

// UserError carries a message that is safe to show to API clients while
// still matching its sentinel kind through errors.Is.
type UserError struct {
	kind error
	msg  string
}

func (e *UserError) Error() string { return e.msg }

// Unwrap exposes the sentinel kind.
func (e *UserError) Unwrap() error { return e.kind }

// Validation builds a user facing validation error.
func Validation(msg string) error {
	return &UserError{kind: ErrValidation, msg: msg}
}

// Conflict builds a user facing conflict error.
func Conflict(msg string) error {
	return &UserError{kind: ErrConflict, msg: msg}
}

// NotFound builds a user facing not-found error.
func NotFound(msg string) error {
	return &UserError{kind: ErrNotFound, msg: msg}
}

// UserSafeMessage returns a message suitable for API responses. Errors that
// are not part of the known taxonomy collapse into a generic message.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.msg
	}
	for _, known := range []error{ErrValidation, ErrConflict, ErrInvalidCredentials, ErrUnauthorized, ErrInvalidToken, ErrNotFound, ErrGeneration} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal server error"
}
