package service

import "errors"

var (
	ErrUnauthenticated    = errors.New("not authorized to access this route")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("session expired, please log in again")
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountDisabled    = errors.New("account is deactivated")
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrForbidden          = errors.New("not authorized")
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidReference   = errors.New("invalid reference")
	ErrConflict           = errors.New("already exists")
)

// Error carries a client-facing message while matching its sentinel kind
// under errors.Is.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

// notFound yields errors such as "issue not found".
func notFound(resource string) error {
	return &Error{Kind: ErrNotFound, Msg: resource + " not found"}
}

func forbidden(msg string) error {
	return &Error{Kind: ErrForbidden, Msg: msg}
}

func invalidInput(msg string) error {
	return &Error{Kind: ErrInvalidInput, Msg: msg}
}

func invalidReference(msg string) error {
	return &Error{Kind: ErrInvalidReference, Msg: msg}
}

func conflict(msg string) error {
	return &Error{Kind: ErrConflict, Msg: msg}
}
