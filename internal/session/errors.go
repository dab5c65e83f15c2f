package session

import "errors"

// Backend errors an Authenticator reports so the provider can pick the
// user-facing message.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
)

const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgAuthFailed         = "Authentication failed"
	MsgEmailTaken         = "An account with this email already exists"
)

// AuthError is the only error type returned by SignIn and SignUp. Its text
// is always one of the Msg constants; the backend error is kept for logging.
type AuthError struct {
	Message string
	cause   error
}

func (e *AuthError) Error() string {
	return e.Message
}

func signInError(err error) *AuthError {
	if errors.Is(err, ErrInvalidCredentials) {
		return &AuthError{Message: MsgInvalidCredentials, cause: err}
	}
	return &AuthError{Message: MsgAuthFailed, cause: err}
}

func signUpError(err error) *AuthError {
	if errors.Is(err, ErrEmailTaken) {
		return &AuthError{Message: MsgEmailTaken, cause: err}
	}
	return &AuthError{Message: MsgAuthFailed, cause: err}
}
