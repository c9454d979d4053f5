package core

// SendableError carries a message that is safe to put in an error
// response verbatim. Anything else that escapes a handler is collapsed
// to a generic "Server error" and logged server-side only.
type SendableError struct {
	// UserMessage goes to the client as-is.
	UserMessage string
	// Detail is for server logs only.
	Detail string
}

func (e *SendableError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.UserMessage
}

// Sendable builds a client-visible error. detail is optional log context.
func Sendable(userMessage, detail string) *SendableError {
	return &SendableError{UserMessage: userMessage, Detail: detail}
}

// Stable error kinds of the auth surface.
func ErrEmptyCredentials(detail string) *SendableError {
	return Sendable("EmptyCredentials", detail)
}

func ErrInvalidCredentials(detail string) *SendableError {
	return Sendable("InvalidCredentials", detail)
}

func ErrReregistration(detail string) *SendableError {
	return Sendable("Reregistration", detail)
}

func ErrNoSuchUser() *SendableError {
	return Sendable("No such authorized user", "")
}

func ErrNotInCall() *SendableError {
	return Sendable("User not inside a call", "")
}

func ErrNotInsideTheCall() *SendableError {
	return Sendable("User not inside the call", "")
}

func ErrNotAuthorized() *SendableError {
	return Sendable("Not authorized", "method requires a logged in connection")
}
