package accounts

// Result is the structured outcome of a workflow call. Expected conditions
// (validation failures, wrong credentials, inactive accounts, lockouts)
// resolve to a failed Result with a user-facing message and an optional field
// tag; they are never surfaced as errors. Err is reserved for unexpected
// persistence faults.
type Result struct {
	Success bool
	Message string
	Field   string
	Payload any
	Err     error
}

// User-facing workflow messages. Server-side the failure reasons differ, but
// callers only ever see the message text, never which branch produced it.
const (
	MsgEmailRequired    = "email is required"
	MsgPasswordRequired = "password is required"
	MsgLoginNotCorrect  = "email or password is not correct"
	MsgUserNotActive    = "user is not active"
	MsgLoginSuspended   = "too many attempts, try again later"
	MsgLoginSuccess     = "login successful"
	MsgRegisterSuccess  = "registration successful"
	MsgEmailTaken       = "email is already taken"
	MsgSignupDisabled   = "registration is disabled"
)

// Failure builds an untagged failed result.
func Failure(message string) Result {
	return Result{Message: message}
}

// FieldFailure builds a failed result tagged to a single input field.
func FieldFailure(field, message string) Result {
	return Result{Field: field, Message: message}
}

// Fault wraps an unexpected error. The caller still receives a nil user and a
// failed result; Err carries the underlying fault for logging and 5xx mapping.
func Fault(err error) Result {
	return Result{Err: err}
}

// SuccessResult builds a successful result with an optional payload.
func SuccessResult(message string, payload any) Result {
	return Result{Success: true, Message: message, Payload: payload}
}

// Failed reports whether the result represents any non-success outcome.
func (r Result) Failed() bool {
	return !r.Success
}

// Fatal reports whether the result carries an unexpected fault.
func (r Result) Fatal() bool {
	return r.Err != nil
}
