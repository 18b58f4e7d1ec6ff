package httputil

// Machine-readable error codes returned in ErrorResponse.Code
const (
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"

	// registration / login
	CodeEmailAlreadyExists = "EMAIL_ALREADY_REGISTERED"
	CodeUsernameTaken      = "USERNAME_TAKEN"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"

	// bearer authentication
	CodeMissingAuth  = "NOT_AUTHENTICATED"
	CodeInvalidToken = "INVALID_TOKEN"
	CodeInactiveUser = "INACTIVE_USER"

	// password reset
	CodeUserNotFound = "USER_NOT_FOUND"
	CodeInvalidOTP   = "INVALID_OR_EXPIRED_OTP"

	// todos
	CodeTodoNotFound  = "TODO_NOT_FOUND"
	CodeInvalidTodoID = "INVALID_TODO_ID"
)
