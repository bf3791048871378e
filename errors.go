package bookmarket

// Error codes returned in auth failure responses.
const (
	ErrCodeMissingField = "missing_field"
	ErrCodeInvalidEmail = "invalid_email"
	ErrCodeWeakPassword = "weak_password"
	ErrCodeInvalidCreds = "invalid_credentials"
	ErrCodeEmailExists  = "email_exists"
	ErrCodeInvalidOTP   = "invalid_otp"
	ErrCodeSendFailed   = "send_failed"
)

// AuthError is a structured authentication failure: a stable code for
// clients, a human-readable message, and the offending field if any.
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *AuthError) Error() string {
	return e.Message
}

func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}
