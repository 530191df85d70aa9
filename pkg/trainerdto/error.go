package trainerdto

// Error codes returned in DomainError.Code.
const (
	CodeBadRequest      = "bad_request"
	CodeSessionNotFound = "session_not_found"
	CodeDrillNotFound   = "drill_not_found"
	CodeNotFound        = "not_found"
	CodeNotCoachMode    = "not_coach_mode"
	CodeForbiddenOrigin = "forbidden_origin"
	CodeUnavailable     = "unavailable"
	CodeInternal        = "internal"
)

type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "trainer service error"
}

func NewError(code, message string) DomainError {
	return DomainError{Code: code, Message: message}
}
