package app

import "fmt"

// DomainError is a business-rule failure carrying the HTTP status and
// the machine-readable code exposed in the response body (has_children,
// duplicate_content, sudo_exists, ...). Details holds optional
// structured context, like the blocking child count on a refused
// delete. mapError unwraps it at the HTTP boundary; anything that is
// not a DomainError surfaces as a generic server error.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
