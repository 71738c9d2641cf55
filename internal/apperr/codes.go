package apperr

type Code string

const (
	CodeUnknown     Code = "UNKNOWN"
	CodeValidation  Code = "VALIDATION"
	CodeBlocked     Code = "BLOCKED"
	CodeDuplicate   Code = "DUPLICATE"
	CodeNotFound    Code = "NOT_FOUND"
	CodeForbidden   Code = "FORBIDDEN"
	CodeUnavailable Code = "UNAVAILABLE"
	CodeInternal    Code = "INTERNAL"
)
