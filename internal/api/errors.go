package api

// ErrorCode represents error codes used in API responses
type ErrorCode string

const (
	// ErrorCodeInvalidRequest represents invalid request parameters
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	// ErrorCodeQueryFailed represents a query whose analysis or store is unavailable
	ErrorCodeQueryFailed ErrorCode = "QUERY_FAILED"

	// ErrorCodeInternalError represents an internal server error
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"

	// ErrorCodeMethodNotAllowed represents a request with the wrong HTTP method
	ErrorCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
)
