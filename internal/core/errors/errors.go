package errors

const (
	HttpInternalError       = "internal_error"
	HttpInvalidJsonError    = "invalid_json"
	HttpInvalidCommandError = "invalid_command"
	HttpBatchNotFoundError  = "batch_not_found"
	HttpPublishFailedError  = "publish_failed"
)

// ErrorResponse is the error response body for API errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
