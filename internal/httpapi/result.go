package httpapi

// Result response envelope shared with the care dashboard.
// - code: 2000 on success
// - type: 'success' | 'error' | 'warning'
// - message: string
// - result: any
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1

	// ResultPartialPersistence: the assessment is saved, its alert is not.
	ResultPartialPersistence = 2070
	ResultInvalidArgument    = 40001
	ResultInvalidSubject     = 40002
	ResultNotFound           = 40401
	ResultAlreadyReviewed    = 40901
	// ResultUnavailable: storage could not be reached; safe to retry.
	ResultUnavailable = 50301
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(code int, message string) Result[any] {
	return Result[any]{Code: code, Type: "error", Message: message, Result: nil}
}

func Warn[T any](code int, message string, result T) Result[T] {
	return Result[T]{Code: code, Type: "warning", Message: message, Result: result}
}
