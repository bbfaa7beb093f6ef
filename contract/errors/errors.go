package errors

// Error codes for the dispatch contracts. Keep stable; used across adapters and buses.
const (
	ErrCodeHandlerExists       = "dispatch.handler_exists"
	ErrCodeHandlerNotFound     = "dispatch.handler_not_found"
	ErrCodeInvalidMessage      = "dispatch.invalid_message"
	ErrCodeExecutionFailed     = "dispatch.execution_failed"
	ErrCodeTimeout             = "dispatch.timeout"
	ErrCodeSerializationFailed = "dispatch.serialization_failed"
	ErrCodeTransactionFailed   = "dispatch.transaction_failed"
	ErrCodeCacheFailed         = "dispatch.cache_failed"
	ErrCodeSinkFailed          = "dispatch.sink_failed"
)

// Code returns an error value that carries only a code string.
// It implements error by returning the code string in Error().
func Code(code string) error { return codedError(code) }

type codedError string

func (e codedError) Error() string { return string(e) }

var (
	ErrHandlerExists       = Code(ErrCodeHandlerExists)
	ErrHandlerNotFound     = Code(ErrCodeHandlerNotFound)
	ErrInvalidMessage      = Code(ErrCodeInvalidMessage)
	ErrExecutionFailed     = Code(ErrCodeExecutionFailed)
	ErrTimeout             = Code(ErrCodeTimeout)
	ErrSerializationFailed = Code(ErrCodeSerializationFailed)
	ErrTransactionFailed   = Code(ErrCodeTransactionFailed)
	ErrCacheFailed         = Code(ErrCodeCacheFailed)
	ErrSinkFailed          = Code(ErrCodeSinkFailed)
)
