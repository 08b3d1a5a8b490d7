package contract

import "errors"

var (
	ErrModelInvoke        = errors.New("model invoke failed")
	ErrSchemaViolation    = errors.New("model response violates schema")
	ErrPromptMissing      = errors.New("required prompt is missing")
	ErrValidation         = errors.New("validation failed")
	ErrUnknownTool        = errors.New("tool is not registered")
	ErrAdapterUnavailable = errors.New("adapter unavailable")
	ErrSessionDone        = errors.New("session already done")
)
