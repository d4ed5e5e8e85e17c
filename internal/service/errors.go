package service

import "errors"

// Error taxonomy surfaced to callers. Handlers map these onto HTTP status
// codes; anything else is treated as an internal error.
var (
	ErrNotFound      = errors.New("upload not found")
	ErrWrongState    = errors.New("operation invalid for current upload status")
	ErrInvalidState  = errors.New("callback invalid for current upload status")
	ErrQuotaExceeded = errors.New("daily upload limit reached")
	ErrAlreadyExists = errors.New("upload already exists")
	ErrForbidden     = errors.New("missing privilege for this operation")
	ErrStore         = errors.New("persistence failure")
)
