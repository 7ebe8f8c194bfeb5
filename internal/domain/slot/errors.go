package slot

import "errors"

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrUnsupportedOutput = errors.New("unsupported content type in output")
	ErrUnsafeName        = errors.New("unsafe file name")
	ErrNameTooLong       = errors.New("filename too long")
	ErrSlotNotFound      = errors.New("slot not found")
	ErrDownloadDisabled  = errors.New("downloads are served by the web server")
	ErrSizeMismatch      = errors.New("size mismatch")
	ErrTypeMismatch      = errors.New("content type mismatch")
	ErrDuplicateToken    = errors.New("duplicate slot token")
	ErrTokenExhausted    = errors.New("could not allocate a unique slot token")
)
