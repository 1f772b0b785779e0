package dataset

import "github.com/pkg/errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInputNotFound     = errors.New("input not found")
	ErrInputUnreadable   = errors.New("input unreadable")
	ErrMalformedDocument = errors.New("malformed document")
	ErrStructural        = errors.New("structural error")

	errInvalidUTF8 = errors.New("invalid UTF-8")
)
