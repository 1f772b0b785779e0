package scorefile

import "github.com/pkg/errors"

// ErrWriteFailed is returned when the score file cannot be produced.
var ErrWriteFailed = errors.New("score file write failed")
