package scoring

import "github.com/pkg/errors"

// Sentinel kinds for weight table errors.
var (
	ErrUnknownFeature = errors.New("unknown feature")
	ErrInvalidWeight  = errors.New("invalid feature weight")
)
