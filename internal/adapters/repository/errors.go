package repository

import "github.com/pkg/errors"

// Sentinel kinds for score table errors.
var (
	ErrDuplicateKey = errors.New("pair key already stored")
	ErrInvalidLimit = errors.New("invalid limit")
)
