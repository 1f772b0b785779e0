package metrics

import "github.com/pkg/errors"

// Sentinel kinds for metrics errors.
var (
	ErrExportFailed = errors.New("metrics export failed")
)
