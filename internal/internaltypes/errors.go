package internaltypes

import "errors"

// ErrNotFound is returned by ledger lookups for unknown ids.
var ErrNotFound = errors.New("not found")
