package store

import "errors"

// ErrInvalidKind is returned when an interval has neither session nor break kind.
var ErrInvalidKind = errors.New("invalid interval kind")
