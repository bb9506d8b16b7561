package common

import "errors"

// ErrInvalidInput marks data that cannot be processed: an empty or
// non-finite signal, or inputs whose lengths disagree.
var ErrInvalidInput = errors.New("invalid input")
