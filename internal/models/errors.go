package models

import "errors"

// ErrValidation marks a malformed session row or group record. The caller
// drops the offending row and keeps the batch going.
var ErrValidation = errors.New("validation failed")
