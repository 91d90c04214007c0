package repository

import "errors"

// ErrSourceUnavailable indicates the reference names a source kind that has
// not been configured
var ErrSourceUnavailable = errors.New("image source not configured")
