package sqlite

import "errors"

// ErrStorageClosed is returned by operations on a closed store.
var ErrStorageClosed = errors.New("storage is closed")
