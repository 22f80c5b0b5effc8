package locations

import "errors"

// ErrStorageCorrupt is returned by Load when durable storage exists but cannot
// be parsed. The store must not start with an empty map in that case.
var ErrStorageCorrupt = errors.New("location storage is corrupt")
