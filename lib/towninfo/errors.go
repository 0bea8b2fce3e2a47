package towninfo

import (
	"errors"
	"fmt"
)

var ErrCacheDirRequired = errors.New("towninfo: cache directory must be specified")

// ErrInvalidCounty is returned for town scopes whose county code is not
// purely alphanumeric, such codes never name a cache file.
var ErrInvalidCounty = errors.New("towninfo: invalid county code")

// RemoteFetchError is returned when a code table could not be retrieved
// from or parsed out of the registry.
type RemoteFetchError struct {
	Scope Scope
	// Status is the http status of the registry response, it is 0 when no
	// response was received.
	Status int
	Err    error
}

func (e *RemoteFetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s code table (status %d): %v", e.Scope, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s code table: %v", e.Scope, e.Err)
}

func (e *RemoteFetchError) Unwrap() error {
	return e.Err
}
