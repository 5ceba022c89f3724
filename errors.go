package ndns

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrBlocked describes a verifier that has previously failed to load and
// is not retried until the process restarts. The ENUM verifier cache
// records that condition as a verifier state and does not return this
// error.
var ErrBlocked = errors.New("verifier blocked after failed load")

// ErrNoSRLKey describes an SRL template that fails to resolve to an NVS
// key; the ENUM signature check does not return it.
var ErrNoSRLKey = errors.New("srl template produced no key")

// LookupError wraps a name-backend failure with the key that was being
// resolved, so callers can log context without string-matching errors.
type LookupError struct {
	Key string
	Err error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %q: %v", e.Key, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// wrapLookup wraps an NVS error in a LookupError carrying its key. The
// resolver and ENUM code paths treat backend errors as misses and do not
// call it.
func wrapLookup(key string, err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&LookupError{Key: key, Err: err})
}
