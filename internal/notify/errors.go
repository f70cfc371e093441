package notify

import "errors"

// NotifyError subcategories per spec.md §7. A send never retries and never
// propagates past the Notifier Set — every sentinel here is logged at warn
// with the destination and event identifiers, then dropped.
var (
	ErrMisconfigured    = errors.New("notify: destination misconfigured")
	ErrTransportFailure = errors.New("notify: transport failure")
	ErrTimeout          = errors.New("notify: timeout")
	ErrNon2xxResponse   = errors.New("notify: non-2xx response")
)
