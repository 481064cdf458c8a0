package fetcher

import "errors"

// Sentinel errors Run wraps to signal the process exit code it should
// terminate with: 0 clean shutdown, 2 misconfiguration, 3 coordination
// store unreachable, 4 document store unreachable.
var (
	errMisconfigured                = errors.New("fetcher: misconfigured")
	errCoordinationStoreUnreachable = errors.New("fetcher: coordination store unreachable")
	errDocumentStoreUnreachable     = errors.New("fetcher: document store unreachable")
)

// ExitCode maps an error returned by Run to its process exit code. ok is
// false if err does not correspond to one of the documented non-zero codes,
// in which case the caller should fall back to a generic failure code.
func ExitCode(err error) (code int, ok bool) {
	switch {
	case errors.Is(err, errMisconfigured):
		return 2, true
	case errors.Is(err, errCoordinationStoreUnreachable):
		return 3, true
	case errors.Is(err, errDocumentStoreUnreachable):
		return 4, true
	default:
		return 0, false
	}
}
