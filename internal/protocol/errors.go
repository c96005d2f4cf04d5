package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Scheduling core.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrUnreachable   = "E_UNREACHABLE"
	ErrNoResource    = "E_NO_RESOURCE"
	ErrNoStorage     = "E_NO_STORAGE"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrConflict      = "E_CONFLICT"
	ErrStale         = "E_STALE"
	ErrCancelled     = "E_CANCELLED"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrUnreachable:     {},
	ErrNoResource:      {},
	ErrNoStorage:       {},
	ErrInvalidTarget:   {},
	ErrConflict:        {},
	ErrStale:           {},
	ErrCancelled:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
