package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Scenario layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrUnknownPreset = "E_UNKNOWN_PRESET"
	ErrInvalidLevers = "E_INVALID_LEVERS"
	ErrRunFailed     = "E_RUN_FAILED"
	ErrBusy          = "E_BUSY"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrUnknownPreset:   {},
	ErrInvalidLevers:   {},
	ErrRunFailed:       {},
	ErrBusy:            {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
