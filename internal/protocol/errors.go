package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Partition routing.
	ErrPartitionNotFound = "E_PARTITION_NOT_FOUND"

	// Activation layer.
	ErrUnknownAbility     = "E_UNKNOWN_ABILITY"
	ErrMethodNotSupported = "E_METHOD_NOT_SUPPORTED"
	ErrOnCooldown         = "E_ON_COOLDOWN"
	ErrVetoed             = "E_VETOED"
	ErrRejected           = "E_REJECTED"
	ErrBadRequest         = "E_BAD_REQUEST"
	ErrInternal           = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:    {},
	ErrPartitionNotFound:  {},
	ErrUnknownAbility:     {},
	ErrMethodNotSupported: {},
	ErrOnCooldown:         {},
	ErrVetoed:             {},
	ErrRejected:           {},
	ErrBadRequest:         {},
	ErrInternal:           {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
