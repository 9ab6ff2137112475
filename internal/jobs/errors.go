package jobs

import "errors"

var (
	ErrInvalidActionType   = errors.New("invalid action type")
	ErrInvalidPayload      = errors.New("invalid action payload")
	ErrPayloadTypeMismatch = errors.New("payload type mismatch for action type")
)
