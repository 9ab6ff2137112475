package jobs

import (
	"encoding/json"
	"fmt"
)

// EncodePayload marshals a typed payload after checking that it matches
// the declared action type.
func EncodePayload(t ActionType, payload any) ([]byte, error) {
	if !t.IsValid() {
		return nil, ErrInvalidActionType
	}

	switch t {
	case ActionRevealRoom:
		if _, ok := payload.(RevealRoomPayload); !ok {
			if _, ok2 := payload.(*RevealRoomPayload); !ok2 {
				return nil, ErrPayloadTypeMismatch
			}
		}

	case ActionSendReminder:
		if _, ok := payload.(SendReminderPayload); !ok {
			if _, ok2 := payload.(*SendReminderPayload); !ok2 {
				return nil, ErrPayloadTypeMismatch
			}
		}

	case ActionDeleteMessage:
		if _, ok := payload.(DeleteMessagePayload); !ok {
			if _, ok2 := payload.(*DeleteMessagePayload); !ok2 {
				return nil, ErrPayloadTypeMismatch
			}
		}
	}

	b, err := json.Marshal(payload)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	return b, nil
}

// DecodePayload unmarshals raw payload bytes into the typed struct for
// the given action type.
func DecodePayload(t ActionType, raw []byte) (any, error) {
	if !t.IsValid() {
		return nil, ErrInvalidActionType
	}
	if len(raw) == 0 {
		return nil, ErrInvalidPayload
	}

	switch t {
	case ActionRevealRoom:
		var p RevealRoomPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return p, nil

	case ActionSendReminder:
		var p SendReminderPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return p, nil

	case ActionDeleteMessage:
		var p DeleteMessagePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return p, nil

	default:
		return nil, ErrInvalidActionType
	}
}
