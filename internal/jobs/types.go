package jobs

type ActionType string

const (
	ActionRevealRoom    ActionType = "reveal_room"
	ActionSendReminder  ActionType = "send_reminder"
	ActionDeleteMessage ActionType = "delete_message"
)

func (t ActionType) IsValid() bool {
	switch t {
	case ActionRevealRoom, ActionSendReminder, ActionDeleteMessage:
		return true
	default:
		return false
	}
}
