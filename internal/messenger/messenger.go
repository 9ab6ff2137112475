package messenger

import "context"

// Messenger is the boundary to the chat platform that actually carries
// messages to users. Implementations live outside this module; the tests
// and local runs use LogMessenger.
type Messenger interface {
	// SendText delivers a message to a chat and returns the platform
	// message id, which is needed later to delete the message.
	SendText(ctx context.Context, chatID int64, text string) (int64, error)
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
}

// Update is one inbound message from the platform.
type Update struct {
	ChatID   int64
	UserID   int64
	Username string
	Text     string
	Private  bool
}

// UpdateSource is implemented by transports that can feed inbound
// messages into the chat gateway.
type UpdateSource interface {
	Updates() <-chan Update
}
