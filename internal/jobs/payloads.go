package jobs

// Payloads are immutable value snapshots taken at schedule time. Anything
// the action needs at fire time is bound here by value; actions never
// capture live state through a closure.

// RevealRoomPayload carries the event whose room credentials should be
// broadcast. RoomSeq pins the payload to the room that was current when
// the job was scheduled; a mismatch at dispatch means the job is stale.
type RevealRoomPayload struct {
	EventID string `json:"eventId"`
	RoomSeq int    `json:"roomSeq"`
}

// SendReminderPayload describes a countdown broadcast N minutes before
// the reveal moment.
type SendReminderPayload struct {
	EventID       string `json:"eventId"`
	RoomSeq       int    `json:"roomSeq"`
	MinutesBefore int    `json:"minutesBefore"`
}

// DeleteMessagePayload identifies one previously delivered message to
// remove. Chat and message ids are captured per recipient at send time.
type DeleteMessagePayload struct {
	ChatID    int64 `json:"chatId"`
	MessageID int64 `json:"messageId"`
}
