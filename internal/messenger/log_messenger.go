package messenger

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync/atomic"
	"time"
)

// LogMessenger prints outbound traffic instead of delivering it. Message
// ids are a process-local counter so delete follow-ups still resolve.
type LogMessenger struct {
	nextID atomic.Int64
}

func NewLogMessenger() *LogMessenger { return &LogMessenger{} }

func (m *LogMessenger) SendText(ctx context.Context, chatID int64, text string) (int64, error) {
	// Optional: simulate slow provider
	if msStr := os.Getenv("MESSENGER_SLEEP_MS"); msStr != "" {
		ms, _ := strconv.Atoi(msStr)
		if ms > 0 {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
	}

	// Optional: simulate provider outage
	if os.Getenv("MESSENGER_FAIL") == "1" {
		return 0, fmt.Errorf("provider down (simulated)")
	}

	id := m.nextID.Add(1)
	log.Printf("messenger.send chat=%d message_id=%d text=%q", chatID, id, text)
	return id, nil
}

func (m *LogMessenger) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	log.Printf("messenger.delete chat=%d message_id=%d", chatID, messageID)
	return nil
}
