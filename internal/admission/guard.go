package admission

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arenadesk/arenadesk/internal/domain/event"
	"github.com/arenadesk/arenadesk/internal/domain/registration"
	"github.com/arenadesk/arenadesk/internal/messenger"
)

// Admitter is the store-side atomic admission write: open-status,
// duplicate and capacity checks plus the insert, all or nothing.
type Admitter interface {
	Admit(ctx context.Context, req registration.CreateRegistrationRequest) (registration.Registration, error)
}

type EventGetter interface {
	GetEvent(ctx context.Context, id string) (event.Event, error)
}

// Guard decides whether a registration attempt succeeds and tells the
// operator about new registrants.
type Guard struct {
	store        Admitter
	events       EventGetter
	msgr         messenger.Messenger
	operatorChat int64
	log          *slog.Logger
}

func NewGuard(store Admitter, events EventGetter, msgr messenger.Messenger, operatorChat int64, log *slog.Logger) *Guard {
	if log == nil {
		log = slog.Default()
	}
	return &Guard{
		store:        store,
		events:       events,
		msgr:         msgr,
		operatorChat: operatorChat,
		log:          log,
	}
}

func (g *Guard) Register(ctx context.Context, eventID string, userID int64, displayName, ign, externalID string) (registration.Registration, error) {
	reg, err := g.store.Admit(ctx, registration.CreateRegistrationRequest{
		EventID:     eventID,
		UserID:      userID,
		DisplayName: displayName,
		IGN:         ign,
		ExternalID:  externalID,
	})
	if err != nil {
		return registration.Registration{}, err
	}

	// Operator ping is best-effort: a blocked operator chat must not
	// roll back an already admitted registration.
	g.notifyOperator(ctx, reg)

	return reg, nil
}

func (g *Guard) notifyOperator(ctx context.Context, reg registration.Registration) {
	if g.msgr == nil || g.operatorChat == 0 {
		return
	}

	name := reg.EventID
	if e, err := g.events.GetEvent(ctx, reg.EventID); err == nil {
		name = e.Name
	}

	text := fmt.Sprintf("New registration\nEvent: %s\nPlayer: %s\nIGN: %s | ID: %s",
		name, reg.DisplayName, reg.IGN, reg.ExternalID)

	if _, err := g.msgr.SendText(ctx, g.operatorChat, text); err != nil {
		g.log.Warn("operator notification failed", "event_id", reg.EventID, "err", err)
	}
}
