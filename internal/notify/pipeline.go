package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arenadesk/arenadesk/internal/clock"
	"github.com/arenadesk/arenadesk/internal/domain/event"
	"github.com/arenadesk/arenadesk/internal/domain/registration"
	"github.com/arenadesk/arenadesk/internal/jobs"
	"github.com/arenadesk/arenadesk/internal/messenger"
	"github.com/arenadesk/arenadesk/internal/observability"
	"github.com/arenadesk/arenadesk/internal/sched"
)

// Follow-up timing. Credentials are wiped half an hour after delivery;
// countdown reminders go out at these offsets before the reveal moment.
const deleteAfter = 30 * time.Minute

var reminderOffsets = []int{10, 5, 1}

type EventGetter interface {
	GetEvent(ctx context.Context, id string) (event.Event, error)
}

type RegistrationLister interface {
	ListRegistrations(ctx context.Context, eventID string) ([]registration.Registration, error)
}

type JobScheduler interface {
	Schedule(fireAt time.Time, t jobs.ActionType, payload []byte) (sched.Handle, error)
}

// DeliveryLog records per-recipient outcomes. Optional; writes are
// best-effort and never interrupt a broadcast.
type DeliveryLog interface {
	RecordDelivery(ctx context.Context, eventID string, userID int64, kind, status string, lastError *string) error
}

type Config struct {
	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *observability.Prom
}

// Pipeline turns scheduler firings into outbound messages and schedules
// its own follow-up jobs (reminders, credential deletes).
type Pipeline struct {
	cfg        Config
	events     EventGetter
	regs       RegistrationLister
	msgr       messenger.Messenger
	jobs       JobScheduler
	deliveries DeliveryLog
}

func New(cfg Config, events EventGetter, regs RegistrationLister, msgr messenger.Messenger, js JobScheduler, deliveries DeliveryLog) *Pipeline {
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Pipeline{
		cfg:        cfg,
		events:     events,
		regs:       regs,
		msgr:       msgr,
		jobs:       js,
		deliveries: deliveries,
	}
}

// Dispatch is the scheduler's entry point into the pipeline.
func (p *Pipeline) Dispatch(ctx context.Context, j sched.Job) error {
	decoded, err := jobs.DecodePayload(j.Type, j.Payload)
	if err != nil {
		return err
	}

	switch payload := decoded.(type) {
	case jobs.RevealRoomPayload:
		return p.revealRoom(ctx, payload)
	case jobs.SendReminderPayload:
		return p.sendReminder(ctx, payload)
	case jobs.DeleteMessagePayload:
		p.deleteMessage(ctx, payload)
		return nil
	default:
		return jobs.ErrInvalidActionType
	}
}

// ScheduleReveal registers the reveal job plus the countdown reminders
// for an event whose room was just set. Reminder offsets already in the
// past are skipped outright: a reminder delivered after its moment is
// stale, not late.
func (p *Pipeline) ScheduleReveal(e event.Event) error {
	if e.Room == nil {
		return fmt.Errorf("event %s has no room to reveal", e.ID)
	}

	reveal, err := jobs.EncodePayload(jobs.ActionRevealRoom, jobs.RevealRoomPayload{
		EventID: e.ID,
		RoomSeq: e.Room.Seq,
	})
	if err != nil {
		return err
	}

	if _, err := p.jobs.Schedule(e.Room.RevealAt, jobs.ActionRevealRoom, reveal); err != nil {
		return err
	}

	now := p.cfg.Clock.Now()

	for _, mins := range reminderOffsets {
		at := e.Room.RevealAt.Add(-time.Duration(mins) * time.Minute)
		if !at.After(now) {
			continue
		}

		payload, err := jobs.EncodePayload(jobs.ActionSendReminder, jobs.SendReminderPayload{
			EventID:       e.ID,
			RoomSeq:       e.Room.Seq,
			MinutesBefore: mins,
		})
		if err != nil {
			return err
		}

		if _, err := p.jobs.Schedule(at, jobs.ActionSendReminder, payload); err != nil {
			return err
		}
	}

	return nil
}

func (p *Pipeline) revealRoom(ctx context.Context, payload jobs.RevealRoomPayload) error {
	e, err := p.events.GetEvent(ctx, payload.EventID)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			// event deleted after scheduling; nothing to reveal
			return nil
		}
		return err
	}

	// The event may have been altered after this job was scheduled.
	if e.Room == nil || e.Room.Seq != payload.RoomSeq {
		p.cfg.Logger.Info("skipping stale reveal", "event_id", e.ID)
		return nil
	}

	regs, err := p.regs.ListRegistrations(ctx, e.ID)
	if err != nil {
		return err
	}

	text := fmt.Sprintf(
		"Room details for %s\nRoom ID: %s\nPassword: %s\nStart: %s\n\nThis message will self-delete in %d minutes.",
		e.Name, e.Room.Code, e.Room.Passcode, e.StartAt.Format("2006-01-02 15:04"),
		int(deleteAfter.Minutes()),
	)

	for _, reg := range regs {
		msgID, sendErr := p.msgr.SendText(ctx, reg.UserID, text)

		if sendErr != nil {
			// one blocked recipient must not sink the rest of the batch
			p.cfg.Logger.Warn("room reveal delivery failed", "event_id", e.ID, "user_id", reg.UserID, "err", sendErr)
			p.record(ctx, e.ID, reg.UserID, "room_reveal", "failed", sendErr)
			continue
		}

		p.record(ctx, e.ID, reg.UserID, "room_reveal", "sent", nil)

		del, encErr := jobs.EncodePayload(jobs.ActionDeleteMessage, jobs.DeleteMessagePayload{
			ChatID:    reg.UserID,
			MessageID: msgID,
		})
		if encErr != nil {
			p.cfg.Logger.Error("encode delete payload", "err", encErr)
			continue
		}

		if _, schedErr := p.jobs.Schedule(p.cfg.Clock.Now().Add(deleteAfter), jobs.ActionDeleteMessage, del); schedErr != nil {
			p.cfg.Logger.Error("schedule credential delete", "event_id", e.ID, "user_id", reg.UserID, "err", schedErr)
		}
	}

	return nil
}

func (p *Pipeline) sendReminder(ctx context.Context, payload jobs.SendReminderPayload) error {
	e, err := p.events.GetEvent(ctx, payload.EventID)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			return nil
		}
		return err
	}

	if e.Room == nil || e.Room.Seq != payload.RoomSeq {
		p.cfg.Logger.Info("skipping stale reminder", "event_id", e.ID)
		return nil
	}

	regs, err := p.regs.ListRegistrations(ctx, e.ID)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("Reminder: %s room details drop in %d minutes.", e.Name, payload.MinutesBefore)

	for _, reg := range regs {
		if _, sendErr := p.msgr.SendText(ctx, reg.UserID, text); sendErr != nil {
			p.cfg.Logger.Warn("reminder delivery failed", "event_id", e.ID, "user_id", reg.UserID, "err", sendErr)
			p.record(ctx, e.ID, reg.UserID, "reminder", "failed", sendErr)
			continue
		}
		p.record(ctx, e.ID, reg.UserID, "reminder", "sent", nil)
	}

	return nil
}

// deleteMessage is advisory: the message may already be gone or the bot
// may have lost permissions, and neither matters.
func (p *Pipeline) deleteMessage(ctx context.Context, payload jobs.DeleteMessagePayload) {
	if err := p.msgr.DeleteMessage(ctx, payload.ChatID, payload.MessageID); err != nil {
		p.cfg.Logger.Info("credential delete failed", "chat_id", payload.ChatID, "message_id", payload.MessageID, "err", err)
	}
}

func (p *Pipeline) record(ctx context.Context, eventID string, userID int64, kind, status string, sendErr error) {
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.DeliveriesTotal.WithLabelValues(kind, status).Inc()
	}
	if p.deliveries == nil {
		return
	}

	var lastError *string
	if sendErr != nil {
		s := sendErr.Error()
		lastError = &s
	}

	if err := p.deliveries.RecordDelivery(ctx, eventID, userID, kind, status, lastError); err != nil {
		p.cfg.Logger.Warn("delivery log write failed", "err", err)
	}
}
