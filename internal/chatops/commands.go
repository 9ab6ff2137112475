package chatops

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arenadesk/arenadesk/internal/domain/event"
	"github.com/arenadesk/arenadesk/internal/lifecycle"
	"github.com/arenadesk/arenadesk/internal/messenger"
)

func (g *Gateway) handleAdminCommand(ctx context.Context, upd messenger.Update, cmd string, args []string) {
	switch cmd {
	case "create-event":
		g.sessions.begin(upd.ChatID)
		g.reply(ctx, upd, "Event creation started. Send the event name:")

	case "list-events":
		g.handleListEvents(ctx, upd)

	case "list-players":
		if len(args) < 1 {
			g.reply(ctx, upd, "Usage: /list-players <event_id>")
			return
		}
		g.handleListPlayers(ctx, upd, args[0])

	case "close-registration":
		if len(args) < 1 {
			g.reply(ctx, upd, "Usage: /close-registration <event_id>")
			return
		}
		e, err := g.lifecycle.CloseRegistration(ctx, args[0])
		if err != nil {
			g.replyEventError(ctx, upd, err)
			return
		}
		g.reply(ctx, upd, fmt.Sprintf("Registration closed for %s.", e.Name))

	case "set-room":
		g.handleSetRoom(ctx, upd, args)

	case "announce-winner":
		if len(args) < 2 {
			g.reply(ctx, upd, "Usage: /announce-winner <event_id> <winner>")
			return
		}
		winner := strings.Join(args[1:], " ")
		e, err := g.lifecycle.AnnounceWinner(ctx, args[0], winner)
		if err != nil {
			g.replyEventError(ctx, upd, err)
			return
		}
		g.reply(ctx, upd, fmt.Sprintf("Winner for %s: %s", e.Name, winner))

	case "list-grants":
		g.handleListGrants(ctx, upd)

	case "grant-access":
		g.handleGrantAccess(ctx, upd, args)
	}
}

func (g *Gateway) handleListEvents(ctx context.Context, upd messenger.Update) {
	events, err := g.lifecycle.ListEvents(ctx)
	if err != nil {
		g.cfg.Logger.Error("list events", "err", err)
		g.reply(ctx, upd, "Could not list events.")
		return
	}

	if len(events) == 0 {
		g.reply(ctx, upd, "No events yet.")
		return
	}

	var b strings.Builder
	b.WriteString("Events:\n")
	for _, e := range events {
		fmt.Fprintf(&b, "\nID: %s\nName: %s\nFormat: %s\nStart: %s\nSlots: %d\nStatus: %s\n",
			e.ID, e.Name, e.Format, e.StartAt.Format("2006-01-02 15:04"), e.MaxSlots, e.Status)
	}
	g.reply(ctx, upd, b.String())
}

func (g *Gateway) handleListPlayers(ctx context.Context, upd messenger.Update, eventID string) {
	regs, err := g.regs.ListRegistrations(ctx, eventID)
	if err != nil {
		g.replyEventError(ctx, upd, err)
		return
	}

	if len(regs) == 0 {
		g.reply(ctx, upd, "No players registered yet.")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Players (%d):\n", len(regs))
	for _, r := range regs {
		fmt.Fprintf(&b, "- %s (IGN: %s, id: %s)\n", r.DisplayName, r.IGN, r.ExternalID)
	}
	g.reply(ctx, upd, b.String())
}

func (g *Gateway) handleSetRoom(ctx context.Context, upd messenger.Update, args []string) {
	if len(args) < 4 {
		g.reply(ctx, upd, "Usage: /set-room <event_id> <room_code> <passcode> <HH:MM>")
		return
	}

	revealAt, err := lifecycle.ParseRevealTime(g.cfg.Clock.Now(), args[3])
	if err != nil {
		g.reply(ctx, upd, "Invalid time. Use HH:MM 24-hour.")
		return
	}

	e, err := g.lifecycle.SetRoom(ctx, args[0], args[1], args[2], revealAt)
	if err != nil {
		g.replyEventError(ctx, upd, err)
		return
	}

	g.reply(ctx, upd, fmt.Sprintf("Room set for %s. Reveal scheduled at %s.",
		e.Name, revealAt.Format("2006-01-02 15:04")))
}

func (g *Gateway) handleListGrants(ctx context.Context, upd messenger.Update) {
	grants, err := g.lifecycle.ListGrants(ctx)
	if err != nil {
		g.cfg.Logger.Error("list grants", "err", err)
		g.reply(ctx, upd, "Could not list grants.")
		return
	}

	if len(grants) == 0 {
		g.reply(ctx, upd, "No access grants.")
		return
	}

	var b strings.Builder
	b.WriteString("Access grants:\n")
	for _, gr := range grants {
		fmt.Fprintf(&b, "- user %d until %s\n", gr.UserID, gr.ExpiresAt.Format("2006-01-02 15:04 MST"))
	}
	g.reply(ctx, upd, b.String())
}

func (g *Gateway) handleGrantAccess(ctx context.Context, upd messenger.Update, args []string) {
	if len(args) < 2 {
		g.reply(ctx, upd, "Usage: /grant-access <user_id_or_@handle> <hours>")
		return
	}

	hours, err := strconv.Atoi(args[1])
	if err != nil || hours <= 0 {
		g.reply(ctx, upd, "Hours must be a positive integer.")
		return
	}

	var userID int64
	if strings.HasPrefix(args[0], "@") {
		resolver, ok := g.msgr.(UserResolver)
		if !ok {
			g.reply(ctx, upd, "Handle lookup is not available; provide a numeric user id.")
			return
		}
		userID, err = resolver.ResolveUser(ctx, args[0])
		if err != nil {
			g.reply(ctx, upd, "Could not resolve that handle.")
			return
		}
	} else {
		userID, err = strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			g.reply(ctx, upd, "Provide a numeric user id or an @handle.")
			return
		}
	}

	gr, err := g.lifecycle.GrantAccess(ctx, userID, hours)
	if err != nil {
		g.cfg.Logger.Error("grant access", "err", err)
		g.reply(ctx, upd, "Could not create the grant.")
		return
	}

	g.reply(ctx, upd, fmt.Sprintf("Access granted to %d until %s UTC.",
		userID, gr.ExpiresAt.Format("2006-01-02 15:04")))
}

// continueCreate advances the interactive creation flow one answer at a
// time. A malformed answer re-prompts the same step instead of aborting
// the whole flow.
func (g *Gateway) continueCreate(ctx context.Context, upd messenger.Update, sess *session, text string) {
	switch sess.Step {
	case stepName:
		sess.Name = text
		sess.Step = stepFormat
		g.reply(ctx, upd, "Send the format (solo / duo / squad):")

	case stepFormat:
		sess.Format = text
		sess.Step = stepStart
		g.reply(ctx, upd, "Send the start datetime as YYYY-MM-DD HH:MM (server time):")

	case stepStart:
		startAt, err := time.ParseInLocation("2006-01-02 15:04", text, g.cfg.Clock.Now().Location())
		if err != nil {
			g.reply(ctx, upd, "Invalid datetime format. Use YYYY-MM-DD HH:MM")
			return
		}
		sess.StartAt = startAt
		sess.Step = stepSlots
		g.reply(ctx, upd, "Send max slots (integer):")

	case stepSlots:
		slots, err := strconv.Atoi(text)
		if err != nil || slots <= 0 {
			g.reply(ctx, upd, "Slots must be a positive integer. Try again.")
			return
		}

		e, err := g.lifecycle.CreateEvent(ctx, event.CreateEventRequest{
			Name:     sess.Name,
			Format:   sess.Format,
			StartAt:  sess.StartAt,
			MaxSlots: slots,
		})
		if err != nil {
			g.cfg.Logger.Error("create event", "err", err)
			g.reply(ctx, upd, "Could not create the event, start over with /create-event.")
			g.sessions.end(upd.ChatID)
			return
		}

		g.sessions.end(upd.ChatID)
		g.reply(ctx, upd, fmt.Sprintf("Event created with id: %s", e.ID))
	}
}

func (g *Gateway) replyEventError(ctx context.Context, upd messenger.Update, err error) {
	switch {
	case errors.Is(err, event.ErrInvalidID):
		g.reply(ctx, upd, "That event id is malformed.")
	case errors.Is(err, event.ErrNotFound):
		g.reply(ctx, upd, "No event with that id.")
	case errors.Is(err, event.ErrInvalidTransition):
		g.reply(ctx, upd, "That event is not in a state that allows this.")
	default:
		g.cfg.Logger.Error("command failed", "err", err)
		g.reply(ctx, upd, "Something went wrong, try again later.")
	}
}
