package chatops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arenadesk/arenadesk/internal/clock"
	"github.com/arenadesk/arenadesk/internal/domain/event"
	"github.com/arenadesk/arenadesk/internal/domain/grant"
	"github.com/arenadesk/arenadesk/internal/domain/registration"
	"github.com/arenadesk/arenadesk/internal/messenger"
)

type OpenEventFinder interface {
	FindOpenEvent(ctx context.Context) (event.Event, error)
}

type EventGetter interface {
	GetEvent(ctx context.Context, id string) (event.Event, error)
}

type RegistrationReader interface {
	ListRegistrations(ctx context.Context, eventID string) ([]registration.Registration, error)
	ListRegistrationsByUser(ctx context.Context, userID int64) ([]registration.Registration, error)
}

// Registrar is the admission guard.
type Registrar interface {
	Register(ctx context.Context, eventID string, userID int64, displayName, ign, externalID string) (registration.Registration, error)
}

type Lifecycle interface {
	CreateEvent(ctx context.Context, req event.CreateEventRequest) (event.Event, error)
	ListEvents(ctx context.Context) ([]event.Event, error)
	CloseRegistration(ctx context.Context, id string) (event.Event, error)
	SetRoom(ctx context.Context, id, code, passcode string, revealAt time.Time) (event.Event, error)
	AnnounceWinner(ctx context.Context, id, winner string) (event.Event, error)
	GrantAccess(ctx context.Context, userID int64, hours int) (grant.Grant, error)
	ListGrants(ctx context.Context) ([]grant.Grant, error)
}

// UserResolver turns an @handle into a platform user id. Transports that
// cannot resolve handles simply don't implement it.
type UserResolver interface {
	ResolveUser(ctx context.Context, handle string) (int64, error)
}

// GrantChecker reports whether a user holds an unexpired access grant.
// An active grant unlocks the read-only event listing commands.
type GrantChecker interface {
	HasActiveGrant(ctx context.Context, userID int64, now time.Time) (bool, error)
}

type Config struct {
	AdminUserID int64
	SessionTTL  time.Duration
	Clock       clock.Clock
	Logger      *slog.Logger
}

// Gateway parses inbound chat traffic and drives the lifecycle,
// admission and read paths. Transport stays behind messenger interfaces;
// everything here is plain text in, plain text out.
type Gateway struct {
	cfg       Config
	msgr      messenger.Messenger
	lifecycle Lifecycle
	registrar Registrar
	open      OpenEventFinder
	events    EventGetter
	regs      RegistrationReader
	grants    GrantChecker
	sessions  *sessionStore
}

func NewGateway(cfg Config, msgr messenger.Messenger, lc Lifecycle, registrar Registrar, open OpenEventFinder, events EventGetter, regs RegistrationReader, grants GrantChecker) *Gateway {
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Gateway{
		cfg:       cfg,
		msgr:      msgr,
		lifecycle: lc,
		registrar: registrar,
		open:      open,
		events:    events,
		regs:      regs,
		grants:    grants,
		sessions:  newSessionStore(cfg.SessionTTL, cfg.Clock),
	}
}

// Run consumes inbound updates until the context ends.
func (g *Gateway) Run(ctx context.Context, src messenger.UpdateSource) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-src.Updates():
			if !ok {
				return
			}
			g.HandleUpdate(ctx, upd)
		}
	}
}

// HandleUpdate routes one inbound message. Errors surface to the sender
// as short usage messages; nothing here ever stops the loop.
func (g *Gateway) HandleUpdate(ctx context.Context, upd messenger.Update) {
	text := strings.TrimSpace(upd.Text)
	if text == "" {
		return
	}

	if cmd, args, ok := parseCommand(text); ok {
		g.handleCommand(ctx, upd, cmd, args)
		return
	}

	// Admin free text feeds a live creation session, if any.
	if upd.UserID == g.cfg.AdminUserID {
		if sess, ok := g.sessions.get(upd.ChatID); ok {
			g.continueCreate(ctx, upd, sess, text)
			return
		}
	}

	// Any other private text is treated as an implicit registration
	// attempt: first token IGN, second token game id.
	if upd.Private {
		g.handleImplicitRegistration(ctx, upd, text)
	}
}

func parseCommand(text string) (cmd string, args []string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}

	fields := strings.Fields(text)
	cmd = strings.TrimPrefix(fields[0], "/")
	// strip a bot mention suffix like /join@SomeBot
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	return cmd, fields[1:], true
}

func (g *Gateway) handleCommand(ctx context.Context, upd messenger.Update, cmd string, args []string) {
	switch cmd {
	case "start", "help":
		g.reply(ctx, upd, helpText)

	case "join":
		g.handleJoin(ctx, upd)

	case "my-registrations":
		g.handleMyRegistrations(ctx, upd)

	case "list-events", "list-players":
		// read-only commands, open to the operator and to grant holders
		if !g.canView(ctx, upd.UserID) {
			g.reply(ctx, upd, "This command needs operator access or an active grant.")
			return
		}
		g.handleAdminCommand(ctx, upd, cmd, args)

	case "create-event", "close-registration", "set-room",
		"announce-winner", "list-grants", "grant-access":
		if upd.UserID != g.cfg.AdminUserID {
			g.reply(ctx, upd, "This command is for the operator only.")
			return
		}
		g.handleAdminCommand(ctx, upd, cmd, args)

	default:
		g.reply(ctx, upd, "Unknown command. Use /help for the command list.")
	}
}

func (g *Gateway) canView(ctx context.Context, userID int64) bool {
	if userID == g.cfg.AdminUserID {
		return true
	}
	if g.grants == nil {
		return false
	}

	ok, err := g.grants.HasActiveGrant(ctx, userID, g.cfg.Clock.Now())
	if err != nil {
		g.cfg.Logger.Error("grant lookup", "user_id", userID, "err", err)
		return false
	}
	return ok
}

func (g *Gateway) handleJoin(ctx context.Context, upd messenger.Update) {
	_, err := g.open.FindOpenEvent(ctx)
	if errors.Is(err, event.ErrNotFound) {
		g.reply(ctx, upd, "No open event right now.")
		return
	}
	if err != nil {
		g.cfg.Logger.Error("find open event", "err", err)
		g.reply(ctx, upd, "Something went wrong, try again later.")
		return
	}

	// Direct the player to DM so credentials never land in a group chat.
	if _, err := g.msgr.SendText(ctx, upd.UserID,
		"Send your IGN and numeric game ID in one message, like:\nSlayer99 1234567890"); err != nil {
		g.reply(ctx, upd, "I couldn't message you privately. Open a private chat with the bot and try again.")
	}
}

func (g *Gateway) handleImplicitRegistration(ctx context.Context, upd messenger.Update, text string) {
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return
	}
	ign, externalID := parts[0], parts[1]

	e, err := g.open.FindOpenEvent(ctx)
	if errors.Is(err, event.ErrNotFound) {
		g.reply(ctx, upd, "No open event to register for right now.")
		return
	}
	if err != nil {
		g.cfg.Logger.Error("find open event", "err", err)
		g.reply(ctx, upd, "Something went wrong, try again later.")
		return
	}

	display := upd.Username
	if display == "" {
		display = ign
	}

	_, err = g.registrar.Register(ctx, e.ID, upd.UserID, display, ign, externalID)

	switch {
	case err == nil:
		g.reply(ctx, upd, fmt.Sprintf("Registration complete for %s. Good luck!", e.Name))
	case errors.Is(err, registration.ErrAlreadyRegistered):
		g.reply(ctx, upd, "You are already registered for this event.")
	case errors.Is(err, registration.ErrSlotsFull):
		g.reply(ctx, upd, "Registration is full for this event.")
	case errors.Is(err, event.ErrNotOpen):
		g.reply(ctx, upd, "Registration for this event has closed.")
	default:
		g.cfg.Logger.Error("registration failed", "event_id", e.ID, "user_id", upd.UserID, "err", err)
		g.reply(ctx, upd, "Registration failed, try again later.")
	}
}

func (g *Gateway) handleMyRegistrations(ctx context.Context, upd messenger.Update) {
	regs, err := g.regs.ListRegistrationsByUser(ctx, upd.UserID)
	if err != nil {
		g.cfg.Logger.Error("list registrations by user", "user_id", upd.UserID, "err", err)
		g.reply(ctx, upd, "Something went wrong, try again later.")
		return
	}

	if len(regs) == 0 {
		g.reply(ctx, upd, "You have no registrations.")
		return
	}

	var b strings.Builder
	b.WriteString("Your registrations:\n")
	for _, r := range regs {
		name := r.EventID
		if e, err := g.events.GetEvent(ctx, r.EventID); err == nil {
			name = e.Name
		}
		fmt.Fprintf(&b, "- %s (id: %s)\n", name, r.EventID)
	}
	g.reply(ctx, upd, b.String())
}

func (g *Gateway) reply(ctx context.Context, upd messenger.Update, text string) {
	if _, err := g.msgr.SendText(ctx, upd.ChatID, text); err != nil {
		g.cfg.Logger.Warn("reply failed", "chat_id", upd.ChatID, "err", err)
	}
}

const helpText = `Arena Desk commands

Players:
/join - register for the open event (follow the DM instructions)
/my-registrations - list your registrations

Operator:
/create-event - interactive event creation
/list-events - all events
/list-players <event_id> - registrations for an event
/close-registration <event_id> - stop admission
/set-room <event_id> <room_code> <passcode> <HH:MM> - set room, schedule reveal
/announce-winner <event_id> <winner> - record the winner
/list-grants - active access grants
/grant-access <user_id_or_@handle> <hours> - temporary access to the event lists`
