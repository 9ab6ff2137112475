package chatops

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arenadesk/arenadesk/internal/admission"
	"github.com/arenadesk/arenadesk/internal/clock"
	"github.com/arenadesk/arenadesk/internal/domain/event"
	"github.com/arenadesk/arenadesk/internal/lifecycle"
	"github.com/arenadesk/arenadesk/internal/messenger"
	"github.com/arenadesk/arenadesk/internal/repo/memory"
)

const (
	adminID  = int64(1000)
	playerID = int64(2000)
)

type recordingMessenger struct {
	mu   sync.Mutex
	sent []string
}

func (m *recordingMessenger) SendText(ctx context.Context, chatID int64, text string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, text)
	return int64(len(m.sent)), nil
}

func (m *recordingMessenger) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return nil
}

func (m *recordingMessenger) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1]
}

type nopPipeline struct {
	mu    sync.Mutex
	count int
}

func (p *nopPipeline) ScheduleReveal(e event.Event) error {
	p.mu.Lock()
	p.count++
	p.mu.Unlock()
	return nil
}

type fixture struct {
	gw    *Gateway
	msgr  *recordingMessenger
	store *memory.Store
	clk   *clock.Fake
	pipe  *nopPipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := memory.NewStore()
	msgr := &recordingMessenger{}
	pipe := &nopPipeline{}

	svc := lifecycle.New(lifecycle.Config{Clock: clk}, store, store, pipe, nil)
	guard := admission.NewGuard(store, store, nil, 0, nil)

	gw := NewGateway(Config{
		AdminUserID: adminID,
		SessionTTL:  10 * time.Minute,
		Clock:       clk,
	}, msgr, svc, guard, store, store, store, store)

	return &fixture{gw: gw, msgr: msgr, store: store, clk: clk, pipe: pipe}
}

func (f *fixture) admin(t *testing.T, text string) string {
	t.Helper()
	f.gw.HandleUpdate(context.Background(), messenger.Update{
		ChatID: adminID, UserID: adminID, Username: "op", Text: text, Private: true,
	})
	return f.msgr.last()
}

func (f *fixture) player(t *testing.T, text string) string {
	t.Helper()
	f.gw.HandleUpdate(context.Background(), messenger.Update{
		ChatID: playerID, UserID: playerID, Username: "slayer", Text: text, Private: true,
	})
	return f.msgr.last()
}

func (f *fixture) createEvent(t *testing.T, slots int) event.Event {
	t.Helper()

	f.admin(t, "/create-event")
	f.admin(t, "Night Cup")
	f.admin(t, "squad")
	f.admin(t, "2025-06-01 21:00")
	reply := f.admin(t, fmt.Sprintf("%d", slots))

	if !strings.Contains(reply, "Event created with id:") {
		t.Fatalf("event creation did not finish, last reply: %q", reply)
	}

	events, err := f.store.ListEvents(context.Background())
	if err != nil || len(events) == 0 {
		t.Fatalf("event not stored: %v", err)
	}
	return events[len(events)-1]
}

func TestAdminCommands_RequireOperator(t *testing.T) {
	f := newFixture(t)

	reply := f.player(t, "/create-event")
	if !strings.Contains(reply, "operator only") {
		t.Fatalf("expected operator-only refusal, got %q", reply)
	}
}

func TestCreateEventFlow(t *testing.T) {
	f := newFixture(t)

	reply := f.admin(t, "/create-event")
	if !strings.Contains(reply, "Send the event name") {
		t.Fatalf("expected name prompt, got %q", reply)
	}

	f.admin(t, "Night Cup")
	f.admin(t, "squad")

	// malformed datetime re-prompts the same step
	reply = f.admin(t, "tomorrow evening")
	if !strings.Contains(reply, "Invalid datetime") {
		t.Fatalf("expected datetime re-prompt, got %q", reply)
	}

	f.admin(t, "2025-06-01 21:00")

	// malformed slot count re-prompts too
	reply = f.admin(t, "twenty")
	if !strings.Contains(reply, "positive integer") {
		t.Fatalf("expected slots re-prompt, got %q", reply)
	}

	reply = f.admin(t, "25")
	if !strings.Contains(reply, "Event created with id:") {
		t.Fatalf("expected creation confirmation, got %q", reply)
	}

	events, _ := f.store.ListEvents(context.Background())
	if len(events) != 1 {
		t.Fatalf("stored %d events, want 1", len(events))
	}
	e := events[0]
	if e.Name != "Night Cup" || e.Format != "squad" || e.MaxSlots != 25 {
		t.Fatalf("stored event mismatch: %+v", e)
	}
	if e.Status != event.StatusOpen {
		t.Fatalf("new event status %s, want open", e.Status)
	}
}

func TestCreateEventSession_Expires(t *testing.T) {
	f := newFixture(t)

	f.admin(t, "/create-event")

	// operator walks away past the session TTL
	f.clk.Advance(11 * time.Minute)

	// free text no longer feeds the dead session; with no open event it
	// falls through to the registration path
	reply := f.admin(t, "Night Cup")
	if !strings.Contains(reply, "No open event") {
		t.Fatalf("expected expired session fallthrough, got %q", reply)
	}
}

func TestImplicitRegistration(t *testing.T) {
	f := newFixture(t)
	f.createEvent(t, 2)

	reply := f.player(t, "Slayer99 1234567890")
	if !strings.Contains(reply, "Registration complete") {
		t.Fatalf("expected registration confirmation, got %q", reply)
	}

	// duplicate attempt
	reply = f.player(t, "Slayer99 1234567890")
	if !strings.Contains(reply, "already registered") {
		t.Fatalf("expected duplicate refusal, got %q", reply)
	}

	// a single token is ignored outright
	before := len(f.msgr.sent)
	f.player(t, "hello")
	if len(f.msgr.sent) != before {
		t.Fatalf("one-token text should be ignored")
	}
}

func TestImplicitRegistration_SlotsFull(t *testing.T) {
	f := newFixture(t)
	e := f.createEvent(t, 2)

	for i := int64(0); i < 2; i++ {
		f.gw.HandleUpdate(context.Background(), messenger.Update{
			ChatID: 3000 + i, UserID: 3000 + i, Username: "u", Text: "Ign 12345", Private: true,
		})
	}

	reply := f.player(t, "Slayer99 1234567890")
	if !strings.Contains(reply, "full") {
		t.Fatalf("expected slots-full refusal, got %q", reply)
	}

	n, _ := f.store.CountRegistrations(context.Background(), e.ID)
	if n != 2 {
		t.Fatalf("stored %d registrations, want 2", n)
	}
}

func TestJoin_NoOpenEvent(t *testing.T) {
	f := newFixture(t)

	reply := f.player(t, "/join")
	if !strings.Contains(reply, "No open event") {
		t.Fatalf("expected no-open-event reply, got %q", reply)
	}
}

func TestSetRoomCommand(t *testing.T) {
	f := newFixture(t)
	e := f.createEvent(t, 25)

	reply := f.admin(t, "/set-room "+e.ID)
	if !strings.Contains(reply, "Usage:") {
		t.Fatalf("expected usage message, got %q", reply)
	}

	reply = f.admin(t, "/set-room "+e.ID+" ROOM42 hush 25:99")
	if !strings.Contains(reply, "Invalid time") {
		t.Fatalf("expected time rejection, got %q", reply)
	}

	reply = f.admin(t, "/set-room "+e.ID+" ROOM42 hush 21:30")
	if !strings.Contains(reply, "Room set") {
		t.Fatalf("expected confirmation, got %q", reply)
	}

	if f.pipe.count != 1 {
		t.Fatalf("pipeline got %d reveal schedules, want 1", f.pipe.count)
	}

	stored, _ := f.store.GetEvent(context.Background(), e.ID)
	if stored.Status != event.StatusScheduled {
		t.Fatalf("status %s, want scheduled", stored.Status)
	}
}

func TestAnnounceWinnerCommand(t *testing.T) {
	f := newFixture(t)
	e := f.createEvent(t, 25)

	f.admin(t, "/set-room "+e.ID+" ROOM42 hush 21:30")

	reply := f.admin(t, "/announce-winner "+e.ID+" Team Phoenix")
	if !strings.Contains(reply, "Team Phoenix") {
		t.Fatalf("expected winner confirmation, got %q", reply)
	}

	stored, _ := f.store.GetEvent(context.Background(), e.ID)
	if stored.Winner == nil || *stored.Winner != "Team Phoenix" {
		t.Fatalf("winner not stored: %+v", stored.Winner)
	}
}

func TestGrantAccessCommand(t *testing.T) {
	f := newFixture(t)

	reply := f.admin(t, "/grant-access 2000 48")
	if !strings.Contains(reply, "Access granted") {
		t.Fatalf("expected grant confirmation, got %q", reply)
	}

	reply = f.admin(t, "/grant-access 2000 zero")
	if !strings.Contains(reply, "positive integer") {
		t.Fatalf("expected hours rejection, got %q", reply)
	}

	// no resolver on the plain messenger
	reply = f.admin(t, "/grant-access @someone 5")
	if !strings.Contains(reply, "numeric user id") {
		t.Fatalf("expected resolver fallback message, got %q", reply)
	}

	reply = f.admin(t, "/list-grants")
	if !strings.Contains(reply, "until") {
		t.Fatalf("expected grant listing, got %q", reply)
	}
}

func TestGrantUnlocksReadCommands(t *testing.T) {
	f := newFixture(t)
	f.createEvent(t, 25)

	reply := f.player(t, "/list-events")
	if !strings.Contains(reply, "active grant") {
		t.Fatalf("expected grant-required refusal, got %q", reply)
	}

	f.admin(t, "/grant-access 2000 2")

	reply = f.player(t, "/list-events")
	if !strings.Contains(reply, "Night Cup") {
		t.Fatalf("expected event listing for grant holder, got %q", reply)
	}

	// grants never unlock mutating commands
	reply = f.player(t, "/close-registration some-id")
	if !strings.Contains(reply, "operator only") {
		t.Fatalf("expected operator-only refusal, got %q", reply)
	}

	// expiry re-locks the listing
	f.clk.Advance(3 * time.Hour)

	reply = f.player(t, "/list-events")
	if !strings.Contains(reply, "active grant") {
		t.Fatalf("expected refusal after grant expiry, got %q", reply)
	}
}

func TestCommandParsing_BotMention(t *testing.T) {
	f := newFixture(t)

	reply := f.player(t, "/help@ArenaDeskBot")
	if !strings.Contains(reply, "/join") {
		t.Fatalf("expected help text, got %q", reply)
	}

	reply = f.player(t, "/frobnicate")
	if !strings.Contains(reply, "Unknown command") {
		t.Fatalf("expected unknown-command reply, got %q", reply)
	}
}

func TestMyRegistrations(t *testing.T) {
	f := newFixture(t)

	reply := f.player(t, "/my-registrations")
	if !strings.Contains(reply, "no registrations") {
		t.Fatalf("expected empty listing, got %q", reply)
	}

	f.createEvent(t, 5)
	f.player(t, "Slayer99 1234567890")

	reply = f.player(t, "/my-registrations")
	if !strings.Contains(reply, "Night Cup") {
		t.Fatalf("expected event name in listing, got %q", reply)
	}
}

func TestListPlayersCommand(t *testing.T) {
	f := newFixture(t)
	e := f.createEvent(t, 5)

	reply := f.admin(t, "/list-players "+e.ID)
	if !strings.Contains(reply, "No players") {
		t.Fatalf("expected empty roster, got %q", reply)
	}

	f.player(t, "Slayer99 1234567890")

	reply = f.admin(t, "/list-players "+e.ID)
	if !strings.Contains(reply, "Slayer99") {
		t.Fatalf("expected roster with IGN, got %q", reply)
	}

	reply = f.admin(t, "/list-players not-a-uuid")
	if !strings.Contains(reply, "malformed") {
		t.Fatalf("expected malformed id reply, got %q", reply)
	}
}
