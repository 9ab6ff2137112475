package admission

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/arenadesk/arenadesk/internal/domain/event"
	"github.com/arenadesk/arenadesk/internal/domain/registration"
)

type fakeAdmitter struct {
	admitFn func(ctx context.Context, req registration.CreateRegistrationRequest) (registration.Registration, error)
}

func (f *fakeAdmitter) Admit(ctx context.Context, req registration.CreateRegistrationRequest) (registration.Registration, error) {
	if f.admitFn != nil {
		return f.admitFn(ctx, req)
	}
	return registration.NewFromCreateRequest(req), nil
}

type fakeEvents struct{}

func (fakeEvents) GetEvent(ctx context.Context, id string) (event.Event, error) {
	return event.Event{ID: id, Name: "Derby"}, nil
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (m *fakeMessenger) SendText(ctx context.Context, chatID int64, text string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return 0, errors.New("operator chat unreachable")
	}
	m.sent = append(m.sent, text)
	return int64(len(m.sent)), nil
}

func (m *fakeMessenger) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return nil
}

func TestRegister_NotifiesOperator(t *testing.T) {
	msgr := &fakeMessenger{}
	g := NewGuard(&fakeAdmitter{}, fakeEvents{}, msgr, 555, nil)

	reg, err := g.Register(context.Background(), "e1", 42, "Ana", "AnaPlays", "9001")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.UserID != 42 {
		t.Fatalf("registration user %d, want 42", reg.UserID)
	}

	if len(msgr.sent) != 1 {
		t.Fatalf("operator got %d pings, want 1", len(msgr.sent))
	}
	if !strings.Contains(msgr.sent[0], "Derby") || !strings.Contains(msgr.sent[0], "AnaPlays") {
		t.Fatalf("operator ping missing details: %q", msgr.sent[0])
	}
}

func TestRegister_OperatorPingFailureIsNotFatal(t *testing.T) {
	msgr := &fakeMessenger{fail: true}
	g := NewGuard(&fakeAdmitter{}, fakeEvents{}, msgr, 555, nil)

	if _, err := g.Register(context.Background(), "e1", 42, "Ana", "AnaPlays", "9001"); err != nil {
		t.Fatalf("a blocked operator chat must not fail the registration: %v", err)
	}
}

func TestRegister_StoreErrorsPassThrough(t *testing.T) {
	admitter := &fakeAdmitter{admitFn: func(ctx context.Context, req registration.CreateRegistrationRequest) (registration.Registration, error) {
		return registration.Registration{}, registration.ErrSlotsFull
	}}
	msgr := &fakeMessenger{}
	g := NewGuard(admitter, fakeEvents{}, msgr, 555, nil)

	_, err := g.Register(context.Background(), "e1", 42, "Ana", "AnaPlays", "9001")
	if !errors.Is(err, registration.ErrSlotsFull) {
		t.Fatalf("expected ErrSlotsFull, got %v", err)
	}
	if len(msgr.sent) != 0 {
		t.Fatalf("rejected registration must not ping the operator")
	}
}

func TestRegister_NoOperatorConfigured(t *testing.T) {
	g := NewGuard(&fakeAdmitter{}, fakeEvents{}, nil, 0, nil)

	if _, err := g.Register(context.Background(), "e1", 42, "Ana", "AnaPlays", "9001"); err != nil {
		t.Fatalf("register without operator chat: %v", err)
	}
}
