package memory

import (
	"sync"

	"github.com/arenadesk/arenadesk/internal/domain/event"
	"github.com/arenadesk/arenadesk/internal/domain/grant"
	"github.com/arenadesk/arenadesk/internal/domain/registration"
)

// Store keeps all three collections behind one lock so that admission
// (status + duplicate + capacity + insert) is a single atomic unit, the
// same guarantee the postgres repo gets from a row-locking transaction.
type Store struct {
	mu     sync.RWMutex
	events map[string]event.Event
	regs   map[string]map[int64]registration.Registration // event id -> user id
	grants []grant.Grant
}

func NewStore() *Store {
	return &Store{
		events: make(map[string]event.Event),
		regs:   make(map[string]map[int64]registration.Registration),
	}
}
