package clock

import (
	"sync"
	"time"
)

// Clock abstracts time so the scheduling loop and anything that stamps
// or compares times can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func System() Clock { return systemClock{} }

// Fake is a manually advanced clock. Advance moves the current time and
// fires every timer whose deadline has been reached.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	at time.Time
	ch chan time.Time
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTimer{
		at: f.now.Add(d),
		ch: make(chan time.Time, 1),
	}

	if d <= 0 {
		t.ch <- f.now
		return t.ch
	}

	f.timers = append(f.timers, t)
	return t.ch
}

func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()

	f.now = f.now.Add(d)
	now := f.now

	remaining := f.timers[:0]
	var due []*fakeTimer

	for _, t := range f.timers {
		if !t.at.After(now) {
			due = append(due, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	f.timers = remaining

	f.mu.Unlock()

	for _, t := range due {
		t.ch <- now
	}
}
