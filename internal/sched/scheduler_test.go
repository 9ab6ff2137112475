package sched

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/arenadesk/arenadesk/internal/clock"
	"github.com/arenadesk/arenadesk/internal/jobs"
)

// recordingDispatcher collects every dispatched job and signals a channel
// so tests can wait without sleeping blind.
type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []Job
	ch   chan Job
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{ch: make(chan Job, 32)}
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, j Job) error {
	d.mu.Lock()
	d.jobs = append(d.jobs, j)
	d.mu.Unlock()
	d.ch <- j
	return nil
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.jobs)
}

func mustSchedule(t *testing.T, s *Scheduler, fireAt time.Time, typ jobs.ActionType) Handle {
	t.Helper()

	payload, err := jobs.EncodePayload(typ, payloadFor(typ))
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}

	h, err := s.Schedule(fireAt, typ, payload)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	return h
}

func payloadFor(typ jobs.ActionType) any {
	switch typ {
	case jobs.ActionRevealRoom:
		return jobs.RevealRoomPayload{EventID: "e1", RoomSeq: 1}
	case jobs.ActionSendReminder:
		return jobs.SendReminderPayload{EventID: "e1", RoomSeq: 1, MinutesBefore: 5}
	default:
		return jobs.DeleteMessagePayload{ChatID: 1, MessageID: 2}
	}
}

// waitDispatch advances the fake clock in small steps until a job comes
// out, so the test never races the scheduling loop parking on its timer.
func waitDispatch(t *testing.T, clk *clock.Fake, d *recordingDispatcher, step time.Duration) Job {
	t.Helper()

	deadline := time.After(2 * time.Second)

	for {
		select {
		case j := <-d.ch:
			return j
		case <-deadline:
			t.Fatalf("no dispatch within 2s, dispatched so far: %d", d.count())
		case <-time.After(10 * time.Millisecond):
			clk.Advance(step)
		}
	}
}

func expectNoDispatch(t *testing.T, d *recordingDispatcher, wait time.Duration) {
	t.Helper()

	select {
	case j := <-d.ch:
		t.Fatalf("unexpected dispatch of %s job %s", j.Type, j.ID)
	case <-time.After(wait):
	}
}

func TestScheduler_FiresAtDeadline(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)

	s := New(Config{Clock: clk})
	d := newRecordingDispatcher()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx, d)

	mustSchedule(t, s, start.Add(5*time.Minute), jobs.ActionRevealRoom)

	// not due yet
	expectNoDispatch(t, d, 50*time.Millisecond)

	j := waitDispatch(t, clk, d, time.Minute)
	if j.Type != jobs.ActionRevealRoom {
		t.Fatalf("expected reveal_room, got %s", j.Type)
	}

	if s.PendingCount() != 0 {
		t.Fatalf("expected empty pending set, got %d", s.PendingCount())
	}
}

func TestScheduler_PastFireTimeRunsImmediately(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)

	s := New(Config{Clock: clk})
	d := newRecordingDispatcher()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx, d)

	// fire time already in the past, e.g. rehydrated after downtime
	mustSchedule(t, s, start.Add(-time.Hour), jobs.ActionSendReminder)

	select {
	case j := <-d.ch:
		if j.Type != jobs.ActionSendReminder {
			t.Fatalf("expected send_reminder, got %s", j.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("past-due job was not dispatched")
	}
}

func TestScheduler_AtMostOnce(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)

	s := New(Config{Clock: clk})
	d := newRecordingDispatcher()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx, d)

	mustSchedule(t, s, start.Add(time.Minute), jobs.ActionDeleteMessage)

	waitDispatch(t, clk, d, 30*time.Second)

	// keep advancing well past the deadline; the job must not re-fire
	for i := 0; i < 5; i++ {
		clk.Advance(time.Hour)
	}
	expectNoDispatch(t, d, 100*time.Millisecond)

	if got := d.count(); got != 1 {
		t.Fatalf("job dispatched %d times, want 1", got)
	}
}

func TestScheduler_CancelPreventsDispatch(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)

	s := New(Config{Clock: clk})
	d := newRecordingDispatcher()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx, d)

	h := mustSchedule(t, s, start.Add(time.Minute), jobs.ActionRevealRoom)

	if !s.Cancel(h) {
		t.Fatalf("cancel of pending job returned false")
	}
	if s.Cancel(h) {
		t.Fatalf("second cancel should return false")
	}

	clk.Advance(time.Hour)
	expectNoDispatch(t, d, 100*time.Millisecond)
}

func TestScheduler_WholeDueBatchFires(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)

	s := New(Config{Clock: clk})
	d := newRecordingDispatcher()

	// schedule out of order before the loop starts so they all surface
	// in one batch
	mustSchedule(t, s, start.Add(3*time.Minute), jobs.ActionDeleteMessage)
	mustSchedule(t, s, start.Add(1*time.Minute), jobs.ActionRevealRoom)
	mustSchedule(t, s, start.Add(2*time.Minute), jobs.ActionSendReminder)

	clk.Advance(10 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx, d)

	// dispatch goroutines race each other, so assert the set, not the
	// arrival order
	seen := map[jobs.ActionType]int{}
	for i := 0; i < 3; i++ {
		j := waitDispatch(t, clk, d, time.Second)
		seen[j.Type]++
	}

	for _, typ := range []jobs.ActionType{jobs.ActionRevealRoom, jobs.ActionSendReminder, jobs.ActionDeleteMessage} {
		if seen[typ] != 1 {
			t.Fatalf("action %s dispatched %d times, want 1", typ, seen[typ])
		}
	}
}

func TestScheduler_RejectsUnknownAction(t *testing.T) {
	s := New(Config{Clock: clock.NewFake(time.Now())})

	_, err := s.Schedule(time.Now(), jobs.ActionType("bogus"), []byte("{}"))
	if err != jobs.ErrInvalidActionType {
		t.Fatalf("expected ErrInvalidActionType, got %v", err)
	}
}

// slowDispatcher blocks until released; used to prove the loop keeps
// dispatching while an earlier job is still running.
type slowDispatcher struct {
	started chan Job
	release chan struct{}
}

func (d *slowDispatcher) Dispatch(ctx context.Context, j Job) error {
	d.started <- j
	<-d.release
	return nil
}

func TestScheduler_SlowJobDoesNotBlockLoop(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)

	s := New(Config{Clock: clk})
	d := &slowDispatcher{
		started: make(chan Job, 4),
		release: make(chan struct{}),
	}
	defer close(d.release)

	mustSchedule(t, s, start.Add(1*time.Minute), jobs.ActionRevealRoom)
	mustSchedule(t, s, start.Add(2*time.Minute), jobs.ActionSendReminder)
	clk.Advance(5 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx, d)

	// both must start even though neither has finished
	for i := 0; i < 2; i++ {
		select {
		case <-d.started:
		case <-time.After(2 * time.Second):
			t.Fatalf("job %d never started while another was in flight", i)
		}
	}
}

func TestScheduler_DispatcherPanicIsContained(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(start)

	s := New(Config{Clock: clk})

	panicking := &panicDispatcher{after: newRecordingDispatcher()}

	mustSchedule(t, s, start.Add(-time.Second), jobs.ActionRevealRoom)
	mustSchedule(t, s, start.Add(time.Minute), jobs.ActionSendReminder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx, panicking)

	// second job must still fire after the first one panics
	j := waitDispatch(t, clk, panicking.after, 30*time.Second)
	if j.Type != jobs.ActionSendReminder {
		t.Fatalf("expected send_reminder after panic, got %s", j.Type)
	}
}

type panicDispatcher struct {
	after *recordingDispatcher
}

func (d *panicDispatcher) Dispatch(ctx context.Context, j Job) error {
	if j.Type == jobs.ActionRevealRoom {
		panic("boom")
	}
	return d.after.Dispatch(ctx, j)
}
