package sched

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arenadesk/arenadesk/internal/clock"
	"github.com/arenadesk/arenadesk/internal/jobs"
	"github.com/arenadesk/arenadesk/internal/observability"
	"github.com/google/uuid"
)

// Job is one pending unit of delayed work. The payload is a frozen byte
// snapshot; nothing about a job changes after Schedule returns.
type Job struct {
	ID      string
	Type    jobs.ActionType
	Payload []byte
	FireAt  time.Time

	seq       uint64
	index     int
	cancelled bool
}

type Handle string

// Dispatcher executes a due job. Dispatch runs on its own goroutine, so
// a slow or failing action never holds up the timer loop.
type Dispatcher interface {
	Dispatch(ctx context.Context, j Job) error
}

type Config struct {
	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *observability.Prom
}

// Scheduler keeps pending jobs in a min-heap keyed by (fire_at, insertion
// order) and dispatches everything due on each wake-up. Due jobs fire in
// fire_at order, ties broken by insertion order, each at most once.
type Scheduler struct {
	cfg Config

	mu      sync.Mutex
	pending jobHeap
	byID    map[string]*Job
	seq     uint64

	wake chan struct{}
}

func New(cfg Config) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Scheduler{
		cfg:  cfg,
		byID: make(map[string]*Job),
		wake: make(chan struct{}, 1),
	}
}

// Schedule accepts any fire time, including one already in the past; a
// past fire time means the job is due on the next loop iteration.
func (s *Scheduler) Schedule(fireAt time.Time, t jobs.ActionType, payload []byte) (Handle, error) {
	if !t.IsValid() {
		return "", jobs.ErrInvalidActionType
	}

	j := &Job{
		ID:      uuid.NewString(),
		Type:    t,
		Payload: payload,
		FireAt:  fireAt,
	}

	s.mu.Lock()
	s.seq++
	j.seq = s.seq
	heap.Push(&s.pending, j)
	s.byID[j.ID] = j
	s.mu.Unlock()

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.JobsScheduled.WithLabelValues(string(t)).Inc()
	}

	s.signal()

	return Handle(j.ID), nil
}

// Cancel drops a pending job. It reports false when the job has already
// been dispatched or was never known.
func (s *Scheduler) Cancel(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.byID[string(h)]
	if !ok || j.cancelled {
		return false
	}

	// Mark instead of re-heapifying; the loop skips cancelled jobs when
	// they surface.
	j.cancelled = true
	delete(s.byID, j.ID)
	return true
}

// PendingCount reports jobs not yet dispatched or cancelled.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Run is the scheduling loop. It owns the heap: on every wake-up it pops
// all jobs whose fire time has arrived and hands each to the dispatcher
// on a fresh goroutine, then sleeps until the next deadline or the next
// Schedule call.
func (s *Scheduler) Run(ctx context.Context, d Dispatcher) error {
	for {
		now := s.cfg.Clock.Now()

		s.mu.Lock()
		var due []*Job
		for s.pending.Len() > 0 {
			top := s.pending[0]
			if top.FireAt.After(now) {
				break
			}
			heap.Pop(&s.pending)
			if top.cancelled {
				continue
			}
			delete(s.byID, top.ID)
			due = append(due, top)
		}

		var timer <-chan time.Time
		if s.pending.Len() > 0 {
			timer = s.cfg.Clock.After(s.pending[0].FireAt.Sub(now))
		}
		s.mu.Unlock()

		for _, j := range due {
			go s.dispatch(ctx, d, *j)
		}

		select {
		case <-ctx.Done():
			s.cfg.Logger.Info("scheduler shutting down", "pending", s.PendingCount())
			return nil
		case <-s.wake:
		case <-timer:
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, d Dispatcher, j Job) {
	start := time.Now()
	result := "ok"

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.JobsInFlight.Inc()
		defer s.cfg.Metrics.JobsInFlight.Dec()
	}

	defer func() {
		if r := recover(); r != nil {
			result = "panic"
			s.cfg.Logger.Error("job panicked", "job_id", j.ID, "action", j.Type, "panic", r)
		}
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.JobResults.WithLabelValues(string(j.Type), result).Inc()
			s.cfg.Metrics.JobDuration.WithLabelValues(string(j.Type), result).Observe(time.Since(start).Seconds())
		}
	}()

	if err := d.Dispatch(ctx, j); err != nil {
		result = "error"
		s.cfg.Logger.Error("job failed", "job_id", j.ID, "action", j.Type, "err", err)
	}
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// min-heap by (FireAt, seq)

type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].FireAt.Equal(h[j].FireAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].FireAt.Before(h[j].FireAt)
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x any) {
	j := x.(*Job)
	j.index = len(*h)
	*h = append(*h, j)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.index = -1
	*h = old[:n-1]
	return j
}
