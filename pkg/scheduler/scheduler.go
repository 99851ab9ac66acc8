// Package scheduler implements the durable priority time-queue that drives
// timed agent work. Tasks are ordered by (timestamp, priority, insertion
// order), mirrored to a JSON file on every mutation, and handed to an
// Executor (the overseer) when due.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/berinia/berinia/pkg/config"
)

// TaskData describes what to run when a task fires.
type TaskData struct {
	TargetAgent string         `json:"target_agent" mapstructure:"target_agent"`
	Action      string         `json:"action" mapstructure:"action"`
	Params      map[string]any `json:"params,omitempty" mapstructure:"params"`
}

// Task is one scheduled unit of work. A Timestamp of zero marks a tombstone:
// the task was cancelled in place and is skipped on pop and dropped on
// persistence and reload.
type Task struct {
	ID        string   `json:"task_id"`
	Timestamp int64    `json:"timestamp"`
	Priority  int      `json:"priority"`
	Data      TaskData `json:"task_data"`
	Recurring bool     `json:"recurring,omitempty"`
	IntervalS int64    `json:"recurrence_interval_s,omitempty"`

	seq   uint64
	index int
}

func (t *Task) tombstoned() bool { return t.Timestamp == 0 }

// Executor runs a due task and returns the agent-style result record.
type Executor func(ctx context.Context, data TaskData) map[string]any

// Options refine a Schedule call. The zero value means: fresh id, priority
// from config, one-shot.
type Options struct {
	TaskID    string
	Priority  *int
	Recurring bool
	Interval  time.Duration
}

// Scheduler owns the in-memory heap, the by-id index and the task file. One
// lock serializes every mutation; log emission always happens after the lock
// is released.
type Scheduler struct {
	mu   sync.Mutex
	heap taskHeap
	byID map[string]*Task
	seq  uint64

	file            string
	checkInterval   time.Duration
	defaultPriority int
	exec            Executor

	runMu   sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// New builds a scheduler and reloads any persisted tasks. Tombstones in the
// file are discarded during reload.
func New(cfg config.SchedulerConfig, exec Executor) (*Scheduler, error) {
	if exec == nil {
		return nil, fmt.Errorf("scheduler requires an executor")
	}

	s := &Scheduler{
		byID:            make(map[string]*Task),
		file:            cfg.TasksFile,
		checkInterval:   time.Duration(cfg.CheckIntervalS) * time.Second,
		defaultPriority: cfg.DefaultPriority,
		exec:            exec,
	}
	if s.checkInterval <= 0 {
		s.checkInterval = time.Second
	}
	if s.defaultPriority == 0 {
		s.defaultPriority = 5
	}

	restored, err := s.reload()
	if err != nil {
		return nil, err
	}
	if restored > 0 {
		slog.Info("scheduler restored tasks", "count", restored, "file", s.file)
	}
	return s, nil
}

// Schedule queues a task to fire at or after the given instant and persists
// the queue. It returns the task id.
func (s *Scheduler) Schedule(data TaskData, at time.Time, opts Options) (string, error) {
	if data.TargetAgent == "" {
		return "", fmt.Errorf("task requires a target agent")
	}
	if opts.Recurring && opts.Interval <= 0 {
		return "", fmt.Errorf("recurring task requires a positive interval")
	}

	id := opts.TaskID
	if id == "" {
		id = uuid.New().String()
	}
	priority := s.defaultPriority
	if opts.Priority != nil {
		priority = *opts.Priority
	}

	s.mu.Lock()
	if _, exists := s.byID[id]; exists {
		s.mu.Unlock()
		return "", fmt.Errorf("task %s already scheduled", id)
	}

	s.seq++
	task := &Task{
		ID:        id,
		Timestamp: at.Unix(),
		Priority:  priority,
		Data:      data,
		Recurring: opts.Recurring,
		IntervalS: int64(opts.Interval / time.Second),
		seq:       s.seq,
	}
	s.push(task)
	s.byID[id] = task
	err := s.persistLocked()
	s.mu.Unlock()

	if err != nil {
		return "", err
	}

	slog.Info("task scheduled",
		"task_id", id,
		"target_agent", data.TargetAgent,
		"action", data.Action,
		"at", at.Unix(),
		"recurring", opts.Recurring)
	return id, nil
}

// Cancel tombstones a not-yet-started task so it never fires. The heap entry
// is invalidated in place and skipped on pop; the by-id index and the task
// file drop it immediately.
func (s *Scheduler) Cancel(taskID string) error {
	s.mu.Lock()
	task, ok := s.byID[taskID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown task: %s", taskID)
	}
	task.Timestamp = 0
	delete(s.byID, taskID)
	err := s.persistLocked()
	s.mu.Unlock()

	if err != nil {
		return err
	}

	slog.Info("task cancelled", "task_id", taskID)
	return nil
}

// ListPending returns a snapshot of live tasks sorted by
// (timestamp, priority, insertion order).
func (s *Scheduler) ListPending() []Task {
	s.mu.Lock()
	out := make([]Task, 0, len(s.byID))
	for _, task := range s.byID {
		out = append(out, *task)
	}
	s.mu.Unlock()

	sortTasks(out)
	return out
}

// Len returns the number of live tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Start launches the worker. Idempotent.
func (s *Scheduler) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.worker(ctx, s.stop, s.done)
	slog.Info("scheduler started", "check_interval", s.checkInterval.String())
}

// Stop signals the worker to exit and waits for it. Idempotent.
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if !s.running {
		return
	}
	close(s.stop)
	<-s.done
	s.running = false
	slog.Info("scheduler stopped")
}

func (s *Scheduler) worker(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runDue(ctx, time.Now())
		}
	}
}

// runDue pops every task whose timestamp has passed and executes it. The
// state lock covers only the pop and reschedule; execution and logging
// happen outside it.
func (s *Scheduler) runDue(ctx context.Context, now time.Time) {
	due := s.popDue(now)

	for _, task := range due {
		result := s.exec(ctx, task.Data)
		if status, _ := result["status"].(string); status != "success" {
			msg, _ := result["message"].(string)
			slog.Error("scheduled task failed",
				"task_id", task.ID,
				"target_agent", task.Data.TargetAgent,
				"action", task.Data.Action,
				"error", msg)
			continue
		}
		slog.Info("scheduled task executed",
			"task_id", task.ID,
			"target_agent", task.Data.TargetAgent,
			"action", task.Data.Action)
	}
}

func (s *Scheduler) popDue(now time.Time) []Task {
	s.mu.Lock()

	var due []Task
	cutoff := now.Unix()
	mutated := false

	for s.heap.Len() > 0 {
		top := s.heap[0]
		if top.tombstoned() {
			s.pop()
			mutated = true
			continue
		}
		if top.Timestamp > cutoff {
			break
		}

		task := s.pop()
		mutated = true
		if _, live := s.byID[task.ID]; !live {
			continue
		}

		due = append(due, *task)

		if task.Recurring {
			// Next fire is the previous scheduled time plus the interval,
			// not now plus the interval: cadence is preserved.
			task.Timestamp += task.IntervalS
			s.seq++
			task.seq = s.seq
			s.push(task)
		} else {
			delete(s.byID, task.ID)
		}
	}

	var persistErr error
	if mutated {
		persistErr = s.persistLocked()
	}
	s.mu.Unlock()

	if persistErr != nil {
		slog.Error("failed to persist task file", "error", persistErr)
	}
	return due
}
