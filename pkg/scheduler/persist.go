package scheduler

import (
	"container/heap"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// persistLocked rewrites the task file atomically: marshal the live tasks,
// write a temp file, rename over the target. Callers hold the state lock.
// The file mirrors the by-id index, so tombstones never reach disk.
func (s *Scheduler) persistLocked() error {
	if s.file == "" {
		return nil
	}

	tasks := make([]Task, 0, len(s.byID))
	for _, task := range s.byID {
		tasks = append(tasks, *task)
	}
	sortTasks(tasks)

	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tasks: %w", err)
	}

	dir := filepath.Dir(s.file)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create task directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.file)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp task file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp task file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.file); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace task file: %w", err)
	}
	return nil
}

// reload reconstructs the heap and the by-id index from the task file.
// Tombstoned records are discarded. Returns the number of restored tasks.
func (s *Scheduler) reload() (int, error) {
	if s.file == "" {
		return 0, nil
	}

	data, err := os.ReadFile(s.file)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read task file: %w", err)
	}

	var tasks []Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return 0, fmt.Errorf("malformed task file %s: %w", s.file, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range tasks {
		task := tasks[i]
		if task.tombstoned() || task.ID == "" {
			continue
		}
		if _, dup := s.byID[task.ID]; dup {
			continue
		}
		s.seq++
		task.seq = s.seq
		t := task
		s.heap = append(s.heap, &t)
		s.byID[t.ID] = &t
	}
	heap.Init(&s.heap)
	for i, task := range s.heap {
		task.index = i
	}
	return len(s.byID), nil
}
