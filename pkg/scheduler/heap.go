package scheduler

import (
	"container/heap"
	"sort"
)

// taskHeap is a min-heap ordered by (timestamp, priority, insertion order).
// Lower priority values fire first. Tombstones (timestamp zero) sink to the
// top and are skipped on pop.
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].Timestamp != h[j].Timestamp {
		return h[i].Timestamp < h[j].Timestamp
	}
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	task := x.(*Task)
	task.index = len(*h)
	*h = append(*h, task)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	task := old[n-1]
	old[n-1] = nil // avoid memory leak
	task.index = -1
	*h = old[:n-1]
	return task
}

// push and pop wrap container/heap; callers hold the scheduler lock.
func (s *Scheduler) push(task *Task) {
	heap.Push(&s.heap, task)
}

func (s *Scheduler) pop() *Task {
	return heap.Pop(&s.heap).(*Task)
}

// sortTasks orders a snapshot the same way the heap does.
func sortTasks(tasks []Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].Timestamp != tasks[j].Timestamp {
			return tasks[i].Timestamp < tasks[j].Timestamp
		}
		if tasks[i].Priority != tasks[j].Priority {
			return tasks[i].Priority < tasks[j].Priority
		}
		return tasks[i].seq < tasks[j].seq
	})
}
