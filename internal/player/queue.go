package player

import "sync"

// runQueue executes tasks one at a time in submission order. Tasks
// enqueued while another runs, including from inside the running task,
// execute after it returns. The first task of a burst runs on the
// goroutine that submitted it and drains whatever piles up behind it.
type runQueue struct {
	mu      sync.Mutex
	tasks   []func()
	running bool
}

func (q *runQueue) do(task func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()

	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		next := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		next()
	}
}
