package taskqueue

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

const defaultMemoryBlock = time.Second

// DeadTask is a dead-lettered task with the failure that ended it.
type DeadTask struct {
	Task  *Task
	Cause string
}

// Memory is an in-process queue. Enqueued tasks are copied, so callers may
// reuse their values.
type Memory struct {
	mu       sync.Mutex
	block    time.Duration
	queues   map[string][]*Task
	signals  map[string]chan struct{}
	inflight map[string]*Task
	dead     map[string][]DeadTask
	seq      uint64
	closed   bool
}

// NewMemory returns an empty in-memory queue. block bounds how long Receive
// waits for a task.
func NewMemory(block time.Duration) *Memory {
	if block <= 0 {
		block = defaultMemoryBlock
	}
	return &Memory{
		block:    block,
		queues:   make(map[string][]*Task),
		signals:  make(map[string]chan struct{}),
		inflight: make(map[string]*Task),
		dead:     make(map[string][]DeadTask),
	}
}

func (m *Memory) signal(queue string) chan struct{} {
	ch, ok := m.signals[queue]
	if !ok {
		ch = make(chan struct{})
		m.signals[queue] = ch
	}
	return ch
}

// wake releases receivers waiting on queue. Callers hold m.mu.
func (m *Memory) wake(queue string) {
	if ch, ok := m.signals[queue]; ok {
		close(ch)
		delete(m.signals, queue)
	}
}

func (m *Memory) Enqueue(ctx context.Context, task *Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if task == nil || task.Queue == "" {
		return fmt.Errorf("enqueue: task without queue")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	copied := *task
	m.queues[task.Queue] = append(m.queues[task.Queue], &copied)
	m.wake(task.Queue)
	return nil
}

func (m *Memory) Receive(ctx context.Context, queue string) (*Delivery, error) {
	timer := time.NewTimer(m.block)
	defer timer.Stop()
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}
		if pending := m.queues[queue]; len(pending) > 0 {
			task := pending[0]
			m.queues[queue] = pending[1:]
			m.seq++
			ref := strconv.FormatUint(m.seq, 10)
			m.inflight[ref] = task
			m.mu.Unlock()
			return &Delivery{Task: task, ref: ref}, nil
		}
		wait := m.signal(queue)
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-wait:
		}
	}
}

func (m *Memory) settle(d *Delivery) error {
	if d == nil {
		return fmt.Errorf("settle: nil delivery")
	}
	if _, ok := m.inflight[d.ref]; !ok {
		return fmt.Errorf("delivery %s is not in flight", d.ref)
	}
	delete(m.inflight, d.ref)
	return nil
}

func (m *Memory) Ack(_ context.Context, d *Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settle(d)
}

func (m *Memory) Retry(_ context.Context, d *Delivery, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.settle(d); err != nil {
		return err
	}
	if m.closed {
		return ErrClosed
	}
	next := d.Task.retryCopy(cause)
	m.queues[next.Queue] = append(m.queues[next.Queue], next)
	m.wake(next.Queue)
	return nil
}

func (m *Memory) DeadLetter(_ context.Context, d *Delivery, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.settle(d); err != nil {
		return err
	}
	entry := DeadTask{Task: d.Task}
	if cause != nil {
		entry.Cause = cause.Error()
	}
	m.dead[d.Task.Queue] = append(m.dead[d.Task.Queue], entry)
	return nil
}

func (m *Memory) Len(_ context.Context, queue string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.queues[queue])), nil
}

// InFlight returns the number of received but unsettled deliveries.
func (m *Memory) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight)
}

// DeadLetters returns the dead-lettered tasks for queue.
func (m *Memory) DeadLetters(queue string) []DeadTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DeadTask(nil), m.dead[queue]...)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for queue := range m.signals {
		m.wake(queue)
	}
	return nil
}
