package queue

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"
)

type scheduledItem struct {
	deliverAt time.Time
	queueName string
	payload   Payload
}

// scheduledHeap is a min-heap ordered by deliverAt, used to hold delayed
// messages until they become deliverable.
type scheduledHeap []scheduledItem

func (h scheduledHeap) Len() int            { return len(h) }
func (h scheduledHeap) Less(i, j int) bool  { return h[i].deliverAt.Before(h[j].deliverAt) }
func (h scheduledHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scheduledHeap) Push(x interface{}) { *h = append(*h, x.(scheduledItem)) }
func (h *scheduledHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type deadMessage struct {
	payload Payload
	reason  string
}

// Memory is an in-process Queue used by the lifecycle/discovery unit
// tests. Delay is honored via a min-heap keyed on delivery time; a message
// consumed off the ready list moves to an in-flight map until acked or
// nacked, modeling the visibility-timeout-free ack/nack contract directly
// rather than a real broker's lease.
type Memory struct {
	mu        sync.Mutex
	ready     map[string][]Payload
	scheduled scheduledHeap
	inflight  map[string]Payload
	dead      map[string][]deadMessage
	nextID    uint64
}

func NewMemory() *Memory {
	return &Memory{
		ready:    make(map[string][]Payload),
		inflight: make(map[string]Payload),
		dead:     make(map[string][]deadMessage),
	}
}

func (m *Memory) Enqueue(_ context.Context, queueName string, payload Payload, delay time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if delay <= 0 {
		m.ready[queueName] = append(m.ready[queueName], payload)
		return nil
	}
	heap.Push(&m.scheduled, scheduledItem{
		deliverAt: time.Now().Add(delay),
		queueName: queueName,
		payload:   payload,
	})
	return nil
}

// promoteDue moves any scheduled message whose delay has elapsed onto its
// queue's ready list. Callers hold m.mu.
func (m *Memory) promoteDue() {
	now := time.Now()
	for m.scheduled.Len() > 0 && !m.scheduled[0].deliverAt.After(now) {
		item := heap.Pop(&m.scheduled).(scheduledItem)
		m.ready[item.queueName] = append(m.ready[item.queueName], item.payload)
	}
}

func (m *Memory) Consume(_ context.Context, queueName string) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promoteDue()

	items := m.ready[queueName]
	if len(items) == 0 {
		return nil, ErrNoData
	}
	payload := items[0]
	m.ready[queueName] = items[1:]

	m.nextID++
	handle := fmt.Sprintf("%s:%d", queueName, m.nextID)
	m.inflight[handle] = payload
	return &Message{Payload: payload, Handle: handle}, nil
}

func (m *Memory) Ack(_ context.Context, _ string, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, handle)
	return nil
}

func (m *Memory) Nack(_ context.Context, queueName string, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.inflight[handle]
	if !ok {
		return nil
	}
	delete(m.inflight, handle)
	m.ready[queueName] = append(m.ready[queueName], payload)
	return nil
}

func (m *Memory) SendToDeadLetter(_ context.Context, queueName string, handle string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.inflight[handle]
	if !ok {
		return nil
	}
	delete(m.inflight, handle)
	m.dead[queueName] = append(m.dead[queueName], deadMessage{payload: payload, reason: reason})
	return nil
}

// DeadLettered exposes dead-lettered payloads for a queue, for test
// assertions.
func (m *Memory) DeadLettered(queueName string) []Payload {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Payload, 0, len(m.dead[queueName]))
	for _, d := range m.dead[queueName] {
		out = append(out, d.payload)
	}
	return out
}

// ReadyLen reports the number of immediately-deliverable messages on a
// queue, promoting any scheduled messages whose delay has elapsed first.
func (m *Memory) ReadyLen(queueName string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promoteDue()
	return len(m.ready[queueName])
}
