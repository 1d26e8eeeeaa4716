// Package streaming fans workflow events out to SSE/WebSocket subscribers
// and mirrors them to Redis Streams for consumers outside this process.
// Publishing is always best-effort: a slow subscriber or an unreachable
// Redis never affects workflow control flow.
package streaming

import (
	"encoding/json"
	"sync"
	"time"
)

// Event types emitted by the assessment workflow.
const (
	EventWorkflowStarted   = "WORKFLOW_STARTED"
	EventWorkflowCompleted = "WORKFLOW_COMPLETED"
	EventAgentStarted      = "AGENT_STARTED"
	EventAgentCompleted    = "AGENT_COMPLETED"
	EventAgentsCompleted   = "AGENTS_COMPLETED"
	EventErrorOccurred     = "ERROR_OCCURRED"
)

// Event is one assessment workflow event.
type Event struct {
	WorkflowID   string    `json:"workflow_id"`
	AssessmentID string    `json:"assessment_id"`
	Type         string    `json:"type"`
	Role         string    `json:"role,omitempty"`
	Status       string    `json:"status,omitempty"`
	Message      string    `json:"message,omitempty"`
	ElapsedMs    int64     `json:"elapsed_ms,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Seq          uint64    `json:"seq"`
}

// Marshal returns the event as JSON for SSE frames and stream entries.
func (e Event) Marshal() []byte {
	b, _ := json.Marshal(e)
	return b
}

// Sink receives every published event after sequencing. Used to mirror
// events to Redis Streams.
type Sink interface {
	Append(workflowID string, evt Event)
}

// Manager provides per-workflow pub/sub with a bounded replay ring.
// Constructed once and injected; there is no process-wide singleton.
type Manager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	history     map[string]*ring
	capacity    int
	sink        Sink
}

// NewManager creates a manager with the given replay capacity per workflow.
func NewManager(capacity int) *Manager {
	if capacity <= 0 {
		capacity = 256
	}
	return &Manager{
		subscribers: make(map[string]map[chan Event]struct{}),
		history:     make(map[string]*ring),
		capacity:    capacity,
	}
}

// SetSink attaches a mirror sink (e.g. Redis Streams). Must be called before
// the first Publish.
func (m *Manager) SetSink(s Sink) {
	m.mu.Lock()
	m.sink = s
	m.mu.Unlock()
}

// Subscribe adds a subscriber channel for a workflow; the caller must drain
// it and call Unsubscribe when done.
func (m *Manager) Subscribe(workflowID string, buffer int) chan Event {
	ch := make(chan Event, buffer)
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subscribers[workflowID]
	if subs == nil {
		subs = make(map[chan Event]struct{})
		m.subscribers[workflowID] = subs
	}
	subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes the subscriber channel.
func (m *Manager) Unsubscribe(workflowID string, ch chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if subs, ok := m.subscribers[workflowID]; ok {
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(m.subscribers, workflowID)
		}
	}
}

// Publish assigns a sequence number, records the event for replay, mirrors
// it to the sink, and delivers it to subscribers without blocking.
func (m *Manager) Publish(workflowID string, evt Event) {
	m.mu.Lock()
	rg := m.history[workflowID]
	if rg == nil {
		rg = newRing(m.capacity)
		m.history[workflowID] = rg
	}
	evt.Seq = rg.nextSeq
	rg.nextSeq++
	rg.push(evt)
	sink := m.sink
	m.mu.Unlock()

	if sink != nil {
		sink.Append(workflowID, evt)
	}

	// Deliver under the read lock. Subscribe and Unsubscribe mutate the
	// subscriber map and close channels only under the write lock, so the
	// iteration cannot race a map write and a send cannot hit a channel
	// mid-close. Sends stay non-blocking, so holding the lock here never
	// stalls on a slow subscriber.
	m.mu.RLock()
	for ch := range m.subscribers[workflowID] {
		select {
		case ch <- evt:
		default:
			// drop for slow subscribers
		}
	}
	m.mu.RUnlock()
}

// SubscriberCount reports how many subscribers a workflow currently has.
func (m *Manager) SubscriberCount(workflowID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers[workflowID])
}

// ReplaySince returns buffered events with Seq > since, best-effort within
// ring capacity.
func (m *Manager) ReplaySince(workflowID string, since uint64) []Event {
	m.mu.RLock()
	rg := m.history[workflowID]
	m.mu.RUnlock()
	if rg == nil {
		return nil
	}
	return rg.since(since)
}

type ring struct {
	buf     []Event
	start   int
	count   int
	nextSeq uint64
}

func newRing(capacity int) *ring { return &ring{buf: make([]Event, capacity)} }

func (r *ring) push(e Event) {
	if len(r.buf) == 0 {
		return
	}
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = e
		r.count++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) since(seq uint64) []Event {
	if r.count == 0 {
		return nil
	}
	out := make([]Event, 0, r.count)
	for i := 0; i < r.count; i++ {
		ev := r.buf[(r.start+i)%len(r.buf)]
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}
