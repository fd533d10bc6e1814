// Package notify provides a minimal, non-blocking event sink used to
// forward pipeline events (phase completions, gate results, budget
// warnings) without coupling producers to a concrete transport.
package notify

import (
	"time"

	"github.com/AbdelazizMoustafa10m/cadre/internal/budget"
)

// EventType identifies the kind of lifecycle event being reported.
type EventType string

const (
	EventPhaseStarted    EventType = "phase_started"
	EventPhaseCompleted  EventType = "phase_completed"
	EventPhaseFailed     EventType = "phase_failed"
	EventGateResult      EventType = "gate_result"
	EventTaskCompleted   EventType = "task_completed"
	EventTaskBlocked     EventType = "task_blocked"
	EventBudgetWarning   EventType = "budget_warning"
	EventIssueCompleted  EventType = "issue_completed"
	EventIssueFailed     EventType = "issue_failed"
	EventCheckpointSaved EventType = "checkpoint_saved"
)

// Event is a structured message describing one pipeline occurrence.
type Event struct {
	Type      EventType
	Issue     int
	Phase     int
	Message   string
	Timestamp time.Time
}

// Sink receives events. Implementations must not block the caller for long
// — Manager.Emit calls each sink's Notify synchronously, so a slow sink
// delays every emitter; ForwardingSink is the sink that never blocks on a
// full buffer.
type Sink interface {
	Notify(Event)
}

// Manager fans a single stream of events out to zero or more sinks. Each
// issue orchestrator owns a private Manager; the fleet orchestrator wires
// its own Manager in as one of the issue's sinks so fleet-level observers
// see every issue's events without the issue layer holding a back-reference
// to the fleet.
type Manager struct {
	sinks []Sink
}

// NewManager creates a Manager forwarding to the given sinks.
func NewManager(sinks ...Sink) *Manager {
	return &Manager{sinks: sinks}
}

// Add registers an additional sink.
func (m *Manager) Add(s Sink) {
	m.sinks = append(m.sinks, s)
}

// Emit delivers ev to every registered sink. Per-sink delivery never blocks
// the caller: ForwardingSink instances already buffer internally, and a
// direct Sink implementation is expected to do the same.
func (m *Manager) Emit(ev Event) {
	for _, s := range m.sinks {
		s.Notify(ev)
	}
}

// Notify implements Sink, letting one Manager be registered as a sink of
// another. The fleet orchestrator uses this to receive every issue's events
// without the issue layer holding a back-reference to the fleet: each issue
// constructs its own private Manager and adds the fleet's Manager as one of
// its sinks.
func (m *Manager) Notify(ev Event) {
	m.Emit(ev)
}

// ForwardingSink relays events onto a buffered channel without blocking the
// producer: a full buffer drops the event rather than stalling the pipeline,
// mirroring the engine's own best-effort event emission.
type ForwardingSink struct {
	events chan Event
}

// NewForwardingSink creates a ForwardingSink with the given buffer size.
func NewForwardingSink(buffer int) *ForwardingSink {
	return &ForwardingSink{events: make(chan Event, buffer)}
}

// Notify implements Sink.
func (f *ForwardingSink) Notify(ev Event) {
	select {
	case f.events <- ev:
	default:
	}
}

// Events returns the channel consumers should range over.
func (f *ForwardingSink) Events() <-chan Event {
	return f.events
}

// BudgetNotifier adapts a Manager to budget.Notifier so a Guard can emit
// warning events through the same channel as everything else.
type BudgetNotifier struct {
	Manager *Manager
}

// Notify implements budget.Notifier.
func (b *BudgetNotifier) Notify(ev budget.WarningEvent) {
	b.Manager.Emit(Event{
		Type:      EventBudgetWarning,
		Issue:     ev.Issue,
		Message:   "token budget warning threshold crossed",
		Timestamp: time.Now(),
	})
}
