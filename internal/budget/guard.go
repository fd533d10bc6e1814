package budget

import "sync"

// WarningEvent is what a Guard emits the first time an issue crosses its
// warning threshold. Carried opaquely to whatever Notifier the caller wired
// up, so this package has no dependency on the notification substrate.
type WarningEvent struct {
	Issue    int
	Used     int
	Budget   int
	Fraction float64
}

// Notifier receives budget-warning events. internal/notify's BudgetNotifier satisfies
// this with a single method, kept minimal here to avoid an import cycle.
type Notifier interface {
	Notify(WarningEvent)
}

// Guard wraps a Tracker with per-issue budget enforcement: a one-shot
// warning at 80% and a latched exceeded flag at 100% that Check() turns into
// a BudgetExceededError on every subsequent call for that issue.
type Guard struct {
	tracker  *Tracker
	budget   int
	notifier Notifier

	mu       sync.Mutex
	warned   map[int]bool
	exceeded map[int]bool
}

// NewGuard creates a Guard over tracker enforcing budget tokens per issue.
// A budget <= 0 means unlimited. notifier may be nil, in which case warning
// events are simply not delivered.
func NewGuard(tracker *Tracker, budget int, notifier Notifier) *Guard {
	return &Guard{
		tracker:  tracker,
		budget:   budget,
		notifier: notifier,
		warned:   make(map[int]bool),
		exceeded: make(map[int]bool),
	}
}

// Record adds n tokens for issue/agent/phase and re-evaluates the issue's
// threshold state. Callers should record immediately after every agent
// invocation, then call Check before the next one.
func (g *Guard) Record(issue int, agent string, phase int, n int) {
	g.tracker.Record(issue, agent, phase, n)
	g.evaluate(issue)
}

func (g *Guard) evaluate(issue int) {
	status := g.tracker.CheckIssueBudget(issue, g.budget)

	g.mu.Lock()
	defer g.mu.Unlock()

	if status.Exceeded {
		g.exceeded[issue] = true
		return
	}
	if status.Warning && !g.warned[issue] {
		g.warned[issue] = true
		if g.notifier != nil {
			g.notifier.Notify(WarningEvent{
				Issue:    issue,
				Used:     status.Used,
				Budget:   g.budget,
				Fraction: status.Fraction,
			})
		}
	}
}

// Check returns BudgetExceededError if issue's budget has been exceeded by
// any prior Record call. Callers sprinkle Check before and after each agent
// launch per the pipeline's budget discipline.
func (g *Guard) Check(issue int) error {
	g.mu.Lock()
	exceeded := g.exceeded[issue]
	g.mu.Unlock()
	if !exceeded {
		return nil
	}
	return &BudgetExceededError{
		Issue:  issue,
		Used:   g.tracker.IssueTotal(issue),
		Budget: g.budget,
	}
}

// Tracker returns the underlying token tracker, for callers that need raw
// usage snapshots (e.g. checkpoint persistence).
func (g *Guard) Tracker() *Tracker {
	return g.tracker
}
