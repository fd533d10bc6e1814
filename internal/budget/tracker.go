// Package budget tracks per-issue token consumption and enforces
// warning/exceeded thresholds around agent invocations.
package budget

import (
	"sync"
)

// Usage is a running token total broken down by issue, agent, and phase.
type Usage struct {
	Total   int
	ByIssue map[int]int
	ByAgent map[string]int
	ByPhase map[int]int
}

// Tracker accumulates token usage across every agent invocation in a run.
// It is safe for concurrent use: phase 3 launches agents from multiple
// goroutines and all of them record against the same tracker.
type Tracker struct {
	mu      sync.Mutex
	total   int
	byIssue map[int]int
	byAgent map[string]int
	byPhase map[int]int
}

// NewTracker creates an empty token tracker.
func NewTracker() *Tracker {
	return &Tracker{
		byIssue: make(map[int]int),
		byAgent: make(map[string]int),
		byPhase: make(map[int]int),
	}
}

// Record adds n tokens to the running totals for issue/agent/phase. A
// negative or zero n is a no-op.
func (t *Tracker) Record(issue int, agent string, phase int, n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total += n
	t.byIssue[issue] += n
	t.byAgent[agent] += n
	t.byPhase[phase] += n
}

// Usage returns a snapshot of the current totals.
func (t *Tracker) Usage() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	u := Usage{
		Total:   t.total,
		ByIssue: make(map[int]int, len(t.byIssue)),
		ByAgent: make(map[string]int, len(t.byAgent)),
		ByPhase: make(map[int]int, len(t.byPhase)),
	}
	for k, v := range t.byIssue {
		u.ByIssue[k] = v
	}
	for k, v := range t.byAgent {
		u.ByAgent[k] = v
	}
	for k, v := range t.byPhase {
		u.ByPhase[k] = v
	}
	return u
}

// IssueTotal returns the running token total for a single issue.
func (t *Tracker) IssueTotal(issue int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byIssue[issue]
}

// BudgetStatus reports where an issue's consumption sits relative to its
// configured budget.
type BudgetStatus struct {
	OK       bool
	Warning  bool
	Exceeded bool
	Used     int
	Budget   int
	Fraction float64
}

const (
	// WarningThreshold is the fraction of budget at which a warning fires.
	WarningThreshold = 0.8
	// ExceededThreshold is the fraction of budget at which the budget is
	// considered exhausted.
	ExceededThreshold = 1.0
)

// CheckIssueBudget compares an issue's running total against budget and
// classifies it as ok, warning (>=80%), or exceeded (>=100%). A budget of 0
// or less means unlimited: always ok.
func (t *Tracker) CheckIssueBudget(issue int, budget int) BudgetStatus {
	used := t.IssueTotal(issue)
	if budget <= 0 {
		return BudgetStatus{OK: true, Used: used, Budget: budget}
	}
	fraction := float64(used) / float64(budget)
	status := BudgetStatus{Used: used, Budget: budget, Fraction: fraction}
	switch {
	case fraction >= ExceededThreshold:
		status.Exceeded = true
	case fraction >= WarningThreshold:
		status.Warning = true
		status.OK = true
	default:
		status.OK = true
	}
	return status
}
