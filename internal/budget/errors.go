package budget

import "fmt"

// BudgetExceededError is returned by Guard.Check once an issue's token
// consumption has crossed its configured budget. It is recognized by the
// retry executor as non-retryable: propagating it immediately rather than
// burning further attempts.
type BudgetExceededError struct {
	Issue  int
	Used   int
	Budget int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget: issue #%d exceeded token budget (%d/%d)", e.Issue, e.Used, e.Budget)
}
