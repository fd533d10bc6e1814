// Package platform defines the repository-platform provider contract the
// orchestration core calls through — issue/PR reads, PR writes, review
// threads — plus a gh-CLI-backed adapter. The contract is deliberately
// external-facing: higher layers depend only on Provider, never on gh
// directly, so a different backend (GitLab, a REST client) can be swapped
// in without touching the orchestrator.
package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
)

// ErrNotConnected is returned by every Provider method except Connect when
// called before a successful Connect.
var ErrNotConnected = errors.New("platform: provider is not connected")

// IssueFilter narrows ListIssues. A zero value lists every open issue.
type IssueFilter struct {
	State  string // "open" | "closed" | "" (defaults to "open")
	Labels []string
}

// PullRequestFilter narrows ListPullRequests.
type PullRequestFilter struct {
	State string // "open" | "closed" | "merged" | "" (defaults to "open")
	Head  string // branch name
}

// CreatePullRequestRequest describes a PR to open.
type CreatePullRequestRequest struct {
	Title     string
	Body      string
	Head      string
	Base      string
	Draft     bool
	Labels    []string
	Reviewers []string
}

// PullRequestPatch is a partial update; nil fields are left unchanged.
type PullRequestPatch struct {
	Title *string
	Body  *string
}

// PullRequest is a provider-agnostic snapshot of a pull request.
type PullRequest struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	State  string `json:"state"`
	Head   string `json:"head"`
	Base   string `json:"base"`
	Draft  bool   `json:"draft"`
}

// ReviewThread is one review comment thread on a pull request.
type ReviewThread struct {
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Path      string    `json:"path"`
	Line      int       `json:"line"`
	Resolved  bool      `json:"resolved"`
	CreatedAt time.Time `json:"createdAt"`
}

// Provider is the repository-platform contract the orchestration core calls
// through. Every operation other than Connect must fail with ErrNotConnected
// if called before Connect succeeds.
type Provider interface {
	Connect(ctx context.Context) error

	GetIssue(ctx context.Context, number int) (cadretype.Issue, error)
	ListIssues(ctx context.Context, filter IssueFilter) ([]cadretype.Issue, error)
	AddIssueComment(ctx context.Context, number int, body string) error

	CreatePullRequest(ctx context.Context, req CreatePullRequestRequest) (PullRequest, error)
	UpdatePullRequest(ctx context.Context, number int, patch PullRequestPatch) error
	ListPullRequests(ctx context.Context, filter PullRequestFilter) ([]PullRequest, error)
	ListPRReviewComments(ctx context.Context, number int) ([]ReviewThread, error)
	FindOpenPR(ctx context.Context, issueNumber int, branch string) (*PullRequest, error)

	// IssueLinkSuffix returns the text pr-composer appends to a PR body to
	// link it back to the originating issue (e.g. "\n\nCloses #42").
	IssueLinkSuffix(number int) string
}

// connectionError wraps an operation attempted before Connect with context
// about which call was rejected.
func connectionError(op string) error {
	return fmt.Errorf("platform: %s: %w", op, ErrNotConnected)
}
