package fleetorch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/AbdelazizMoustafa10m/cadre/internal/cadretype"
	"github.com/AbdelazizMoustafa10m/cadre/internal/gitrepo"
)

var nonAlphanumRE = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lowercases s and collapses runs of non-alphanumeric characters
// into single hyphens, trimming leading/trailing hyphens.
func slugify(s string) string {
	s = strings.ToLower(s)
	s = nonAlphanumRE.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// GitWorktreeProvider is the default WorktreeProvider: one `git worktree`
// per issue under worktreeRoot, named from branchTemplate ({issue}, {title}
// tokens), with a matching progress directory for the issue's checkpoint
// and phase outputs. Re-running against an issue whose worktree already
// exists on disk is a no-op — Provision is safe to call on resume.
type GitWorktreeProvider struct {
	client         *gitrepo.GitClient
	worktreeRoot   string
	progressRoot   string
	branchTemplate string
	baseBranch     string
}

// NewGitWorktreeProvider constructs a GitWorktreeProvider. An empty
// branchTemplate defaults to "cadre/{issue}-{title}"; an empty baseBranch
// defaults to "main".
func NewGitWorktreeProvider(client *gitrepo.GitClient, worktreeRoot, progressRoot, branchTemplate, baseBranch string) *GitWorktreeProvider {
	if branchTemplate == "" {
		branchTemplate = "cadre/{issue}-{title}"
	}
	if baseBranch == "" {
		baseBranch = "main"
	}
	return &GitWorktreeProvider{
		client:         client,
		worktreeRoot:   worktreeRoot,
		progressRoot:   progressRoot,
		branchTemplate: branchTemplate,
		baseBranch:     baseBranch,
	}
}

// ResolveBranchName applies {issue} and {title} template substitution,
// slugifying the title.
func (p *GitWorktreeProvider) ResolveBranchName(issue cadretype.Issue) string {
	r := strings.NewReplacer(
		"{issue}", strconv.Itoa(issue.Number),
		"{title}", slugify(issue.Title),
	)
	return r.Replace(p.branchTemplate)
}

// Provision implements WorktreeProvider.
func (p *GitWorktreeProvider) Provision(ctx context.Context, issue cadretype.Issue) (ProvisionedWorktree, error) {
	path := filepath.Join(p.worktreeRoot, fmt.Sprintf("issue-%d", issue.Number))
	progressDir := filepath.Join(p.progressRoot, strconv.Itoa(issue.Number))
	branch := p.ResolveBranchName(issue)

	if err := os.MkdirAll(progressDir, 0o755); err != nil {
		return ProvisionedWorktree{}, fmt.Errorf("fleetorch: preparing progress dir for issue #%d: %w", issue.Number, err)
	}

	if _, err := os.Stat(path); err == nil {
		return ProvisionedWorktree{Path: path, Branch: branch, ProgressDir: progressDir}, nil
	} else if !os.IsNotExist(err) {
		return ProvisionedWorktree{}, fmt.Errorf("fleetorch: checking worktree for issue #%d: %w", issue.Number, err)
	}

	if err := p.client.AddWorktree(ctx, path, branch, p.baseBranch); err != nil {
		return ProvisionedWorktree{}, fmt.Errorf("fleetorch: adding worktree for issue #%d: %w", issue.Number, err)
	}

	return ProvisionedWorktree{Path: path, Branch: branch, ProgressDir: progressDir}, nil
}
