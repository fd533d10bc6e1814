package gitrepo

import (
	"context"
	"fmt"
	"strings"
)

// WorktreeEntry is one entry from `git worktree list --porcelain`.
type WorktreeEntry struct {
	Path   string
	Branch string // refs/heads/<name>, or empty for a detached worktree
	Head   string
}

// AddWorktree creates a new worktree at path, checking out a new branch
// named branchName from base. This is the exclusive creation point for an
// issue's isolated working directory; the caller (fleet orchestrator) owns
// invoking it exactly once per issue.
func (g *GitClient) AddWorktree(ctx context.Context, path, branchName, base string) error {
	args := []string{"worktree", "add", "-b", branchName, path}
	if base != "" {
		args = append(args, base)
	}
	if _, err := g.run(ctx, args...); err != nil {
		return fmt.Errorf("git: worktree add %q: %w", path, err)
	}
	return nil
}

// RemoveWorktree removes the worktree at path. force passes --force, which
// is required when the worktree has uncommitted changes.
func (g *GitClient) RemoveWorktree(ctx context.Context, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	if _, err := g.run(ctx, args...); err != nil {
		return fmt.Errorf("git: worktree remove %q: %w", path, err)
	}
	return nil
}

// ListWorktrees returns all worktrees known to the repository.
func (g *GitClient) ListWorktrees(ctx context.Context) ([]WorktreeEntry, error) {
	out, err := g.run(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("git: worktree list: %w", err)
	}
	return parseWorktreeList(out), nil
}

// parseWorktreeList parses `git worktree list --porcelain` output, which is
// a blank-line-separated sequence of "key value" records.
func parseWorktreeList(output string) []WorktreeEntry {
	var entries []WorktreeEntry
	var cur WorktreeEntry
	flush := func() {
		if cur.Path != "" {
			entries = append(entries, cur)
		}
		cur = WorktreeEntry{}
	}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			flush()
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		key := parts[0]
		val := ""
		if len(parts) == 2 {
			val = parts[1]
		}
		switch key {
		case "worktree":
			cur.Path = val
		case "HEAD":
			cur.Head = val
		case "branch":
			cur.Branch = val
		}
	}
	flush()
	return entries
}

// CommitAll stages all changes in the working tree and commits with message.
// Returns false (no error) if there was nothing to commit.
func (g *GitClient) CommitAll(ctx context.Context, message string) (bool, error) {
	dirty, err := g.HasUncommittedChanges(ctx)
	if err != nil {
		return false, fmt.Errorf("git: commit all: checking status: %w", err)
	}
	if !dirty {
		return false, nil
	}
	if _, err := g.run(ctx, "add", "-A"); err != nil {
		return false, fmt.Errorf("git: commit all: staging: %w", err)
	}
	if _, err := g.run(ctx, "commit", "-m", message); err != nil {
		return false, fmt.Errorf("git: commit all: %w", err)
	}
	return true, nil
}

// CommitsSince reports the number of commits reachable from HEAD but not
// from base, i.e. `git rev-list base..HEAD --count`.
func (g *GitClient) CommitsSince(ctx context.Context, base string) (int, error) {
	out, err := g.run(ctx, "rev-list", base+"..HEAD", "--count")
	if err != nil {
		return 0, fmt.Errorf("git: commits since %q: %w", base, err)
	}
	var n int
	if _, scanErr := fmt.Sscanf(strings.TrimSpace(out), "%d", &n); scanErr != nil {
		return 0, fmt.Errorf("git: commits since %q: parsing count %q: %w", base, out, scanErr)
	}
	return n, nil
}

// HasUnresolvedMergeMarkers reports whether any tracked file in the working
// tree still contains a git conflict marker (<<<<<<<, =======, >>>>>>>).
func (g *GitClient) HasUnresolvedMergeMarkers(ctx context.Context) (bool, error) {
	// grep exits 1 (no match) in the common case; treat that as "no markers"
	// rather than an error, and only surface genuine exec failures.
	exitCode, stdout, _, err := g.runSilent(ctx, "grep", "-lE", `^(<{7}|={7}|>{7})`, "--", ".")
	if err != nil && exitCode == -1 {
		return false, fmt.Errorf("git: merge marker scan: %w", err)
	}
	return strings.TrimSpace(stdout) != "", nil
}

// SquashTo resets the branch to a single commit against base, keeping the
// working tree contents, then re-commits with message. Used by PR
// composition's optional squashBeforePR option.
func (g *GitClient) SquashTo(ctx context.Context, base, message string) error {
	if _, err := g.run(ctx, "reset", "--soft", base); err != nil {
		return fmt.Errorf("git: squash to %q: reset: %w", base, err)
	}
	if _, err := g.run(ctx, "commit", "-m", message); err != nil {
		return fmt.Errorf("git: squash to %q: commit: %w", base, err)
	}
	return nil
}
