package gitrepo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddListRemoveWorktree(t *testing.T) {
	ctx := context.Background()
	g := newTestRepo(t)

	wtPath := filepath.Join(t.TempDir(), "issue-42")
	require.NoError(t, g.AddWorktree(ctx, wtPath, "cadre/42-fix", ""))

	entries, err := g.ListWorktrees(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2) // main worktree + the new one

	var found bool
	for _, e := range entries {
		if e.Path == wtPath {
			found = true
			assert.Contains(t, e.Branch, "cadre/42-fix")
		}
	}
	assert.True(t, found, "expected new worktree in list")

	require.NoError(t, g.RemoveWorktree(ctx, wtPath, true))

	entries, err = g.ListWorktrees(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCommitAll(t *testing.T) {
	ctx := context.Background()
	g := newTestRepo(t)

	committed, err := g.CommitAll(ctx, "chore: nothing to commit")
	require.NoError(t, err)
	assert.False(t, committed, "clean tree should not commit")

	require.NoError(t, os.WriteFile(filepath.Join(g.WorkDir, "new.txt"), []byte("x"), 0o644))

	committed, err = g.CommitAll(ctx, "feat: add new.txt")
	require.NoError(t, err)
	assert.True(t, committed)

	clean, err := g.IsClean(ctx)
	require.NoError(t, err)
	assert.True(t, clean)
}

func TestCommitsSince(t *testing.T) {
	ctx := context.Background()
	g := newTestRepo(t)

	base, err := g.HeadCommit(ctx)
	require.NoError(t, err)

	n, err := g.CommitsSince(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, os.WriteFile(filepath.Join(g.WorkDir, "a.txt"), []byte("a"), 0o644))
	_, err = g.CommitAll(ctx, "feat: a")
	require.NoError(t, err)

	n, err = g.CommitsSince(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHasUnresolvedMergeMarkers(t *testing.T) {
	ctx := context.Background()
	g := newTestRepo(t)

	clean, err := g.HasUnresolvedMergeMarkers(ctx)
	require.NoError(t, err)
	assert.False(t, clean)

	require.NoError(t, os.WriteFile(filepath.Join(g.WorkDir, "conflict.txt"),
		[]byte("<<<<<<< HEAD\nours\n=======\ntheirs\n>>>>>>> branch\n"), 0o644))
	mustRun(t, g.WorkDir, "git", "add", "conflict.txt")

	hasMarkers, err := g.HasUnresolvedMergeMarkers(ctx)
	require.NoError(t, err)
	assert.True(t, hasMarkers)
}
