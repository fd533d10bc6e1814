package gitrepo

import (
	"context"
	"fmt"
)

// EnsureClean checks whether the working tree is clean. If dirty, it stashes
// the current changes and returns a cleanup function that pops the stash when
// called. If the tree is already clean, a no-op cleanup function is returned.
// Each call of a stash-popping cleanup pops the stash again, so it is called
// exactly once (typically via defer); a second call fails.
func (g *GitClient) EnsureClean(ctx context.Context) (cleanup func() error, err error) {
	stashed, err := g.Stash(ctx, "cadre: auto-stash before operation")
	if err != nil {
		return nil, fmt.Errorf("git: ensure clean: %w", err)
	}

	if !stashed {
		return func() error { return nil }, nil
	}

	return func() error {
		if popErr := g.StashPop(ctx); popErr != nil {
			return fmt.Errorf("git: ensure clean: restoring stash: %w", popErr)
		}
		return nil
	}, nil
}
