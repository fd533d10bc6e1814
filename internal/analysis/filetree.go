package analysis

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// alwaysExcluded is prepended to every Options.ExcludeGlobs set: the
// orchestrator's own progress/checkpoint state is never part of the
// repository the agents are asked to reason about.
var alwaysExcluded = []string{".cadre/**", ".git/**"}

// writeFileTree walks root and writes the worktree-relative path of every
// regular file not matched by an exclude glob, one per line, to dest.
func writeFileTree(root, dest string, excludeGlobs []string) error {
	patterns := append(append([]string{}, alwaysExcluded...), excludeGlobs...)

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if excluded(rel, patterns) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return fmt.Errorf("analysis: walking worktree: %w", err)
	}

	sort.Strings(paths)
	return os.WriteFile(dest, []byte(strings.Join(paths, "\n")+"\n"), 0o644)
}

// excluded reports whether rel matches any of patterns, checked both as a
// direct doublestar match and against every path prefix so a directory-level
// pattern like ".git/**" also excludes the directory entry itself.
func excluded(rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		base := strings.TrimSuffix(p, "/**")
		if base != p && (rel == base || strings.HasPrefix(rel, base+"/")) {
			return true
		}
	}
	return false
}
