package launcher

import (
	"fmt"
	"os"
	"strings"
)

// envBlocklist names development-editor-injected variables known to break
// child subprocesses (stale language-server sockets, inherited debugger
// pipes) when an agent CLI is launched from inside an editor's integrated
// terminal.
var envBlocklist = map[string]struct{}{
	"VSCODE_PID":               {},
	"VSCODE_CWD":               {},
	"VSCODE_IPC_HOOK":          {},
	"VSCODE_IPC_HOOK_CLI":      {},
	"TERM_PROGRAM":             {},
	"JPY_PARENT_PID":           {},
	"PYDEVD_USE_FRAME_EVAL":    {},
	"NODE_OPTIONS":             {},
}

// buildEnv constructs the environment for an agent subprocess: inherit the
// caller's environment minus blocklisted keys, prepend extra PATH entries,
// and inject the CADRE_* variables agents rely on.
func buildEnv(inv Invocation, extraPath []string) []string {
	base := os.Environ()
	env := make([]string, 0, len(base)+8)

	for _, kv := range base {
		key, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if _, blocked := envBlocklist[key]; blocked {
			continue
		}
		if key == "PATH" && len(extraPath) > 0 {
			env = append(env, "PATH="+strings.Join(extraPath, string(os.PathListSeparator))+string(os.PathListSeparator)+strings.TrimPrefix(kv, "PATH="))
			continue
		}
		env = append(env, kv)
	}

	env = append(env,
		fmt.Sprintf("CADRE_ISSUE_NUMBER=%d", inv.IssueNumber),
		fmt.Sprintf("CADRE_PHASE=%d", inv.Phase),
	)
	if inv.SessionID != "" {
		env = append(env, "CADRE_SESSION_ID="+inv.SessionID)
	}
	return env
}

// buildEnvWithWorktree is buildEnv plus CADRE_WORKTREE_PATH, split out
// because the launcher only knows the worktree path at call time (it is not
// part of Invocation, which is serializable for logging).
func buildEnvWithWorktree(inv Invocation, worktreePath string, extraPath []string) []string {
	env := buildEnv(inv, extraPath)
	if worktreePath != "" {
		env = append(env, "CADRE_WORKTREE_PATH="+worktreePath)
	}
	return env
}
