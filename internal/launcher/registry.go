package launcher

import (
	"os/exec"
	"sync"
)

// ProcessRegistry is the process-wide set of in-flight agent subprocesses.
// This is the one sanctioned ambient global in the design: the registry
// must be process-wide because a signal handler needs to see every child
// regardless of which issue spawned it. Everything else flows through
// RuntimeConfig threaded into constructors.
type ProcessRegistry struct {
	mu       sync.Mutex
	children map[*exec.Cmd]struct{}
}

var (
	defaultRegistry     *ProcessRegistry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the process-wide registry singleton, creating it
// on first use.
func DefaultRegistry() *ProcessRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewProcessRegistry()
	})
	return defaultRegistry
}

// NewProcessRegistry creates an empty registry. Most callers should use
// DefaultRegistry; NewProcessRegistry exists for isolated tests.
func NewProcessRegistry() *ProcessRegistry {
	return &ProcessRegistry{children: make(map[*exec.Cmd]struct{})}
}

// track registers cmd in the registry. It must be called after cmd.Start.
func (r *ProcessRegistry) track(cmd *exec.Cmd) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.children[cmd] = struct{}{}
}

// untrack removes cmd from the registry once it has exited.
func (r *ProcessRegistry) untrack(cmd *exec.Cmd) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.children, cmd)
}

// Count returns the number of currently tracked children. Primarily useful
// for tests.
func (r *ProcessRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.children)
}

// Shutdown terminates every tracked child process. It is safe to call
// multiple times and from a signal handler. Errors from individual kills are
// ignored: a process that already exited is not a failure.
func (r *ProcessRegistry) Shutdown() {
	r.mu.Lock()
	cmds := make([]*exec.Cmd, 0, len(r.children))
	for c := range r.children {
		cmds = append(cmds, c)
	}
	r.mu.Unlock()

	for _, cmd := range cmds {
		if cmd.Process == nil {
			continue
		}
		_ = cmd.Process.Kill()
	}
}
