package scratch

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// reapOrphans scans tempRoot for scratch trees whose owning process no
// longer exists and deletes them. The current process's own tree is never
// touched (its pid is skipped before any liveness probe). Every per-entry
// failure is logged and swallowed so one undeletable tree cannot abort the
// scan or block allocator startup.
func reapOrphans(tempRoot string, logger *slog.Logger) {
	entries, err := os.ReadDir(tempRoot)
	if err != nil {
		logger.Warn("cannot scan temp root for orphaned scratch trees", "path", tempRoot, "error", err)
		return
	}

	self := os.Getpid()
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		pid, ok := parseOwnerPID(entry.Name())
		if !ok || pid == self {
			continue
		}
		if processAlive(pid) {
			continue
		}
		path := filepath.Join(tempRoot, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			logger.Warn("cannot remove orphaned scratch tree", "path", path, "error", err)
			continue
		}
		logger.Info("removed orphaned scratch tree", "path", path, "owner_pid", pid)
	}
}

// parseOwnerPID extracts the owning pid from a scratch root name of the form
// ado-mcp-<pid>-<suffix>. Returns false for anything else under the temp
// root.
func parseOwnerPID(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, rootPrefix)
	if !ok {
		return 0, false
	}
	pidStr, _, ok := strings.Cut(rest, "-")
	if !ok {
		return 0, false
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// processAlive probes whether a process with the given pid exists, without
// delivering a signal. EPERM means the process exists but belongs to another
// user, which still counts as alive.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
