// Package scratch manages the process-private temporary directory tree used
// for downloaded job logs and build artifacts. Exactly one Tree is live per
// process; its root lives directly under the system temp directory and is
// named so that a future process can recognize it, parse the owning pid out
// of the name, and reclaim it if that owner is gone.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/rxreyn3/azure-devops-mcp-sub001/internal/logging"
)

const (
	// rootPrefix is the fixed leading part of every scratch root name.
	// Full shape: ado-mcp-<pid>-<random suffix>.
	rootPrefix = "ado-mcp-"

	downloadsDir = "downloads"

	CategoryLogs      = "logs"
	CategoryArtifacts = "artifacts"
)

// categories is the fixed set of subdirectories under downloads/.
var categories = []string{CategoryLogs, CategoryArtifacts}

// Tree is the handle to the scratch directory hierarchy. Construct one at
// process start and thread it into every component that needs disk space;
// there is deliberately no package-level singleton. The zero value is not
// usable; use NewTree or NewTreeAt.
type Tree struct {
	tempRoot string

	mu   sync.Mutex
	root string // empty until the first Root call succeeds
}

// NewTree returns a Tree rooted under the system temp directory. Nothing is
// created until the first call to Root.
func NewTree() *Tree {
	return &Tree{tempRoot: os.TempDir()}
}

// NewTreeAt returns a Tree rooted under dir instead of the system temp
// directory. Primarily used by tests to isolate the filesystem.
func NewTreeAt(dir string) *Tree {
	return &Tree{tempRoot: dir}
}

// Root returns the scratch root path, creating it on first call. Creation is
// atomic (mkdir of a name that embeds a fresh random suffix, retried on the
// unlikely collision) so two processes starting at once can never share a
// root. The two category subdirectories are created alongside. A failure to
// create the root is fatal to the caller; there is no fallback location.
//
// The first successful call also kicks off the orphan reaper, best-effort:
// reaper failures are logged and never propagate.
func (t *Tree) Root() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.root != "" {
		return t.root, nil
	}

	root, err := t.createRoot()
	if err != nil {
		return "", err
	}
	for _, cat := range categories {
		if err := os.MkdirAll(filepath.Join(root, downloadsDir, cat), 0o755); err != nil {
			return "", fmt.Errorf("create %s directory: %w", cat, err)
		}
	}
	t.root = root

	reapOrphans(t.tempRoot, logging.New("scratch-reaper"))

	return t.root, nil
}

func (t *Tree) createRoot() (string, error) {
	pid := os.Getpid()
	for attempt := 0; attempt < 3; attempt++ {
		name := fmt.Sprintf("%s%d-%s", rootPrefix, pid, uuid.NewString()[:8])
		path := filepath.Join(t.tempRoot, name)
		err := os.Mkdir(path, 0o700)
		if err == nil {
			return path, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("create scratch root %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("create scratch root under %s: suffix collisions exhausted", t.tempRoot)
}

// Path returns the root path if it has been created, or "" otherwise. It
// never creates anything.
func (t *Tree) Path() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.root
}

// DownloadDir returns <root>/downloads/<category>/<buildID>, creating it if
// needed. The category must be one of CategoryLogs or CategoryArtifacts.
func (t *Tree) DownloadDir(category string, buildID int) (string, error) {
	if category != CategoryLogs && category != CategoryArtifacts {
		return "", fmt.Errorf("unknown download category %q", category)
	}
	if err := ValidateBuildID(buildID); err != nil {
		return "", err
	}
	root, err := t.Root()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, downloadsDir, category, strconv.Itoa(buildID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download directory %s: %w", dir, err)
	}
	return dir, nil
}

// Remove deletes the whole scratch tree. It is the teardown hook's body:
// filesystem-only, safe to call when the root was never created, and safe to
// call more than once. After Remove the Tree must not be reused.
func (t *Tree) Remove() error {
	t.mu.Lock()
	root := t.root
	t.root = ""
	t.mu.Unlock()
	if root == "" {
		return nil
	}
	return os.RemoveAll(root)
}
