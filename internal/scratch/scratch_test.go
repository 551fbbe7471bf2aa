package scratch

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rxreyn3/azure-devops-mcp-sub001/internal/logging"
)

func TestTree_RootCreatesOnceAndCaches(t *testing.T) {
	tree := NewTreeAt(t.TempDir())

	root1, err := tree.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	root2, err := tree.Root()
	if err != nil {
		t.Fatalf("Root (second call): %v", err)
	}
	if root1 != root2 {
		t.Errorf("Root not cached: %q then %q", root1, root2)
	}

	name := filepath.Base(root1)
	wantPrefix := fmt.Sprintf("ado-mcp-%d-", os.Getpid())
	if !strings.HasPrefix(name, wantPrefix) {
		t.Errorf("root name %q does not start with %q", name, wantPrefix)
	}

	for _, cat := range []string{CategoryLogs, CategoryArtifacts} {
		dir := filepath.Join(root1, "downloads", cat)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("category directory %s missing: %v", dir, err)
		}
	}
}

func TestTree_RootFailsWithoutFallback(t *testing.T) {
	tree := NewTreeAt(filepath.Join(t.TempDir(), "does", "not", "exist"))
	if _, err := tree.Root(); err == nil {
		t.Fatal("Root should fail when the temp root cannot host the tree")
	}
}

func TestTree_DownloadDir(t *testing.T) {
	tree := NewTreeAt(t.TempDir())

	dir, err := tree.DownloadDir(CategoryLogs, 42)
	if err != nil {
		t.Fatalf("DownloadDir: %v", err)
	}
	if filepath.Base(dir) != "42" || filepath.Base(filepath.Dir(dir)) != CategoryLogs {
		t.Errorf("unexpected download dir layout: %s", dir)
	}

	if _, err := tree.DownloadDir("movies", 42); err == nil {
		t.Error("unknown category should be rejected")
	}
	if _, err := tree.DownloadDir(CategoryLogs, 0); err == nil {
		t.Error("non-positive build id should be rejected")
	}
}

func TestTree_RemoveIsIdempotent(t *testing.T) {
	tree := NewTreeAt(t.TempDir())
	root, err := tree.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}

	if err := tree.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Errorf("root %s still exists after Remove", root)
	}
	if err := tree.Remove(); err != nil {
		t.Errorf("second Remove should be a no-op, got %v", err)
	}
}

func TestTree_RemoveBeforeRootIsNoop(t *testing.T) {
	tree := NewTreeAt(t.TempDir())
	if err := tree.Remove(); err != nil {
		t.Errorf("Remove with no root: %v", err)
	}
}

func TestParseOwnerPID(t *testing.T) {
	tests := []struct {
		name    string
		wantPID int
		wantOK  bool
	}{
		{"ado-mcp-1234-a1b2c3d4", 1234, true},
		{"ado-mcp-1-x", 1, true},
		{"ado-mcp-abc-x", 0, false},
		{"ado-mcp-1234", 0, false},
		{"ado-mcp--5-x", 0, false},
		{"something-else", 0, false},
		{"go-build12345", 0, false},
	}
	for _, tt := range tests {
		pid, ok := parseOwnerPID(tt.name)
		if pid != tt.wantPID || ok != tt.wantOK {
			t.Errorf("parseOwnerPID(%q) = (%d, %v), want (%d, %v)", tt.name, pid, ok, tt.wantPID, tt.wantOK)
		}
	}
}

func TestProcessAlive(t *testing.T) {
	if !processAlive(os.Getpid()) {
		t.Error("current process should be alive")
	}
	if !processAlive(deadAndLivePIDs(t).live) {
		t.Error("pid 1 should be alive")
	}
	if processAlive(deadAndLivePIDs(t).dead) {
		t.Error("exited child should be dead")
	}
}

type pidPair struct{ live, dead int }

// deadAndLivePIDs returns pid 1 (always alive) and the pid of a child that
// has already exited and been reaped.
func deadAndLivePIDs(t *testing.T) pidPair {
	t.Helper()
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Fatalf("run true: %v", err)
	}
	return pidPair{live: 1, dead: cmd.Process.Pid}
}

func TestReapOrphans(t *testing.T) {
	tempRoot := t.TempDir()
	pids := deadAndLivePIDs(t)

	ownTree := NewTreeAt(tempRoot)
	ownRoot, err := ownTree.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}

	deadPath := filepath.Join(tempRoot, fmt.Sprintf("ado-mcp-%d-deadbeef", pids.dead))
	livePath := filepath.Join(tempRoot, fmt.Sprintf("ado-mcp-%d-cafef00d", pids.live))
	unrelated := filepath.Join(tempRoot, "unrelated-dir")
	for _, p := range []string{deadPath, livePath, unrelated} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", p, err)
		}
	}

	reapOrphans(tempRoot, logging.New("test"))

	if _, err := os.Stat(deadPath); !os.IsNotExist(err) {
		t.Errorf("dead process tree %s should have been reaped", deadPath)
	}
	for _, p := range []string{ownRoot, livePath, unrelated} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s should have survived the reap: %v", p, err)
		}
	}
}

func TestReapOrphans_NeverDeletesOwnTree(t *testing.T) {
	tempRoot := t.TempDir()
	tree := NewTreeAt(tempRoot)
	root, err := tree.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}

	// Run the reaper repeatedly; our own tree stays regardless of scan order.
	for i := 0; i < 3; i++ {
		reapOrphans(tempRoot, logging.New("test"))
	}
	if _, err := os.Stat(root); err != nil {
		t.Fatalf("own tree %s was deleted by the reaper: %v", root, err)
	}
}
