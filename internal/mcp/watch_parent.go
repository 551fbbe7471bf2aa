package mcp

import (
	"context"
	"os"
	"time"

	"github.com/rxreyn3/azure-devops-mcp-sub001/internal/logging"
)

// WatchParent monitors for parent process death in a background goroutine.
// When the parent pid changes (the MCP client disconnected or its host
// restarted), it calls cancelFn so the serve loop unwinds through its
// deferred teardown and the scratch tree is removed instead of orphaned.
//
// This must NOT read from stdin — the SDK's StdioTransport owns stdin
// exclusively; stealing bytes here would corrupt the JSON-RPC framing.
//
// The goroutine exits when ctx is canceled or parent death is detected.
func WatchParent(ctx context.Context, cancelFn context.CancelFunc) {
	ppid := os.Getppid()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
				if os.Getppid() != ppid {
					logging.New("mcp-watchdog").Warn("parent process died, initiating shutdown", "was_pid", ppid)
					cancelFn()
					return
				}
			}
		}
	}()
}
