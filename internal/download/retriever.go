// Package download streams remote build logs to local disk. Transfers run
// through a fixed-size buffer so memory use never scales with payload size,
// and every exit path releases both the remote stream and the destination
// file handle.
package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rxreyn3/azure-devops-mcp-sub001/internal/scratch"
	"github.com/rxreyn3/azure-devops-mcp-sub001/internal/timeline"
)

const copyBufferSize = 32 * 1024

// LogOpener opens a readable byte stream for one build log. Implemented by
// the Azure DevOps client; tests substitute fakes.
type LogOpener interface {
	OpenLog(ctx context.Context, buildID, logID int) (io.ReadCloser, int64, error)
}

// Outcome describes one completed retrieval. It is created once per
// successful download and not persisted; the caller owns any durable record.
type Outcome struct {
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
	JobName  string `json:"jobName"`
	RecordID string `json:"recordId"`
	LogID    int    `json:"logId"`
	Duration string `json:"duration,omitempty"`
}

// Retriever copies remote logs into the scratch tree (or a caller-chosen
// destination). One call is one transfer; there is no retry loop here, a
// failed call must be retried by the caller if desired.
type Retriever struct {
	Logs LogOpener
	Tree *scratch.Tree
}

// Retrieve validates the record, resolves the destination, and streams the
// record's log to disk. If destPath is empty the file lands in the scratch
// tree's log area for the build; if it names a directory (existing, or
// spelled with a trailing separator) a file name is synthesized from the
// build id, the sanitized record name, and the current date.
//
// On a mid-transfer failure the partially written file is left in place and
// the error surfaced, so the caller can decide whether to keep or discard
// it. Cancellation via ctx is honored between copy chunks.
func (r *Retriever) Retrieve(ctx context.Context, buildID int, rec *timeline.Record, destPath string) (*Outcome, error) {
	if err := scratch.ValidateBuildID(buildID); err != nil {
		return nil, err
	}
	if err := timeline.EnsureCompleted(rec); err != nil {
		return nil, err
	}
	if err := timeline.EnsureLog(rec); err != nil {
		return nil, err
	}

	dest, err := r.resolveDest(buildID, rec.Name, destPath)
	if err != nil {
		return nil, err
	}

	stream, _, err := r.Logs.OpenLog(ctx, buildID, rec.Log.ID)
	if err != nil {
		return nil, fmt.Errorf("open log %d for build %d: %w", rec.Log.ID, buildID, err)
	}
	defer stream.Close()

	f, err := os.Create(dest)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", dest, err)
	}

	written, copyErr := copyWithContext(ctx, f, stream)
	closeErr := f.Close()
	if copyErr != nil {
		// The partial file stays on disk for the caller to inspect or discard.
		return nil, fmt.Errorf("stream log to %s failed after %d bytes: %w", dest, written, copyErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("close %s: %w", dest, closeErr)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", dest, err)
	}

	return &Outcome{
		Path:     dest,
		Bytes:    info.Size(),
		JobName:  rec.Name,
		RecordID: rec.ID,
		LogID:    rec.Log.ID,
		Duration: timeline.DurationOf(rec),
	}, nil
}

func (r *Retriever) resolveDest(buildID int, name, destPath string) (string, error) {
	if destPath == "" {
		dir, err := r.Tree.DownloadDir(scratch.CategoryLogs, buildID)
		if err != nil {
			return "", err
		}
		return r.synthesizeName(dir, buildID, name)
	}

	if IsDirLike(destPath) {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return "", fmt.Errorf("create destination directory %s: %w", destPath, err)
		}
		return r.synthesizeName(destPath, buildID, name)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", fmt.Errorf("create parent directory for %s: %w", destPath, err)
	}
	return destPath, nil
}

func (r *Retriever) synthesizeName(dir string, buildID int, name string) (string, error) {
	safe, err := scratch.SanitizeName(name)
	if err != nil {
		return "", err
	}
	file := fmt.Sprintf("%d-%s-%s.log", buildID, safe, time.Now().Format("2006-01-02"))
	return filepath.Join(dir, file), nil
}

// IsDirLike reports whether the path names an existing directory or is
// spelled like one (trailing separator).
func IsDirLike(path string) bool {
	if strings.HasSuffix(path, string(os.PathSeparator)) || strings.HasSuffix(path, "/") {
		return true
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// copyWithContext copies src to dst through a fixed 32 KiB buffer, checking
// ctx between chunks so an unbounded remote stream cannot block forever once
// the caller gives up. (The upstream behavior had no cancellation; this is a
// documented enhancement, not a silent change.)
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, copyBufferSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
			if wn < n {
				return written, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}
