package scratch

import (
	"fmt"
	"os"
	"path/filepath"
)

// CleanupResult reports what a sweep actually did. Counts reflect confirmed
// deletions only; every per-file failure lands in Errors so one bad file
// cannot hide the cleanup that did succeed.
type CleanupResult struct {
	FilesRemoved int      `json:"filesRemoved"`
	BytesFreed   int64    `json:"bytesFreed"`
	Errors       []string `json:"errors"`
}

// Cleanup deletes every cataloged file whose age exceeds maxAgeHours, then
// prunes each build directory that the deletion left empty. A threshold of
// zero removes every file. Negative thresholds are a documented no-op
// boundary: the cutoff lies in the future, upstream behavior there is
// unspecified, so nothing is removed rather than guessing at intent.
func (t *Tree) Cleanup(maxAgeHours float64) (CleanupResult, error) {
	result := CleanupResult{Errors: []string{}}
	if maxAgeHours < 0 {
		return result, nil
	}

	records, err := t.ListDownloads()
	if err != nil {
		return result, err
	}

	for _, rec := range records {
		if rec.AgeHours < maxAgeHours {
			continue
		}
		if err := os.Remove(rec.Path); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rec.Path, err))
			continue
		}
		result.FilesRemoved++
		result.BytesFreed += rec.Size
		pruneIfEmpty(filepath.Dir(rec.Path))
	}
	return result, nil
}

// pruneIfEmpty removes a build-id directory once its last file is gone.
// Errors are ignored: a racing download may repopulate the directory between
// the check and the remove, and that is fine.
func pruneIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	_ = os.Remove(dir)
}
