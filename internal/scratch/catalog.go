package scratch

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rxreyn3/azure-devops-mcp-sub001/internal/logging"
)

// DownloadRecord is a derived view of one file under the download area.
// Nothing here is stored: every listing re-walks the filesystem, so two
// queries may report different ages for the same file.
type DownloadRecord struct {
	Path       string    `json:"path"`
	Category   string    `json:"category"`
	BuildID    int       `json:"buildId"`
	FileName   string    `json:"fileName"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
	AgeHours   float64   `json:"ageHours"`
}

// Summary describes the download area as a whole.
type Summary struct {
	Path       string          `json:"path"`
	TotalSize  int64           `json:"totalSize"`
	FileCount  int             `json:"fileCount"`
	Logs       int             `json:"logs"`
	Artifacts  int             `json:"artifacts"`
	OldestFile *DownloadRecord `json:"oldestFile,omitempty"`
}

// ListDownloads walks downloads/{logs,artifacts}/<buildID>/<file> and
// returns one record per file, with ages computed relative to now. Missing
// category or build directories are normal (empty result); a per-file stat
// failure is logged and the file skipped.
func (t *Tree) ListDownloads() ([]DownloadRecord, error) {
	root, err := t.Root()
	if err != nil {
		return nil, err
	}
	logger := logging.New("scratch-catalog")
	now := time.Now()

	records := []DownloadRecord{}
	for _, cat := range categories {
		catDir := filepath.Join(root, downloadsDir, cat)
		buildDirs, err := os.ReadDir(catDir)
		if err != nil {
			// A missing category is normal; anything else is logged and the
			// walk moves on, same as a bad build directory.
			if !os.IsNotExist(err) {
				logger.Warn("cannot read category directory", "path", catDir, "error", err)
			}
			continue
		}
		for _, bd := range buildDirs {
			if !bd.IsDir() {
				continue
			}
			buildID, err := strconv.Atoi(bd.Name())
			if err != nil {
				continue
			}
			buildDir := filepath.Join(catDir, bd.Name())
			files, err := os.ReadDir(buildDir)
			if err != nil {
				logger.Warn("cannot read build directory", "path", buildDir, "error", err)
				continue
			}
			for _, f := range files {
				if f.IsDir() {
					continue
				}
				info, err := f.Info()
				if err != nil {
					logger.Warn("cannot stat downloaded file", "path", filepath.Join(buildDir, f.Name()), "error", err)
					continue
				}
				records = append(records, DownloadRecord{
					Path:       filepath.Join(buildDir, f.Name()),
					Category:   cat,
					BuildID:    buildID,
					FileName:   f.Name(),
					Size:       info.Size(),
					ModifiedAt: info.ModTime(),
					AgeHours:   now.Sub(info.ModTime()).Hours(),
				})
			}
		}
	}
	return records, nil
}

// Summarize derives the catalog summary from a fresh listing.
func (t *Tree) Summarize() (Summary, error) {
	records, err := t.ListDownloads()
	if err != nil {
		return Summary{}, err
	}
	root, err := t.Root()
	if err != nil {
		return Summary{}, err
	}

	s := Summary{Path: root}
	for i := range records {
		rec := &records[i]
		s.FileCount++
		s.TotalSize += rec.Size
		switch rec.Category {
		case CategoryLogs:
			s.Logs++
		case CategoryArtifacts:
			s.Artifacts++
		}
		if s.OldestFile == nil || rec.ModifiedAt.Before(s.OldestFile.ModifiedAt) {
			s.OldestFile = rec
		}
	}
	return s, nil
}
