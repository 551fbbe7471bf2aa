// Package mcp exposes download and scratch-maintenance operations as MCP
// tools. Handlers are thin: argument validation, one or two calls into the
// timeline/download/scratch packages, and a typed result. All state lives in
// the collaborators threaded in at construction; the server itself holds no
// locks and handlers may run concurrently.
package mcp

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rxreyn3/azure-devops-mcp-sub001/internal/download"
	"github.com/rxreyn3/azure-devops-mcp-sub001/internal/logging"
	"github.com/rxreyn3/azure-devops-mcp-sub001/internal/scratch"
	"github.com/rxreyn3/azure-devops-mcp-sub001/internal/timeline"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// DefaultCleanupAgeHours applies when cleanup_downloads is called without a
// threshold.
const DefaultCleanupAgeHours = 24

// stageDownloadLimit bounds concurrent per-job log transfers when a stage
// match fans out.
const stageDownloadLimit = 4

// TimelineFetcher fetches a build's execution report. Implemented by the
// Azure DevOps client; tests substitute fakes.
type TimelineFetcher interface {
	GetTimeline(ctx context.Context, buildID int) ([]timeline.Record, error)
}

// Server wraps the MCP SDK server with the download tool set.
type Server struct {
	MCPServer *sdkmcp.Server
	Builds    TimelineFetcher
	Tree      *scratch.Tree
	Retriever *download.Retriever
}

// NewServer wires the tool handlers around an externally owned scratch tree
// and build API client. The caller (the serve command) owns the tree's
// lifecycle, including teardown.
func NewServer(builds TimelineFetcher, tree *scratch.Tree, retriever *download.Retriever, version string) *Server {
	s := &Server{
		Builds:    builds,
		Tree:      tree,
		Retriever: retriever,
	}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "azure-devops-mcp", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_downloads",
		Description: "List every file in the server's download area with size and age, plus a per-category summary.",
	}, s.handleListDownloads)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "cleanup_downloads",
		Description: "Delete downloaded files older than a threshold in hours (default 24, 0 = everything) and prune empty build directories.",
	}, s.handleCleanupDownloads)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_download_location",
		Description: "Report the download area's path, total size, file count, and oldest file.",
	}, s.handleGetDownloadLocation)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "download_job_log",
		Description: "Download the log of a completed job to local disk, streaming without buffering the whole payload.",
	}, s.handleDownloadJobLog)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "download_by_name",
		Description: "Download logs by stage, job, or task name. A matched stage downloads every job log beneath it.",
	}, s.handleDownloadByName)
}

// --- Tool input/output types ---

type listDownloadsInput struct{}

type downloadsSummary struct {
	TotalFiles int   `json:"totalFiles"`
	TotalSize  int64 `json:"totalSize"`
	Logs       int   `json:"logs"`
	Artifacts  int   `json:"artifacts"`
}

type listDownloadsOutput struct {
	Summary   downloadsSummary         `json:"summary"`
	Downloads []scratch.DownloadRecord `json:"downloads"`
}

type cleanupDownloadsInput struct {
	OlderThanHours *float64 `json:"older_than_hours,omitempty" jsonschema:"age threshold in hours; files older than this are removed (default 24, 0 removes everything)"`
}

type cleanupDownloadsOutput struct {
	FilesRemoved int      `json:"filesRemoved"`
	SpaceSaved   int64    `json:"spaceSaved"`
	Errors       []string `json:"errors"`
}

type getDownloadLocationInput struct{}

type getDownloadLocationOutput struct {
	Path       string                  `json:"path"`
	TotalSize  int64                   `json:"totalSize"`
	FileCount  int                     `json:"fileCount"`
	OldestFile *scratch.DownloadRecord `json:"oldestFile,omitempty"`
}

type downloadJobLogInput struct {
	BuildID    int    `json:"build_id" jsonschema:"numeric build id"`
	JobName    string `json:"job_name" jsonschema:"exact job name as shown in the pipeline run"`
	OutputPath string `json:"output_path,omitempty" jsonschema:"destination file or directory; defaults to the server's download area"`
}

type downloadJobLogOutput struct {
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
	JobName  string `json:"jobName"`
	JobID    string `json:"jobId"`
	LogID    int    `json:"logId"`
	Duration string `json:"duration,omitempty"`
}

type downloadByNameInput struct {
	BuildID    int    `json:"build_id" jsonschema:"numeric build id"`
	Name       string `json:"name" jsonschema:"stage, job, or task name to look for"`
	KindHint   string `json:"kind_hint,omitempty" jsonschema:"narrow the match to stage, job, or task"`
	ExactMatch *bool  `json:"exact_match,omitempty" jsonschema:"require the name to match exactly instead of as a case-insensitive substring (default false)"`
	OutputPath string `json:"output_path,omitempty" jsonschema:"destination file or directory; defaults to the server's download area"`
}

type jobOutcome struct {
	JobName string            `json:"jobName"`
	Outcome *download.Outcome `json:"outcome,omitempty"`
	Error   string            `json:"error,omitempty"`
}

type downloadByNameOutput struct {
	Stage   string            `json:"stage,omitempty"`
	Outcome *download.Outcome `json:"outcome,omitempty"`
	Jobs    []jobOutcome      `json:"jobs,omitempty"`
	Errors  []string          `json:"errors,omitempty"`
	Skipped int               `json:"skipped,omitempty"`
}

// --- Tool handlers ---

func (s *Server) handleListDownloads(ctx context.Context, _ *sdkmcp.CallToolRequest, _ listDownloadsInput) (*sdkmcp.CallToolResult, listDownloadsOutput, error) {
	records, err := s.Tree.ListDownloads()
	if err != nil {
		return nil, listDownloadsOutput{}, fmt.Errorf("list downloads: %w", err)
	}

	out := listDownloadsOutput{Downloads: records}
	for _, rec := range records {
		out.Summary.TotalFiles++
		out.Summary.TotalSize += rec.Size
		switch rec.Category {
		case scratch.CategoryLogs:
			out.Summary.Logs++
		case scratch.CategoryArtifacts:
			out.Summary.Artifacts++
		}
	}
	return nil, out, nil
}

func (s *Server) handleCleanupDownloads(ctx context.Context, _ *sdkmcp.CallToolRequest, input cleanupDownloadsInput) (*sdkmcp.CallToolResult, cleanupDownloadsOutput, error) {
	hours := float64(DefaultCleanupAgeHours)
	if input.OlderThanHours != nil {
		hours = *input.OlderThanHours
	}

	result, err := s.Tree.Cleanup(hours)
	if err != nil {
		return nil, cleanupDownloadsOutput{}, fmt.Errorf("cleanup downloads: %w", err)
	}

	logging.New("mcp-tools").Info("cleanup swept download area",
		"older_than_hours", hours, "files_removed", result.FilesRemoved,
		"bytes_freed", result.BytesFreed, "errors", len(result.Errors))

	return nil, cleanupDownloadsOutput{
		FilesRemoved: result.FilesRemoved,
		SpaceSaved:   result.BytesFreed,
		Errors:       result.Errors,
	}, nil
}

func (s *Server) handleGetDownloadLocation(ctx context.Context, _ *sdkmcp.CallToolRequest, _ getDownloadLocationInput) (*sdkmcp.CallToolResult, getDownloadLocationOutput, error) {
	summary, err := s.Tree.Summarize()
	if err != nil {
		return nil, getDownloadLocationOutput{}, fmt.Errorf("summarize downloads: %w", err)
	}
	return nil, getDownloadLocationOutput{
		Path:       summary.Path,
		TotalSize:  summary.TotalSize,
		FileCount:  summary.FileCount,
		OldestFile: summary.OldestFile,
	}, nil
}

func (s *Server) handleDownloadJobLog(ctx context.Context, _ *sdkmcp.CallToolRequest, input downloadJobLogInput) (*sdkmcp.CallToolResult, downloadJobLogOutput, error) {
	if err := scratch.ValidateBuildID(input.BuildID); err != nil {
		return nil, downloadJobLogOutput{}, err
	}
	if strings.TrimSpace(input.JobName) == "" {
		return nil, downloadJobLogOutput{}, fmt.Errorf("job_name is required")
	}

	records, err := s.Builds.GetTimeline(ctx, input.BuildID)
	if err != nil {
		return nil, downloadJobLogOutput{}, fmt.Errorf("fetch timeline for build %d: %w", input.BuildID, err)
	}

	rec, err := timeline.FindRecord(records, input.JobName, timeline.TypeJob, true)
	if err != nil {
		return nil, downloadJobLogOutput{}, err
	}

	outcome, err := s.Retriever.Retrieve(ctx, input.BuildID, rec, input.OutputPath)
	if err != nil {
		return nil, downloadJobLogOutput{}, err
	}

	return nil, downloadJobLogOutput{
		Path:     outcome.Path,
		Bytes:    outcome.Bytes,
		JobName:  outcome.JobName,
		JobID:    outcome.RecordID,
		LogID:    outcome.LogID,
		Duration: outcome.Duration,
	}, nil
}

func (s *Server) handleDownloadByName(ctx context.Context, _ *sdkmcp.CallToolRequest, input downloadByNameInput) (*sdkmcp.CallToolResult, downloadByNameOutput, error) {
	if err := scratch.ValidateBuildID(input.BuildID); err != nil {
		return nil, downloadByNameOutput{}, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, downloadByNameOutput{}, fmt.Errorf("name is required")
	}
	kind, err := parseKindHint(input.KindHint)
	if err != nil {
		return nil, downloadByNameOutput{}, err
	}
	exact := false
	if input.ExactMatch != nil {
		exact = *input.ExactMatch
	}

	records, err := s.Builds.GetTimeline(ctx, input.BuildID)
	if err != nil {
		return nil, downloadByNameOutput{}, fmt.Errorf("fetch timeline for build %d: %w", input.BuildID, err)
	}

	rec, err := timeline.FindRecord(records, input.Name, kind, exact)
	if err != nil {
		return nil, downloadByNameOutput{}, err
	}

	if rec.Type != timeline.TypeStage {
		outcome, err := s.Retriever.Retrieve(ctx, input.BuildID, rec, input.OutputPath)
		if err != nil {
			return nil, downloadByNameOutput{}, err
		}
		return nil, downloadByNameOutput{Outcome: outcome}, nil
	}

	out, err := s.downloadStageJobs(ctx, input, records, rec)
	return nil, out, err
}

// downloadStageJobs fans out one transfer per job under the stage, bounded
// by stageDownloadLimit. Per-job failures (not yet completed, no log,
// transfer error) are collected, not fatal: the stage download reports every
// job it could fetch alongside every one it could not.
func (s *Server) downloadStageJobs(ctx context.Context, input downloadByNameInput, records []timeline.Record, stage *timeline.Record) (downloadByNameOutput, error) {
	jobs := timeline.FindStageJobs(records, stage)
	if len(jobs) == 0 {
		return downloadByNameOutput{}, fmt.Errorf("stage %q has no jobs", stage.Name)
	}
	if input.OutputPath != "" && !download.IsDirLike(input.OutputPath) {
		return downloadByNameOutput{}, fmt.Errorf("output_path must be a directory when downloading a whole stage")
	}

	results := make([]jobOutcome, len(jobs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(stageDownloadLimit)
	for i, job := range jobs {
		g.Go(func() error {
			outcome, err := s.Retriever.Retrieve(gctx, input.BuildID, job, input.OutputPath)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[i] = jobOutcome{JobName: job.Name, Error: err.Error()}
				return nil
			}
			results[i] = jobOutcome{JobName: job.Name, Outcome: outcome}
			return nil
		})
	}
	// Workers never return errors; Wait only observes context cancellation.
	if err := g.Wait(); err != nil {
		return downloadByNameOutput{}, err
	}

	out := downloadByNameOutput{Stage: stage.Name, Jobs: results}
	for _, r := range results {
		if r.Error != "" {
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %s", r.JobName, r.Error))
			out.Skipped++
		}
	}
	return out, nil
}

func parseKindHint(hint string) (timeline.RecordType, error) {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case "":
		return "", nil
	case "stage":
		return timeline.TypeStage, nil
	case "job":
		return timeline.TypeJob, nil
	case "task":
		return timeline.TypeTask, nil
	}
	return "", fmt.Errorf("kind_hint must be one of stage, job, task; got %q", hint)
}
