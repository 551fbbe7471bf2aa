package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rxreyn3/azure-devops-mcp-sub001/internal/ado"
	"github.com/rxreyn3/azure-devops-mcp-sub001/internal/config"
	"github.com/rxreyn3/azure-devops-mcp-sub001/internal/download"
	"github.com/rxreyn3/azure-devops-mcp-sub001/internal/logging"
	mcpserver "github.com/rxreyn3/azure-devops-mcp-sub001/internal/mcp"
	"github.com/rxreyn3/azure-devops-mcp-sub001/internal/scratch"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

var serveFlags struct {
	configPath string
	orgURL     string
	project    string
	patFile    string
	logLevel   string
	logFormat  string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout. Downloaded logs land in a
process-private scratch directory under the system temp dir; the directory is
removed on exit (including SIGINT/SIGTERM), and trees orphaned by killed
processes are reclaimed at the next startup.

The server also monitors for parent process death and self-terminates when
the MCP client disconnects, so no zombie servers or scratch trees accumulate.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.configPath, "config", "", "path to a YAML or JSON config file")
	f.StringVar(&serveFlags.orgURL, "org-url", "", "Azure DevOps organization URL, e.g. https://dev.azure.com/myorg")
	f.StringVar(&serveFlags.project, "project", "", "Azure DevOps project name or id")
	f.StringVar(&serveFlags.patFile, "pat-file", "", "file whose first line is a personal access token (falls back to $"+config.PATEnvVar+")")
	f.StringVar(&serveFlags.logLevel, "log-level", "", "log level: debug, info, warn, error (default info)")
	f.StringVar(&serveFlags.logFormat, "log-format", "", "log format: text or json (default text)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logging.Init(level, cfg.LogFormat)

	pat, err := config.ResolvePAT(cfg.PATFile)
	if err != nil {
		return err
	}

	client := ado.NewClient(ado.Config{
		OrgURL:  cfg.OrgURL,
		Project: cfg.Project,
		PAT:     pat,
	})

	// The scratch tree is owned here, at the composition root: one per
	// process, threaded into everything that needs disk space, removed on
	// the way out. Signal-triggered exits unwind through the same defer.
	tree := scratch.NewTree()
	defer func() {
		path := tree.Path()
		if path == "" {
			return
		}
		if err := tree.Remove(); err != nil {
			logging.New("serve").Warn("scratch tree removal failed", "path", path, "error", err)
		}
	}()

	retriever := &download.Retriever{Logs: client, Tree: tree}
	srv := mcpserver.NewServer(client, tree, retriever, version)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mcpserver.WatchParent(ctx, cancel)

	logging.New("serve").Info("starting Azure DevOps MCP server over stdio",
		"org_url", cfg.OrgURL, "project", cfg.Project)
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

// buildConfig merges the optional config file with command-line flags; flags
// win.
func buildConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if serveFlags.configPath != "" {
		loaded, err := config.LoadFromPath(serveFlags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if serveFlags.orgURL != "" {
		cfg.OrgURL = serveFlags.orgURL
	}
	if serveFlags.project != "" {
		cfg.Project = serveFlags.project
	}
	if serveFlags.patFile != "" {
		cfg.PATFile = serveFlags.patFile
	}
	if serveFlags.logLevel != "" {
		cfg.LogLevel = serveFlags.logLevel
	}
	if serveFlags.logFormat != "" {
		cfg.LogFormat = serveFlags.logFormat
	}

	if cfg.OrgURL == "" {
		return nil, fmt.Errorf("org URL is required (--org-url or org_url in config)")
	}
	if cfg.Project == "" {
		return nil, fmt.Errorf("project is required (--project or project in config)")
	}
	return cfg, nil
}
