package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "ado-mcp",
	Short: "MCP server exposing Azure DevOps builds, logs, and artifacts as tools",
	Long: "ado-mcp serves Azure DevOps build operations over the Model Context\n" +
		"Protocol: timeline lookup, streaming log downloads into a process-private\n" +
		"scratch directory, and maintenance of that directory.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
