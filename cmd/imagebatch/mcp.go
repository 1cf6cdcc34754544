package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"imagebatch/internal/app"
	"imagebatch/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server on stdio for AI assistant integration",
	Long: `Start a Model Context Protocol server on stdin/stdout. Jobs started through it
run in this process; they are canceled when the server exits.

Claude Desktop configuration:
  {
    "mcpServers": {
      "imagebatch": {
        "command": "/path/to/imagebatch",
        "args": ["mcp"],
        "env": {"TOOLS_DIR": "/path/to/tools"}
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := app.New(loadConfig())
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			stack.Close(ctx)
		}()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintln(os.Stderr, "Starting MCP server on stdio...")
		return mcpserver.NewServer(stack.Registry, Version).RunStdio(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
