package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"imagebatch/internal/config"
)

var (
	Version  = "dev"
	toolsDir string
	dataDir  string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:     "imagebatch",
	Short:   "imagebatch - upscale and re-encode folders of images",
	Version: Version,
	Long: `imagebatch runs folders of images through Real-ESRGAN, cwebp and ffmpeg.
Every processed file is appended to a durable log that can be summarized or exported.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetPrefix("[ImageBatch] ")
		if !verbose {
			log.SetOutput(io.Discard)
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().StringVar(&toolsDir, "tools-dir", "", "directory holding the tool binaries (or set TOOLS_DIR)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding the processing log (or set DATA_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print service logs")
}

// loadConfig reads the environment and applies command-line overrides
func loadConfig() *config.Config {
	cfg := config.Load()
	if toolsDir != "" {
		cfg.ToolsDir = toolsDir
		if os.Getenv("MODELS_DIR") == "" {
			cfg.ModelsDir = ""
		}
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg
}
