package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"imagebatch/internal/app"
	"imagebatch/internal/models"
	"imagebatch/internal/tui"
)

var (
	runOpts  models.ProcessingOptions
	runPlain bool
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <input> <output>",
	Short: "Process every image under <input> into <output>",
	Long: `Process every image under <input> into <output>, mirroring the folder layout.

Examples:
  # Re-encode a folder tree as WebP
  imagebatch run -r --webp ./photos ./photos-webp

  # Upscale 4x and encode as AVIF, deleting the sources afterwards
  imagebatch run --upscale --model realesrgan-x4plus --avif --delete-source ./in ./out`,
	Args: cobra.ExactArgs(2),
	RunE: runBatch,
}

func init() {
	runCmd.Flags().BoolVarP(&runOpts.ProcessSubfolders, "recursive", "r", false, "also process nested folders")
	runCmd.Flags().BoolVar(&runOpts.ConvertToWebP, "webp", false, "encode results as WebP")
	runCmd.Flags().BoolVar(&runOpts.ConvertToAvif, "avif", false, "encode results as AVIF")
	runCmd.Flags().BoolVar(&runOpts.ApplyUpscale, "upscale", false, "upscale with Real-ESRGAN before encoding")
	runCmd.Flags().StringVarP(&runOpts.Model, "model", "m", "", "Real-ESRGAN model name")
	runCmd.Flags().BoolVar(&runOpts.DeleteSourceFile, "delete-source", false, "delete each source after it was processed")
	runCmd.Flags().BoolVar(&runOpts.IncludeWebPFiles, "include-webp", false, "treat existing .webp files as inputs")
	runCmd.Flags().BoolVar(&runOpts.IncludeAvifFiles, "include-avif", false, "treat existing .avif files as inputs")
	runCmd.Flags().BoolVar(&runPlain, "plain", false, "print progress lines instead of the interactive view")

	rootCmd.AddCommand(runCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	opts := runOpts
	opts.InputFolder = args[0]
	opts.OutputFolder = args[1]
	if err := opts.Validate(); err != nil {
		return err
	}

	stack, err := app.New(loadConfig())
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		stack.Close(ctx)
	}()

	job, err := stack.Registry.Create(opts)
	if err != nil {
		return err
	}
	sub, err := stack.Registry.Subscribe(job.ID)
	if err != nil {
		return err
	}
	cancelJob := func() { stack.Registry.Cancel(job.ID) }

	// SIGTERM, and SIGINT when no terminal UI owns the keyboard
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-sigs:
			cancelJob()
		case <-finished:
		}
	}()

	if err := stack.Registry.Start(job.ID); err != nil {
		return err
	}
	started := time.Now()

	if runPlain {
		for {
			snap, ok := sub.Next(context.Background())
			if !ok {
				break
			}
			fmt.Fprintf(os.Stdout, "[%3.0f%%] %s\n", snap.OverallProgress*100, snap.Message)
		}
	} else {
		program := tea.NewProgram(tui.NewModel(sub.Channel(context.Background()), cancelJob))
		if _, err := program.Run(); err != nil {
			cancelJob()
			return fmt.Errorf("terminal UI failed: %w", err)
		}
	}

	view, err := stack.Registry.Wait(context.Background(), job.ID)
	if err != nil {
		return err
	}

	rows := tui.JobSummary(view.Status, view.Processed, view.Skipped, view.LastUpdate, time.Since(started).Round(time.Millisecond).String())
	fmt.Fprintln(os.Stdout, tui.RenderSummary(rows))
	fmt.Fprintf(os.Stdout, "Processing log: %s\n", stack.Recorder.Path())

	switch view.Status {
	case models.JobStatusCompleted:
		return nil
	case models.JobStatusCanceled:
		return fmt.Errorf("job canceled")
	default:
		msg := "unknown error"
		if view.LastUpdate != nil && view.LastUpdate.ErrorMessage != "" {
			msg = view.LastUpdate.ErrorMessage
		}
		return fmt.Errorf("job failed: %s", msg)
	}
}
