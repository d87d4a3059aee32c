package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/okanoue/manga-downloader/internal/assemble"
	"github.com/okanoue/manga-downloader/internal/config"
	"github.com/okanoue/manga-downloader/internal/download"
	httpx "github.com/okanoue/manga-downloader/internal/http"
	"github.com/okanoue/manga-downloader/internal/ioutils"
	"github.com/okanoue/manga-downloader/internal/logging"
	"github.com/okanoue/manga-downloader/internal/mangafox"
	"github.com/okanoue/manga-downloader/internal/model"
)

const exitCancelled = 130

// exitCodeError carries a nonzero exit code out of run without
// bypassing deferred cleanup.
type exitCodeError int

func (e exitCodeError) Error() string {
	return fmt.Sprintf("exit code %d", int(e))
}

var (
	flagConfig     string
	flagChapters   string
	flagDownload   string
	flagFormat     string
	flagKeepImages bool
	flagSort       string
	flagDelay      time.Duration
	flagLogFile    string
	flagVerbose    bool
	flagDryRun     bool
)

func main() {
	root := &cobra.Command{
		Use:   "manga-dl <url>",
		Short: "Download manga chapters as PDF or CBZ",
		Long: `manga-dl downloads the page images of manga chapters and binds each
chapter into a single PDF or CBZ file.

The URL may point at a series page, downloading every chapter (bounded
by --chapters), or at a single chapter:

  manga-dl https://fanfox.net/manga/slam_dunk/
  manga-dl --chapters 1-30 https://fanfox.net/manga/slam_dunk/
  manga-dl https://fanfox.net/manga/slam_dunk/v01/c001/1.html

For interactive mode, use: manga-tui`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0])
		},
	}

	root.Flags().StringVar(&flagConfig, "config", "", "path to config file")
	root.Flags().StringVarP(&flagChapters, "chapters", "c", "", `chapter range, e.g. "1-10", "10-All" (default all)`)
	root.Flags().StringVarP(&flagDownload, "download-dir", "d", "", "base download directory (overrides config)")
	root.Flags().StringVarP(&flagFormat, "format", "f", "", "output format: pdf, cbz or none (default pdf)")
	root.Flags().BoolVarP(&flagKeepImages, "keep-images", "k", false, "keep page images after assembling the output")
	root.Flags().StringVarP(&flagSort, "sort", "s", "", "chapter order: asc (oldest first) or desc (default desc)")
	root.Flags().DurationVar(&flagDelay, "delay", 0, "minimum delay between requests (overrides config)")
	root.Flags().StringVar(&flagLogFile, "log-file", "", "also write DEBUG logs to this file")
	root.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "show debug output")
	root.Flags().BoolVar(&flagDryRun, "dry-run", false, "list chapters without downloading")

	if err := root.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Cancelled.")
			os.Exit(exitCancelled)
		}
		var code exitCodeError
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, rawURL string) error {
	settings, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	applyFlags(cmd, settings)
	if err := settings.Validate(); err != nil {
		return err
	}

	rng, err := model.ParseChapterRange(flagChapters)
	if err != nil {
		return err
	}

	target, err := mangafox.ResolveTarget(rawURL, rng, settings.SortOrder())
	if err != nil {
		return err
	}

	if err := ioutils.EnsureDir(settings.DownloadDir); err != nil {
		return fmt.Errorf("download directory not writable: %w", err)
	}

	logger, logCloser, err := logging.New(logging.Options{
		Verbose: settings.Verbose,
		File:    settings.LogFile,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	assembler, err := assemble.New(settings.Format, settings.MaxImageHeight)
	if err != nil {
		return err
	}

	client := httpx.NewClient(settings.RequestTimeout, settings.RequestDelay)
	source := mangafox.NewClient(client, mangafox.DefaultBaseURL, logger)

	manager := download.NewManager(settings, source, client, assembler, logger, nil)

	// Handle interrupts
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted, cancelling...")
		cancel()
	}()

	if err := manager.Initialize(ctx, target); err != nil {
		return err
	}

	labels := manager.GetChapterLabels()
	fmt.Printf("Found %d chapter(s) for %s\n", len(labels), target.Series)

	if flagDryRun {
		for _, label := range labels {
			fmt.Println("  " + label)
		}
		fmt.Println("\n[Dry run - not downloading]")
		return nil
	}

	bar := newProgressBar()
	stopBar := watchProgress(ctx, manager, bar)

	summary, err := manager.Run(ctx)
	stopBar()

	if err != nil {
		if ctx.Err() != nil {
			return context.Canceled
		}
		return err
	}

	printSummary(summary)
	if code := summary.ExitCode(); code != 0 {
		return exitCodeError(code)
	}
	return nil
}

func applyFlags(cmd *cobra.Command, settings *config.Settings) {
	if flagDownload != "" {
		settings.DownloadDir = flagDownload
	}
	if flagFormat != "" {
		settings.Format = flagFormat
	}
	if flagKeepImages {
		settings.KeepImages = true
	}
	if flagSort != "" {
		settings.Sort = flagSort
	}
	if cmd.Flags().Changed("delay") {
		settings.RequestDelay = flagDelay
	}
	if flagLogFile != "" {
		settings.LogFile = flagLogFile
	}
	if flagVerbose {
		settings.Verbose = true
	}
}

func newProgressBar() *progressbar.ProgressBar {
	return progressbar.NewOptions64(1,
		progressbar.OptionSetDescription("downloading pages"),
		progressbar.OptionSetWriter(os.Stdout),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Println() }),
	)
}

// watchProgress polls the manager and feeds the bar until the returned
// stop function runs.
func watchProgress(ctx context.Context, manager *download.Manager, bar *progressbar.ProgressBar) func() {
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				pagesDone, pagesTotal, _, _ := manager.GetProgress()
				if pagesTotal > 0 {
					bar.ChangeMax64(int64(pagesTotal))
					_ = bar.Set64(int64(pagesDone))
				}
			}
		}
	}()

	return func() {
		close(done)
		<-finished
		_ = bar.Finish()
	}
}

func printSummary(summary *download.RunSummary) {
	fmt.Println()
	for _, res := range summary.Results() {
		switch res.Outcome {
		case download.OutcomeCompleted:
			if res.Skipped {
				fmt.Printf("  = %s (already downloaded)\n", res.Chapter.Label())
			} else {
				fmt.Printf("  + %s -> %s\n", res.Chapter.Label(), res.OutputPath)
			}
		case download.OutcomePartiallyFailed:
			fmt.Printf("  ~ %s -> %s (%d page(s) missing)\n",
				res.Chapter.Label(), res.OutputPath, res.MissingPages)
		case download.OutcomeFailed:
			fmt.Printf("  - %s: %v\n", res.Chapter.Label(), res.Err)
		}
	}
	fmt.Printf("\nDone: %s\n", summary)
}
