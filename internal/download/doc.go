// Package download provides the download orchestration logic for
// fetching manga chapters and their page images.
//
// # Manager
//
// The Manager coordinates the entire download process:
//
//  1. List the chapters of the resolved target
//  2. List each chapter's page image URLs
//  3. Download pages concurrently, retrying transient failures
//  4. Assemble each chapter's images into its output file
//  5. Clean up intermediate images once the output exists
//
// # Basic Usage
//
//	manager := download.NewManager(settings, source, client, assembler, logger,
//	    func(event download.ProgressEvent) {
//	        fmt.Println(event.Message)
//	    })
//
//	if err := manager.Initialize(ctx, target); err != nil {
//	    log.Fatal(err)
//	}
//
//	summary, err := manager.Run(ctx)
//	if err != nil {
//	    log.Fatal(err) // cancellation only
//	}
//	os.Exit(summary.ExitCode())
//
// # Concurrency
//
// The Manager uses three configurable limits:
//   - MaxConcurrentChapters: how many chapters to process in parallel
//   - MaxConcurrentPages: how many pages per chapter to download in parallel
//   - GlobalConnectionLimit: ceiling on simultaneous image connections
//     across all chapters
//
// # Failure Handling
//
// Transient failures (HTTP 429, 5xx, network errors) are retried with
// exponential backoff up to MaxRetries attempts per page; other HTTP
// statuses fail the page on the first response. A chapter with some
// failed pages still produces an output, recorded as partially failed.
// A chapter that fails entirely never stops the remaining chapters.
//
// # Progress Tracking
//
// Progress is reported via a callback function that receives ProgressEvent:
//
//	type ProgressEvent struct {
//	    Message string
//	    Level   ProgressLevel // Info, Verbose, Warning, Error, Success
//	}
//
// Counters for live progress displays come from GetProgress.
package download
