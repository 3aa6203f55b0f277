package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/vaultify/internal/archive"
	"github.com/franz/vaultify/internal/reconcile"
	"github.com/franz/vaultify/internal/report"
	"github.com/franz/vaultify/internal/util"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Upload local audio files and archives with reconciled metadata",
	Long: `Upload local audio files and archives (.zip, .tar, .tar.gz, .tar.xz)
exactly as the /upload route would.

Directories are walked for audio files and archives. Each file's metadata
is reconciled from its tags, its name and the configured catalogs before
it is merged into the metadata document.

A summary report is written when the run finishes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().IntP("workers", "w", 0, "files processed in parallel per archive (default 4)")
	ingestCmd.Flags().String("report-dir", "", "directory for the summary report (default: artifacts/reports/<timestamp>)")
	viper.BindPFlag("ingest.workers", ingestCmd.Flags().Lookup("workers"))
}

// ingestInput is one file to hand to the reconciler
type ingestInput struct {
	path string
	size int64
}

// collectInputs expands directories and drops files the service would reject
func collectInputs(paths []string) ([]ingestInput, error) {
	var inputs []ingestInput
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", root, err)
		}
		if !info.IsDir() {
			if !archive.IsAudio(root) && !archive.IsArchive(root) {
				util.WarnLog("Skipping unsupported file: %s", root)
				continue
			}
			inputs = append(inputs, ingestInput{path: root, size: info.Size()})
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				util.WarnLog("Cannot read %s: %v", path, err)
				return nil
			}
			if d.IsDir() || (!archive.IsAudio(path) && !archive.IsArchive(path)) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			inputs = append(inputs, ingestInput{path: path, size: info.Size()})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(inputs, func(i, j int) bool { return inputs[i].path < inputs[j].path })
	return inputs, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	inputs, err := collectInputs(args)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		util.WarnLog("Nothing to ingest")
		return nil
	}

	var total int64
	for _, in := range inputs {
		total += in.size
	}
	util.InfoLog("=== Ingest ===")
	util.InfoLog("Inputs: %d (%s)", len(inputs), humanize.IBytes(uint64(total)))

	var bar *progressbar.ProgressBar
	if util.IsTerminal(os.Stdout.Fd()) && !util.IsQuiet() {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Ingesting"),
			progressbar.OptionSetWidth(util.BarWidth()),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	a, err := newApp(ctx, appOptions{
		defaultEventsDir: "artifacts",
		onResult: func(res reconcile.Result) {
			if bar != nil {
				bar.Add(1)
			}
			if res.Error != "" {
				util.DebugLog("%s: %s", res.FileName, res.Error)
			}
		},
	})
	if err != nil {
		return err
	}
	defer a.Close()

	startTime := time.Now()
	var failed []string
	for _, in := range inputs {
		if _, err := a.reconciler.Ingest(ctx, filepath.Base(in.path), in.path); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", in.path, err))
		}
	}
	if bar != nil {
		bar.Finish()
	}
	duration := time.Since(startTime)

	// Flush the event log before summarising it
	eventLogPath := a.events.Path()
	a.events.Close()

	util.InfoLog("")
	util.SuccessLog("=== Ingest Summary ===")
	util.InfoLog("Total time: %v", duration.Round(time.Millisecond))
	if len(failed) > 0 {
		util.WarnLog("Failed inputs: %d", len(failed))
		for i, msg := range failed {
			if i >= 10 {
				util.WarnLog("... and %d more errors", len(failed)-10)
				break
			}
			util.WarnLog("  - %s", msg)
		}
	}

	if eventLogPath == "" {
		return nil
	}

	summary, err := report.Summarize(eventLogPath)
	if err != nil {
		util.WarnLog("Failed to summarise event log: %v", err)
		return nil
	}
	summary.Duration = duration

	util.InfoLog("Files uploaded: %d (%s)", summary.FilesUploaded, humanize.IBytes(uint64(summary.BytesUploaded)))
	if summary.UploadsFailed > 0 {
		util.WarnLog("Uploads failed: %d", summary.UploadsFailed)
	}
	util.InfoLog("Catalog matches: %d matched, %d unmatched", summary.Matched, summary.Unmatched)

	reportDir, _ := cmd.Flags().GetString("report-dir")
	if reportDir == "" {
		reportDir = filepath.Join("artifacts", "reports", time.Now().Format("20060102-150405"))
	}
	reportPath := filepath.Join(reportDir, "summary.md")
	if err := report.WriteMarkdownReport(summary, reportPath); err != nil {
		util.WarnLog("Failed to write summary report: %v", err)
	} else {
		util.SuccessLog("Summary report saved to: %s", reportPath)
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d inputs failed", len(failed), len(inputs))
	}
	return nil
}
