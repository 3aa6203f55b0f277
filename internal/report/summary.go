package report

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// SummaryReport aggregates one event log
type SummaryReport struct {
	GeneratedAt time.Time
	Duration    time.Duration

	FilesUploaded int
	UploadsFailed int
	BytesUploaded int64
	Archives      int

	Matched        int
	Unmatched      int
	MeanConfidence float64

	MergesWritten int
	MergesFailed  int

	// Counts by provider or fallback source
	Sources   map[string]int
	TopErrors []ErrorSummary

	EventLogPath string
}

// ErrorSummary represents an error with its count
type ErrorSummary struct {
	Error string
	Count int
}

// Summarize reads a JSONL event log and aggregates it
func Summarize(eventLogPath string) (*SummaryReport, error) {
	file, err := os.Open(eventLogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(strings.TrimSpace(scanner.Text())) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("failed to decode event %d: %w", len(events)+1, err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}

	report := BuildSummary(events, 10)
	report.EventLogPath = eventLogPath
	return report, nil
}

// BuildSummary aggregates events, keeping at most topErrors error strings
func BuildSummary(events []Event, topErrors int) *SummaryReport {
	report := &SummaryReport{
		GeneratedAt: time.Now(),
		Sources:     make(map[string]int),
		TopErrors:   make([]ErrorSummary, 0),
	}

	archives := make(map[string]bool)
	errorCounts := make(map[string]int)
	var confidenceSum float64
	var first, last time.Time

	for _, e := range events {
		if !e.Timestamp.IsZero() {
			if first.IsZero() || e.Timestamp.Before(first) {
				first = e.Timestamp
			}
			if e.Timestamp.After(last) {
				last = e.Timestamp
			}
		}
		if e.Archive != "" {
			archives[e.Archive] = true
		}
		if e.Error != "" {
			errorCounts[e.Error]++
		}

		switch e.Event {
		case EventUpload:
			if e.Error != "" {
				report.UploadsFailed++
				continue
			}
			report.FilesUploaded++
			report.BytesUploaded += e.Bytes
		case EventMatch:
			candidates := e.Extra["candidates"]
			if candidates == "" || candidates == "0" {
				report.Unmatched++
				continue
			}
			report.Matched++
			confidenceSum += e.Confidence
			if e.Source != "" {
				report.Sources[e.Source]++
			}
		case EventMerge:
			if e.Error != "" {
				report.MergesFailed++
			} else {
				report.MergesWritten++
			}
		}
	}

	if report.Matched > 0 {
		report.MeanConfidence = confidenceSum / float64(report.Matched)
	}
	if !first.IsZero() {
		report.Duration = last.Sub(first)
	}
	report.Archives = len(archives)
	report.TopErrors = gatherTopErrors(errorCounts, topErrors)

	return report
}

// gatherTopErrors orders errors by count, most common first
func gatherTopErrors(counts map[string]int, limit int) []ErrorSummary {
	errors := make([]ErrorSummary, 0, len(counts))
	for err, count := range counts {
		errors = append(errors, ErrorSummary{Error: err, Count: count})
	}

	sort.Slice(errors, func(i, j int) bool {
		if errors[i].Count != errors[j].Count {
			return errors[i].Count > errors[j].Count
		}
		return errors[i].Error < errors[j].Error
	})

	if len(errors) > limit {
		errors = errors[:limit]
	}
	return errors
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var md strings.Builder

	md.WriteString("# Vaultify - Ingest Summary\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}
	md.WriteString("---\n\n")

	md.WriteString("## Uploads\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Files Uploaded | %d |\n", report.FilesUploaded))
	if report.UploadsFailed > 0 {
		md.WriteString(fmt.Sprintf("| Uploads Failed | %d |\n", report.UploadsFailed))
	}
	if report.Archives > 0 {
		md.WriteString(fmt.Sprintf("| Archives | %d |\n", report.Archives))
	}
	md.WriteString(fmt.Sprintf("| Bytes Uploaded | %s |\n", humanize.IBytes(uint64(report.BytesUploaded))))
	if report.Duration > 0 {
		md.WriteString(fmt.Sprintf("| Elapsed | %s |\n", report.Duration.Round(time.Second)))
	}
	md.WriteString("\n")

	if report.Matched > 0 || report.Unmatched > 0 {
		md.WriteString("## Matching\n\n")
		md.WriteString("| Metric | Value |\n")
		md.WriteString("|--------|-------|\n")
		md.WriteString(fmt.Sprintf("| Matched | %d |\n", report.Matched))
		md.WriteString(fmt.Sprintf("| Unmatched | %d |\n", report.Unmatched))
		md.WriteString(fmt.Sprintf("| Mean Confidence | %.2f |\n", report.MeanConfidence))
		md.WriteString("\n")

		if len(report.Sources) > 0 {
			names := make([]string, 0, len(report.Sources))
			for name := range report.Sources {
				names = append(names, name)
			}
			sort.Strings(names)

			md.WriteString("| Source | Selected |\n")
			md.WriteString("|--------|----------|\n")
			for _, name := range names {
				md.WriteString(fmt.Sprintf("| %s | %d |\n", name, report.Sources[name]))
			}
			md.WriteString("\n")
		}
	}

	if report.MergesWritten > 0 || report.MergesFailed > 0 {
		md.WriteString("## Metadata Store\n\n")
		md.WriteString(fmt.Sprintf("- Records merged: %d\n", report.MergesWritten))
		if report.MergesFailed > 0 {
			md.WriteString(fmt.Sprintf("- Merges failed: %d\n", report.MergesFailed))
		}
		md.WriteString("\n")
	}

	if len(report.TopErrors) > 0 {
		md.WriteString("## Top Errors\n\n")
		md.WriteString("| Count | Error |\n")
		md.WriteString("|-------|-------|\n")
		for _, err := range report.TopErrors {
			md.WriteString(fmt.Sprintf("| %d | %s |\n", err.Count, truncate(err.Error, 120)))
		}
		md.WriteString("\n")
	}

	if err := os.WriteFile(outputPath, []byte(md.String()), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

// truncate shortens s from the middle, keeping start and end
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	start := maxLen/2 - 2
	end := len(s) - (maxLen/2 - 2)
	return s[:start] + "..." + s[end:]
}
