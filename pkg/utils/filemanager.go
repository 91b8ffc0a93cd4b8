// =============================================================================
// GDEC Price Checker - File Manager Utility
// =============================================================================
//
// This module provides the file handling around a reconciliation run:
//   - Pre-flight checks that inputs can be read and the destination written
//   - Output file naming
//   - Directory management
//   - Run summary files
//
// LOCKED FILES:
//   Spreadsheet programs keep a workbook open for writing while it is being
//   edited. Opening the destination read-write before the run starts turns
//   that into a SourceUnavailable error naming the file, instead of a failed
//   rename after all the work is done.
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/errs"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/types"
)

// =============================================================================
// PRE-FLIGHT CHECKS
// =============================================================================

// CheckReadable verifies that the input file at path can be opened.
func CheckReadable(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return errs.NewSourceError("open", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return errs.NewSourceError("open", path, err)
	}
	if info.IsDir() {
		return errs.NewSourceError("open", path, fmt.Errorf("is a directory"))
	}
	return nil
}

// CheckWritable verifies that path can be written. An existing file must be
// openable read-write; otherwise its directory must exist.
func CheckWritable(path string) error {
	if FileExists(path) {
		file, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			return errs.NewSourceError("write", path, fmt.Errorf("destination is locked or read-only: %w", err))
		}
		return file.Close()
	}

	info, err := os.Stat(filepath.Dir(path))
	if err != nil {
		return errs.NewSourceError("write", path, err)
	}
	if !info.IsDir() {
		return errs.NewSourceError("write", path, fmt.Errorf("%s is not a directory", filepath.Dir(path)))
	}
	return nil
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// EnsureDir creates dir and its parents if they don't exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// OutputFileName generates the name of a reconciled workbook.
//
// PARAMETERS:
//   - format: The format string for the file name.
//     Placeholders:
//     {uuid}      - A random UUID
//     {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//     {date}      - Current date (YYYYMMDD)
//     {time}      - Current time (HHMMSS)
//     {original}  - Target file name without extension
//     {platform}  - Marketplace
//     {mode}      - regular or manual
//   - params: A map of placeholder values. "original" may be a full path.
//
// EXAMPLE:
//
//	format: "Updated_{original}"
//	params: {"original": "/data/lazada export.xlsx"}
//	output: "Updated_lazada export.xlsx"
func OutputFileName(format string, params map[string]string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		if key == "original" {
			base := filepath.Base(value)
			value = strings.TrimSuffix(base, filepath.Ext(base))
		}
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if !strings.HasSuffix(strings.ToLower(result), ".xlsx") {
		result += ".xlsx"
	}
	return result
}

// =============================================================================
// RUN SUMMARY
// =============================================================================

// RunSummary describes one finished reconciliation.
type RunSummary struct {
	RunID     string
	Policy    string
	PromoName string

	Target    string
	Promotion string
	Output    string

	StartTime time.Time
	EndTime   time.Time

	Stats types.Stats
}

// WriteSummary writes a run summary next to the output workbook.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummary(summary RunSummary, outputDir string) (string, error) {
	name := fmt.Sprintf("run_summary_%s_%s.txt", summary.EndTime.Format("20060102_150405"), shortID(summary.RunID))
	path := filepath.Join(outputDir, name)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "GDEC Price Checker - Run Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Policy:         %s\n"+
		"  Promotion:      %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Files:\n"+
		"  Target:         %s\n"+
		"  Campaign List:  %s\n"+
		"  Output:         %s\n\n",
		summary.RunID,
		summary.Policy,
		summary.PromoName,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String(),
		summary.Target,
		summary.Promotion,
		summary.Output)

	s := summary.Stats
	fmt.Fprintf(writer, "Statistics:\n"+
		"  Target Rows:        %d\n"+
		"  Campaign Rows:      %d\n"+
		"  Selected Rows:      %d\n"+
		"  Eligible:           %d\n"+
		"  Escalated:          %d\n"+
		"  Unaffected:         %d\n"+
		"  Appended:           %d\n"+
		"  Passed Over:        %d\n\n",
		s.TargetRows, s.PromotionRows, s.SelectedRows,
		s.Eligible, s.Escalated, s.Unaffected, s.Appended, s.PassedOver)

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}
	return path, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
