// =============================================================================
// GDEC Price Checker - CSV Reader
// =============================================================================
//
// Some seller centres let the campaign template be downloaded as CSV instead
// of XLSX. This module reads such an export into the same raw-row shape the
// XLSX reader produces, so the rest of the pipeline does not care which one
// it got.
//
// FEATURES:
//   - Delimiter sniffed from the first line (comma, semicolon, tab, pipe)
//   - UTF-8 byte order mark stripped, UTF-16 exports decoded
//   - Ragged rows and loose quoting accepted
//
// =============================================================================

package csvparser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/errs"
)

var candidates = []rune{',', ';', '\t', '|'}

// ReadFile reads the CSV file at path as raw rows.
//
// RETURNS:
//   - the rows
//   - a *errs.SourceError if the file cannot be opened or parsed
func ReadFile(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errs.NewSourceError("open", path, err)
	}
	defer file.Close()

	return Read(file, path)
}

// Read parses CSV content from r. name is used in error messages.
func Read(r io.Reader, name string) ([][]string, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	buffered := bufio.NewReader(decoded)

	head, _ := buffered.Peek(4096)
	csvReader := csv.NewReader(buffered)
	csvReader.Comma = sniffDelimiter(head)
	csvReader.FieldsPerRecord = -1
	csvReader.LazyQuotes = true

	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, errs.NewSourceError("read", name, fmt.Errorf("failed to read CSV: %w", err))
	}
	if len(rows) == 0 {
		return nil, errs.NewSourceError("read", name, fmt.Errorf("CSV file is empty"))
	}
	return rows, nil
}

// sniffDelimiter picks the candidate that occurs most often in the first
// line, defaulting to comma.
func sniffDelimiter(head []byte) rune {
	line := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		line = head[:i]
	}

	best, bestCount := ',', 0
	for _, c := range candidates {
		if n := strings.Count(string(line), string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}
