package utils

import (
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrInvalidCSV is returned when the input has no header or no data rows.
var ErrInvalidCSV = errors.New("CSV must have headers and at least one data row")

// ParseCSV parses comma-delimited text into ordered row-records mapping
// header name to trimmed value. Rows whose value count does not match the
// header count are skipped with a warning rather than failing the import.
//
// Embedded commas are not supported: there is no quoting or escaping, so
// a comma inside a field breaks column alignment and the row is dropped.
func ParseCSV(text string) ([]map[string]string, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	nonEmpty := 0
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			nonEmpty++
		}
	}
	if nonEmpty < 2 {
		return nil, ErrInvalidCSV
	}

	headers := splitAndTrim(lines[0])

	var rows []map[string]string
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}

		values := splitAndTrim(lines[i])
		if len(values) != len(headers) {
			logrus.WithFields(logrus.Fields{
				"line":     i + 1,
				"values":   len(values),
				"expected": len(headers),
			}).Warn("Skipping CSV row with mismatched column count")
			continue
		}

		row := make(map[string]string, len(headers))
		for j, header := range headers {
			row[header] = values[j]
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// CSVHeaders returns the trimmed header row of the given CSV text.
func CSVHeaders(text string) []string {
	lines := strings.SplitN(strings.ReplaceAll(text, "\r\n", "\n"), "\n", 2)
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil
	}
	return splitAndTrim(lines[0])
}

func splitAndTrim(line string) []string {
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
