package utils

import (
	"regexp"
	"sort"
)

// SubstituteVars replaces every case-insensitive occurrence of {key} and
// {{key}} in the input with the row-record's value for that key. Keys are
// applied in sorted order so the result is deterministic; when one key is
// a substring of another (name / firstname) double-substitution artifacts
// are possible and accepted. Substituted values are inserted verbatim,
// with no HTML escaping, and the output is not re-scanned: a value that
// itself contains {key}-shaped text survives a single pass unchanged.
func SubstituteVars(input string, row map[string]string) string {
	keys := make([]string, 0, len(row))
	for key := range row {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		quoted := regexp.QuoteMeta(key)
		double := regexp.MustCompile(`(?i)\{\{` + quoted + `\}\}`)
		single := regexp.MustCompile(`(?i)\{` + quoted + `\}`)

		// Double braces first so {{key}} is not half-eaten by the
		// single-brace pattern.
		input = double.ReplaceAllLiteralString(input, row[key])
		input = single.ReplaceAllLiteralString(input, row[key])
	}

	return input
}
