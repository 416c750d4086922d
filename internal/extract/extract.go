// Package extract pulls artifacts out of captured CLI output. Matching is
// line oriented and first match wins, mirroring how the CLI under test
// prints one labeled fact per line.
package extract

import (
	"strconv"
	"strings"
)

const (
	// SuccessMarker is the glyph the CLI prints on successful operations
	SuccessMarker = "✅"

	// FailureMarker is the glyph the CLI prints on failed operations
	FailureMarker = "❌"

	// AddressHexLen is the hex digit count of an EVM address token
	AddressHexLen = 40
)

// softMarkers flag benign outcomes that are not real failures even when
// the exit code says otherwise (matched case-insensitively)
var softMarkers = []string{"not found", "dry run", "simulation"}

// FindInt returns the first integer that follows label on the earliest
// line containing label. A line whose label is not followed by a
// parseable integer does not count as a match.
func FindInt(text, label string) (int64, bool) {
	for _, line := range lines(text) {
		idx := strings.Index(line, label)
		if idx < 0 {
			continue
		}

		value, ok := firstInt(line[idx+len(label):])
		if !ok {
			// Label present but no usable number, keep scanning
			continue
		}
		return value, true
	}
	return 0, false
}

// FindAddress returns the first address-shaped token (0x plus 40 hex
// digits) on the earliest line containing label.
func FindAddress(text, label string) (string, bool) {
	return FindHexToken(text, label, AddressHexLen)
}

// FindHexToken returns the first 0x-prefixed token of exactly hexLen hex
// digits on the earliest line containing label.
func FindHexToken(text, label string, hexLen int) (string, bool) {
	for _, line := range lines(text) {
		idx := strings.Index(line, label)
		if idx < 0 {
			continue
		}

		if token, ok := firstHexToken(line[idx+len(label):], hexLen); ok {
			return token, true
		}
	}
	return "", false
}

// ScanAddress returns the first address-shaped token anywhere in the text
func ScanAddress(text string) (string, bool) {
	for _, line := range lines(text) {
		if token, ok := firstHexToken(line, AddressHexLen); ok {
			return token, true
		}
	}
	return "", false
}

// HasSuccessMarker reports whether the success glyph appears in the text
func HasSuccessMarker(text string) bool {
	return strings.Contains(text, SuccessMarker)
}

// HasFailureMarker reports whether the failure glyph appears in the text
func HasFailureMarker(text string) bool {
	return strings.Contains(text, FailureMarker)
}

// HasSoftMarker reports whether the text carries a benign-outcome marker
func HasSoftMarker(text string) bool {
	lowered := strings.ToLower(text)
	for _, marker := range softMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// lines splits captured output, tolerating the \r\n endings a PTY produces
func lines(text string) []string {
	split := strings.Split(text, "\n")
	for i, line := range split {
		split[i] = strings.TrimRight(line, "\r")
	}
	return split
}

// firstInt finds the first run of decimal digits in s
func firstInt(s string) (int64, bool) {
	start := -1
	for i := 0; i <= len(s); i++ {
		if i < len(s) && s[i] >= '0' && s[i] <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			value, err := strconv.ParseInt(s[start:i], 10, 64)
			if err != nil {
				// Overflow; treat as absent and look further
				start = -1
				continue
			}
			return value, true
		}
	}
	return 0, false
}

// firstHexToken finds the first 0x-prefixed token of exactly hexLen hex
// digits in s. Longer hex runs (transaction hashes, signer keys when an
// address is wanted) are skipped, not truncated.
func firstHexToken(s string, hexLen int) (string, bool) {
	for i := 0; i+2+hexLen <= len(s); i++ {
		if s[i] != '0' || s[i+1] != 'x' {
			continue
		}

		run := 0
		for i+2+run < len(s) && isHexDigit(s[i+2+run]) {
			run++
		}

		if run == hexLen {
			return s[i : i+2+hexLen], true
		}

		// Skip past this token entirely
		i += 1 + run
	}
	return "", false
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
