package domain

import (
	"fmt"
	"strings"
)

// ColumnLetter converts a 0-indexed column position to its spreadsheet
// letter using bijective base-26: 0 -> A, 25 -> Z, 26 -> AA.
func ColumnLetter(position int) string {
	if position < 0 {
		return ""
	}
	n := position + 1
	var buf []byte
	for n > 0 {
		n--
		buf = append(buf, byte('A'+n%26))
		n /= 26
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

// ColumnPosition is the inverse of ColumnLetter. Letters are case-insensitive.
func ColumnPosition(letter string) (int, error) {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if letter == "" {
		return 0, fmt.Errorf("ColumnPosition: empty column letter")
	}
	n := 0
	for _, r := range letter {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("ColumnPosition: invalid column letter %q", letter)
		}
		n = n*26 + int(r-'A') + 1
	}
	return n - 1, nil
}
