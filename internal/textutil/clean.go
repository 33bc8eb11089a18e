package textutil

import "strings"

// trademarkReplacer strips the marks that show up on packaging photos.
var trademarkReplacer = strings.NewReplacer("®", "", "™", "", "©", "")

// FoldSpace collapses runs of whitespace into single spaces and trims the ends.
func FoldSpace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// StripMarks removes trademark and copyright symbols.
func StripMarks(value string) string {
	return trademarkReplacer.Replace(value)
}

// Clamp truncates a string to at most max runes.
func Clamp(value string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}

// HasLetter reports whether the string contains at least one letter.
func HasLetter(value string) bool {
	for _, r := range value {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') {
			return true
		}
	}
	return false
}
