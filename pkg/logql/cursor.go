package logql

import "unicode/utf8"

// RuneToByteOffset converts a cursor expressed in runes to a byte offset in
// text, clamping it to [0, len(text)].
func RuneToByteOffset(text string, cursor int) int {
	if cursor <= 0 {
		return 0
	}
	n := 0
	for i := range text {
		if n == cursor {
			return i
		}
		n++
	}
	return len(text)
}

// ByteToRuneOffset converts a byte offset in text to a rune cursor.
func ByteToRuneOffset(text string, offset int) int {
	if offset <= 0 {
		return 0
	}
	if offset > len(text) {
		offset = len(text)
	}
	return utf8.RuneCountInString(text[:offset])
}
