package repl

import (
	"os"
	"path/filepath"
	"strings"
)

// BuildFilteredHistory builds a newest-first filtered history slice based on the given prefix.
// - Preserves duplicates for 1:1 navigation
// - Returns entries from most recent to oldest
func BuildFilteredHistory(prefix string, history []string) []string {
	out := make([]string, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		entry := history[i]
		if prefix == "" || strings.HasPrefix(entry, prefix) {
			out = append(out, entry)
		}
	}
	return out
}

// loadHistoryFromFile reads non-empty lines from the given history file path.
func loadHistoryFromFile(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var out []string
	for _, ln := range strings.Split(string(data), "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			out = append(out, ln)
		}
	}
	return out
}

// appendToHistoryFile appends a single entry to the history file, creating
// the parent directory when needed.
func appendToHistoryFile(path, entry string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(entry + "\n"); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// historyNav implements prefix-filtered history navigation: with text left
// of the cursor, Ctrl-P/Ctrl-N walk only the entries starting with it.
type historyNav struct {
	lastPrefix string // prefix captured before Up/Down
	seedLine   []rune // editing line before entering navigation for lastPrefix
	matches    []string
	idx        int // current selection index in matches; len(matches) means seedLine
}

// track resets navigation when the prefix left of the cursor changed.
func (h *historyNav) track(prefix string, line []rune, history []string) {
	if h.lastPrefix == prefix {
		return
	}
	h.lastPrefix = prefix
	h.seedLine = append(h.seedLine[:0], line...)
	h.matches = h.matches[:0]
	if prefix != "" {
		h.matches = BuildFilteredHistory(prefix, history)
	}
	h.idx = len(h.matches)
}

// older returns the previous matching entry, or false to leave the key to
// readline's default history.
func (h *historyNav) older() ([]rune, bool) {
	if h.lastPrefix == "" || len(h.matches) == 0 {
		return nil, false
	}
	switch {
	case h.idx == len(h.matches):
		h.idx = 0
	case h.idx < len(h.matches)-1:
		h.idx++
	}
	return []rune(h.matches[h.idx]), true
}

// newer returns the next newer matching entry, ending at the seed line.
func (h *historyNav) newer() ([]rune, bool) {
	if h.lastPrefix == "" || len(h.matches) == 0 {
		return nil, false
	}
	if h.idx > 0 && h.idx < len(h.matches) {
		h.idx--
		return []rune(h.matches[h.idx]), true
	}
	h.idx = len(h.matches)
	return append([]rune(nil), h.seedLine...), true
}
