//go:build unix

package repl

import (
	"os"

	"golang.org/x/sys/unix"
)

// terminalWidth returns the column count of stdout, or fallback when stdout
// is not a terminal.
func terminalWidth(fallback int) int {
	ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 {
		return fallback
	}
	return int(ws.Col)
}
