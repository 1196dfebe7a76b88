//go:build !unix

package repl

func terminalWidth(fallback int) int { return fallback }
