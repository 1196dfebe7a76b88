package repl

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/jjo/logql-cli/pkg/logql"
)

// LogQL-aware word separators used for word boundary detection
const LogQLSeparators = "(){}[]\" \t\n,=~!`"

// getEditorCommand returns the user's preferred editor from environment variables,
// falling back to nano as default.
// Checks LOGQL_EDITOR, VISUAL, EDITOR in that order.
func getEditorCommand() string {
	for _, envVar := range []string{"LOGQL_EDITOR", "VISUAL", "EDITOR"} {
		if editor := strings.TrimSpace(os.Getenv(envVar)); editor != "" {
			return editor
		}
	}
	return "nano"
}

// isWordBoundaryRune checks if a rune is a word boundary using LogQL separators
func isWordBoundaryRune(r rune) bool {
	return strings.ContainsRune(LogQLSeparators, r)
}

// shellQuote safely quotes a string for use in shell commands using POSIX single-quote escaping
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}

// flattenEditorText joins a multi-line buffer into a single query line.
func flattenEditorText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// editInEditor opens initial in the user's editor and returns the saved
// buffer flattened to one line.
func editInEditor(initial string) (string, error) {
	f, err := os.CreateTemp("", "logql-*.logql")
	if err != nil {
		return "", err
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.WriteString(initial + "\n"); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	cmd := exec.Command("sh", "-c", getEditorCommand()+" "+shellQuote(path))
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("running editor: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return flattenEditorText(string(data)), nil
}

// wordBeforeCursor returns the rune length of the word left of cursor,
// delimited by LogQLSeparators.
func wordBeforeCursor(runes []rune, cursor int) int {
	i := cursor
	for i > 0 && !isWordBoundaryRune(runes[i-1]) {
		i--
	}
	return cursor - i
}

// completionText returns the text a word-replacing completion menu must
// insert, in place of the word before cursor, so the result matches
// logql.ApplySuggestion. When the two cannot agree the raw value is used.
func completionText(text string, cursor int, s logql.Suggestion) string {
	runes := []rune(text)
	if cursor < 0 || cursor > len(runes) {
		cursor = len(runes)
	}
	prefix := string(runes[:cursor-wordBeforeCursor(runes, cursor)])
	after := string(runes[cursor:])

	applied, _ := logql.ApplySuggestion(text, cursor, s)
	if applied == text || !strings.HasPrefix(applied, prefix) || !strings.HasSuffix(applied, after) ||
		len(applied) < len(prefix)+len(after) {
		return s.Value
	}
	return applied[len(prefix) : len(applied)-len(after)]
}
