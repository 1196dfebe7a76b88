package repl

import (
	"context"
	"strings"
)

// handleAdHocFunction handles the dot-commands that are not LogQL. It
// reports whether trimmed named a known command.
func (s *Session) handleAdHocFunction(ctx context.Context, query string) bool {
	trimmed := strings.TrimSpace(query)
	name, args, _ := strings.Cut(trimmed, " ")
	args = strings.TrimSpace(args)

	switch name {
	case ".help":
		s.handleHelpCommand()
	case ".labels":
		s.handleAdhocLabels(ctx, args)
	case ".values":
		s.handleAdhocValues(ctx, args)
	case ".tokens":
		s.handleAdhocTokens(args)
	case ".complete":
		s.handleAdhocComplete(ctx, args)
	case ".cache":
		s.handleAdhocCache()
	case ".stats":
		s.handleAdhocStats()
	case ".load":
		s.handleAdhocLoad(args)
	case ".source":
		s.handleAdhocSource(ctx, args)
	case ".edit":
		s.handleAdhocEdit(ctx, args)
	case ".history":
		s.handleAdhocHistory(args)
	default:
		s.printf("Unknown command %q, try .help\n", name)
		return false
	}
	return true
}

// handleHelpCommand handles the .help command
func (s *Session) handleHelpCommand() {
	var b strings.Builder
	b.WriteString("\nAd-hoc commands:\n")
	for _, cmd := range AdHocCommands {
		b.WriteString("  " + cmd.Usage + "\n")
		b.WriteString("    " + cmd.Description + "\n")
		switch len(cmd.Examples) {
		case 0:
		case 1:
			b.WriteString("    Example: " + cmd.Examples[0] + "\n")
		default:
			b.WriteString("    Examples:\n")
			for _, ex := range cmd.Examples {
				b.WriteString("      " + ex + "\n")
			}
		}
	}
	b.WriteString("\nKeys: Tab accepts the highlighted suggestion, Ctrl-N/Ctrl-P move through the list,\n")
	b.WriteString("Ctrl-G dismisses it, Enter submits the query.\n\n")
	s.printf("%s", b.String())
}
