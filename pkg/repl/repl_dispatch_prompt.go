//go:build prompt

package repl

import "context"

// Run starts the interactive session on the named backend.
func (s *Session) Run(ctx context.Context, backend string) error {
	s.mount(ctx)
	if backend == "prompt" {
		if !s.silent {
			s.printf("Using go-prompt backend (--repl=prompt)\n")
			s.printf("Enter LogQL queries (.help for commands, 'quit' to exit):\n\n")
		}
		newPromptREPL(ctx, s).Run()
		return nil
	}
	if !s.silent {
		s.printf("Using readline backend (default)\n")
	}
	return s.runInteractiveQueries(ctx)
}
