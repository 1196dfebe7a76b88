//go:build !prompt

package repl

import (
	"context"
	"errors"
)

// ErrPromptUnavailable is returned when the go-prompt backend is requested
// from a binary built without it.
var ErrPromptUnavailable = errors.New("--repl=prompt requested but not compiled in, build with: go build -tags prompt")

// Run starts the interactive session on the named backend.
func (s *Session) Run(ctx context.Context, backend string) error {
	if backend == "prompt" {
		return ErrPromptUnavailable
	}
	s.mount(ctx)
	return s.runInteractiveQueries(ctx)
}
