package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/jjo/logql-cli/pkg/querybar"
)

const (
	keyBell  = rune(7)  // Ctrl-G, dismisses the suggestion list
	keyTab   = rune(9)  // opens the list, or applies the highlighted entry
	keyCtrlJ = rune(10) // readline CharCtrlJ
	keyEnter = rune(13) // readline CharEnter
	keyDown  = rune(14) // readline CharNext (Ctrl-N)
	keyUp    = rune(16) // readline CharPrev (Ctrl-P)
)

// lineListener bridges readline edits to the query bar controller. While
// the suggestion list is open Ctrl-N/Ctrl-P move through it; otherwise they
// walk the prefix-filtered history.
type lineListener struct {
	ctrl    *querybar.Controller
	history func() []string

	mu       sync.Mutex
	nav      historyNav
	lastLine []rune
	lastPos  int
}

func newLineListener(ctrl *querybar.Controller, history func() []string) *lineListener {
	return &lineListener{ctrl: ctrl, history: history}
}

func (l *lineListener) OnChange(line []rune, pos int, key rune) ([]rune, int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch key {
	case keyEnter, keyCtrlJ:
		// The line was already handed to Readline's caller.
		l.remember(nil, 0)
		return nil, 0, false

	case keyBell:
		cleaned, newPos := stripRune(line, pos, keyBell)
		l.ctrl.Dismiss()
		l.remember(cleaned, newPos)
		return cleaned, newPos, true

	case keyTab:
		line, pos = stripRune(line, pos, keyTab)
		if l.ctrl.HandleKey(querybar.KeyTab) {
			snap := l.ctrl.Snapshot()
			out := []rune(snap.Text)
			l.remember(out, snap.Cursor)
			return out, snap.Cursor, true
		}
		l.ctrl.SetText(string(line), pos)
		l.ctrl.ResolveNow()
		l.remember(line, pos)
		return line, pos, true

	case keyDown, keyUp:
		if l.listOpen() {
			k := querybar.KeyDown
			if key == keyUp {
				k = querybar.KeyUp
			}
			l.ctrl.HandleKey(k)
			// Undo readline's own history step.
			restored := append([]rune(nil), l.lastLine...)
			return restored, l.lastPos, true
		}
		var (
			candidate []rune
			ok        bool
		)
		if key == keyUp {
			candidate, ok = l.nav.older()
		} else {
			candidate, ok = l.nav.newer()
		}
		if !ok {
			l.sync(line, pos)
			return nil, 0, false
		}
		// The navigation prefix stays as tracked before the first step.
		l.ctrl.SetText(string(candidate), len(candidate))
		l.remember(candidate, len(candidate))
		return candidate, len(candidate), true
	}

	l.sync(line, pos)
	l.nav.track(string(line[:pos]), line, l.history())
	return nil, 0, false
}

func (l *lineListener) listOpen() bool {
	return l.ctrl.Snapshot().State == querybar.SuggestionsOpen
}

// sync forwards an edit or cursor move to the controller.
func (l *lineListener) sync(line []rune, pos int) {
	switch {
	case string(line) != string(l.lastLine):
		l.ctrl.SetText(string(line), pos)
	case pos != l.lastPos:
		l.ctrl.SetCursor(pos)
	}
	l.remember(line, pos)
}

func (l *lineListener) remember(line []rune, pos int) {
	l.lastLine = append(l.lastLine[:0], line...)
	l.lastPos = pos
}

// stripRune removes every r from line, shifting pos left for each removal
// before it.
func stripRune(line []rune, pos int, r rune) ([]rune, int) {
	out := make([]rune, 0, len(line))
	newPos := pos
	for i, c := range line {
		if c == r {
			if i < pos {
				newPos--
			}
			continue
		}
		out = append(out, c)
	}
	return out, newPos
}

// runInteractiveQueries starts an interactive session using readline: live
// highlighting, debounced completion and prefix-filtered history.
func (s *Session) runInteractiveQueries(ctx context.Context) error {
	if !s.silent {
		s.printf("Enter LogQL queries (.help for commands, 'quit' to exit):\n\n")
	}

	ctrl := s.newController(s.debounce)
	defer ctrl.Close()
	listener := newLineListener(ctrl, s.History)

	cfg := &readline.Config{
		Prompt:                 "LogQL> ",
		InterruptPrompt:        "^C",
		EOFPrompt:              "exit",
		DisableAutoSaveHistory: true,
		Listener:               listener,
	}
	if s.color {
		cfg.Painter = queryPainter{}
	}
	rl, err := readline.NewEx(cfg)
	if err != nil {
		s.printf("Warning: Could not initialize readline, falling back to basic input: %v\n", err)
		return s.runBasicInteractiveQueries(ctx, os.Stdin)
	}
	defer rl.Close()

	for _, h := range s.History() {
		_ = rl.SaveHistory(h)
	}
	s.setOutput(rl.Stdout())
	defer s.setOutput(os.Stdout)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				ctrl.Dismiss()
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		query := strings.TrimSpace(line)
		ctrl.Dismiss()
		if query == "" {
			continue
		}
		_ = rl.SaveHistory(query)

		if strings.HasPrefix(query, ".") || query == "quit" || query == "exit" {
			if s.Execute(ctx, query) {
				return nil
			}
			continue
		}
		ctrl.SetText(query, -1)
		if err := ctrl.Submit(); err == nil {
			// Nothing runs the query here, so the submission completes at once.
			ctrl.SetLoading(false)
		}
	}
}

// runBasicInteractiveQueries is the fallback when readline cannot drive
// the terminal: plain line input, no completion.
func (s *Session) runBasicInteractiveQueries(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	for {
		if !s.silent {
			s.printf("LogQL> ")
		}
		if !sc.Scan() {
			return sc.Err()
		}
		if s.Execute(ctx, sc.Text()) {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
