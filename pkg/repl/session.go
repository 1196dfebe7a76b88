// Package repl is the interactive front end of logql-cli: a query bar with
// live highlighting and completion, ad-hoc dot-commands and query history.
package repl

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jjo/logql-cli/pkg/complete"
	"github.com/jjo/logql-cli/pkg/logql"
	"github.com/jjo/logql-cli/pkg/querybar"
	"github.com/jjo/logql-cli/pkg/storage"
)

// Options configures a Session.
type Options struct {
	Provider *complete.Provider
	Gatherer prometheus.Gatherer
	Out      io.Writer
	Logger   logr.Logger

	// Source answers .labels and .values directly, bypassing the caches.
	Source complete.LabelSource

	// Store, when set, is the local store behind Source and accepts .load.
	Store *storage.StreamStore

	HistoryFile string
	Debounce    time.Duration
	Color       bool
	Silent      bool
}

// Session holds the state shared by the REPL backends and dot-commands.
type Session struct {
	provider    *complete.Provider
	source      complete.LabelSource
	store       *storage.StreamStore
	gatherer    prometheus.Gatherer
	log         logr.Logger
	historyPath string
	debounce    time.Duration
	color       bool
	silent      bool

	// exec submits non-interactive input through the same validity gate.
	exec *querybar.Controller
	edit func(initial string) (string, error)

	mu       sync.Mutex
	out      io.Writer
	history  []string
	rendered string // last suggestion list printed
}

func New(opts Options) *Session {
	s := &Session{
		provider:    opts.Provider,
		source:      opts.Source,
		store:       opts.Store,
		gatherer:    opts.Gatherer,
		log:         opts.Logger,
		historyPath: opts.HistoryFile,
		debounce:    opts.Debounce,
		color:       opts.Color,
		silent:      opts.Silent,
		out:         opts.Out,
		edit:        editInEditor,
	}
	if s.log.GetSink() == nil {
		s.log = logr.Discard()
	}
	if s.out == nil {
		s.out = os.Stdout
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.NewRegistry()
	}
	if s.historyPath != "" {
		s.history = loadHistoryFromFile(s.historyPath)
	}
	s.exec = s.newController(-1)
	return s
}

// mount starts loading the global label list in the background.
func (s *Session) mount(ctx context.Context) {
	go s.provider.Init(ctx)
}

func (s *Session) newController(debounce time.Duration) *querybar.Controller {
	return querybar.New(s.provider, querybar.Options{
		Debounce: debounce,
		OnUpdate: s.renderSuggestions,
		OnSubmit: s.accept,
		OnError:  s.reportInvalid,
		Logger:   s.log.WithName("querybar"),
	})
}

// Execute runs one line of input: a dot-command or a query. It reports
// whether the session should end.
func (s *Session) Execute(ctx context.Context, line string) (quit bool) {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return false
	case trimmed == "quit" || trimmed == ".quit" || trimmed == "exit":
		return true
	case strings.HasPrefix(trimmed, "."):
		s.appendHistory(trimmed)
		s.handleAdHocFunction(ctx, trimmed)
		return false
	}
	s.exec.SetText(trimmed, -1)
	if err := s.exec.Submit(); err == nil {
		s.exec.SetLoading(false)
	}
	return false
}

// RunInitCommands executes semicolon or newline separated input before the
// interactive session starts.
func (s *Session) RunInitCommands(ctx context.Context, commands string) {
	seps := strings.NewReplacer("\n", ";", "\r", ";")
	for _, p := range strings.Split(seps.Replace(commands), ";") {
		if s.Execute(ctx, p) {
			return
		}
	}
}

// accept records a query that passed the validity gate. Running it is the
// caller's business; the session echoes it and keeps it in history.
func (s *Session) accept(query string) {
	s.appendHistory(query)
	s.printf("Accepted: %s\n", s.paint(query))
	s.log.V(1).Info("query accepted", "query", query)
}

func (s *Session) reportInvalid(err error) {
	s.printf("Invalid query: %v\n", err)
}

func (s *Session) appendHistory(entry string) {
	s.mu.Lock()
	s.history = append(s.history, entry)
	s.mu.Unlock()
	if s.historyPath != "" {
		if err := appendToHistoryFile(s.historyPath, entry); err != nil {
			s.log.V(1).Info("history append failed", "path", s.historyPath, "error", err.Error())
		}
	}
}

// History returns a copy of the in-memory history, oldest first.
func (s *Session) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.history...)
}

func (s *Session) setOutput(w io.Writer) {
	s.mu.Lock()
	s.out = w
	s.mu.Unlock()
}

func (s *Session) printf(format string, args ...any) {
	s.mu.Lock()
	w := s.out
	s.mu.Unlock()
	fmt.Fprintf(w, format, args...)
}

func (s *Session) paint(query string) string {
	if s.color {
		return Highlight(query)
	}
	return query
}

// renderSuggestions prints the open suggestion list once per distinct
// content or selection.
func (s *Session) renderSuggestions(snap querybar.Snapshot) {
	if snap.State != querybar.SuggestionsOpen {
		s.mu.Lock()
		s.rendered = ""
		s.mu.Unlock()
		return
	}
	list := formatSuggestions(snap.Suggestions, snap.Selected, terminalWidth(80), s.color)
	s.mu.Lock()
	if list == s.rendered {
		s.mu.Unlock()
		return
	}
	s.rendered = list
	w := s.out
	s.mu.Unlock()
	fmt.Fprint(w, list)
}

// ApplyAt is the non-interactive form of completion: resolve the target at
// cursor, fetch suggestions and, when selected is in range, apply that one.
func (s *Session) ApplyAt(ctx context.Context, text string, cursor, selected int) (logql.Target, []logql.Suggestion, string, int) {
	if cursor < 0 {
		cursor = len([]rune(text))
	}
	target := logql.ResolveAt(text, cursor)
	suggestions := s.provider.Suggest(ctx, target)
	if selected >= 0 && selected < len(suggestions) {
		newText, newCursor := logql.ApplySuggestion(text, cursor, suggestions[selected])
		return target, suggestions, newText, newCursor
	}
	return target, suggestions, text, cursor
}
