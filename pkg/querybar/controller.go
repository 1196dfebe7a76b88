// Package querybar drives an interactive LogQL input: it debounces edits,
// resolves the completion target at the cursor, fetches suggestions, tracks
// keyboard selection and gates submission on a structural validity check.
//
// A Controller is safe for concurrent use. Callbacks run without the
// controller lock held, possibly on the debounce timer's goroutine.
package querybar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/jjo/logql-cli/pkg/logql"
)

const DefaultDebounce = 150 * time.Millisecond

// ErrSubmitInProgress is returned by Submit while a previous submission is
// still loading.
var ErrSubmitInProgress = errors.New("submit already in progress")

type State int

const (
	Idle State = iota
	SuggestionsOpen
	Submitting
)

func (s State) String() string {
	switch s {
	case SuggestionsOpen:
		return "suggestions-open"
	case Submitting:
		return "submitting"
	default:
		return "idle"
	}
}

// Key is a navigation or action key delivered to HandleKey.
type Key int

const (
	KeyOther Key = iota
	KeyUp
	KeyDown
	KeyEnter
	KeyTab
	KeyEscape
	KeySubmit
)

// Suggester produces suggestions for a completion target.
type Suggester interface {
	Suggest(ctx context.Context, t logql.Target) []logql.Suggestion
}

type Options struct {
	// Debounce delays resolution after an edit. Zero means DefaultDebounce;
	// negative resolves only on ResolveNow.
	Debounce time.Duration
	// Validate gates Submit. Defaults to logql.Validate.
	Validate func(string) error

	OnChange func(text string)
	OnSubmit func(text string)
	OnUpdate func(Snapshot)
	OnError  func(error)

	Logger logr.Logger
}

// Snapshot is a point-in-time copy of the controller state.
type Snapshot struct {
	Text        string
	Cursor      int
	State       State
	Target      logql.Target
	Suggestions []logql.Suggestion
	Selected    int
	Loading     bool
}

// Selection returns the highlighted suggestion, if any.
func (s Snapshot) Selection() (logql.Suggestion, bool) {
	if s.State != SuggestionsOpen || s.Selected < 0 || s.Selected >= len(s.Suggestions) {
		return logql.Suggestion{}, false
	}
	return s.Suggestions[s.Selected], true
}

type Controller struct {
	suggester Suggester
	opts      Options
	log       logr.Logger

	mu          sync.Mutex
	text        string
	cursor      int // runes
	target      logql.Target
	suggestions []logql.Suggestion
	open        bool
	selected    int
	loading     bool
	seq         uint64
	timer       *time.Timer
	cancel      context.CancelFunc
	closed      bool
}

func New(s Suggester, opts Options) *Controller {
	if opts.Debounce == 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Validate == nil {
		opts.Validate = logql.Validate
	}
	log := opts.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &Controller{suggester: s, opts: opts, log: log}
}

// SetText records an edit and restarts the debounce timer. Any pending or
// in-flight resolution is superseded. A negative cursor means end of text.
func (c *Controller) SetText(text string, cursor int) {
	c.mu.Lock()
	c.text = text
	c.cursor = clampCursor(text, cursor)
	c.scheduleLocked()
	c.mu.Unlock()
}

// SetCursor records a cursor move and restarts the debounce timer.
func (c *Controller) SetCursor(cursor int) {
	c.mu.Lock()
	c.cursor = clampCursor(c.text, cursor)
	c.scheduleLocked()
	c.mu.Unlock()
}

// HandleKey processes a key and reports whether it was consumed. Unconsumed
// keys belong to normal text editing.
func (c *Controller) HandleKey(k Key) bool {
	if k == KeySubmit {
		_ = c.Submit()
		return true
	}

	c.mu.Lock()
	if !c.open || len(c.suggestions) == 0 {
		c.mu.Unlock()
		return false
	}
	switch k {
	case KeyDown:
		c.selected = (c.selected + 1) % len(c.suggestions)
	case KeyUp:
		c.selected = (c.selected - 1 + len(c.suggestions)) % len(c.suggestions)
	case KeyEnter, KeyTab:
		i := c.selected
		c.mu.Unlock()
		return c.Select(i)
	case KeyEscape:
		c.closeLocked()
	default:
		c.mu.Unlock()
		return false
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
	return true
}

// Select applies suggestion i of the open list. It reports whether anything
// was applied.
func (c *Controller) Select(i int) bool {
	c.mu.Lock()
	if !c.open || i < 0 || i >= len(c.suggestions) {
		c.mu.Unlock()
		return false
	}
	s := c.suggestions[i]
	text, cursor := logql.ApplySuggestion(c.text, c.cursor, s)
	c.text, c.cursor = text, cursor
	c.closeLocked()
	// The cursor may now sit in a fresh completion context.
	c.scheduleLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.log.V(1).Info("suggestion applied", "value", s.Value, "kind", s.Kind.String())
	if c.opts.OnChange != nil {
		c.opts.OnChange(text)
	}
	c.notify(snap)
	return true
}

// Dismiss closes the suggestion list, as an outside click does.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	wasOpen := c.open
	c.closeLocked()
	c.stopLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if wasOpen {
		c.notify(snap)
	}
}

// Submit validates the current text and hands it to OnSubmit. Invalid text
// is reported to OnError and returned; the returned error wraps
// logql.ErrInvalidQuerySyntax.
func (c *Controller) Submit() error {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrSubmitInProgress
	}
	text := c.text
	if err := c.opts.Validate(text); err != nil {
		c.mu.Unlock()
		if !errors.Is(err, logql.ErrInvalidQuerySyntax) {
			err = fmt.Errorf("%w: %w", logql.ErrInvalidQuerySyntax, err)
		}
		c.log.V(1).Info("submit rejected", "error", err.Error())
		if c.opts.OnError != nil {
			c.opts.OnError(err)
		}
		return err
	}
	c.loading = true
	c.closeLocked()
	c.stopLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	if c.opts.OnSubmit != nil {
		c.opts.OnSubmit(text)
	}
	return nil
}

// SetLoading reflects the host's loading flag. Clearing it ends Submitting.
func (c *Controller) SetLoading(loading bool) {
	c.mu.Lock()
	changed := c.loading != loading
	c.loading = loading
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if changed {
		c.notify(snap)
	}
}

// ResolveNow runs the pending resolution synchronously, skipping the
// debounce delay.
func (c *Controller) ResolveNow() Snapshot {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.seq++
	seq := c.seq
	c.mu.Unlock()
	c.resolve(seq)
	return c.Snapshot()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close stops the debounce timer and cancels any in-flight lookup.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.stopLocked()
	c.mu.Unlock()
}

// scheduleLocked supersedes pending work and arms a new debounce timer.
func (c *Controller) scheduleLocked() {
	c.stopLocked()
	if c.closed || c.opts.Debounce < 0 {
		return
	}
	seq := c.seq
	c.timer = time.AfterFunc(c.opts.Debounce, func() { c.resolve(seq) })
}

// stopLocked invalidates the pending timer and any in-flight lookup.
func (c *Controller) stopLocked() {
	c.seq++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) closeLocked() {
	c.open = false
	c.suggestions = nil
	c.selected = 0
}

// resolve computes the target for the text at the cursor and fetches its
// suggestions. Results are dropped unless seq is still current.
func (c *Controller) resolve(seq uint64) {
	c.mu.Lock()
	if c.closed || seq != c.seq {
		c.mu.Unlock()
		return
	}
	target := logql.ResolveAt(c.text, c.cursor)
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	var suggestions []logql.Suggestion
	if target.Kind != logql.TargetNone {
		suggestions = c.suggester.Suggest(ctx, target)
	}

	c.mu.Lock()
	if c.closed || seq != c.seq {
		c.mu.Unlock()
		c.log.V(2).Info("discarding stale suggestions", "seq", seq)
		return
	}
	cancel()
	c.cancel = nil
	c.target = target
	c.selected = 0
	if len(suggestions) == 0 {
		c.open = false
		c.suggestions = nil
	} else {
		c.open = true
		c.suggestions = suggestions
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.log.V(1).Info("suggestions resolved", "target", target.Kind.String(), "count", len(suggestions))
	c.notify(snap)
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Text:        c.text,
		Cursor:      c.cursor,
		Target:      c.target,
		Suggestions: append([]logql.Suggestion(nil), c.suggestions...),
		Selected:    c.selected,
		Loading:     c.loading,
	}
	switch {
	case c.loading:
		s.State = Submitting
	case c.open:
		s.State = SuggestionsOpen
	default:
		s.State = Idle
	}
	return s
}

func (c *Controller) notify(s Snapshot) {
	if c.opts.OnUpdate != nil {
		c.opts.OnUpdate(s)
	}
}

func clampCursor(text string, cursor int) int {
	n := len([]rune(text))
	if cursor < 0 || cursor > n {
		return n
	}
	return cursor
}
