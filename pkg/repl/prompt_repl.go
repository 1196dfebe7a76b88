//go:build prompt

package repl

import (
	"context"
	"strings"

	"github.com/c-bata/go-prompt"

	"github.com/jjo/logql-cli/pkg/logql"
	"github.com/jjo/logql-cli/pkg/querybar"
)

const suggestionLimit = 20

// promptREPL drives the session with go-prompt, which renders its own
// completion menu. The controller resolves synchronously on each keystroke.
type promptREPL struct {
	s    *Session
	ctx  context.Context
	ctrl *querybar.Controller
	quit bool
}

func newPromptREPL(ctx context.Context, s *Session) *promptREPL {
	return &promptREPL{
		s:   s,
		ctx: ctx,
		ctrl: querybar.New(s.provider, querybar.Options{
			Debounce: -1,
			Logger:   s.log.WithName("prompt"),
		}),
	}
}

// completer provides completions for go-prompt
func (r *promptREPL) completer(d prompt.Document) []prompt.Suggest {
	text := d.Text
	before := d.TextBeforeCursor()
	trimmed := strings.TrimSpace(before)

	if strings.HasPrefix(trimmed, ".") {
		if strings.Contains(trimmed, " ") {
			return []prompt.Suggest{}
		}
		return getAdHocCommandSuggests(trimmed)
	}

	cursor := len([]rune(before))
	r.ctrl.SetText(text, cursor)
	snap := r.ctrl.ResolveNow()
	if snap.State != querybar.SuggestionsOpen {
		return []prompt.Suggest{}
	}
	return toPromptSuggests(text, cursor, snap.Suggestions)
}

func toPromptSuggests(text string, cursor int, list []logql.Suggestion) []prompt.Suggest {
	out := make([]prompt.Suggest, 0, len(list))
	for _, sg := range list {
		out = append(out, prompt.Suggest{
			Text:        completionText(text, cursor, sg),
			Description: sg.Description,
		})
	}
	return out
}

func getAdHocCommandSuggests(prefix string) []prompt.Suggest {
	filtered := []prompt.Suggest{}
	for _, cmd := range AdHocCommands {
		if strings.HasPrefix(cmd.Command, prefix) {
			filtered = append(filtered, prompt.Suggest{Text: cmd.Command, Description: cmd.Description})
		}
	}
	return filtered
}

func (r *promptREPL) executor(line string) {
	r.ctrl.Dismiss()
	r.quit = r.s.Execute(r.ctx, line)
}

func (r *promptREPL) Run() {
	p := prompt.New(
		r.executor,
		r.completer,
		prompt.OptionPrefix("LogQL> "),
		prompt.OptionTitle("LogQL CLI"),
		prompt.OptionPrefixTextColor(prompt.Blue),
		prompt.OptionHistory(r.s.History()),
		prompt.OptionPreviewSuggestionTextColor(prompt.DarkGray),
		prompt.OptionSelectedSuggestionBGColor(prompt.LightGray),
		prompt.OptionSuggestionBGColor(prompt.DarkGray),
		prompt.OptionDescriptionBGColor(prompt.DarkGray),
		prompt.OptionDescriptionTextColor(prompt.White),
		prompt.OptionMaxSuggestion(suggestionLimit),
		prompt.OptionCompletionWordSeparator(LogQLSeparators),
		prompt.OptionSetExitCheckerOnInput(func(_ string, breakline bool) bool {
			return breakline && r.quit
		}),
	)
	p.Run()
	r.ctrl.Close()
}
