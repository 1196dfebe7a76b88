package logql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Target
	}{
		{
			name: "label value wins over label name",
			text: `{namespace="prod", app="par`,
			want: Target{
				Kind:         TargetLabelValue,
				LabelName:    "app",
				Partial:      "par",
				QueryContext: `{namespace="prod"}`,
				HasContext:   true,
				RawContext:   `namespace="prod"`,
			},
		},
		{
			name: "label value without context",
			text: `{namespace="pp-dev`,
			want: Target{Kind: TargetLabelValue, LabelName: "namespace", Partial: "pp-dev"},
		},
		{
			name: "regex matcher value is lower-cased",
			text: `{app=~"Ap`,
			want: Target{Kind: TargetLabelValue, LabelName: "app", Partial: "ap"},
		},
		{
			name: "empty selector",
			text: `{`,
			want: Target{Kind: TargetLabelName},
		},
		{
			name: "label name after a matcher",
			text: `{namespace="prod", Ap`,
			want: Target{
				Kind:         TargetLabelName,
				Partial:      "ap",
				QueryContext: `{namespace="prod"}`,
				HasContext:   true,
				RawContext:   `namespace="prod"`,
				UsedLabels:   []string{"namespace"},
			},
		},
		{
			name: "label name after trailing comma",
			text: `{namespace="prod", app!="x", `,
			want: Target{
				Kind:         TargetLabelName,
				QueryContext: `{namespace="prod", app!="x"}`,
				HasContext:   true,
				RawContext:   `namespace="prod", app!="x"`,
				UsedLabels:   []string{"namespace", "app"},
			},
		},
		{
			name: "pipe after closed selector",
			text: `{app="x"} `,
			want: Target{Kind: TargetPipeOperator, Partial: " ", ReplaceMatch: " "},
		},
		{
			name: "partial pipe stage",
			text: `{app="x"} | js`,
			want: Target{Kind: TargetPipeOperator, Partial: " | js", ReplaceMatch: " | js"},
		},
		{
			name: "partial filter operator",
			text: `{app="x"} |= "a" |~`,
			want: Target{Kind: TargetPipeOperator, Partial: " |~", ReplaceMatch: " |~"},
		},
		{name: "open filter string", text: `{app="x"} |= "err`, want: Target{Kind: TargetNone}},
		{name: "empty text", text: ``, want: Target{Kind: TargetNone}},
		{name: "bare word", text: `foo`, want: Target{Kind: TargetNone}},
		{name: "negative matcher never opens a value", text: `{app!="x`, want: Target{Kind: TargetNone}},
		{name: "closed value", text: `{app="pp-api"`, want: Target{Kind: TargetNone}},
		{name: "key with operator but no quote", text: `{namespace="prod", app=`, want: Target{Kind: TargetNone}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.text))
		})
	}
}

func TestResolveAt_UsesRuneCursor(t *testing.T) {
	text := `{app="é"} | json`
	// Cursor right after the closing brace and the following space.
	got := ResolveAt(text, 10)
	require.Equal(t, TargetPipeOperator, got.Kind)
	assert.Equal(t, " ", got.Partial)

	// Inside the value, before é.
	got = ResolveAt(text, 6)
	require.Equal(t, TargetLabelValue, got.Kind)
	assert.Equal(t, "", got.Partial)

	// Out of range cursors are clamped.
	assert.Equal(t, TargetNone, ResolveAt(text, -3).Kind)
	assert.Equal(t, Resolve(text), ResolveAt(text, 1000))
}
