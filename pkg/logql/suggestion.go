package logql

// SuggestionKind tells the insertion engine how a suggestion is spliced in.
type SuggestionKind int

const (
	KindLabel SuggestionKind = iota
	KindLabelValue
	KindPipeOperator
)

func (k SuggestionKind) String() string {
	switch k {
	case KindLabel:
		return "label"
	case KindLabelValue:
		return "value"
	case KindPipeOperator:
		return "operator"
	default:
		return "unknown"
	}
}

// Suggestion is one completion candidate.
type Suggestion struct {
	Value       string
	Kind        SuggestionKind
	Label       string // display text, defaults to Value
	Description string
}

// Display returns the text a list should show for s.
func (s Suggestion) Display() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Value
}

// PipeOperators are the pipeline stage templates offered after a complete
// stream selector. Templates ending in "" leave the cursor between the quotes.
var PipeOperators = []Suggestion{
	{Value: `|= ""`, Kind: KindPipeOperator, Description: "Contains string"},
	{Value: `!= ""`, Kind: KindPipeOperator, Description: "Does not contain string"},
	{Value: `|~ ""`, Kind: KindPipeOperator, Description: "Matches regex"},
	{Value: `!~ ""`, Kind: KindPipeOperator, Description: "Does not match regex"},
	{Value: "| json", Kind: KindPipeOperator, Description: "Extract JSON fields"},
	{Value: "| logfmt", Kind: KindPipeOperator, Description: "Extract logfmt fields"},
	{Value: `| pattern ""`, Kind: KindPipeOperator, Description: "Extract fields with a pattern"},
	{Value: `| regexp ""`, Kind: KindPipeOperator, Description: "Extract fields with a regex"},
	{Value: `| line_format ""`, Kind: KindPipeOperator, Description: "Rewrite the log line"},
	{Value: "| label_format", Kind: KindPipeOperator, Description: "Rename or rewrite labels"},
	{Value: "| unwrap", Kind: KindPipeOperator, Description: "Use a label as sample value"},
}
