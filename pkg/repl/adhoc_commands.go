package repl

// AdHocCommand represents an ad-hoc command with its description
type AdHocCommand struct {
	Command     string
	Description string
	Usage       string
	Examples    []string
}

// AdHocCommands is the centralized list of all ad-hoc commands
// This serves as the source of truth for both the help text and autocompletion
var AdHocCommands = []AdHocCommand{
	{
		Command:     ".help",
		Description: "Show usage for ad-hoc commands",
		Usage:       ".help",
	},
	{
		Command:     ".labels",
		Description: "List label names, optionally scoped to a stream selector",
		Usage:       ".labels [<selector>]",
		Examples: []string{
			".labels",
			`.labels {app="api"}`,
		},
	},
	{
		Command:     ".values",
		Description: "List values of a label, optionally scoped to a stream selector",
		Usage:       ".values <label> [<selector>]",
		Examples: []string{
			".values namespace",
			`.values pod {namespace="prod"}`,
		},
	},
	{
		Command:     ".tokens",
		Description: "Show how a query is tokenized for highlighting",
		Usage:       ".tokens <query>",
		Examples:    []string{`.tokens {app="api"} |= "error" | json`},
	},
	{
		Command:     ".complete",
		Description: "Show the completion target and suggestions at the end of a query",
		Usage:       ".complete <query>",
		Examples:    []string{`.complete {namespace="prod", pod=`},
	},
	{
		Command:     ".cache",
		Description: "Show cached completion lookups",
		Usage:       ".cache",
	},
	{
		Command:     ".stats",
		Description: "Show completion cache totals and lookup metrics",
		Usage:       ".stats",
	},
	{
		Command:     ".load",
		Description: "Load streams into the local store (YAML or text exposition)",
		Usage:       ".load <file.yaml|file.prom>",
		Examples: []string{
			".load streams.yaml",
			".load targets.prom",
		},
	},
	{
		Command:     ".source",
		Description: "Submit queries from a file (one per line)",
		Usage:       ".source <file>",
		Examples:    []string{".source queries.logql"},
	},
	{
		Command:     ".edit",
		Description: "Edit a query in $LOGQL_EDITOR, $VISUAL or $EDITOR, then submit it",
		Usage:       ".edit [<query>]",
		Examples: []string{
			".edit",
			`.edit {app="api"} | json`,
		},
	},
	{
		Command:     ".history",
		Description: "Show REPL history (all, last N entries, or entries with a prefix)",
		Usage:       ".history [N|<prefix>]",
		Examples: []string{
			".history",
			".history 20",
			".history {app=",
		},
	},
	{
		Command:     ".quit",
		Description: "Exit the REPL",
		Usage:       ".quit",
	},
}

// GetAdHocCommandNames returns just the command names for autocompletion
func GetAdHocCommandNames() []string {
	names := make([]string, len(AdHocCommands))
	for i, cmd := range AdHocCommands {
		names[i] = cmd.Command
	}
	return names
}

// GetAdHocCommandByName returns a command by its name
func GetAdHocCommandByName(name string) *AdHocCommand {
	for _, cmd := range AdHocCommands {
		if cmd.Command == name {
			return &cmd
		}
	}
	return nil
}
