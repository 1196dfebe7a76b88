package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/mattn/go-isatty"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jjo/logql-cli/pkg/complete"
	"github.com/jjo/logql-cli/pkg/config"
	"github.com/jjo/logql-cli/pkg/logger"
	"github.com/jjo/logql-cli/pkg/logql"
	"github.com/jjo/logql-cli/pkg/loki"
	"github.com/jjo/logql-cli/pkg/repl"
	"github.com/jjo/logql-cli/pkg/storage"
)

// Version info. Overridden at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// normalizeLongOpts converts GNU-style "--long" options to stdlib-flag style "-long".
// It leaves the "--" end-of-flags marker intact and doesn't touch single-dash or positional args.
func normalizeLongOpts(args []string) []string {
	out := make([]string, 0, len(args))
	seenTerminator := false
	for _, a := range args {
		if seenTerminator {
			out = append(out, a)
			continue
		}
		if a == "--" {
			seenTerminator = true
			out = append(out, a)
			continue
		}
		if strings.HasPrefix(a, "--") && len(a) > 2 {
			// Convert --flag and --flag=value to -flag and -flag=value
			out = append(out, "-"+a[2:])
			continue
		}
		out = append(out, a)
	}
	return out
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if err := run(ctx, normalizeLongOpts(os.Args[1:]), os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// cli holds the state shared by the subcommands once flags are parsed.
type cli struct {
	out    io.Writer
	flags  *config.Flags
	silent bool
	cfg    config.Config
	store  *storage.StreamStore // nil when labels come from Loki
}

func run(ctx context.Context, args []string, out io.Writer) error {
	c := &cli{out: out}
	root := c.rootCommand()
	if err := root.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("parsing flags: %w", err)
	}

	cfg, err := c.flags.Resolve()
	if err != nil {
		return err
	}
	c.cfg = cfg

	log, syncLog, err := logger.Open(cfg.Log.File, cfg.Log.Level, version)
	if err != nil {
		return err
	}
	defer syncLog()
	log.V(1).Info("starting", "args", args, "loki", cfg.Loki.URL != "")

	return root.Run(logger.WithLogger(ctx, log))
}

func (c *cli) rootCommand() *ffcli.Command {
	rootFlags := flag.NewFlagSet("logql-cli", flag.ContinueOnError)
	c.flags = config.RegisterFlags(rootFlags)
	rootFlags.BoolVar(&c.silent, "silent", false, "suppress startup output")
	rootFlags.BoolVar(&c.silent, "s", false, "shorthand for --silent")

	return &ffcli.Command{
		Name:       "logql-cli",
		ShortUsage: "logql-cli [global flags] <subcommand> [flags]",
		FlagSet:    rootFlags,
		Options:    []ff.Option{ff.WithEnvVarPrefix("LOGQL_CLI")},
		Subcommands: []*ffcli.Command{
			c.queryCommand(),
			c.tokenizeCommand(),
			c.completeCommand(),
			c.validateCommand(),
			c.versionCommand(),
		},
		Exec: func(context.Context, []string) error { return flag.ErrHelp },
	}
}

func (c *cli) queryCommand() *ffcli.Command {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	initCommands := fs.String("command", "", "semicolon-separated commands or queries to run first")
	fs.StringVar(initCommands, "c", "", "shorthand for --command")
	queryFile := fs.String("file", "", "file of LogQL queries (one per line); exit after submitting them")
	fs.StringVar(queryFile, "f", "", "shorthand for --file")
	oneOff := fs.String("query", "", "one-off query to validate and submit; exit")
	fs.StringVar(oneOff, "q", "", "shorthand for --query")

	return &ffcli.Command{
		Name:       "query",
		ShortUsage: "logql-cli [global flags] query [-c cmds] [-f file | -q query]",
		ShortHelp:  "Interactive LogQL query bar with highlighting and completion",
		FlagSet:    fs,
		Exec: func(ctx context.Context, _ []string) error {
			sess, err := c.session(ctx)
			if err != nil {
				return err
			}

			if !c.silent && c.store != nil {
				fmt.Fprintf(c.out, "Offline mode: %d streams indexed (set --loki-url for live labels)\n", c.store.Len())
			}
			if *initCommands != "" {
				sess.RunInitCommands(ctx, *initCommands)
			}
			if *queryFile != "" {
				sess.Execute(ctx, ".source "+*queryFile)
				return nil
			}
			if *oneOff != "" {
				if err := logql.Validate(*oneOff); err != nil {
					return err
				}
				sess.Execute(ctx, *oneOff)
				return nil
			}
			return sess.Run(ctx, c.cfg.REPL.Backend)
		},
	}
}

func (c *cli) tokenizeCommand() *ffcli.Command {
	fs := flag.NewFlagSet("tokenize", flag.ContinueOnError)
	colorMode := fs.String("color", "auto", "colorize output: auto|always|never")

	return &ffcli.Command{
		Name:       "tokenize",
		ShortUsage: "logql-cli tokenize [--color=auto|always|never] <query>",
		ShortHelp:  "Print the highlighted query, or its token list without color",
		FlagSet:    fs,
		Exec: func(_ context.Context, args []string) error {
			query := strings.Join(args, " ")
			if query == "" {
				return errors.New("tokenize requires <query>")
			}
			if useColor(*colorMode, c.out) {
				fmt.Fprintln(c.out, repl.Highlight(query))
				return nil
			}
			for _, tok := range logql.Tokenize(query) {
				fmt.Fprintf(c.out, "%-15s %q\n", tok.Kind, tok.Text)
			}
			return nil
		},
	}
}

type completeResult struct {
	Target      targetJSON       `json:"target"`
	Suggestions []suggestionJSON `json:"suggestions"`
	Text        string           `json:"text"`
	Cursor      int              `json:"cursor"`
}

type targetJSON struct {
	Kind         string   `json:"kind"`
	LabelName    string   `json:"labelName,omitempty"`
	Partial      string   `json:"partial"`
	QueryContext string   `json:"queryContext,omitempty"`
	UsedLabels   []string `json:"usedLabels,omitempty"`
}

type suggestionJSON struct {
	Value       string `json:"value"`
	Kind        string `json:"kind"`
	Description string `json:"description,omitempty"`
}

func (c *cli) completeCommand() *ffcli.Command {
	fs := flag.NewFlagSet("complete", flag.ContinueOnError)
	cursor := fs.Int("cursor", -1, "cursor position in runes (-1 = end of query)")
	selected := fs.Int("select", -1, "apply the suggestion at this index")
	output := fs.String("output", "", "output format (json)")
	fs.StringVar(output, "o", "", "shorthand for --output")

	return &ffcli.Command{
		Name:       "complete",
		ShortUsage: "logql-cli complete [--cursor N] [--select I] [-o json] <query>",
		ShortHelp:  "Resolve the completion target at the cursor and list suggestions",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			query := strings.Join(args, " ")
			sess, err := c.session(ctx)
			if err != nil {
				return err
			}

			target, suggestions, text, pos := sess.ApplyAt(ctx, query, *cursor, *selected)
			res := completeResult{
				Target: targetJSON{
					Kind:         target.Kind.String(),
					LabelName:    target.LabelName,
					Partial:      target.Partial,
					QueryContext: target.QueryContext,
					UsedLabels:   target.UsedLabels,
				},
				Suggestions: make([]suggestionJSON, 0, len(suggestions)),
				Text:        text,
				Cursor:      pos,
			}
			for _, s := range suggestions {
				res.Suggestions = append(res.Suggestions, suggestionJSON{Value: s.Value, Kind: s.Kind.String(), Description: s.Description})
			}

			if strings.EqualFold(*output, "json") {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintf(c.out, "target: %s\n", res.Target.Kind)
			for i, s := range res.Suggestions {
				fmt.Fprintf(c.out, "  [%d] %-30s %s\n", i, s.Value, s.Description)
			}
			if *selected >= 0 {
				fmt.Fprintf(c.out, "text: %s\ncursor: %d\n", res.Text, res.Cursor)
			}
			return nil
		},
	}
}

func (c *cli) validateCommand() *ffcli.Command {
	return &ffcli.Command{
		Name:       "validate",
		ShortUsage: "logql-cli validate <query>",
		ShortHelp:  "Check that a query is complete enough to submit",
		Exec: func(_ context.Context, args []string) error {
			if err := logql.Validate(strings.Join(args, " ")); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "ok")
			return nil
		},
	}
}

func (c *cli) versionCommand() *ffcli.Command {
	return &ffcli.Command{
		Name: "version",
		Exec: func(context.Context, []string) error { c.printVersion(); return nil },
	}
}

// printVersion prints a human-readable version string.
func (c *cli) printVersion() {
	fmt.Fprintf(c.out, "logql-cli %s\n", version)
	fmt.Fprintf(c.out, "  commit: %s\n", commit)
	fmt.Fprintf(c.out, "  date:   %s\n", date)
}

// session wires the label source, completion provider and REPL session
// from the resolved configuration.
func (c *cli) session(ctx context.Context) (*repl.Session, error) {
	log := logger.FromContext(ctx)
	reg := prometheus.NewRegistry()

	src, store, err := c.labelSource(log)
	if err != nil {
		return nil, err
	}
	provider := complete.New(src,
		complete.WithLimit(c.cfg.Complete.Limit),
		complete.WithLookupTimeout(c.cfg.Complete.LookupTimeout),
		complete.WithLogger(log.WithName("complete")),
		complete.WithRegisterer(reg),
	)
	c.store = store

	sess := repl.New(repl.Options{
		Provider:    provider,
		Source:      src,
		Store:       store,
		Gatherer:    reg,
		Out:         c.out,
		Logger:      log.WithName("repl"),
		HistoryFile: c.cfg.REPL.HistoryFile,
		Debounce:    c.cfg.Complete.Debounce,
		Color:       useColor("auto", c.out),
		Silent:      c.silent,
	})
	return sess, nil
}

// labelSource returns the Loki client when a URL is configured, otherwise
// an in-memory store seeded from the streams file or the built-in sample.
func (c *cli) labelSource(log logr.Logger) (complete.LabelSource, *storage.StreamStore, error) {
	if c.cfg.Loki.URL != "" {
		cl, err := loki.New(loki.Config{
			URL:         c.cfg.Loki.URL,
			OrgID:       c.cfg.Loki.OrgID,
			Username:    c.cfg.Loki.Username,
			Password:    c.cfg.Loki.Password,
			BearerToken: c.cfg.Loki.BearerToken,
			Timeout:     c.cfg.Loki.Timeout,
			Lookback:    c.cfg.Loki.Lookback,
			QPS:         c.cfg.Loki.QPS,
		})
		if err != nil {
			return nil, nil, err
		}
		log.V(1).Info("using loki label source", "url", c.cfg.Loki.URL, "tenant", c.cfg.Loki.OrgID)
		return cl, nil, nil
	}

	store := storage.NewStreamStore()
	if path := c.cfg.REPL.StreamsFile; path != "" {
		if err := store.LoadFile(path); err != nil {
			return nil, nil, err
		}
		log.V(1).Info("using stream file", "path", path, "streams", store.Len())
		return store, store, nil
	}
	if err := store.LoadYAML(strings.NewReader(storage.SampleStreams)); err != nil {
		return nil, nil, err
	}
	return store, store, nil
}

func useColor(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
