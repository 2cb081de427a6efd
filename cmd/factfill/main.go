package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/server"

	"github.com/morepork/factfill/internal/config"
	"github.com/morepork/factfill/internal/engine"
	"github.com/morepork/factfill/internal/facttype"
	"github.com/morepork/factfill/internal/match"
	"github.com/morepork/factfill/internal/mcp"
	"github.com/morepork/factfill/internal/store"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch os.Args[1] {
	case "ingest":
		err = runIngest(os.Args[2:])
	case "suggest":
		err = runSuggest(os.Args[2:])
	case "facts":
		err = runFacts(os.Args[2:])
	case "put":
		err = runPut(os.Args[2:])
	case "events":
		err = runEvents(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("factfill %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// commonFlags are accepted by every subcommand.
type commonFlags struct {
	db           string
	configPath   string
	jurisdiction string
	rest         []string
}

// splitFlags separates --flag value pairs from positional arguments.
func splitFlags(args []string) (commonFlags, map[string]string, error) {
	var cf commonFlags
	extra := map[string]string{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			cf.rest = append(cf.rest, arg)
			continue
		}
		name := strings.TrimLeft(arg, "-")
		value := ""
		hasValue := false
		if eq := strings.Index(name, "="); eq >= 0 {
			name, value, hasValue = name[:eq], name[eq+1:], true
		}
		switch name {
		case "clear-missing", "secondary":
			if !hasValue {
				value = "true"
			}
			extra[name] = value
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return cf, nil, fmt.Errorf("flag --%s needs a value", name)
			}
			i++
			value = args[i]
		}
		switch name {
		case "db":
			cf.db = value
		case "config":
			cf.configPath = value
		case "jurisdiction":
			cf.jurisdiction = value
		default:
			extra[name] = value
		}
	}
	return cf, extra, nil
}

// openEngine resolves config and wires the engine over an opened store.
// The caller must call the returned close func.
func openEngine(ctx context.Context, cf commonFlags) (*engine.Engine, config.ResolvedConfig, func(), error) {
	resolved, err := config.ResolveConfig(config.ResolveOptions{
		ConfigPath:      cf.configPath,
		CLIDBPath:       cf.db,
		CLIJurisdiction: cf.jurisdiction,
	})
	if err != nil {
		return nil, resolved, nil, err
	}

	direct, inferred, fallback, err := resolved.TierValues()
	if err != nil {
		return nil, resolved, nil, err
	}

	st, err := store.NewStore(store.StoreConfig{DBPath: resolved.DBPath.Value})
	if err != nil {
		return nil, resolved, nil, fmt.Errorf("opening store: %w", err)
	}

	eng, err := engine.New(ctx, st, engine.Options{
		Tiers: match.Tiers{Direct: direct, Inferred: inferred, Fallback: fallback},
	})
	if err != nil {
		st.Close()
		return nil, resolved, nil, err
	}
	return eng, resolved, func() { st.Close() }, nil
}

func runIngest(args []string) error {
	cf, extra, err := splitFlags(args)
	if err != nil {
		return err
	}
	if len(cf.rest) < 2 {
		return fmt.Errorf("usage: factfill ingest <subject> <file|-> [--doc-id id] [--clear-missing]")
	}
	subjectID, path := cf.rest[0], cf.rest[1]

	var text []byte
	if path == "-" {
		text, err = io.ReadAll(os.Stdin)
	} else {
		text, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}

	ctx := context.Background()
	eng, _, closeStore, err := openEngine(ctx, cf)
	if err != nil {
		return err
	}
	defer closeStore()

	report, err := eng.ExtractAndMerge(ctx, subjectID, extra["doc-id"], string(text), extra["clear-missing"] == "true")
	if err != nil {
		return err
	}

	fmt.Printf("Merged %s for subject %s:\n", path, subjectID)
	fmt.Printf("  added %d, updated %d, unchanged %d, skipped %d, cleared %d\n",
		report.Added, report.Updated, report.Unchanged, report.Skipped, report.Cleared)
	for _, fo := range report.Fields {
		switch fo.Outcome {
		case store.OutcomeAdded:
			fmt.Printf("  + %-34s %s\n", fo.Type, fo.NewValue)
		case store.OutcomeUpdated:
			fmt.Printf("  ~ %-34s %s -> %s\n", fo.Type, fo.OldValue, fo.NewValue)
		case store.OutcomeCleared:
			fmt.Printf("  - %-34s (was %s)\n", fo.Type, fo.OldValue)
		}
	}
	return nil
}

func runSuggest(args []string) error {
	cf, extra, err := splitFlags(args)
	if err != nil {
		return err
	}
	if len(cf.rest) < 2 {
		return fmt.Errorf("usage: factfill suggest <subject> <label> [--hint domain] [--secondary]")
	}
	subjectID := cf.rest[0]
	label := strings.Join(cf.rest[1:], " ")

	ctx := context.Background()
	eng, resolved, closeStore, err := openEngine(ctx, cf)
	if err != nil {
		return err
	}
	defer closeStore()

	hint := extra["hint"]
	if hint == "" {
		hint = resolved.Jurisdiction.Value
	}
	suggestions, err := eng.Suggest(ctx, subjectID, match.Field{Label: label, ContextHint: hint})
	if err != nil {
		return err
	}
	if len(suggestions) == 0 {
		fmt.Printf("No suggestion for %q.\n", label)
		return nil
	}

	for _, s := range suggestions {
		if s.Secondary && extra["secondary"] != "true" {
			continue
		}
		fmt.Printf("  %.2f  %-34s %s  (%s)\n", s.Confidence, s.Type, s.Value, s.Rationale)
	}
	return nil
}

func runFacts(args []string) error {
	cf, _, err := splitFlags(args)
	if err != nil {
		return err
	}
	if len(cf.rest) < 1 {
		return fmt.Errorf("usage: factfill facts <subject>")
	}
	subjectID := cf.rest[0]

	ctx := context.Background()
	eng, _, closeStore, err := openEngine(ctx, cf)
	if err != nil {
		return err
	}
	defer closeStore()

	profile, err := eng.GetFacts(ctx, subjectID)
	if err != nil {
		return err
	}
	if len(profile.Values) == 0 && len(profile.Collections) == 0 {
		fmt.Printf("No facts for subject %s.\n", subjectID)
		return nil
	}

	fmt.Printf("Facts for %s:\n", subjectID)
	for _, info := range facttype.All() {
		if v, ok := profile.Values[info.Type]; ok {
			fmt.Printf("  %-34s %s\n", info.Type, v)
		}
		if vs, ok := profile.Collections[info.Type]; ok {
			fmt.Printf("  %s:\n", info.Type)
			for _, v := range vs {
				fmt.Printf("    - %s\n", v)
			}
		}
	}
	for typ, vs := range profile.Collections {
		if facttype.Known(typ) {
			continue
		}
		fmt.Printf("  %s:\n", typ)
		for _, v := range vs {
			fmt.Printf("    - %s\n", v)
		}
	}
	return nil
}

func runPut(args []string) error {
	cf, _, err := splitFlags(args)
	if err != nil {
		return err
	}
	if len(cf.rest) < 3 {
		return fmt.Errorf("usage: factfill put <subject> <fact-type> <value>")
	}
	subjectID := cf.rest[0]
	typ := facttype.Type(cf.rest[1])
	value := strings.Join(cf.rest[2:], " ")

	if !facttype.Known(typ) {
		fmt.Fprintf(os.Stderr, "Warning: %s is not a registered fact type; storing as-is\n", typ)
	}

	ctx := context.Background()
	eng, _, closeStore, err := openEngine(ctx, cf)
	if err != nil {
		return err
	}
	defer closeStore()

	fo, err := eng.PutFact(ctx, subjectID, typ, value)
	if err != nil {
		return err
	}
	switch fo.Outcome {
	case store.OutcomeUpdated:
		fmt.Printf("Updated %s: %s -> %s\n", fo.Type, fo.OldValue, fo.NewValue)
	case store.OutcomeUnchanged:
		fmt.Printf("Unchanged %s: %s\n", fo.Type, fo.OldValue)
	default:
		fmt.Printf("Added %s: %s\n", fo.Type, fo.NewValue)
	}
	return nil
}

func runEvents(args []string) error {
	cf, extra, err := splitFlags(args)
	if err != nil {
		return err
	}
	if len(cf.rest) < 1 {
		return fmt.Errorf("usage: factfill events <subject> [--limit n]")
	}
	subjectID := cf.rest[0]
	limit := 20
	if v := extra["limit"]; v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing --limit: %w", err)
		}
	}

	ctx := context.Background()
	eng, _, closeStore, err := openEngine(ctx, cf)
	if err != nil {
		return err
	}
	defer closeStore()

	events, err := eng.Events(ctx, subjectID, limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Printf("No merge events for subject %s.\n", subjectID)
		return nil
	}
	for _, e := range events {
		switch e.Outcome {
		case store.OutcomeUpdated:
			fmt.Printf("  %s  %-9s %-34s %s -> %s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.Outcome, e.FactType, e.OldValue, e.NewValue)
		case store.OutcomeCleared:
			fmt.Printf("  %s  %-9s %-34s (was %s)\n", e.CreatedAt.Format("2006-01-02 15:04"), e.Outcome, e.FactType, e.OldValue)
		default:
			fmt.Printf("  %s  %-9s %-34s %s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.Outcome, e.FactType, e.NewValue)
		}
	}
	return nil
}

func runStats(args []string) error {
	cf, _, err := splitFlags(args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	eng, resolved, closeStore, err := openEngine(ctx, cf)
	if err != nil {
		return err
	}
	defer closeStore()

	stats, err := eng.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Database: %s (%s)\n", resolved.DBPath.Value, resolved.DBPath.Source)
	fmt.Printf("  subjects:      %d\n", stats.SubjectCount)
	fmt.Printf("  facts:         %d\n", stats.FactCount)
	fmt.Printf("  documents:     %d\n", stats.DocumentCount)
	fmt.Printf("  merge events:  %d\n", stats.EventCount)
	fmt.Printf("  size:          %d bytes\n", stats.DBSizeBytes)
	return nil
}

func runServe(args []string) error {
	cf, _, err := splitFlags(args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	eng, _, closeStore, err := openEngine(ctx, cf)
	if err != nil {
		return err
	}
	defer closeStore()

	srv := mcp.NewServer(mcp.ServerConfig{Engine: eng, Version: version})
	fmt.Fprintln(os.Stderr, "factfill MCP server listening on stdio")
	return server.ServeStdio(srv)
}

func printUsage() {
	fmt.Printf(`factfill %s — fact extraction and form suggestions for business documents

Usage:
  factfill <command> [arguments]

Commands:
  ingest <subject> <file|->    Extract facts from a document and merge them
  suggest <subject> <label>    Suggest values for a form field label
  facts <subject>              Show a subject's fact profile
  put <subject> <type> <value> Manually set one fact
  events <subject>             Show recent merge events
  stats                        Show store statistics
  serve                        Run the MCP server on stdio
  version                      Print version

Ingest Flags:
  --doc-id <id>       Document identifier (generated when omitted)
  --clear-missing     Clear stored singular facts absent from the document

Suggest Flags:
  --hint <domain>     Context hint, e.g. the form's domain (.co.nz / .com.au)
  --secondary         Also print secondary (older multi-valued) suggestions

Flags:
  --db <path>         Database path (default ~/.factfill/factfill.db)
  --config <path>     Config file (default ~/.factfill/config.yaml)
  --jurisdiction <j>  Default jurisdiction (nz or au)
  -h, --help          Show this help message
  -v, --version       Print version
`, version)
}
