// Command fairplay analyzes workout session files offline.
//
// A session file is the JSON document produced by the mobile capture
// pipeline: extracted pose keypoints per sampled frame, optional face
// embeddings, and the reference identities to verify against. fairplay
// runs the full assessment without a running daemon, making it suitable
// for spot checks, audits, and automated pipelines.
//
// Usage:
//
//	fairplay analyze [flags] <session.json>
//	fairplay report <session-id>
//	fairplay list [flags]
//	fairplay stats [flags]
//
// Examples:
//
//	# Assess one session, human-readable output
//	fairplay analyze session.json
//
//	# JSON output, persist the report
//	fairplay analyze -format json -save session.json
//
//	# Review stored verdicts
//	fairplay list -validity invalid
//	fairplay stats
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"fairplay/internal/config"
	"fairplay/internal/logging"
	"fairplay/internal/session"
	"fairplay/internal/sessionschema"
	"fairplay/internal/stats"
	"fairplay/internal/store"
)

var (
	// Version information (set at build time)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "analyze":
		cmdAnalyze(os.Args[2:])
	case "report":
		cmdReport(os.Args[2:])
	case "list":
		cmdList(os.Args[2:])
	case "stats":
		cmdStats(os.Args[2:])
	case "version":
		fmt.Printf("fairplay %s (commit: %s, built: %s)\n", version, commit, buildTime)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println(`fairplay - Workout video cheat detection and performance counting

USAGE:
    fairplay <command> [options]

COMMANDS:
    analyze <session.json>   Assess one session file
    report <session-id>      Print a stored report
    list                     List stored reports
    stats                    Cross-session statistics
    version                  Print version and exit
    help                     Show this help message

Run 'fairplay <command> -h' for command-specific flags.`)
}

func cmdAnalyze(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", "", "config file (default: auto-detect)")
	format := fs.String("format", "text", "output format: text, json")
	output := fs.String("output", "", "output file (default: stdout)")
	save := fs.Bool("save", false, "persist the report to the store")
	quiet := fs.Bool("quiet", false, "quiet mode - only set the exit code")
	exitCode := fs.Bool("exit-code", true, "exit non-zero unless the verdict is valid")
	timeout := fs.Duration("timeout", 2*time.Minute, "analysis timeout")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: session file required")
		fs.Usage()
		os.Exit(2)
	}

	cfg := loadConfig(*configPath)
	log := newLogger(cfg, "fairplay")
	defer log.Close()

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fatalf("Error reading session file: %v", err)
	}
	if err := sessionschema.Validate(data); err != nil {
		fatalf("Error: %v", err)
	}
	in, err := session.ParseInput(data)
	if err != nil {
		fatalf("Error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	analyzer := session.NewAnalyzer(cfg, nil, log)
	report, err := analyzer.Analyze(ctx, in)
	if err != nil {
		fatalf("Analysis error: %v", err)
	}

	if *save {
		st, err := store.Open(cfg.Storage)
		if err != nil {
			fatalf("Error opening store: %v", err)
		}
		defer st.Close()
		if err := st.Save(report); err != nil {
			fatalf("Error saving report: %v", err)
		}
	}

	if !*quiet {
		w := openOutput(*output)
		writeReport(w, report, *format)
	}

	if *exitCode && report.Summary.FinalValidity != session.ValidityValid {
		os.Exit(1)
	}
}

func cmdReport(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	configPath := fs.String("config", "", "config file (default: auto-detect)")
	format := fs.String("format", "text", "output format: text, json")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: session id required")
		os.Exit(2)
	}

	st := openStore(loadConfig(*configPath))
	defer st.Close()

	report, err := st.Get(fs.Arg(0))
	if err != nil {
		fatalf("Error: %v", err)
	}
	writeReport(os.Stdout, report, *format)
}

func cmdList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "", "config file (default: auto-detect)")
	limit := fs.Int("limit", 20, "maximum rows (0 = all)")
	validity := fs.String("validity", "", "filter by verdict (valid, invalid, ...)")
	fs.Parse(args)

	st := openStore(loadConfig(*configPath))
	defer st.Close()

	var rows []store.Summary
	var err error
	if *validity != "" {
		rows, err = st.ListByValidity(session.Validity(*validity), *limit)
	} else {
		rows, err = st.List(*limit)
	}
	if err != nil {
		fatalf("Error: %v", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tEXERCISE\tVERDICT\tRISK\tREPS\tCREATED")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%d\t%s\n",
			r.SessionID, r.Exercise, r.Validity, r.RiskScore, r.RepCount,
			r.CreatedAt.Format(time.RFC3339))
	}
	tw.Flush()
}

func cmdStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", "", "config file (default: auto-detect)")
	limit := fs.Int("limit", 0, "analyze only the newest N reports (0 = all)")
	fs.Parse(args)

	st := openStore(loadConfig(*configPath))
	defer st.Close()

	rows, err := st.List(*limit)
	if err != nil {
		fatalf("Error: %v", err)
	}
	var reports []*session.Report
	for _, row := range rows {
		r, err := st.Get(row.SessionID)
		if err != nil {
			fatalf("Error loading %s: %v", row.SessionID, err)
		}
		reports = append(reports, r)
	}

	analysis := stats.Analyze(reports)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(analysis); err != nil {
		fatalf("Error: %v", err)
	}
}

func loadConfig(path string) *config.Config {
	if path == "" {
		path = config.FindConfigFile()
	}
	if path == "" {
		return config.DefaultConfig()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fatalf("Error loading config: %v", err)
	}
	return cfg
}

func newLogger(cfg *config.Config, component string) *logging.Logger {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	format := logging.FormatText
	if cfg.Logging.Format == "json" {
		format = logging.FormatJSON
	}
	log, err := logging.New(&logging.Config{
		Level:      level,
		Format:     format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    int64(cfg.Logging.MaxSizeMB),
		MaxAge:     cfg.Logging.MaxAgeDays,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
		Component:  component,
	})
	if err != nil {
		fatalf("Error setting up logging: %v", err)
	}
	logging.SetDefault(log)
	return log
}

func openStore(cfg *config.Config) store.ReportStore {
	st, err := store.Open(cfg.Storage)
	if err != nil {
		fatalf("Error opening store: %v", err)
	}
	return st
}

func openOutput(path string) io.Writer {
	if path == "" {
		return os.Stdout
	}
	f, err := os.Create(path)
	if err != nil {
		fatalf("Error creating output file: %v", err)
	}
	return f
}

func writeReport(w io.Writer, report *session.Report, format string) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fatalf("Error encoding report: %v", err)
		}
	case "text":
		session.PrintReport(w, report)
	default:
		fatalf("Unknown format %q", format)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
