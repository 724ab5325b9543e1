// Command fairplayd is the assessment daemon. It watches the session inbox
// for uploaded session files, runs each through the full pipeline, persists
// the report, and archives the processed file.
//
// Usage:
//
//	fairplayd [flags]
//
// The configuration file is created with defaults on first run. Edits to
// it are picked up live; the analysis of in-flight sessions is never
// interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"fairplay/internal/config"
	"fairplay/internal/health"
	"fairplay/internal/inbox"
	"fairplay/internal/logging"
	"fairplay/internal/metrics"
	"fairplay/internal/session"
	"fairplay/internal/sessionschema"
	"fairplay/internal/store"
)

var (
	// Version information (set at build time)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "config file (default: platform config dir)")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("fairplayd %s (commit: %s, built: %s)\n", version, commit, buildTime)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fairplayd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if configPath == "" {
		configPath = config.ConfigPath()
	}
	cfg, created, err := config.LoadOrCreate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer log.Close()
	logging.SetDefault(log)

	if created {
		log.Info("wrote default configuration", "path", configPath)
	}

	st, err := store.Open(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open report store: %w", err)
	}
	defer st.Close()

	// The analyzer is swapped atomically on config reload; the processing
	// loop always reads the current one.
	var analyzer atomic.Pointer[session.Analyzer]
	analyzer.Store(session.NewAnalyzer(cfg, nil, log))

	loader := config.NewLoader(configPath)
	if _, err := loader.Load(); err == nil {
		loader.OnChange(func(next *config.Config) {
			log.Info("configuration reloaded", "path", configPath)
			analyzer.Store(session.NewAnalyzer(next, nil, log))
		})
		if err := loader.Watch(); err != nil {
			log.Warn("config watch unavailable", "error", err)
		}
		defer loader.Close()
	}

	watcher, err := inbox.New(cfg.Inbox)
	if err != nil {
		return fmt.Errorf("create inbox watcher: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("start inbox watcher: %w", err)
	}
	defer watcher.Stop()

	daemonMetrics := metrics.NewDaemon(metrics.Default())

	checker := health.NewChecker()
	checker.Register(health.Component{
		Name:     "store",
		Critical: true,
		Check: health.PingCheck(func() error {
			_, err := st.Count()
			return err
		}),
	})
	checker.Register(health.Component{
		Name:     "inbox",
		Critical: true,
		Check:    health.DirWritableCheck(cfg.Inbox.Path),
	})
	checker.SetReady(true)

	if addr := cfg.Health.ListenAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/healthz", checker.LivenessHandler())
		mux.Handle("/readyz", checker.ReadinessHandler())
		mux.Handle("/health", checker.Handler())
		mux.Handle("/metrics", metrics.Default().HTTPHandler())
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("health server stopped", "error", err)
			}
		}()
		defer srv.Close()
		log.Info("health endpoint listening", "addr", addr)
	}

	log.Info("fairplayd started",
		"version", version,
		"inbox", cfg.Inbox.Path,
		"storage", cfg.Storage.Path)

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			log.Info("fairplayd shutting down")
			return nil

		case ev, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			processFile(ctx, analyzer.Load(), st, cfg, log, daemonMetrics, ev.Path)

		case err, ok := <-watcher.Errors():
			if !ok {
				return nil
			}
			log.Error("inbox watch error", "error", err)
		}
	}
}

// processFile runs one session file through the pipeline. Failures are
// logged and the file is archived under failed/ so a bad upload can never
// wedge the inbox.
func processFile(ctx context.Context, analyzer *session.Analyzer,
	st store.ReportStore, cfg *config.Config, log *logging.Logger,
	m *metrics.Daemon, path string) {

	start := time.Now()
	log.Info("processing session file", "path", path)

	report, err := analyzeFile(ctx, analyzer, path)
	if err != nil {
		m.SessionsFailed.Inc()
		log.Error("session rejected", "path", path, "error", err)
		archive(cfg.Inbox.ArchiveDir, path, true, log)
		return
	}

	m.SessionsProcessed.Inc()
	m.RecordVerdict(string(report.Summary.FinalValidity))
	m.FramesProcessed.Add(uint64(report.Security.FramesProcessed))
	m.FlagsRaised.Add(uint64(report.Security.FlagSummary.Total))
	m.AnalysisDuration.ObserveDuration(time.Since(start))
	m.RiskScore.Observe(report.Security.Risk.RiskScore)

	if err := st.Save(report); err != nil {
		log.Error("failed to persist report",
			"path", path, "session_id", report.SessionID, "error", err)
		return
	}
	if n := cfg.Storage.RetainReports; n > 0 {
		if deleted, err := st.Prune(n); err != nil {
			log.Warn("report pruning failed", "error", err)
		} else if deleted > 0 {
			log.Debug("pruned old reports", "deleted", deleted)
		}
	}

	if n, err := st.Count(); err == nil {
		m.StoredReports.Set(int64(n))
	}

	archive(cfg.Inbox.ArchiveDir, path, false, log)
	log.Info("session processed",
		"session_id", report.SessionID,
		"exercise", report.Exercise,
		"validity", report.Summary.FinalValidity,
		"elapsed", time.Since(start).Seconds())
}

func analyzeFile(ctx context.Context, analyzer *session.Analyzer, path string) (*session.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if err := sessionschema.Validate(data); err != nil {
		return nil, err
	}
	in, err := session.ParseInput(data)
	if err != nil {
		return nil, err
	}
	return analyzer.Analyze(ctx, in)
}

func archive(dir, path string, failed bool, log *logging.Logger) {
	if dir == "" {
		return
	}
	if failed {
		dir = dir + string(os.PathSeparator) + "failed"
	}
	dest, err := inbox.Archive(path, dir)
	if err != nil {
		log.Warn("failed to archive session file", "path", path, "error", err)
		return
	}
	log.Debug("archived session file", "from", path, "to", dest)
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	format := logging.FormatText
	if cfg.Logging.Format == "json" {
		format = logging.FormatJSON
	}
	return logging.New(&logging.Config{
		Level:      level,
		Format:     format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    int64(cfg.Logging.MaxSizeMB),
		MaxAge:     cfg.Logging.MaxAgeDays,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
		Component:  "fairplayd",
	})
}
