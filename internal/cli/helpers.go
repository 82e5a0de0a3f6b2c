package cli

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/runnerr0/logcrunch/internal/config"
	"github.com/runnerr0/logcrunch/internal/report"
	"github.com/runnerr0/logcrunch/internal/storage"
)

// loadConfig resolves the config for a command: the --config path if
// given, the default path otherwise (created with defaults on first run).
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	if globals != nil && globals.Config != "" {
		return config.Load(globals.Config)
	}
	return config.LoadOrCreate()
}

// openStore opens the configured database, runs migrations, and returns a
// ready-to-use store with the underlying *sql.DB.
func openStore(globals *GlobalFlags, cfg *config.Config) (*storage.Store, *sql.DB, error) {
	dbPath := ""
	if globals != nil {
		dbPath = globals.DB
	}
	if dbPath == "" {
		var err error
		dbPath, err = cfg.DatabasePath()
		if err != nil {
			return nil, nil, fmt.Errorf("resolve database path: %w", err)
		}
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	runner := storage.NewMigrationRunner(db)
	if err := runner.Run(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	store, err := storage.NewStore(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("init store: %w", err)
	}

	return store, db, nil
}

// setupLogging configures logrus from config and the --verbose flag.
func setupLogging(globals *GlobalFlags, cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if globals != nil && globals.Verbose {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)
}

// reportOptions maps config onto the report engine's options.
func reportOptions(cfg *config.Config) report.Options {
	return report.Options{
		SiteDomain:        cfg.Reports.SiteDomain,
		ArticlePrefix:     cfg.Reports.ArticlePrefix,
		FeedSuffix:        cfg.Reports.FeedSuffix,
		AgentDenylist:     cfg.Filters.AgentDenylist,
		SpamAgentPatterns: cfg.Filters.SpamAgentPatterns,
		ProbePathPrefixes: cfg.Filters.ProbePathPrefixes,
		ProbePathSuffixes: cfg.Filters.ProbePathSuffixes,
	}
}

// maxCellWidth bounds rendered cell width; grouping always ran on the
// full values, truncation here is display only.
const maxCellWidth = 80

// truncateCell shortens a value for display.
func truncateCell(s string) string {
	if len(s) <= maxCellWidth {
		return s
	}
	return s[:maxCellWidth-1] + "…"
}

// renderTable prints a result as aligned columns.
func renderTable(res *report.Result) {
	cells := make([][]string, 0, len(res.Rows)+1)
	cells = append(cells, res.Columns)
	for _, row := range res.Rows {
		display := make([]string, len(row))
		for i, v := range row {
			display[i] = truncateCell(v)
		}
		cells = append(cells, display)
	}

	widths := make([]int, len(res.Columns))
	for _, row := range cells {
		for i, v := range row {
			if len(v) > widths[i] {
				widths[i] = len(v)
			}
		}
	}

	for r, row := range cells {
		var b strings.Builder
		for i, v := range row {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(v)
			if i < len(row)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-len(v)))
			}
		}
		fmt.Println(b.String())
		if r == 0 {
			var sep strings.Builder
			for i, w := range widths {
				if i > 0 {
					sep.WriteString("  ")
				}
				sep.WriteString(strings.Repeat("-", w))
			}
			fmt.Println(sep.String())
		}
	}
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
		result.WriteString(",")
	}
	for i := remainder; i < len(s); i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}
