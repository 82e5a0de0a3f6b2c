package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/runnerr0/logcrunch/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string         `json:"version"`
	DatabasePath      string         `json:"database_path"`
	DatabaseSizeBytes int64          `json:"database_size_bytes"`
	TotalRequests     int64          `json:"total_requests"`
	UniquePaths       int64          `json:"unique_paths"`
	UniqueReferers    int64          `json:"unique_referers"`
	UniqueAgents      int64          `json:"unique_agents"`
	UniqueIPs         int64          `json:"unique_ips"`
	UniqueASNs        int64          `json:"unique_asns"`
	OldestRequest     string         `json:"oldest_request,omitempty"`
	NewestRequest     string         `json:"newest_request,omitempty"`
	TopASNs           []asnCountJSON `json:"top_asns"`
}

type asnCountJSON struct {
	ASN   int64  `json:"asn"`
	Name  string `json:"name,omitempty"`
	Count int64  `json:"count"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	setupLogging(c.globals, cfg)

	dbPath := c.globals.DB
	if dbPath == "" {
		dbPath, err = cfg.DatabasePath()
		if err != nil {
			return err
		}
	}

	store, db, err := openStore(c.globals, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	return c.executeWithStore(store, db, dbPath)
}

// executeWithStore runs status against a provided store and db (for testing).
func (c *StatusCommand) executeWithStore(store *storage.Store, db *sql.DB, dbPath string) error {
	ctx := context.Background()

	stats, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	dbSize := getDatabaseSize(db, dbPath)

	if c.globals != nil && c.globals.JSON {
		return c.printStatusJSON(stats, dbPath, dbSize)
	}
	return c.printStatusHuman(stats, dbPath, dbSize)
}

func (c *StatusCommand) printStatusHuman(stats *storage.Stats, dbPath string, dbSize int64) error {
	fmt.Println("Logcrunch Status")
	fmt.Println("================")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Database:      %s (%s)\n", dbPath, formatBytes(dbSize))
	fmt.Printf("Requests:      %s\n", formatNumber(stats.TotalRequests))
	fmt.Printf("Paths:         %s\n", formatNumber(stats.UniquePaths))
	fmt.Printf("Referers:      %s\n", formatNumber(stats.UniqueReferers))
	fmt.Printf("User agents:   %s\n", formatNumber(stats.UniqueAgents))
	fmt.Printf("Client IPs:    %s\n", formatNumber(stats.UniqueIPs))
	fmt.Printf("ASNs:          %s\n", formatNumber(stats.UniqueASNs))

	if stats.TotalRequests > 0 {
		fmt.Printf("Oldest:        %s\n", stats.OldestRequest.UTC().Format("2006-01-02"))
		fmt.Printf("Newest:        %s\n", stats.NewestRequest.UTC().Format("2006-01-02"))
	}

	if len(stats.TopASNs) > 0 {
		fmt.Println()
		fmt.Println("Top ASNs:")
		for _, a := range stats.TopASNs {
			label := a.Name
			if label == "" {
				label = fmt.Sprintf("AS%d", a.ASN)
			}
			fmt.Printf("  %-30s %s\n", truncateCell(label), formatNumber(a.Count))
		}
	}

	return nil
}

func (c *StatusCommand) printStatusJSON(stats *storage.Stats, dbPath string, dbSize int64) error {
	out := statusJSON{
		Version:           c.version,
		DatabasePath:      dbPath,
		DatabaseSizeBytes: dbSize,
		TotalRequests:     stats.TotalRequests,
		UniquePaths:       stats.UniquePaths,
		UniqueReferers:    stats.UniqueReferers,
		UniqueAgents:      stats.UniqueAgents,
		UniqueIPs:         stats.UniqueIPs,
		UniqueASNs:        stats.UniqueASNs,
		TopASNs:           make([]asnCountJSON, len(stats.TopASNs)),
	}

	if stats.TotalRequests > 0 {
		out.OldestRequest = stats.OldestRequest.UTC().Format(time.RFC3339)
		out.NewestRequest = stats.NewestRequest.UTC().Format(time.RFC3339)
	}

	for i, a := range stats.TopASNs {
		out.TopASNs[i] = asnCountJSON{ASN: a.ASN, Name: a.Name, Count: a.Count}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// getDatabaseSize returns the database file size in bytes.
// For on-disk databases, it uses os.Stat. For in-memory databases,
// it queries page_count * page_size.
func getDatabaseSize(db *sql.DB, dbPath string) int64 {
	if info, err := os.Stat(dbPath); err == nil {
		return info.Size()
	}

	var pageCount, pageSize int64
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0
	}
	if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0
	}
	return pageCount * pageSize
}
