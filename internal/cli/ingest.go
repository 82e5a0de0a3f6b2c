package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/runnerr0/logcrunch/internal/ingest"
	"github.com/runnerr0/logcrunch/internal/storage"
)

// Execute implements the go-flags Commander interface for IngestCommand.
func (c *IngestCommand) Execute(args []string) error {
	if len(c.Args.Files) == 0 {
		return fmt.Errorf("ingest requires at least one log file")
	}

	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	setupLogging(c.globals, cfg)

	store, db, err := openStore(c.globals, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	return c.executeWithStore(store, c.Args.Files)
}

// executeWithStore runs the ingest against a provided store (for testing).
func (c *IngestCommand) executeWithStore(store *storage.Store, files []string) error {
	ctx := context.Background()
	ing := ingest.New(store, logrus.StandardLogger())

	var total ingest.Summary
	for _, file := range files {
		sum, err := ing.IngestFile(ctx, file)
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"file":    file,
			"stored":  sum.Stored,
			"skipped": sum.Skipped,
		}).Info("ingested log file")
		total.Stored += sum.Stored
		total.Skipped += sum.Skipped
	}

	if c.globals != nil && c.globals.JSON {
		out := map[string]interface{}{
			"files":   len(files),
			"stored":  total.Stored,
			"skipped": total.Skipped,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Ingested %d records from %d files (%d skipped)\n",
		total.Stored, len(files), total.Skipped)
	return nil
}
