package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/runnerr0/logcrunch/internal/asn"
)

// Execute implements the go-flags Commander interface for ASNSyncCommand.
func (c *ASNSyncCommand) Execute(args []string) error {
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

	client := asn.NewClient(cfg.ASN, logrus.StandardLogger())
	sum, err := client.Sync(context.Background(), store)
	if err != nil {
		return fmt.Errorf("asn-sync: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		out := map[string]interface{}{
			"named":         sum.Named,
			"from_droplist": sum.FromDroplist,
			"unknown":       sum.Unknown,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Named %d ASNs (%d from drop list, %d still unknown)\n",
		sum.Named+sum.FromDroplist, sum.FromDroplist, sum.Unknown)
	return nil
}
