package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/runnerr0/logcrunch/internal/config"
	"github.com/runnerr0/logcrunch/internal/report"
	"github.com/runnerr0/logcrunch/internal/storage"
)

// Execute implements the go-flags Commander interface for ReportCommand.
func (c *ReportCommand) Execute(args []string) error {
	if c.List {
		for _, name := range report.Names() {
			fmt.Println(name)
		}
		return nil
	}

	if c.Name == "" && len(args) > 0 {
		c.Name = args[0]
	}
	if c.Name == "" {
		return fmt.Errorf("--name is required (or use --list)")
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

	return c.executeWithStore(store, cfg)
}

// executeWithStore runs the report against a provided store (for testing).
func (c *ReportCommand) executeWithStore(store *storage.Store, cfg *config.Config) error {
	engine := report.New(store, reportOptions(cfg))

	params := report.Params{
		WindowDays: c.Window,
		TopN:       c.Top,
		PerDayTopK: cfg.Reports.PerDayTopK,
	}
	if params.WindowDays == 0 {
		params.WindowDays = cfg.Reports.WindowDays
	}
	if params.TopN == 0 {
		params.TopN = cfg.Reports.TopN
	}

	res, err := engine.Run(context.Background(), c.Name, params)
	if err != nil {
		return fmt.Errorf("report %s: %w", c.Name, err)
	}

	if c.globals != nil && c.globals.JSON {
		return printReportJSON(res)
	}

	renderTable(res)
	return nil
}

type reportJSON struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

func printReportJSON(res *report.Result) error {
	out := reportJSON{Name: res.Name, Columns: res.Columns, Rows: res.Rows}
	if out.Rows == nil {
		out.Rows = [][]string{}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
