package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Ingest  *IngestCommand
	Report  *ReportCommand
	ASNSync *ASNSyncCommand
	Status  *StatusCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "logcrunch"
	parser.LongDescription = "Batch CDN access-log cruncher: dictionary-encoded SQLite storage and top-N traffic reports."

	cmds := &commands{
		Ingest:  &IngestCommand{globals: &globals, version: version},
		Report:  &ReportCommand{globals: &globals, version: version},
		ASNSync: &ASNSyncCommand{globals: &globals, version: version},
		Status:  &StatusCommand{globals: &globals, version: version},
	}

	parser.AddCommand("ingest", "Ingest access-log files", "Ingest gzipped or plain JSON access-log files into the database.", cmds.Ingest)
	parser.AddCommand("report", "Run a traffic report", "Run a named traffic report over the stored requests.", cmds.Report)
	parser.AddCommand("asn-sync", "Name autonomous systems", "Fetch names for autonomous systems seen in traffic from PeeringDB and the Spamhaus drop list.", cmds.ASNSync)
	parser.AddCommand("status", "Show database statistics", "Show database statistics and the time range of stored data.", cmds.Status)

	return parser, &globals, cmds
}

// Run is the main entry point for the logcrunch CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("logcrunch %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
