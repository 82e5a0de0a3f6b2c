package cli

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	DB      string `long:"db" description:"Override database path" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// IngestCommand — crunch one or more access-log files into the database.
type IngestCommand struct {
	Args struct {
		Files []string `positional-arg-name:"FILE" description:"Log files (.log or .log.gz)"`
	} `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	version string
}

// ReportCommand — run a named traffic report over the stored requests.
type ReportCommand struct {
	Name   string `long:"name" short:"n" description:"Report name (see --list)"`
	Window int    `long:"window" short:"w" description:"Trailing window in days (0 = config default)"`
	Top    int    `long:"top" short:"t" description:"Number of rows to keep (0 = config default)"`
	List   bool   `long:"list" description:"List recognized report names"`

	globals *GlobalFlags
	version string
}

// ASNSyncCommand — fetch names for autonomous systems seen in traffic.
type ASNSyncCommand struct {
	globals *GlobalFlags
	version string
}

// StatusCommand — show database statistics and stored data range.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}
