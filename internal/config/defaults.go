package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:       "~/.config/logcrunch",
			SQLiteFile: "logcrunch.db",
		},
		Reports: ReportsConfig{
			WindowDays:    7,
			TopN:          20,
			PerDayTopK:    3,
			SiteDomain:    "",
			ArticlePrefix: "/writing/",
			FeedSuffix:    ".xml",
		},
		Filters: FiltersConfig{
			AgentDenylist:     DefaultAgentDenylist(),
			SpamAgentPatterns: DefaultSpamAgentPatterns(),
			ProbePathPrefixes: DefaultProbePathPrefixes(),
			ProbePathSuffixes: DefaultProbePathSuffixes(),
		},
		ASN: ASNConfig{
			PeeringDBURL:   "https://www.peeringdb.com/api/as_set",
			SpamhausURL:    "https://www.spamhaus.org/drop/asndrop.json",
			TimeoutSeconds: 30,
			Concurrency:    8,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
