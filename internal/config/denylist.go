package config

// DefaultAgentDenylist returns user-agent substrings for synthetic clients
// whose regular polling would swamp human traffic in naive counts: uptime
// monitors, link checkers, and similar operational tooling. Matching is
// case-insensitive substring.
func DefaultAgentDenylist() []string {
	return []string{
		// Uptime / health-check monitors
		"updown.io",
		"uptimerobot",
		"uptime-kuma",
		"statuscake",
		"pingdom",
		"site24x7",
		"freshping",
		"checkly",

		// Link checkers
		"lychee",
		"linkchecker",
		"w3c-checklink",
		"validator.nu",

		// Feed fetchers that poll on a timer
		"feedvalidator",
	}
}

// DefaultSpamAgentPatterns returns user-agent substrings that identify
// spoofed browser signatures used by spam crawlers. The canonical example
// is the "Mozlila" misspelling of Mozilla. Best-effort: only spam cheap to
// recognize by substring is listed.
func DefaultSpamAgentPatterns() []string {
	return []string{
		"mozlila",
		"mozila",
		"zgrab",
		"masscan",
	}
}

// DefaultProbePathPrefixes returns path prefixes requested only by
// vulnerability scanners on a site that serves none of them.
func DefaultProbePathPrefixes() []string {
	return []string{
		"/wp-admin",
		"/wp-login",
		"/wp-content",
		"/wp-includes",
		"/xmlrpc",
		"/.env",
		"/.git",
		"/phpmyadmin",
		"/cgi-bin",
	}
}

// DefaultProbePathSuffixes returns path suffixes requested only by
// vulnerability scanners on a site that serves none of them.
func DefaultProbePathSuffixes() []string {
	return []string{
		".php",
		".asp",
		".aspx",
		".jsp",
		".cgi",
	}
}
