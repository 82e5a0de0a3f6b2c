package storage

import "time"

// Dict names one of the deduplicating dimension tables.
type Dict string

const (
	DictPath      Dict = "paths"
	DictReferer   Dict = "referers"
	DictUserAgent Dict = "user_agents"
	DictClientIP  Dict = "client_ips"
)

// Fact is one logged request, carrying dictionary ids for its string
// dimensions plus inline scalars. Reference fields must hold ids returned
// by GetOrCreate (or EnsureASN for the ASN); RefererRef and UserAgentRef
// may be zero to mean absent.
type Fact struct {
	ClientIPRef      int64
	ASN              int64
	CountryCode      string
	Requests         int64
	Status           int
	CacheState       string
	ResponseBytes    int64
	ResponseDuration float64
	StartTime        time.Time
	IPv6             bool
	HTTP2            bool
	PathRef          int64
	RefererRef       int64 // 0 = null
	UserAgentRef     int64 // 0 = null
}

// NormalizedRow is a fact row with every dictionary reference resolved to
// its value, plus the calendar date of the request start in UTC. Absent
// references resolve to the empty string. Rows are derived per query and
// never persisted.
type NormalizedRow struct {
	ID               int64
	ClientIP         string
	ASN              int64
	ASName           string
	CountryCode      string
	Requests         int64
	Status           int
	CacheState       string
	ResponseBytes    int64
	ResponseDuration float64
	StartTime        time.Time
	Date             string // 2006-01-02, UTC
	IPv6             bool
	HTTP2            bool
	Path             string
	Referer          string
	UserAgent        string
}

// ASEntry is one row of the autonomous_systems dictionary. The ASN is the
// natural key; Name and Droplist are filled in by enrichment.
type ASEntry struct {
	ASN      int64
	Name     string
	Droplist string
}

// Stats holds aggregate statistics about the logcrunch database.
type Stats struct {
	TotalRequests  int64
	UniquePaths    int64
	UniqueReferers int64
	UniqueAgents   int64
	UniqueIPs      int64
	UniqueASNs     int64
	OldestRequest  time.Time
	NewestRequest  time.Time
	TopASNs        []ASNCount
}

// ASNCount pairs an autonomous system with its request count.
type ASNCount struct {
	ASN   int64
	Name  string
	Count int64
}
