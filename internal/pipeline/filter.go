// Package pipeline provides the predicate stages that narrow normalized
// request rows down to reportable traffic. Every stage is a pure predicate
// over a single row; stages compose with All and commute, so ordering is a
// matter of documentation, not correctness.
package pipeline

import (
	"strings"
	"time"

	"github.com/runnerr0/logcrunch/internal/storage"
)

// Predicate reports whether a normalized row should be kept.
type Predicate func(*storage.NormalizedRow) bool

// All combines predicates conjunctively. With no arguments it keeps
// everything.
func All(preds ...Predicate) Predicate {
	return func(row *storage.NormalizedRow) bool {
		for _, p := range preds {
			if !p(row) {
				return false
			}
		}
		return true
	}
}

// containsFold reports whether s contains substr, ignoring case.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// ExcludeMonitorAgents drops rows whose user agent matches any denylist
// entry (case-insensitive substring). The denylist names synthetic clients
// that poll on a timer: health checks, link checkers. Their regular traffic
// would dominate naive counts.
func ExcludeMonitorAgents(denylist []string) Predicate {
	return func(row *storage.NormalizedRow) bool {
		for _, d := range denylist {
			if containsFold(row.UserAgent, d) {
				return false
			}
		}
		return true
	}
}

// ExcludeJunk drops not-found responses and rows whose user agent matches
// a known spoofed signature (case-insensitive substring, e.g. the
// "Mozlila" misspelling spam crawlers use). Best-effort: only spam that a
// cheap pattern match can identify is removed, and rows are only ever
// dropped, never rewritten.
func ExcludeJunk(spamPatterns []string) Predicate {
	return func(row *storage.NormalizedRow) bool {
		if row.Status == 404 {
			return false
		}
		for _, p := range spamPatterns {
			if containsFold(row.UserAgent, p) {
				return false
			}
		}
		return true
	}
}

// Window keeps rows whose request start falls within the trailing days
// before now. The comparison is on the parsed instant: a row exactly at
// the boundary is kept, one strictly older is dropped, and two textual
// forms of the same instant classify identically.
func Window(now time.Time, days int) Predicate {
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
	return func(row *storage.NormalizedRow) bool {
		return !row.StartTime.Before(cutoff)
	}
}

// ArticlesOnly keeps rows for long-form content: paths under prefix,
// excluding syndication feeds by suffix even when they sit under the
// prefix.
func ArticlesOnly(prefix, feedSuffix string) Predicate {
	return func(row *storage.NormalizedRow) bool {
		if !strings.HasPrefix(row.Path, prefix) {
			return false
		}
		if feedSuffix != "" && strings.HasSuffix(row.Path, feedSuffix) {
			return false
		}
		return true
	}
}

// ProbePath reports whether a path looks like vulnerability scanning:
// a known probe prefix or a script suffix this site never serves. The
// error report excludes these rows; the scanning-networks report
// aggregates exactly them, so the two stay disjoint.
func ProbePath(prefixes, suffixes []string) Predicate {
	return func(row *storage.NormalizedRow) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(row.Path, p) {
				return true
			}
		}
		for _, s := range suffixes {
			if strings.HasSuffix(row.Path, s) {
				return true
			}
		}
		return false
	}
}

// Not inverts a predicate.
func Not(p Predicate) Predicate {
	return func(row *storage.NormalizedRow) bool { return !p(row) }
}
