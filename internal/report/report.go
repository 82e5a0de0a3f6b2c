// Package report runs the aggregate traffic reports: grouped counts over
// the filtered, normalized request rows, sorted and truncated to top-N,
// plus the per-day article ranking. All reports recompute from the fact
// table on every run; nothing is materialized.
package report

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/runnerr0/logcrunch/internal/pipeline"
	"github.com/runnerr0/logcrunch/internal/storage"
)

// Params are the knobs shared by every report.
type Params struct {
	WindowDays int
	TopN       int
	PerDayTopK int
	// Now anchors the trailing window; zero means time.Now. Tests pin it.
	Now time.Time
}

func (p *Params) setDefaults() {
	if p.WindowDays == 0 {
		p.WindowDays = 7
	}
	if p.TopN == 0 {
		p.TopN = 20
	}
	if p.PerDayTopK == 0 {
		p.PerDayTopK = 3
	}
	if p.Now.IsZero() {
		p.Now = time.Now()
	}
}

// validate rejects bad parameters before any query runs.
func (p *Params) validate() error {
	if p.WindowDays < 0 {
		return fmt.Errorf("invalid windowDays %d: must be positive", p.WindowDays)
	}
	if p.TopN < 0 {
		return fmt.Errorf("invalid topN %d: must be positive", p.TopN)
	}
	if p.PerDayTopK < 0 {
		return fmt.Errorf("invalid per-day top-K %d: must be positive", p.PerDayTopK)
	}
	return nil
}

// Result is an ordered sequence of rows with named columns, ready for
// tabular rendering. Values are full-length; any display truncation is the
// renderer's business, never applied before grouping.
type Result struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// Options carries the site-specific filter configuration reports run with.
type Options struct {
	SiteDomain        string
	ArticlePrefix     string
	FeedSuffix        string
	AgentDenylist     []string
	SpamAgentPatterns []string
	ProbePathPrefixes []string
	ProbePathSuffixes []string
}

// Engine runs named reports against a store.
type Engine struct {
	store *storage.Store
	opts  Options
}

// New creates a report engine.
func New(store *storage.Store, opts Options) *Engine {
	return &Engine{store: store, opts: opts}
}

// Names lists the recognized report names in presentation order.
func Names() []string {
	return []string{
		"agents",
		"referers",
		"pages",
		"articles",
		"articles-per-day-top3",
		"errors",
		"scanning-asns",
		"traffic-count",
	}
}

// Run executes the named report. Parameters are validated first; a report
// either fully succeeds or returns an error with no partial output.
func (e *Engine) Run(ctx context.Context, name string, p Params) (*Result, error) {
	p.setDefaults()
	if err := p.validate(); err != nil {
		return nil, err
	}

	switch name {
	case "agents":
		return e.topByDimension(ctx, name, p, "user_agent",
			func(row *storage.NormalizedRow) (string, bool) { return row.UserAgent, true })
	case "referers":
		return e.topByDimension(ctx, name, p, "referer", e.refererKey)
	case "pages":
		return e.topByDimension(ctx, name, p, "path",
			func(row *storage.NormalizedRow) (string, bool) { return row.Path, true })
	case "articles":
		return e.topArticles(ctx, name, p)
	case "articles-per-day-top3":
		return e.articlesPerDay(ctx, name, p)
	case "errors":
		return e.errors(ctx, name, p)
	case "scanning-asns":
		return e.scanningASNs(ctx, name, p)
	case "traffic-count":
		return e.trafficCount(ctx, name, p)
	default:
		return nil, fmt.Errorf("unknown report %q (known: %s)", name, strings.Join(Names(), ", "))
	}
}

// windowChain is the default fully-chained view: monitor-agent exclusion,
// junk exclusion, trailing window.
func (e *Engine) windowChain(p Params) pipeline.Predicate {
	return pipeline.All(
		pipeline.ExcludeMonitorAgents(e.opts.AgentDenylist),
		pipeline.ExcludeJunk(e.opts.SpamAgentPatterns),
		pipeline.Window(p.Now, p.WindowDays),
	)
}

// each streams the filtered normalized rows through visit.
func (e *Engine) each(ctx context.Context, keep pipeline.Predicate, visit func(*storage.NormalizedRow)) error {
	iter, err := e.store.ResolveAll(ctx)
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.Next() {
		row := iter.Row()
		if keep(row) {
			visit(row)
		}
	}
	return iter.Err()
}

// refererKey keys the referer report, dropping rows with no referer and
// self-referencing traffic: neither is signal about where readers come
// from.
func (e *Engine) refererKey(row *storage.NormalizedRow) (string, bool) {
	if row.Referer == "" {
		return "", false
	}
	if e.opts.SiteDomain != "" && strings.Contains(row.Referer, e.opts.SiteDomain) {
		return "", false
	}
	return row.Referer, true
}

// keyCount pairs a group key with its member count.
type keyCount struct {
	Key   string
	Count int64
}

// rankCounts orders grouped counts descending and truncates to n.
// Tie-break is count descending, then key ascending: deterministic across
// repeated runs on unchanged data.
func rankCounts(counts map[string]int64, n int) []keyCount {
	ranked := make([]keyCount, 0, len(counts))
	for k, c := range counts {
		ranked = append(ranked, keyCount{Key: k, Count: c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Key < ranked[j].Key
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// topByDimension is the shared shape of the simple reports: group by a
// key, count, sort descending, truncate.
func (e *Engine) topByDimension(ctx context.Context, name string, p Params, column string, key func(*storage.NormalizedRow) (string, bool)) (*Result, error) {
	counts := make(map[string]int64)
	err := e.each(ctx, e.windowChain(p), func(row *storage.NormalizedRow) {
		if k, ok := key(row); ok {
			counts[k]++
		}
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Name: name, Columns: []string{column, "count"}}
	for _, kc := range rankCounts(counts, p.TopN) {
		res.Rows = append(res.Rows, []string{kc.Key, strconv.FormatInt(kc.Count, 10)})
	}
	return res, nil
}

// topArticles is the pages report restricted to long-form content paths.
func (e *Engine) topArticles(ctx context.Context, name string, p Params) (*Result, error) {
	keep := pipeline.All(
		e.windowChain(p),
		pipeline.ArticlesOnly(e.opts.ArticlePrefix, e.opts.FeedSuffix),
	)

	counts := make(map[string]int64)
	err := e.each(ctx, keep, func(row *storage.NormalizedRow) {
		counts[row.Path]++
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Name: name, Columns: []string{"path", "count"}}
	for _, kc := range rankCounts(counts, p.TopN) {
		res.Rows = append(res.Rows, []string{kc.Key, strconv.FormatInt(kc.Count, 10)})
	}
	return res, nil
}

// errors groups (status, path) pairs for failed responses a legitimate
// client could trigger: probe paths are excluded here and picked up by the
// scanning-asns report instead, keeping the two disjoint.
func (e *Engine) errors(ctx context.Context, name string, p Params) (*Result, error) {
	type errKey struct {
		Status int
		Path   string
	}

	probe := pipeline.ProbePath(e.opts.ProbePathPrefixes, e.opts.ProbePathSuffixes)
	keep := pipeline.All(e.windowChain(p), pipeline.Not(probe))

	counts := make(map[errKey]int64)
	err := e.each(ctx, keep, func(row *storage.NormalizedRow) {
		if row.Status >= 400 {
			counts[errKey{Status: row.Status, Path: row.Path}]++
		}
	})
	if err != nil {
		return nil, err
	}

	ranked := make([]struct {
		errKey
		Count int64
	}, 0, len(counts))
	for k, c := range counts {
		ranked = append(ranked, struct {
			errKey
			Count int64
		}{k, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		if ranked[i].Status != ranked[j].Status {
			return ranked[i].Status < ranked[j].Status
		}
		return ranked[i].Path < ranked[j].Path
	})
	if len(ranked) > p.TopN {
		ranked = ranked[:p.TopN]
	}

	res := &Result{Name: name, Columns: []string{"status", "path", "count"}}
	for _, r := range ranked {
		res.Rows = append(res.Rows, []string{
			strconv.Itoa(r.Status), r.Path, strconv.FormatInt(r.Count, 10),
		})
	}
	return res, nil
}

// scanningASNs aggregates exactly the probe-path traffic the error report
// excludes, grouped by originating autonomous system, to surface which
// networks are scanning.
func (e *Engine) scanningASNs(ctx context.Context, name string, p Params) (*Result, error) {
	probe := pipeline.ProbePath(e.opts.ProbePathPrefixes, e.opts.ProbePathSuffixes)
	// Runs upstream of the junk stage: probes mostly draw not-found
	// responses, which the junk stage would hide.
	keep := pipeline.All(
		pipeline.ExcludeMonitorAgents(e.opts.AgentDenylist),
		pipeline.Window(p.Now, p.WindowDays),
		probe,
	)

	counts := make(map[string]int64)
	err := e.each(ctx, keep, func(row *storage.NormalizedRow) {
		counts[asnLabel(row)]++
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Name: name, Columns: []string{"autonomous_system", "count"}}
	for _, kc := range rankCounts(counts, p.TopN) {
		res.Rows = append(res.Rows, []string{kc.Key, strconv.FormatInt(kc.Count, 10)})
	}
	return res, nil
}

// asnLabel prefers the enriched AS name, falling back to the number.
func asnLabel(row *storage.NormalizedRow) string {
	if row.ASName != "" {
		return row.ASName
	}
	return "AS" + strconv.FormatInt(row.ASN, 10)
}

// trafficCount reports the single count of rows passing the full chain.
func (e *Engine) trafficCount(ctx context.Context, name string, p Params) (*Result, error) {
	var total int64
	err := e.each(ctx, e.windowChain(p), func(*storage.NormalizedRow) {
		total++
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		Name:    name,
		Columns: []string{"count"},
		Rows:    [][]string{{strconv.FormatInt(total, 10)}},
	}, nil
}

// articlesPerDay ranks article paths by count independently within each
// calendar date and keeps the top K per date. Ranking is positional after
// the deterministic sort (count descending, path ascending), so tied
// counts beyond K are cut rather than all kept. Output is ordered date
// descending, then count descending, then path ascending.
func (e *Engine) articlesPerDay(ctx context.Context, name string, p Params) (*Result, error) {
	keep := pipeline.All(
		e.windowChain(p),
		pipeline.ArticlesOnly(e.opts.ArticlePrefix, e.opts.FeedSuffix),
	)

	perDay := make(map[string]map[string]int64)
	err := e.each(ctx, keep, func(row *storage.NormalizedRow) {
		byPath := perDay[row.Date]
		if byPath == nil {
			byPath = make(map[string]int64)
			perDay[row.Date] = byPath
		}
		byPath[row.Path]++
	})
	if err != nil {
		return nil, err
	}

	dates := make([]string, 0, len(perDay))
	for d := range perDay {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	res := &Result{Name: name, Columns: []string{"date", "path", "count"}}
	for _, d := range dates {
		for _, kc := range rankCounts(perDay[d], p.PerDayTopK) {
			res.Rows = append(res.Rows, []string{d, kc.Key, strconv.FormatInt(kc.Count, 10)})
		}
	}
	return res, nil
}
