package report

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/logcrunch/internal/storage"
)

// testNow anchors every window in these tests.
var testNow = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func testOptions() Options {
	return Options{
		SiteDomain:        "example.com",
		ArticlePrefix:     "/writing/",
		FeedSuffix:        ".xml",
		AgentDenylist:     []string{"updown.io", "lychee"},
		SpamAgentPatterns: []string{"mozlila"},
		ProbePathPrefixes: []string{"/wp-admin", "/wp-login"},
		ProbePathSuffixes: []string{".php"},
	}
}

func openTestEngine(t *testing.T) (*Engine, *storage.Store) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, storage.NewMigrationRunner(db).Run())

	store, err := storage.NewStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return New(store, testOptions()), store
}

// request is a seeding shorthand; zero fields get reasonable defaults.
type request struct {
	path    string
	referer string
	agent   string
	status  int
	asn     int64
	start   time.Time
}

func seed(t *testing.T, store *storage.Store, reqs ...request) {
	t.Helper()
	ctx := context.Background()

	for _, r := range reqs {
		if r.path == "" {
			r.path = "/writing/default"
		}
		if r.agent == "" {
			r.agent = "Mozilla/5.0 (X11; Linux x86_64)"
		}
		if r.status == 0 {
			r.status = 200
		}
		if r.asn == 0 {
			r.asn = 64496
		}
		if r.start.IsZero() {
			r.start = testNow.Add(-time.Hour)
		}

		fact := storage.Fact{
			ASN:           r.asn,
			Status:        r.status,
			Requests:      1,
			CacheState:    "HIT",
			ResponseBytes: 1000,
			StartTime:     r.start,
		}

		var err error
		fact.ClientIPRef, err = store.GetOrCreate(ctx, storage.DictClientIP, "192.0.2.1")
		require.NoError(t, err)
		require.NoError(t, store.EnsureASN(ctx, r.asn))
		fact.PathRef, err = store.GetOrCreate(ctx, storage.DictPath, r.path)
		require.NoError(t, err)
		if r.referer != "" {
			fact.RefererRef, err = store.GetOrCreate(ctx, storage.DictReferer, r.referer)
			require.NoError(t, err)
		}
		fact.UserAgentRef, err = store.GetOrCreate(ctx, storage.DictUserAgent, r.agent)
		require.NoError(t, err)

		require.NoError(t, store.Append(ctx, &fact))
	}
}

func run(t *testing.T, e *Engine, name string, p Params) *Result {
	t.Helper()
	if p.Now.IsZero() {
		p.Now = testNow
	}
	res, err := e.Run(context.Background(), name, p)
	require.NoError(t, err)
	return res
}

// --- parameter validation ---

func TestRun_RejectsBadParams(t *testing.T) {
	engine, _ := openTestEngine(t)
	ctx := context.Background()

	_, err := engine.Run(ctx, "pages", Params{TopN: -1})
	assert.ErrorContains(t, err, "topN")

	_, err = engine.Run(ctx, "pages", Params{WindowDays: -7})
	assert.ErrorContains(t, err, "windowDays")
}

func TestRun_UnknownReport(t *testing.T) {
	engine, _ := openTestEngine(t)

	_, err := engine.Run(context.Background(), "nosuch", Params{})
	assert.ErrorContains(t, err, "unknown report")
}

// --- top-N by dimension ---

func TestPages_TopNTieBreakDeterministic(t *testing.T) {
	engine, store := openTestEngine(t)

	var reqs []request
	for i := 0; i < 5; i++ {
		reqs = append(reqs, request{path: "/writing/a"}, request{path: "/writing/b"})
	}
	for i := 0; i < 3; i++ {
		reqs = append(reqs, request{path: "/writing/c"})
	}
	seed(t, store, reqs...)

	first := run(t, engine, "pages", Params{TopN: 2})
	require.Len(t, first.Rows, 2)
	assert.Equal(t, []string{"/writing/a", "5"}, first.Rows[0])
	assert.Equal(t, []string{"/writing/b", "5"}, first.Rows[1])

	// Deterministic across repeated runs on unchanged data.
	second := run(t, engine, "pages", Params{TopN: 2})
	assert.Equal(t, first.Rows, second.Rows)
}

func TestAgents_ExcludesMonitorsAndSpam(t *testing.T) {
	engine, store := openTestEngine(t)

	seed(t, store,
		request{agent: "Mozilla/5.0 (X11; Linux x86_64)"},
		request{agent: "Mozilla/5.0 (X11; Linux x86_64)"},
		request{agent: "updown.io daemon 2.2"},
		request{agent: "Mozlila/5.0 (Windows NT 10.0)"},
	)

	res := run(t, engine, "agents", Params{})
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []string{"Mozilla/5.0 (X11; Linux x86_64)", "2"}, res.Rows[0])
}

func TestReferers_ExcludesEmptyAndSelf(t *testing.T) {
	engine, store := openTestEngine(t)

	seed(t, store,
		request{referer: "https://news.ycombinator.com/item"},
		request{referer: "https://news.ycombinator.com/item"},
		request{referer: "https://example.com/writing/other"}, // self
		request{referer: ""},                                  // absent
	)

	res := run(t, engine, "referers", Params{})
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []string{"https://news.ycombinator.com/item", "2"}, res.Rows[0])
}

func TestPages_WindowExcludesOldRows(t *testing.T) {
	engine, store := openTestEngine(t)

	seed(t, store,
		request{path: "/writing/recent", start: testNow.Add(-24 * time.Hour)},
		request{path: "/writing/ancient", start: testNow.AddDate(0, 0, -30)},
	)

	res := run(t, engine, "pages", Params{WindowDays: 7})
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "/writing/recent", res.Rows[0][0])
}

// --- articles ---

func TestArticles_PrefixAndFeedExclusion(t *testing.T) {
	engine, store := openTestEngine(t)

	seed(t, store,
		request{path: "/writing/post"},
		request{path: "/writing/post"},
		request{path: "/writing/feed.xml"},
		request{path: "/about"},
	)

	res := run(t, engine, "articles", Params{})
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []string{"/writing/post", "2"}, res.Rows[0])
}

// --- per-day top-K ---

func TestArticlesPerDay_TopKOrdering(t *testing.T) {
	engine, store := openTestEngine(t)

	day1 := time.Date(2024, 1, 13, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 14, 9, 0, 0, 0, time.UTC)

	var reqs []request
	for i := 0; i < 10; i++ {
		reqs = append(reqs,
			request{path: "/writing/x", start: day1},
			request{path: "/writing/y", start: day1},
		)
	}
	reqs = append(reqs, request{path: "/writing/z", start: day1})
	for i := 0; i < 4; i++ {
		reqs = append(reqs, request{path: "/writing/w", start: day2})
	}
	seed(t, store, reqs...)

	res := run(t, engine, "articles-per-day-top3", Params{PerDayTopK: 1})
	require.Len(t, res.Rows, 2, "one row per date at K=1")
	assert.Equal(t, []string{"2024-01-14", "/writing/w", "4"}, res.Rows[0],
		"dates descend")
	assert.Equal(t, []string{"2024-01-13", "/writing/x", "10"}, res.Rows[1],
		"tied counts fall back to path order")
}

func TestArticlesPerDay_DefaultK(t *testing.T) {
	engine, store := openTestEngine(t)

	day := time.Date(2024, 1, 14, 9, 0, 0, 0, time.UTC)
	var reqs []request
	for _, p := range []string{"/writing/a", "/writing/b", "/writing/c", "/writing/d"} {
		reqs = append(reqs, request{path: p, start: day})
	}
	seed(t, store, reqs...)

	res := run(t, engine, "articles-per-day-top3", Params{})
	assert.Len(t, res.Rows, 3, "default K is 3")
}

// --- errors and scanning ---

func TestErrors_ExcludesProbesAnd404(t *testing.T) {
	engine, store := openTestEngine(t)

	seed(t, store,
		request{path: "/writing/broken", status: 500},
		request{path: "/writing/broken", status: 500},
		request{path: "/writing/gone", status: 404},       // junk stage
		request{path: "/wp-admin/setup.php", status: 500}, // probe
		request{path: "/writing/fine", status: 200},
	)

	res := run(t, engine, "errors", Params{})
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []string{"500", "/writing/broken", "2"}, res.Rows[0])
}

func TestErrorsAndScanningASNs_Disjoint(t *testing.T) {
	engine, store := openTestEngine(t)
	ctx := context.Background()

	seed(t, store,
		request{path: "/wp-login.php", status: 403, asn: 4134},
		request{path: "/index.php", status: 500, asn: 4134},
		request{path: "/writing/broken", status: 500, asn: 64496},
	)
	require.NoError(t, store.NameASN(ctx, 4134, "CHINANET", "spamhaus"))

	errRes := run(t, engine, "errors", Params{})
	scanRes := run(t, engine, "scanning-asns", Params{})

	// Probe-path rows only in scanning; the rest only in errors.
	require.Len(t, errRes.Rows, 1)
	assert.Equal(t, "/writing/broken", errRes.Rows[0][1])

	require.Len(t, scanRes.Rows, 1)
	assert.Equal(t, []string{"CHINANET", "2"}, scanRes.Rows[0])
}

func TestScanningASNs_FallsBackToNumber(t *testing.T) {
	engine, store := openTestEngine(t)

	seed(t, store, request{path: "/wp-admin/", status: 404, asn: 4134})

	res := run(t, engine, "scanning-asns", Params{})
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "AS4134", res.Rows[0][0], "unnamed ASN renders as its number")
}

// --- traffic count ---

func TestTrafficCount(t *testing.T) {
	engine, store := openTestEngine(t)

	seed(t, store,
		request{},
		request{},
		request{agent: "updown.io daemon 2.2"},          // excluded
		request{start: testNow.AddDate(0, 0, -30)},      // out of window
		request{path: "/writing/gone", status: 404},     // junk
	)

	res := run(t, engine, "traffic-count", Params{})
	require.Len(t, res.Rows, 1)
	assert.Equal(t, []string{"2"}, res.Rows[0])
}

func TestNames_CoversEveryReport(t *testing.T) {
	engine, store := openTestEngine(t)
	seed(t, store, request{})

	for _, name := range Names() {
		_, err := engine.Run(context.Background(), name, Params{Now: testNow})
		assert.NoError(t, err, "report %s", name)
	}
}
