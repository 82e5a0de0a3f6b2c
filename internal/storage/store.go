package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// dictSpec maps a dictionary to its table and value column. Table and
// column names come only from this map, never from callers.
var dictSpec = map[Dict]struct {
	table  string
	column string
}{
	DictPath:      {"paths", "path"},
	DictReferer:   {"referers", "referer"},
	DictUserAgent: {"user_agents", "user_agent"},
	DictClientIP:  {"client_ips", "addr"},
}

// Store provides the dictionary and fact-table operations over an opened,
// migrated SQLite database. Reads and writes may run concurrently; the
// dictionaries' uniqueness constraints serialize racing inserts of the
// same value.
type Store struct {
	db *sql.DB

	insertFact *sql.Stmt
}

// NewStore creates a Store from an already-opened and migrated database.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}

	var err error
	s.insertFact, err = db.Prepare(`
		INSERT INTO requests (
			client_ip_ref, asn_ref, country_code, requests,
			status, cache_state, response_bytes, response_duration,
			request_start_time, ipv6, http2,
			url_path_ref, referer_ref, user_agent_ref
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare fact insert: %w", err)
	}

	return s, nil
}

// isUniqueViolation reports whether err is a SQLite uniqueness-constraint
// failure.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// isForeignKeyViolation reports whether err is a SQLite foreign-key
// constraint failure.
func isForeignKeyViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

// GetOrCreate returns the id for value in the given dictionary, inserting
// it first if unseen. Matching is exact and case-sensitive. Safe under
// concurrent callers inserting the same value: a lost insert race is
// recovered by re-fetching, so both callers observe the same id.
func (s *Store) GetOrCreate(ctx context.Context, d Dict, value string) (int64, error) {
	spec, ok := dictSpec[d]
	if !ok {
		return 0, fmt.Errorf("unknown dictionary %q", d)
	}

	selectSQL := fmt.Sprintf("SELECT id FROM %s WHERE %s = ?", spec.table, spec.column)
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?)", spec.table, spec.column)

	for attempt := 0; attempt < 3; attempt++ {
		var id int64
		err := s.db.QueryRowContext(ctx, selectSQL, value).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("fetch %s entry: %w", d, err)
		}

		res, err := s.db.ExecContext(ctx, insertSQL, value)
		if err == nil {
			return res.LastInsertId()
		}
		if isUniqueViolation(err) {
			// Another writer inserted the same value first; fetch again.
			continue
		}
		return 0, fmt.Errorf("insert %s entry: %w", d, err)
	}

	return 0, fmt.Errorf("get-or-create %s entry: retries exhausted", d)
}

// Resolve returns the value stored under id in the given dictionary.
// An unknown id yields a NotFoundError; with foreign keys enforced on the
// fact table that indicates corrupted state.
func (s *Store) Resolve(ctx context.Context, d Dict, id int64) (string, error) {
	spec, ok := dictSpec[d]
	if !ok {
		return "", fmt.Errorf("unknown dictionary %q", d)
	}

	var value string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", spec.column, spec.table), id,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &NotFoundError{Dict: d, ID: id}
	}
	if err != nil {
		return "", fmt.Errorf("resolve %s id %d: %w", d, id, err)
	}
	return value, nil
}

// EnsureASN records an AS number in the autonomous_systems dictionary if
// it isn't there yet. The name stays null until enrichment fills it in.
func (s *Store) EnsureASN(ctx context.Context, asn int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO autonomous_systems (asn) VALUES (?) ON CONFLICT (asn) DO NOTHING", asn,
	)
	if err != nil {
		return fmt.Errorf("ensure ASN %d: %w", asn, err)
	}
	return nil
}

// NameASN upserts the name (and droplist provenance) for an AS number.
func (s *Store) NameASN(ctx context.Context, asn int64, name, droplist string) error {
	var dl sql.NullString
	if droplist != "" {
		dl = sql.NullString{String: droplist, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO autonomous_systems (asn, name, droplist) VALUES (?, ?, ?)
		ON CONFLICT (asn) DO UPDATE SET name = excluded.name, droplist = excluded.droplist
	`, asn, name, dl)
	if err != nil {
		return fmt.Errorf("name ASN %d: %w", asn, err)
	}
	return nil
}

// UnnamedASNs lists AS numbers seen in traffic but not yet named.
func (s *Store) UnnamedASNs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT asn FROM autonomous_systems WHERE name IS NULL ORDER BY asn",
	)
	if err != nil {
		return nil, fmt.Errorf("query unnamed ASNs: %w", err)
	}
	defer rows.Close()

	var asns []int64
	for rows.Next() {
		var asn int64
		if err := rows.Scan(&asn); err != nil {
			return nil, fmt.Errorf("scan ASN: %w", err)
		}
		asns = append(asns, asn)
	}
	return asns, rows.Err()
}

// Append inserts one fact row. Reference fields must carry ids previously
// returned by GetOrCreate / EnsureASN; PathRef is required, RefererRef and
// UserAgentRef may be zero for absent. A reference that does not resolve
// fails with ReferentialIntegrityError and leaves the store unchanged.
// Append is the only mutation on the fact table.
func (s *Store) Append(ctx context.Context, f *Fact) error {
	if f.PathRef == 0 {
		return &MalformedRecordError{Field: "url_path_ref", Reason: "required reference is missing"}
	}

	var referer, agent sql.NullInt64
	if f.RefererRef != 0 {
		referer = sql.NullInt64{Int64: f.RefererRef, Valid: true}
	}
	if f.UserAgentRef != 0 {
		agent = sql.NullInt64{Int64: f.UserAgentRef, Valid: true}
	}

	_, err := s.insertFact.ExecContext(ctx,
		f.ClientIPRef, f.ASN, f.CountryCode, f.Requests,
		f.Status, f.CacheState, f.ResponseBytes, f.ResponseDuration,
		FormatStartTime(f.StartTime), f.IPv6, f.HTTP2,
		f.PathRef, referer, agent,
	)
	if isForeignKeyViolation(err) {
		return &ReferentialIntegrityError{Table: "requests", Err: err}
	}
	if err != nil {
		return fmt.Errorf("append request: %w", err)
	}
	return nil
}

// resolveAllSQL left-joins every dictionary reference back to its value.
// Left joins everywhere, including the non-null path: an absent reference
// must yield an empty resolved value, never drop the row. ORDER BY id is
// the store's natural row order and the documented tie-break for reports.
const resolveAllSQL = `
	SELECT r.id,
	       COALESCE(ci.addr, ''),
	       r.asn_ref,
	       COALESCE(a.name, ''),
	       r.country_code,
	       r.requests,
	       r.status,
	       r.cache_state,
	       r.response_bytes,
	       r.response_duration,
	       r.request_start_time,
	       r.ipv6,
	       r.http2,
	       COALESCE(p.path, ''),
	       COALESCE(rf.referer, ''),
	       COALESCE(ua.user_agent, '')
	FROM requests r
	LEFT JOIN client_ips         ci ON ci.id = r.client_ip_ref
	LEFT JOIN autonomous_systems a  ON a.asn = r.asn_ref
	LEFT JOIN paths              p  ON p.id  = r.url_path_ref
	LEFT JOIN referers           rf ON rf.id = r.referer_ref
	LEFT JOIN user_agents        ua ON ua.id = r.user_agent_ref
	ORDER BY r.id
`

// ResolveAll streams every fact row with its dictionary references
// resolved. The projection is computed fresh on every call from current
// fact and dictionary state, never from a materialized snapshot. The
// caller must Close the iterator.
func (s *Store) ResolveAll(ctx context.Context) (*RowIter, error) {
	rows, err := s.db.QueryContext(ctx, resolveAllSQL)
	if err != nil {
		return nil, fmt.Errorf("resolve requests: %w", err)
	}
	return &RowIter{rows: rows}, nil
}

// RowIter lazily yields NormalizedRows from an underlying query.
type RowIter struct {
	rows *sql.Rows
	cur  NormalizedRow
	err  error
}

// Next advances to the next row, returning false at the end of the set or
// on error. Check Err after a false return.
func (it *RowIter) Next() bool {
	if it.err != nil || !it.rows.Next() {
		return false
	}

	var ts string
	it.cur = NormalizedRow{}
	if err := it.rows.Scan(
		&it.cur.ID, &it.cur.ClientIP, &it.cur.ASN, &it.cur.ASName,
		&it.cur.CountryCode, &it.cur.Requests, &it.cur.Status,
		&it.cur.CacheState, &it.cur.ResponseBytes, &it.cur.ResponseDuration,
		&ts, &it.cur.IPv6, &it.cur.HTTP2,
		&it.cur.Path, &it.cur.Referer, &it.cur.UserAgent,
	); err != nil {
		it.err = fmt.Errorf("scan request row: %w", err)
		return false
	}

	// Canonicalize at the read boundary: legacy rows may lack a zone
	// designator, so the stored string is parsed, never compared raw.
	start, err := ParseStartTime(ts)
	if err != nil {
		it.err = err
		return false
	}
	it.cur.StartTime = start
	it.cur.Date = start.Format("2006-01-02")

	return true
}

// Row returns the current row. Valid until the next call to Next.
func (it *RowIter) Row() *NormalizedRow { return &it.cur }

// Err returns the first error encountered during iteration.
func (it *RowIter) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.rows.Err()
}

// Close releases the underlying query.
func (it *RowIter) Close() error { return it.rows.Close() }

// GetStats returns aggregate statistics about the database.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	counts := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM requests", &stats.TotalRequests},
		{"SELECT COUNT(*) FROM paths", &stats.UniquePaths},
		{"SELECT COUNT(*) FROM referers", &stats.UniqueReferers},
		{"SELECT COUNT(*) FROM user_agents", &stats.UniqueAgents},
		{"SELECT COUNT(*) FROM client_ips", &stats.UniqueIPs},
		{"SELECT COUNT(*) FROM autonomous_systems", &stats.UniqueASNs},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("count rows: %w", err)
		}
	}

	if stats.TotalRequests > 0 {
		var oldest, newest string
		err := s.db.QueryRowContext(ctx,
			"SELECT MIN(request_start_time), MAX(request_start_time) FROM requests",
		).Scan(&oldest, &newest)
		if err != nil {
			return nil, fmt.Errorf("request time range: %w", err)
		}
		stats.OldestRequest, _ = ParseStartTime(oldest)
		stats.NewestRequest, _ = ParseStartTime(newest)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.asn_ref, COALESCE(a.name, ''), COUNT(*) AS cnt
		FROM requests r
		LEFT JOIN autonomous_systems a ON a.asn = r.asn_ref
		GROUP BY r.asn_ref
		ORDER BY cnt DESC, r.asn_ref ASC
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("top ASNs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ac ASNCount
		if err := rows.Scan(&ac.ASN, &ac.Name, &ac.Count); err != nil {
			return nil, err
		}
		stats.TopASNs = append(stats.TopASNs, ac)
	}

	return stats, rows.Err()
}

// Close releases prepared statements. The underlying *sql.DB is NOT
// closed; that is the caller's responsibility.
func (s *Store) Close() error {
	if s.insertFact != nil {
		s.insertFact.Close()
	}
	return nil
}
