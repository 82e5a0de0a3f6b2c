package storage

import "database/sql"

// migrateV001 creates the initial logcrunch schema: the four string
// dictionaries, the ASN dictionary, and the requests fact table. Every
// statement uses IF NOT EXISTS for idempotency.
//
// Dictionary rows are insert-only. Ids are SQLite rowids: assigned at first
// sighting of a value, never reused or recomputed, so fact rows stay
// resolvable forever.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		// ── Dictionaries ───────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS paths (
			id   INTEGER PRIMARY KEY,
			path TEXT NOT NULL UNIQUE
		)`,

		`CREATE TABLE IF NOT EXISTS referers (
			id      INTEGER PRIMARY KEY,
			referer TEXT NOT NULL UNIQUE
		)`,

		`CREATE TABLE IF NOT EXISTS user_agents (
			id         INTEGER PRIMARY KEY,
			user_agent TEXT NOT NULL UNIQUE
		)`,

		`CREATE TABLE IF NOT EXISTS client_ips (
			id   INTEGER PRIMARY KEY,
			addr TEXT NOT NULL UNIQUE
		)`,

		// Keyed by the AS number itself; name arrives later via
		// enrichment, droplist records where the name came from.
		`CREATE TABLE IF NOT EXISTS autonomous_systems (
			asn      INTEGER PRIMARY KEY,
			name     TEXT,
			droplist TEXT
		)`,

		// ── Fact table ─────────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS requests (
			id                 INTEGER PRIMARY KEY,
			client_ip_ref      INTEGER NOT NULL REFERENCES client_ips(id),
			asn_ref            INTEGER NOT NULL REFERENCES autonomous_systems(asn),
			country_code       TEXT NOT NULL DEFAULT '',
			requests           INTEGER NOT NULL DEFAULT 1,
			status             INTEGER NOT NULL,
			cache_state        TEXT NOT NULL DEFAULT '',
			response_bytes     INTEGER NOT NULL DEFAULT 0,
			response_duration  REAL NOT NULL DEFAULT 0,
			request_start_time TEXT NOT NULL,
			ipv6               BOOLEAN NOT NULL DEFAULT 0,
			http2              BOOLEAN NOT NULL DEFAULT 0,
			url_path_ref       INTEGER NOT NULL REFERENCES paths(id),
			referer_ref        INTEGER REFERENCES referers(id),
			user_agent_ref     INTEGER REFERENCES user_agents(id)
		)`,

		// ── Indexes ────────────────────────────────────────────

		`CREATE INDEX IF NOT EXISTS idx_requests_start_time ON requests(request_start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_status     ON requests(status)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_path       ON requests(url_path_ref)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_asn        ON requests(asn_ref)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
