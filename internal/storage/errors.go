package storage

import "fmt"

// MalformedRecordError reports a raw log record that cannot be ingested:
// a missing required field or a scalar of the wrong shape. The record is
// skipped; ingestion continues with the next one.
type MalformedRecordError struct {
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record: field %s: %s", e.Field, e.Reason)
}

// ReferentialIntegrityError reports a fact row referencing a dictionary id
// that does not resolve. The store's foreign keys make this unreachable
// through the normal ingest path, so seeing one means corrupted state.
type ReferentialIntegrityError struct {
	Table string
	Err   error
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("referential integrity violation in %s: %v", e.Table, e.Err)
}

func (e *ReferentialIntegrityError) Unwrap() error { return e.Err }

// NotFoundError reports a dictionary id with no entry. Given the fact
// table's foreign keys this should never happen; treat it as corruption,
// not bad input.
type NotFoundError struct {
	Dict Dict
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s entry with id %d", e.Dict, e.ID)
}
