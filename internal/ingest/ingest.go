// Package ingest turns raw CDN access-log streams into dictionary-encoded
// fact rows: each string dimension is deduplicated through the dictionary
// store, then the request is appended to the fact table referencing those
// ids.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/runnerr0/logcrunch/internal/storage"
)

// Ingester writes raw log records into a Store.
type Ingester struct {
	store *storage.Store
	log   logrus.FieldLogger
}

// New creates an Ingester writing to store.
func New(store *storage.Store, log logrus.FieldLogger) *Ingester {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Ingester{store: store, log: log}
}

// Summary reports the outcome of one ingest run.
type Summary struct {
	Stored  int
	Skipped int
}

// validate checks the scalar shape of a record before any write happens.
func validate(e *LogEntry) error {
	if e.URLPath == "" {
		return &storage.MalformedRecordError{Field: "urlPath", Reason: "missing required path"}
	}
	if e.Status < 0 {
		return &storage.MalformedRecordError{Field: "respStatus", Reason: "negative status"}
	}
	if e.ResponseBytes < 0 {
		return &storage.MalformedRecordError{Field: "respTotalBytes", Reason: "negative byte count"}
	}
	if e.TimeElapsedUs < 0 {
		return &storage.MalformedRecordError{Field: "timeElapsed", Reason: "negative duration"}
	}
	if _, err := storage.ParseStartTime(e.StartTime); err != nil {
		return &storage.MalformedRecordError{Field: "reqStartTime", Reason: err.Error()}
	}
	return nil
}

// ingestOne resolves a record's dimensions through the dictionaries and
// appends the fact row.
func (g *Ingester) ingestOne(ctx context.Context, e *LogEntry) error {
	if err := validate(e); err != nil {
		return err
	}

	start, err := storage.ParseStartTime(e.StartTime)
	if err != nil {
		return &storage.MalformedRecordError{Field: "reqStartTime", Reason: err.Error()}
	}

	fact := storage.Fact{
		ASN:              e.ASN,
		CountryCode:      e.CountryCode,
		Requests:         e.Requests,
		Status:           e.Status,
		CacheState:       e.CacheState,
		ResponseBytes:    e.ResponseBytes,
		ResponseDuration: float64(e.TimeElapsedUs) / 1e6,
		StartTime:        start,
		IPv6:             e.IPv6,
		HTTP2:            e.HTTP2,
	}

	fact.ClientIPRef, err = g.store.GetOrCreate(ctx, storage.DictClientIP, e.ClientIP)
	if err != nil {
		return err
	}
	if err := g.store.EnsureASN(ctx, e.ASN); err != nil {
		return err
	}
	fact.PathRef, err = g.store.GetOrCreate(ctx, storage.DictPath, e.URLPath)
	if err != nil {
		return err
	}
	if e.Referer != nil {
		fact.RefererRef, err = g.store.GetOrCreate(ctx, storage.DictReferer, *e.Referer)
		if err != nil {
			return err
		}
	}
	if e.UserAgent != nil {
		fact.UserAgentRef, err = g.store.GetOrCreate(ctx, storage.DictUserAgent, *e.UserAgent)
		if err != nil {
			return err
		}
	}

	return g.store.Append(ctx, &fact)
}

// IngestReader decodes and stores every record in r. Malformed records are
// logged and skipped; referential-integrity failures abort the run, since
// they signal corruption rather than bad input.
func (g *Ingester) IngestReader(ctx context.Context, r io.Reader) (Summary, error) {
	var sum Summary

	dec, err := NewDecoder(r)
	if err != nil {
		return sum, err
	}

	for i := 0; ; i++ {
		entry, err := dec.Next()
		if err == io.EOF {
			break
		}

		var badDecode *decodeError
		if errors.As(err, &badDecode) {
			g.log.WithError(err).WithField("record", i).Warn("skipping undecodable record")
			sum.Skipped++
			continue
		}
		if err != nil {
			return sum, fmt.Errorf("in record %d: %w", i, err)
		}

		err = g.ingestOne(ctx, entry)
		var malformed *storage.MalformedRecordError
		if errors.As(err, &malformed) {
			g.log.WithError(err).WithField("record", i).Warn("skipping malformed record")
			sum.Skipped++
			continue
		}
		if err != nil {
			return sum, fmt.Errorf("in record %d: %w", i, err)
		}
		sum.Stored++
	}

	return sum, nil
}

// IngestFile ingests one log file, gzipped or plain.
func (g *Ingester) IngestFile(ctx context.Context, path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	sum, err := g.IngestReader(ctx, f)
	if err != nil {
		return sum, fmt.Errorf("ingest %s: %w", path, err)
	}
	return sum, nil
}
