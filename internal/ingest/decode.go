package ingest

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
)

// LogEntry is one raw CDN access-log record as shipped by the logging
// endpoint: unresolved string dimensions plus inline scalars. Field names
// mirror the upstream JSON payload. Referer and UserAgent are pointers
// because the headers may be absent.
type LogEntry struct {
	ClientIP      string  `json:"clientIP"`
	ASN           int64   `json:"ispID"`
	CountryCode   string  `json:"countryCode"`
	Requests      int64   `json:"requests"`
	IPv6          bool    `json:"isIPv6"`
	HTTP2         bool    `json:"isH2"`
	URLPath       string  `json:"urlPath"`
	Referer       *string `json:"httpReferer"`
	UserAgent     *string `json:"httpUA"`
	CacheState    string  `json:"cacheState"`
	Status        int     `json:"respStatus"`
	ResponseBytes int64   `json:"respTotalBytes"`
	TimeElapsedUs int64   `json:"timeElapsed"`
	StartTime     string  `json:"reqStartTime"`
}

// trailingComma matches a dangling comma before the closing brace of a
// top-level JSON object. The upstream logging template was misconfigured
// to emit one; the decoder repairs it line by line rather than rejecting
// years of archived logs.
var trailingComma = regexp.MustCompile(`,\s*}\s*$`)

// commaRepairReader wraps a line-oriented JSON stream and strips the
// trailing comma from each object before the parser sees it.
type commaRepairReader struct {
	input  *bufio.Reader
	buffer []byte
}

func newCommaRepairReader(r io.Reader) *commaRepairReader {
	return &commaRepairReader{input: bufio.NewReader(r)}
}

func (cr *commaRepairReader) Read(p []byte) (int, error) {
	if len(cr.buffer) == 0 {
		line, err := cr.input.ReadBytes('\n')
		if len(line) > 0 {
			cr.buffer = trailingComma.ReplaceAll(line, []byte("}"))
		}
		if err != nil && len(cr.buffer) == 0 {
			return 0, err
		}
	}

	n := copy(p, cr.buffer)
	cr.buffer = cr.buffer[n:]
	return n, nil
}

// gzipMagic is the two-byte header every gzip stream starts with.
var gzipMagic = []byte{0x1f, 0x8b}

// Decoder yields raw log records from a stream of concatenated JSON
// objects, transparently decompressing gzip input and repairing the known
// trailing-comma defect.
type Decoder struct {
	dec *json.Decoder
}

// NewDecoder wraps r, sniffing for gzip compression.
func NewDecoder(r io.Reader) (*Decoder, error) {
	br := bufio.NewReader(r)

	head, err := br.Peek(2)
	if err == nil && head[0] == gzipMagic[0] && head[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		return &Decoder{dec: json.NewDecoder(newCommaRepairReader(gz))}, nil
	}

	return &Decoder{dec: json.NewDecoder(newCommaRepairReader(br))}, nil
}

// Next returns the next record in the stream. The record is decoded in
// two steps, raw object first and typed fields second, so that one record
// with bad scalar types surfaces as its own error without desynchronizing
// the stream. Returns io.EOF at the end of input.
func (d *Decoder) Next() (*LogEntry, error) {
	var raw json.RawMessage
	if err := d.dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read log record: %w", err)
	}

	var entry LogEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, &decodeError{err: err}
	}
	return &entry, nil
}

// decodeError marks a record that parsed as JSON but not as a LogEntry;
// the ingester skips these and keeps going.
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return fmt.Sprintf("decode log record: %v", e.err) }
func (e *decodeError) Unwrap() error { return e.err }
