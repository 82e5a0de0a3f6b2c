package ingest

import (
	"bytes"
	"compress/gzip"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRecord = `{
	"clientIP": "192.0.2.10",
	"ispID": 64496,
	"countryCode": "US",
	"requests": 1,
	"isIPv6": false,
	"isH2": true,
	"urlPath": "/writing/hello",
	"httpReferer": "https://example.net/",
	"httpUA": "Mozilla/5.0",
	"cacheState": "HIT",
	"respStatus": 200,
	"respTotalBytes": 1234,
	"timeElapsed": 17000,
	"reqStartTime": "2024-01-15T10:30:00Z"
}`

func TestDecoder_SingleRecord(t *testing.T) {
	dec, err := NewDecoder(strings.NewReader(sampleRecord))
	require.NoError(t, err)

	entry, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.10", entry.ClientIP)
	assert.Equal(t, int64(64496), entry.ASN)
	assert.Equal(t, "/writing/hello", entry.URLPath)
	require.NotNil(t, entry.Referer)
	assert.Equal(t, "https://example.net/", *entry.Referer)
	assert.True(t, entry.HTTP2)
	assert.Equal(t, 200, entry.Status)

	_, err = dec.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecoder_RepairsTrailingComma(t *testing.T) {
	// The upstream logging template emits a comma before the closing
	// brace; the stream must still parse.
	const withComma = `{ "urlPath": "/a", "respStatus": 200, }
{ "urlPath": "/b", "respStatus": 304, }`

	dec, err := NewDecoder(strings.NewReader(withComma))
	require.NoError(t, err)

	first, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "/a", first.URLPath)

	second, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "/b", second.URLPath)
	assert.Equal(t, 304, second.Status)

	_, err = dec.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecoder_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(sampleRecord))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	dec, err := NewDecoder(&buf)
	require.NoError(t, err)

	entry, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "/writing/hello", entry.URLPath)
}

func TestDecoder_NullOptionalHeaders(t *testing.T) {
	const noHeaders = `{ "urlPath": "/x", "httpReferer": null, "httpUA": null, "respStatus": 200 }`

	dec, err := NewDecoder(strings.NewReader(noHeaders))
	require.NoError(t, err)

	entry, err := dec.Next()
	require.NoError(t, err)
	assert.Nil(t, entry.Referer)
	assert.Nil(t, entry.UserAgent)
}

func TestDecoder_BadScalarTypeIsSkippable(t *testing.T) {
	// A record with the wrong scalar type surfaces as a per-record
	// decode error; the next record still parses.
	const mixed = `{ "urlPath": "/bad", "respStatus": "not-a-number" }
{ "urlPath": "/good", "respStatus": 200 }`

	dec, err := NewDecoder(strings.NewReader(mixed))
	require.NoError(t, err)

	_, err = dec.Next()
	var bad *decodeError
	require.ErrorAs(t, err, &bad)

	entry, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "/good", entry.URLPath)
}

func TestCommaRepairReader_LeavesValidJSONAlone(t *testing.T) {
	const obj = `{"a": 1, "b": {"c": 2}}`
	repaired, err := io.ReadAll(newCommaRepairReader(strings.NewReader(obj)))
	require.NoError(t, err)
	assert.Equal(t, obj, string(repaired))
}
