// Package asn fills in names for the autonomous systems seen in traffic.
// Numbers come from the logs; names come from PeeringDB, with the Spamhaus
// ASN drop list as a fallback source that also marks known-bad networks.
package asn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/runnerr0/logcrunch/internal/config"
	"github.com/runnerr0/logcrunch/internal/storage"
)

// Client queries the ASN name sources.
type Client struct {
	http         *http.Client
	peeringDBURL string
	spamhausURL  string
	concurrency  int
	log          logrus.FieldLogger
}

// NewClient creates a Client from configuration.
func NewClient(cfg config.ASNConfig, log logrus.FieldLogger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Client{
		http:         &http.Client{Timeout: timeout},
		peeringDBURL: cfg.PeeringDBURL,
		spamhausURL:  cfg.SpamhausURL,
		concurrency:  concurrency,
		log:          log,
	}
}

// Summary reports the outcome of one sync run.
type Summary struct {
	Named        int
	FromDroplist int
	Unknown      int
}

// Sync names every AS number the store has seen but not yet named.
// PeeringDB lookups run concurrently, bounded by the configured
// concurrency; numbers PeeringDB doesn't know are checked against the
// Spamhaus drop list. Individual lookup failures are logged and skipped,
// never fatal.
func (c *Client) Sync(ctx context.Context, store *storage.Store) (Summary, error) {
	var sum Summary

	asns, err := store.UnnamedASNs(ctx)
	if err != nil {
		return sum, err
	}
	if len(asns) == 0 {
		return sum, nil
	}

	type lookup struct {
		asn  int64
		name string
		err  error
	}

	results := make(chan lookup)
	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup
	for _, asn := range asns {
		wg.Add(1)
		go func(asn int64) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			name, err := c.peeringDBName(ctx, asn)
			results <- lookup{asn: asn, name: name, err: err}
		}(asn)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var unknown []int64
	for res := range results {
		if res.err != nil {
			c.log.WithError(res.err).WithField("asn", res.asn).
				Warn("could not resolve ASN name from PeeringDB")
			unknown = append(unknown, res.asn)
			continue
		}
		if err := store.NameASN(ctx, res.asn, res.name, ""); err != nil {
			return sum, err
		}
		sum.Named++
	}

	if len(unknown) == 0 {
		return sum, nil
	}

	droplist, err := c.spamhausDroplist(ctx)
	if err != nil {
		// Droplist failure leaves the remaining ASNs unnamed for a
		// later run; the names already stored are kept.
		c.log.WithError(err).Warn("could not fetch Spamhaus drop list")
		sum.Unknown = len(unknown)
		return sum, nil
	}

	for _, asn := range unknown {
		name, ok := droplist[asn]
		if !ok {
			sum.Unknown++
			continue
		}
		if err := store.NameASN(ctx, asn, name, "spamhaus"); err != nil {
			return sum, err
		}
		sum.FromDroplist++
	}

	return sum, nil
}

// peeringDBName queries PeeringDB's as_set endpoint for one AS number.
// The response's data array maps AS numbers (as strings) to as-set names.
func (c *Client) peeringDBName(ctx context.Context, asn int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%d", c.peeringDBURL, asn), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request ASN %d info: %w", asn, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("request ASN %d info: HTTP status %s", asn, resp.Status)
	}

	var payload struct {
		Data []map[string]string `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode ASN %d info: %w", asn, err)
	}

	want := strconv.FormatInt(asn, 10)
	for _, m := range payload.Data {
		if name, ok := m[want]; ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("no PeeringDB result for ASN %d", asn)
}

// spamhausDroplist fetches the ASN "don't route or peer" list: a stream of
// JSON objects, entry rows carrying asn/asname plus metadata rows that
// only carry a copyright notice. Spamhaus asks that the notice be shown;
// it goes to the log, not the database.
func (c *Client) spamhausDroplist(ctx context.Context) (map[int64]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.spamhausURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request drop list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request drop list: HTTP status %s", resp.Status)
	}

	type entry struct {
		ASN       int64  `json:"asn"`
		Name      string `json:"asname"`
		Copyright string `json:"copyright"`
	}

	droplist := make(map[int64]string)
	dec := json.NewDecoder(resp.Body)
	for dec.More() {
		var e entry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("decode drop list entry: %w", err)
		}
		if e.Copyright != "" {
			c.log.WithField("copyright", e.Copyright).Info("using data from Spamhaus")
			continue
		}
		if e.ASN != 0 {
			droplist[e.ASN] = e.Name
		}
	}

	return droplist, nil
}
