package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/releaser/internal/domain/release"
	"github.com/oshokin/releaser/internal/failure"
	"github.com/oshokin/releaser/internal/logger"
)

var errUnexpectedStatus = errors.New("unexpected status")

// Options bounds the retry loop.
type Options struct {
	// Attempts is the total number of requests per URI; at least 1.
	Attempts int
	// Delay is the fixed pause between attempts.
	Delay time.Duration
	// Timeout limits a single request.
	Timeout time.Duration
	// Parallelism limits concurrent downloads in SumAll; 1 means sequential.
	Parallelism int
}

// Verifier fetches artifacts and hashes the exact bytes served.
type Verifier struct {
	client *http.Client
	opts   Options
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Verifier. A nil client gets a transport that leaves
// Content-Encoding alone, so the digest covers the raw body.
func New(opts Options, client *http.Client) *Verifier {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}

	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}

	if client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.DisableCompression = true

		client = &http.Client{Transport: transport}
	}

	return &Verifier{
		client: client,
		opts:   opts,
		sleep:  sleepContext,
	}
}

// Sum downloads uri and returns its SHA-256. Transport errors and non-200
// responses are retried; after the last attempt E_CHECKSUM_TIMEOUT is returned
// and no further request is made.
func (v *Verifier) Sum(ctx context.Context, uri string) (release.ChecksumRecord, error) {
	var lastErr error

	for attempt := 1; attempt <= v.opts.Attempts; attempt++ {
		sum, err := v.fetch(ctx, uri)
		if err == nil {
			logger.InfoKV(ctx, "Checksum computed", "uri", uri, "sha256", sum, "attempt", attempt)
			return release.ChecksumRecord{URI: uri, SHA256: sum}, nil
		}

		if ctx.Err() != nil {
			return release.ChecksumRecord{}, ctx.Err()
		}

		lastErr = err
		logger.WarnKV(ctx, "Checksum attempt failed", "uri", uri, "attempt", attempt, "error", err)

		if attempt == v.opts.Attempts {
			break
		}

		if err = v.sleep(ctx, v.opts.Delay); err != nil {
			return release.ChecksumRecord{}, err
		}
	}

	return release.ChecksumRecord{}, failure.WithDetails(
		failure.Wrap(failure.EChecksumTimeout, fmt.Sprintf("gave up on %s after %d attempts", uri, v.opts.Attempts), lastErr),
		map[string]string{
			"uri":      uri,
			"attempts": strconv.Itoa(v.opts.Attempts),
		},
	)
}

// SumAll computes a record for every key. At most Parallelism downloads run at
// once; the first failure cancels the rest.
func (v *Verifier) SumAll(ctx context.Context, uris map[string]string) (map[string]release.ChecksumRecord, error) {
	var (
		mu      sync.Mutex
		records = make(map[string]release.ChecksumRecord, len(uris))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.opts.Parallelism)

	for key, uri := range uris {
		g.Go(func() error {
			rec, err := v.Sum(logger.WithKV(gctx, "download", key), uri)
			if err != nil {
				return err
			}

			mu.Lock()
			records[key] = rec
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return records, nil
}

func (v *Verifier) fetch(ctx context.Context, uri string) (string, error) {
	if v.opts.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, v.opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w %s", errUnexpectedStatus, resp.Status)
	}

	h := sha256.New()
	if _, err = io.Copy(h, resp.Body); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumFile returns the hex SHA-256 of a local file.
func SumFile(path string) (string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err = io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
