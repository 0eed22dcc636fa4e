package cutout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/skysurvey/cutouts/internal/retry"
)

// MaxImageBytes bounds a single cutout payload.
const MaxImageBytes = 32 << 20

// DefaultUserAgent identifies the fetcher to the cutout services.
const DefaultUserAgent = "cutouts/0.1 (+https://github.com/skysurvey/cutouts)"

var (
	// ErrStatus is wrapped by failures caused by an unexpected HTTP status.
	ErrStatus = errors.New("unexpected HTTP status")
	// ErrDecode is wrapped when a 200 response is not a decodable image.
	ErrDecode = errors.New("image decode failed")
)

// Outcome is the result variant of a single remote fetch.
type Outcome int

const (
	// OutcomeFetched means Result.Data holds a JPEG ready to persist.
	OutcomeFetched Outcome = iota
	// OutcomeNotFound means the service has no cutout for the coordinates.
	OutcomeNotFound
	// OutcomeFailed means the fetch failed for any other reason; see Result.Err.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFetched:
		return "fetched"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeFailed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result of one Fetch call.
type Result struct {
	Outcome Outcome
	Data    []byte
	Format  string
	Status  int
	Err     error
}

// Fetcher retrieves cutout images over HTTP
type Fetcher struct {
	HTTPClient *http.Client
	UserAgent  string
}

// NewFetcher creates a new cutout fetcher
func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		UserAgent: userAgent,
	}
}

// Fetch issues one GET for url and classifies the response. Transient
// failures (network errors, 429, 5xx) carry an error marked with
// retry.Transient.
func (f *Fetcher) Fetch(ctx context.Context, url string) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return failed(0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "image/jpeg, image/*;q=0.8")

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return failed(0, ctxErr)
		}
		return failed(0, retry.Transient(fmt.Errorf("failed to fetch cutout: %w", err)))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Result{Outcome: OutcomeNotFound, Status: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return failed(resp.StatusCode, retry.Transient(fmt.Errorf("%w: %s", ErrStatus, resp.Status)))
	default:
		return failed(resp.StatusCode, fmt.Errorf("%w: %s", ErrStatus, resp.Status))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return failed(resp.StatusCode, ctxErr)
		}
		return failed(resp.StatusCode, retry.Transient(fmt.Errorf("failed to read cutout data: %w", err)))
	}
	if len(data) > MaxImageBytes {
		return failed(resp.StatusCode, fmt.Errorf("%w: payload exceeds %d bytes", ErrDecode, MaxImageBytes))
	}

	jpg, format, err := normalizeJPEG(data)
	if err != nil {
		return failed(resp.StatusCode, err)
	}
	if format != "jpeg" {
		slog.Debug("Re-encoded cutout as JPEG", "url", url, "source_format", format)
	}

	return Result{Outcome: OutcomeFetched, Data: jpg, Format: format, Status: resp.StatusCode}
}

func failed(status int, err error) Result {
	return Result{Outcome: OutcomeFailed, Status: status, Err: err}
}
