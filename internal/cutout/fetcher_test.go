package cutout

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/skysurvey/cutouts/internal/retry"
)

func TestFetchClassifiesResponses(t *testing.T) {
	jpg := jpegBytes(t)

	tests := []struct {
		name          string
		status        int
		body          []byte
		wantOutcome   Outcome
		wantTransient bool
		wantErr       error
	}{
		{name: "ok jpeg", status: http.StatusOK, body: jpg, wantOutcome: OutcomeFetched},
		{name: "not found", status: http.StatusNotFound, wantOutcome: OutcomeNotFound},
		{name: "gone", status: http.StatusGone, wantOutcome: OutcomeNotFound},
		{name: "bad request", status: http.StatusBadRequest, wantOutcome: OutcomeFailed, wantErr: ErrStatus},
		{name: "rate limited", status: http.StatusTooManyRequests, wantOutcome: OutcomeFailed, wantTransient: true, wantErr: ErrStatus},
		{name: "server error", status: http.StatusBadGateway, wantOutcome: OutcomeFailed, wantTransient: true, wantErr: ErrStatus},
		{name: "ok but not an image", status: http.StatusOK, body: []byte("<html>oops</html>"), wantOutcome: OutcomeFailed, wantErr: ErrDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("User-Agent") != DefaultUserAgent {
					t.Errorf("Expected default user agent, got %q", r.Header.Get("User-Agent"))
				}
				w.WriteHeader(tt.status)
				w.Write(tt.body)
			}))
			defer srv.Close()

			res := NewFetcher(5*time.Second, "").Fetch(context.Background(), srv.URL)

			if res.Outcome != tt.wantOutcome {
				t.Fatalf("Expected outcome %s, got %s (err=%v)", tt.wantOutcome, res.Outcome, res.Err)
			}
			if res.Status != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, res.Status)
			}
			if tt.wantErr != nil && !errors.Is(res.Err, tt.wantErr) {
				t.Errorf("Expected error wrapping %v, got %v", tt.wantErr, res.Err)
			}
			if retry.IsTransient(res.Err) != tt.wantTransient {
				t.Errorf("Expected transient=%v, got %v", tt.wantTransient, retry.IsTransient(res.Err))
			}
			if tt.wantOutcome == OutcomeFetched && len(res.Data) != len(jpg) {
				t.Errorf("Expected JPEG payload to be kept byte for byte")
			}
		})
	}
}

func TestFetchNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := NewFetcher(time.Second, "test-agent").Fetch(context.Background(), url)
	if res.Outcome != OutcomeFailed {
		t.Fatalf("Expected failure, got %s", res.Outcome)
	}
	if !retry.IsTransient(res.Err) {
		t.Errorf("Expected connection failure to be transient, got %v", res.Err)
	}
}

func TestFetchCanceledContextIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewFetcher(time.Second, "").Fetch(ctx, srv.URL)
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", res.Err)
	}
	if retry.IsTransient(res.Err) {
		t.Error("Expected cancellation not to be retried")
	}
}

func TestOutcomeString(t *testing.T) {
	if OutcomeNotFound.String() != "not_found" {
		t.Errorf("Expected not_found, got %s", OutcomeNotFound.String())
	}
	if Outcome(9).String() != "outcome(9)" {
		t.Errorf("Unexpected fallback: %s", Outcome(9).String())
	}
}
