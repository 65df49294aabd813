package rates

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/doculedger/doculedger/internal/domain"
)

func newRateServer(t *testing.T, rate float64, requests *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		to := r.URL.Query().Get("to")
		fmt.Fprintf(w, `{"amount":1,"base":%q,"rates":{%q:%v}}`, r.URL.Query().Get("from"), to, rate)
	}))
}

func TestRate_SameCurrencyNoNetworkCall(t *testing.T) {
	var requests int32
	srv := newRateServer(t, 10.5, &requests)
	defer srv.Close()

	r := NewResolver(srv.URL, time.Second, NewCache())
	q, err := r.Rate(context.Background(), "SEK", "SEK", civil.Date{})
	if err != nil {
		t.Fatalf("Rate failed: %v", err)
	}
	if q.Rate != 1.0 || q.Fallback {
		t.Errorf("got %+v, want rate 1.0 without fallback", q)
	}
	if atomic.LoadInt32(&requests) != 0 {
		t.Errorf("rate service was called %d times, want 0", requests)
	}
}

func TestRate_FetchAndCache(t *testing.T) {
	var requests int32
	srv := newRateServer(t, 10.5, &requests)
	defer srv.Close()

	r := NewResolver(srv.URL, time.Second, NewCache())

	for i := 0; i < 3; i++ {
		q, err := r.Rate(context.Background(), "USD", "SEK", civil.Date{})
		if err != nil {
			t.Fatalf("Rate failed: %v", err)
		}
		if q.Rate != 10.5 {
			t.Errorf("Rate = %v, want 10.5", q.Rate)
		}
	}

	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("rate service was called %d times, want 1 (cached afterwards)", got)
	}
}

func TestRate_DistinctDatesAreDistinctEntries(t *testing.T) {
	var requests int32
	srv := newRateServer(t, 11.2, &requests)
	defer srv.Close()

	r := NewResolver(srv.URL, time.Second, NewCache())

	if _, err := r.Rate(context.Background(), "EUR", "SEK", civil.Date{Year: 2024, Month: 1, Day: 15}); err != nil {
		t.Fatalf("Rate failed: %v", err)
	}
	if _, err := r.Rate(context.Background(), "EUR", "SEK", civil.Date{Year: 2024, Month: 2, Day: 1}); err != nil {
		t.Fatalf("Rate failed: %v", err)
	}

	if got := atomic.LoadInt32(&requests); got != 2 {
		t.Errorf("rate service was called %d times, want 2", got)
	}
}

func TestRate_ServiceDownWithCachedPairFallsBack(t *testing.T) {
	var requests int32
	srv := newRateServer(t, 10.5, &requests)

	cache := NewCache()
	r := NewResolver(srv.URL, time.Second, cache)

	// Prime the cache with a successful lookup for one date.
	if _, err := r.Rate(context.Background(), "USD", "SEK", civil.Date{Year: 2024, Month: 1, Day: 15}); err != nil {
		t.Fatalf("priming lookup failed: %v", err)
	}

	// Kill the service, then ask for a different date of the same pair.
	srv.Close()
	q, err := r.Rate(context.Background(), "USD", "SEK", civil.Date{Year: 2024, Month: 3, Day: 1})
	if err != nil {
		t.Fatalf("expected fallback, got error: %v", err)
	}
	if !q.Fallback {
		t.Error("expected Fallback to be set")
	}
	if q.Rate != 10.5 {
		t.Errorf("fallback rate = %v, want 10.5", q.Rate)
	}
}

func TestRate_ServiceDownWithoutFallbackFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, time.Second, NewCache())
	_, err := r.Rate(context.Background(), "XXX", "SEK", civil.Date{})

	var rateErr *domain.RateResolutionError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateResolutionError, got %v", err)
	}
	if rateErr.From != "XXX" || rateErr.To != "SEK" {
		t.Errorf("error pair = %s->%s", rateErr.From, rateErr.To)
	}
}

func TestRate_MalformedResponseFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"rates":{}}`)
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, time.Second, NewCache())
	_, err := r.Rate(context.Background(), "USD", "SEK", civil.Date{})

	var rateErr *domain.RateResolutionError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateResolutionError, got %v", err)
	}
}
