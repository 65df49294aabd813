// Package rates resolves currency conversion rates against a
// frankfurter-style exchange-rate HTTP API, with a session cache and a
// degraded fallback path for service outages.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/doculedger/doculedger/internal/domain"
)

// Quote is a resolved conversion rate. Fallback is set when the rate service
// was unavailable and a cached rate for the same pair (possibly from another
// date) was reused instead; callers surface that as a document warning.
type Quote struct {
	Rate     float64
	Fallback bool
}

// Resolver looks up exchange rates over HTTP. The rate service is treated as
// unreliable: every successful lookup is cached for the session, and lookups
// run under the configured timeout so a slow service cannot stall a batch.
type Resolver struct {
	endpoint string
	client   *http.Client
	cache    *Cache
}

// NewResolver creates a Resolver against the given service base URL
// (e.g. "https://api.frankfurter.app").
func NewResolver(endpoint string, timeout time.Duration, cache *Cache) *Resolver {
	if cache == nil {
		cache = NewCache()
	}
	return &Resolver{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
		cache:    cache,
	}
}

// Rate resolves the conversion rate from one currency into another, as of
// the given date (zero date means latest). Identical currencies short-circuit
// to 1.0 without touching the network or the cache. On service failure a
// same-pair cached rate from earlier in the session is returned with
// Fallback set; with no fallback available the lookup fails with
// *domain.RateResolutionError.
func (r *Resolver) Rate(ctx context.Context, from, to string, asOf civil.Date) (Quote, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	if from == to {
		return Quote{Rate: 1.0}, nil
	}

	dateKey := "latest"
	if asOf.IsValid() {
		dateKey = asOf.String()
	}

	if rate, ok := r.cache.Get(from, to, dateKey); ok {
		return Quote{Rate: rate}, nil
	}

	rate, err := r.fetch(ctx, from, to, dateKey)
	if err != nil {
		if fallback, ok := r.cache.AnyForPair(from, to); ok {
			return Quote{Rate: fallback, Fallback: true}, nil
		}
		return Quote{}, &domain.RateResolutionError{From: from, To: to, Err: err}
	}

	r.cache.Put(from, to, dateKey, rate)
	return Quote{Rate: rate}, nil
}

func (r *Resolver) fetch(ctx context.Context, from, to, dateKey string) (float64, error) {
	u := fmt.Sprintf("%s/%s?from=%s&to=%s",
		r.endpoint, dateKey, url.QueryEscape(from), url.QueryEscape(to))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("build rate request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("rate service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rate service returned status %d", resp.StatusCode)
	}

	var body struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode rate response: %w", err)
	}

	rate, ok := body.Rates[to]
	if !ok {
		return 0, fmt.Errorf("rate response has no entry for %s", to)
	}
	if rate <= 0 {
		return 0, fmt.Errorf("rate service returned non-positive rate %v", rate)
	}
	return rate, nil
}
