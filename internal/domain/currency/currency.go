// Package currency models exchange-rate lookups: normalized currency pairs,
// cached rate entries, the rate source contract and the static fallback table
// used when the live source is unavailable.
package currency

import (
	"context"
	"strings"
	"time"

	"github.com/alem-hub/academy-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrNoFallbackAvailable is returned when neither the rate source nor the
	// fallback table can produce a rate for the pair.
	ErrNoFallbackAvailable = shared.NewDomainError("currency", "Resolve", shared.ErrNotFound, "no fallback rate available")

	// ErrInvalidRate is returned when a rate is zero or negative.
	ErrInvalidRate = shared.NewDomainError("currency", "Validate", shared.ErrValueOutOfRange, "rate must be positive")

	// ErrInvalidCode is returned for an empty currency code.
	ErrInvalidCode = shared.NewDomainError("currency", "Validate", shared.ErrEmptyValue, "currency code is empty")

	// ErrRateNotQuoted is returned when the source response lacks the target currency.
	ErrRateNotQuoted = shared.NewDomainError("currency", "Fetch", shared.ErrNotFound, "target currency not quoted")
)

// ══════════════════════════════════════════════════════════════════════════════
// PAIR
// ══════════════════════════════════════════════════════════════════════════════

// NormalizeCode uppercases and trims an ISO-4217 code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Pair is an ordered (from, to) currency pair. Codes are always uppercase.
type Pair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// NewPair builds a normalized pair.
func NewPair(from, to string) (Pair, error) {
	p := Pair{From: NormalizeCode(from), To: NormalizeCode(to)}
	if p.From == "" || p.To == "" {
		return Pair{}, ErrInvalidCode
	}
	return p, nil
}

// IsIdentity reports whether both sides are the same currency.
func (p Pair) IsIdentity() bool {
	return p.From == p.To
}

// String returns "FROM/TO".
func (p Pair) String() string {
	return p.From + "/" + p.To
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHED RATE
// ══════════════════════════════════════════════════════════════════════════════

// CachedRate is a rate obtained from the live source together with its freshness window.
type CachedRate struct {
	Pair      Pair          `json:"pair"`
	Value     float64       `json:"value"`
	FetchedAt time.Time     `json:"fetched_at"`
	TTL       time.Duration `json:"ttl"`
}

// NewCachedRate validates value and builds a cache entry.
func NewCachedRate(pair Pair, value float64, fetchedAt time.Time, ttl time.Duration) (*CachedRate, error) {
	if value <= 0 {
		return nil, ErrInvalidRate
	}
	return &CachedRate{
		Pair:      pair,
		Value:     value,
		FetchedAt: fetchedAt,
		TTL:       ttl,
	}, nil
}

// ExpiresAt returns the first instant the entry is no longer valid.
func (r *CachedRate) ExpiresAt() time.Time {
	return r.FetchedAt.Add(r.TTL)
}

// IsExpired reports whether the entry is stale at now.
func (r *CachedRate) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt())
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE SOURCE
// ══════════════════════════════════════════════════════════════════════════════

// RateTable is one response of the live source: every quoted currency priced
// in units per one Base.
type RateTable struct {
	Base      string
	Rates     map[string]float64
	UpdatedAt time.Time
}

// Rate returns the positive quote for code.
func (t *RateTable) Rate(code string) (float64, error) {
	if t == nil {
		return 0, ErrRateNotQuoted
	}
	v, ok := t.Rates[NormalizeCode(code)]
	if !ok {
		return 0, ErrRateNotQuoted
	}
	if v <= 0 {
		return 0, ErrInvalidRate
	}
	return v, nil
}

// RateSource fetches live rates for a base currency.
type RateSource interface {
	LatestRates(ctx context.Context, base string) (*RateTable, error)
}
