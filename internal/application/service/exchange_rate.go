package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-core/internal/domain/currency"
	"github.com/alem-hub/academy-core/internal/domain/shared"
	"github.com/alem-hub/academy-core/pkg/logger"
	"github.com/alem-hub/academy-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXCHANGE RATE SERVICE
// Resolves currency pairs: identity -> cache -> live source -> fallback table
// -> emergency constant. Only live results are cached.
// ══════════════════════════════════════════════════════════════════════════════

// Rate sources reported in logs and RateResult.
const (
	RateSourceIdentity  = "identity"
	RateSourceCache     = "cache"
	RateSourceAPI       = "api"
	RateSourceFallback  = "fallback"
	RateSourceEmergency = "emergency"
)

// ExchangeRateConfig configures ExchangeRateService.
type ExchangeRateConfig struct {
	// CacheTTL is how long a live rate stays valid.
	CacheTTL time.Duration

	// RequestTimeout bounds one live lookup, retries included.
	RequestTimeout time.Duration

	// Fallback is the static table used when the live source fails.
	Fallback currency.FallbackTable
}

// DefaultExchangeRateConfig returns sensible defaults.
func DefaultExchangeRateConfig() ExchangeRateConfig {
	return ExchangeRateConfig{
		CacheTTL:       DefaultRateTTL,
		RequestTimeout: DefaultRateTimeout,
		Fallback:       currency.DefaultFallbackTable(),
	}
}

// RateResult is the outcome of resolving one target in a batch.
type RateResult struct {
	Rate   *float64
	Source string
	Err    error
}

// ExchangeRateService resolves exchange rates.
type ExchangeRateService struct {
	source currency.RateSource
	cache  shared.Cache
	clock  timeutil.Clock
	logger *slog.Logger
	config ExchangeRateConfig
}

// NewExchangeRateService creates a new ExchangeRateService.
func NewExchangeRateService(
	source currency.RateSource,
	cache shared.Cache,
	clock timeutil.Clock,
	log *slog.Logger,
	config ExchangeRateConfig,
) *ExchangeRateService {
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultRateTTL
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultRateTimeout
	}
	if config.Fallback == nil {
		config.Fallback = currency.DefaultFallbackTable()
	}
	config.Fallback = config.Fallback.Normalize()

	return &ExchangeRateService{
		source: source,
		cache:  cache,
		clock:  timeutil.OrSystem(clock),
		logger: logger.OrDefault(log).With(logger.Component("exchange_rate")),
		config: config,
	}
}

// GetRate returns how many units of `to` one unit of `from` buys.
func (s *ExchangeRateService) GetRate(ctx context.Context, from, to string) (float64, error) {
	rate, _, err := s.resolve(ctx, from, to)
	return rate, err
}

// resolve returns the rate together with where it came from.
func (s *ExchangeRateService) resolve(ctx context.Context, from, to string) (float64, string, error) {
	pair, err := currency.NewPair(from, to)
	if err != nil {
		return 0, "", err
	}

	if pair.IsIdentity() {
		return 1.0, RateSourceIdentity, nil
	}

	if rate, ok := s.cached(ctx, pair); ok {
		s.logger.Debug("exchange rate resolved", logger.CurrencyPair(pair.From, pair.To), logger.Source(RateSourceCache), slog.Float64("rate", rate))
		return rate, RateSourceCache, nil
	}

	rate, err := s.fetch(ctx, pair)
	if err == nil {
		s.store(ctx, pair, rate)
		s.logger.Info("exchange rate resolved", logger.CurrencyPair(pair.From, pair.To), logger.Source(RateSourceAPI), slog.Float64("rate", rate))
		return rate, RateSourceAPI, nil
	}

	s.logger.Warn("exchange rate api failed, using fallback", logger.CurrencyPair(pair.From, pair.To), logger.Err(err))
	return s.fallback(pair)
}

// cached returns an unexpired cached rate. Any cache failure counts as a miss.
func (s *ExchangeRateService) cached(ctx context.Context, pair currency.Pair) (float64, bool) {
	if s.cache == nil {
		return 0, false
	}

	var entry currency.CachedRate
	if err := s.cache.Get(ctx, ExchangeRateKey(pair), &entry); err != nil {
		if !shared.IsCacheMiss(err) {
			s.logger.Warn("exchange rate cache read failed", logger.CurrencyPair(pair.From, pair.To), logger.Err(err))
		}
		return 0, false
	}

	if entry.Value <= 0 || entry.IsExpired(s.clock.Now()) {
		return 0, false
	}
	return entry.Value, true
}

func (s *ExchangeRateService) fetch(ctx context.Context, pair currency.Pair) (float64, error) {
	if s.source == nil {
		return 0, fmt.Errorf("no rate source configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	table, err := s.source.LatestRates(ctx, pair.From)
	if err != nil {
		return 0, err
	}
	return table.Rate(pair.To)
}

func (s *ExchangeRateService) store(ctx context.Context, pair currency.Pair, rate float64) {
	if s.cache == nil {
		return
	}

	entry, err := currency.NewCachedRate(pair, rate, s.clock.Now(), s.config.CacheTTL)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, ExchangeRateKey(pair), entry, s.config.CacheTTL); err != nil {
		s.logger.Warn("exchange rate cache write failed", logger.CurrencyPair(pair.From, pair.To), logger.Err(err))
	}
}

// fallback prices the pair from the static table, then the emergency constant.
// Fallback rates are never cached.
func (s *ExchangeRateService) fallback(pair currency.Pair) (float64, string, error) {
	rate, err := s.config.Fallback.CrossRate(pair)
	if err == nil {
		s.logger.Info("exchange rate resolved", logger.CurrencyPair(pair.From, pair.To), logger.Source(RateSourceFallback), slog.Float64("rate", rate))
		return rate, RateSourceFallback, nil
	}

	if rate, ok := currency.EmergencyRate(pair); ok {
		s.logger.Warn("exchange rate resolved", logger.CurrencyPair(pair.From, pair.To), logger.Source(RateSourceEmergency), slog.Float64("rate", rate))
		return rate, RateSourceEmergency, nil
	}

	s.logger.Error("no exchange rate available", logger.CurrencyPair(pair.From, pair.To))
	return 0, "", err
}

// ══════════════════════════════════════════════════════════════════════════════
// BATCH
// ══════════════════════════════════════════════════════════════════════════════

// ResolveRates resolves every target against base and reports each outcome.
// One failing target never affects the others.
func (s *ExchangeRateService) ResolveRates(ctx context.Context, base string, targets []string) map[string]RateResult {
	results := make(map[string]RateResult, len(targets))

	for _, target := range targets {
		code := currency.NormalizeCode(target)
		rate, source, err := s.resolve(ctx, base, code)
		if err != nil {
			s.logger.Warn("exchange rate batch target failed",
				logger.CurrencyPair(currency.NormalizeCode(base), code),
				logger.Err(err),
			)
			results[code] = RateResult{Err: err}
			continue
		}
		v := rate
		results[code] = RateResult{Rate: &v, Source: source}
	}

	return results
}

// GetRates is ResolveRates reduced to values: failed targets map to nil.
func (s *ExchangeRateService) GetRates(ctx context.Context, base string, targets []string) map[string]*float64 {
	results := s.ResolveRates(ctx, base, targets)

	rates := make(map[string]*float64, len(results))
	for code, r := range results {
		rates[code] = r.Rate
	}
	return rates
}

// ══════════════════════════════════════════════════════════════════════════════
// CONVERSION & INVALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// Convert converts amount from one currency to another, rounded to 2 places.
func (s *ExchangeRateService) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	rate, err := s.GetRate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(decimal.NewFromFloat(rate)).Round(2), nil
}

// ClearCache removes the cached rates for pairs, or every cached rate when
// no pair is given. Only an invalid pair is returned as an error; cache
// failures are logged and the entries expire with their TTL.
func (s *ExchangeRateService) ClearCache(ctx context.Context, pairs ...currency.Pair) error {
	if s.cache == nil {
		return nil
	}

	if len(pairs) == 0 {
		if err := s.cache.DeleteByPattern(ctx, PrefixExchangeRate+"*"); err != nil {
			s.logger.Warn("exchange rate cache clear failed", logger.Err(err))
		}
		return nil
	}

	keys := make([]string, 0, len(pairs))
	for _, p := range pairs {
		np, err := currency.NewPair(p.From, p.To)
		if err != nil {
			return err
		}
		keys = append(keys, ExchangeRateKey(np))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("exchange rate cache delete failed",
			slog.Int("keys", len(keys)), logger.Err(err))
	}
	return nil
}
