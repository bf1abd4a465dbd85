package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academy-core/internal/domain/currency"
	"github.com/alem-hub/academy-core/internal/domain/shared"
)

type rateFixture struct {
	svc    *ExchangeRateService
	source *fakeRateSource
	cache  *stubCache
	clock  interface{ Advance(time.Duration) }
	logs   *logCapture
}

func newRateFixture(fallback currency.FallbackTable) *rateFixture {
	clock := newTestClock()
	source := newFakeRateSource()
	cache := newStubCache(clock)
	logs, log := newLogCapture()

	cfg := DefaultExchangeRateConfig()
	if fallback != nil {
		cfg.Fallback = fallback
	}

	return &rateFixture{
		svc:    NewExchangeRateService(source, cache, clock, log, cfg),
		source: source,
		cache:  cache,
		clock:  clock,
		logs:   logs,
	}
}

func TestGetRate_IdentityTouchesNothing(t *testing.T) {
	f := newRateFixture(nil)

	for _, code := range []string{"SAR", "egp", " usd "} {
		rate, err := f.svc.GetRate(context.Background(), code, code)
		require.NoError(t, err)
		assert.Equal(t, 1.0, rate)
	}

	gets, sets := f.cache.calls()
	assert.Zero(t, gets)
	assert.Zero(t, sets)
	assert.Zero(t, f.source.callCount())
}

func TestGetRate_IdentityIsCaseInsensitive(t *testing.T) {
	f := newRateFixture(nil)

	rate, err := f.svc.GetRate(context.Background(), "sar", "SAR")
	require.NoError(t, err)
	assert.Equal(t, 1.0, rate)
	assert.Zero(t, f.source.callCount())
}

func TestGetRate_CacheHitSkipsSource(t *testing.T) {
	f := newRateFixture(nil)
	ctx := context.Background()

	pair, _ := currency.NewPair("SAR", "EGP")
	entry, err := currency.NewCachedRate(pair, 12.0, testNow, time.Hour)
	require.NoError(t, err)
	require.NoError(t, f.cache.Cache.Set(ctx, ExchangeRateKey(pair), entry, time.Hour))

	rate, err := f.svc.GetRate(ctx, "sar", "egp")
	require.NoError(t, err)
	assert.Equal(t, 12.0, rate)
	assert.Zero(t, f.source.callCount())
}

func TestGetRate_FetchesAndCaches(t *testing.T) {
	f := newRateFixture(nil)
	f.source.tables["SAR"] = map[string]float64{"EGP": 13.1, "USD": 0.2667}
	ctx := context.Background()

	rate, err := f.svc.GetRate(ctx, "SAR", "EGP")
	require.NoError(t, err)
	assert.Equal(t, 13.1, rate)
	assert.Equal(t, 1, f.source.callCount())

	var cached currency.CachedRate
	require.NoError(t, f.cache.Cache.Get(ctx, "exchange_rate:SAR:EGP", &cached))
	assert.Equal(t, 13.1, cached.Value)
	assert.Equal(t, time.Hour, cached.TTL)

	rate, err = f.svc.GetRate(ctx, "SAR", "EGP")
	require.NoError(t, err)
	assert.Equal(t, 13.1, rate)
	assert.Equal(t, 1, f.source.callCount(), "second lookup must be served from cache")

	apiLogs := f.logs.withMessage(t, "exchange rate resolved")
	require.NotEmpty(t, apiLogs)
	assert.Equal(t, RateSourceAPI, apiLogs[0]["source"])
	assert.Equal(t, "SAR/EGP", apiLogs[0]["pair"])
}

func TestGetRate_RefetchesAfterTTL(t *testing.T) {
	f := newRateFixture(nil)
	f.source.tables["SAR"] = map[string]float64{"EGP": 13.1}
	ctx := context.Background()

	_, err := f.svc.GetRate(ctx, "SAR", "EGP")
	require.NoError(t, err)

	f.clock.Advance(59 * time.Minute)
	_, err = f.svc.GetRate(ctx, "SAR", "EGP")
	require.NoError(t, err)
	assert.Equal(t, 1, f.source.callCount())

	f.clock.Advance(time.Minute)
	f.source.tables["SAR"] = map[string]float64{"EGP": 13.4}
	rate, err := f.svc.GetRate(ctx, "SAR", "EGP")
	require.NoError(t, err)
	assert.Equal(t, 13.4, rate)
	assert.Equal(t, 2, f.source.callCount())
}

func TestGetRate_FallbackCrossRate(t *testing.T) {
	f := newRateFixture(currency.FallbackTable{"USD": 1, "SAR": 3.75, "EGP": 47.5875})
	f.source.err = errStubDown
	ctx := context.Background()

	rate, err := f.svc.GetRate(ctx, "SAR", "EGP")
	require.NoError(t, err)
	assert.InDelta(t, (1/3.75)*47.5875, rate, 1e-9)

	// fallback results are not cached
	_, sets := f.cache.calls()
	assert.Zero(t, sets)
	_, err = f.svc.GetRate(ctx, "SAR", "EGP")
	require.NoError(t, err)
	assert.Equal(t, 2, f.source.callCount())

	logs := f.logs.withMessage(t, "exchange rate resolved")
	require.NotEmpty(t, logs)
	assert.Equal(t, RateSourceFallback, logs[0]["source"])
}

func TestGetRate_MissingTargetKeyFallsBack(t *testing.T) {
	f := newRateFixture(currency.FallbackTable{"SAR": 1, "EGP": 12.5})
	f.source.tables["SAR"] = map[string]float64{"USD": 0.2667}

	rate, err := f.svc.GetRate(context.Background(), "SAR", "EGP")
	require.NoError(t, err)
	assert.Equal(t, 12.5, rate)
}

func TestGetRate_EmergencySAREGP(t *testing.T) {
	f := newRateFixture(currency.FallbackTable{"SAR": 1})
	f.source.err = errStubDown

	rate, err := f.svc.GetRate(context.Background(), "SAR", "EGP")
	require.NoError(t, err)
	assert.Equal(t, currency.EmergencyRateSAREGP, rate)
}

func TestGetRate_ZeroFromRateUsesEmergency(t *testing.T) {
	f := newRateFixture(currency.FallbackTable{"SAR": 0, "EGP": 47.5})
	f.source.err = errStubDown

	rate, err := f.svc.GetRate(context.Background(), "SAR", "EGP")
	require.NoError(t, err)
	assert.Equal(t, 12.69, rate)
}

func TestGetRate_NoFallbackAvailable(t *testing.T) {
	f := newRateFixture(currency.FallbackTable{"USD": 1, "SAR": 3.75})
	f.source.err = errStubDown

	_, err := f.svc.GetRate(context.Background(), "USD", "EGP")
	assert.ErrorIs(t, err, currency.ErrNoFallbackAvailable)
}

func TestGetRate_CacheFailureDegradesToMiss(t *testing.T) {
	f := newRateFixture(nil)
	f.source.tables["SAR"] = map[string]float64{"EGP": 13.1}
	f.cache.fail(true)

	rate, err := f.svc.GetRate(context.Background(), "SAR", "EGP")
	require.NoError(t, err)
	assert.Equal(t, 13.1, rate)
	assert.NotEmpty(t, f.logs.withMessage(t, "exchange rate cache read failed"))
	assert.NotEmpty(t, f.logs.withMessage(t, "exchange rate cache write failed"))
}

func TestGetRate_EmptyCode(t *testing.T) {
	f := newRateFixture(nil)

	_, err := f.svc.GetRate(context.Background(), "", "EGP")
	assert.ErrorIs(t, err, currency.ErrInvalidCode)
}

func TestGetRates_PartialFailure(t *testing.T) {
	f := newRateFixture(currency.FallbackTable{"SAR": 1, "EGP": 12.69})
	f.source.tables["SAR"] = map[string]float64{"EGP": 13.1}

	rates := f.svc.GetRates(context.Background(), "SAR", []string{"EGP", "XXX"})

	require.Len(t, rates, 2)
	require.NotNil(t, rates["EGP"])
	assert.Equal(t, 13.1, *rates["EGP"])
	v, ok := rates["XXX"]
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.NotEmpty(t, f.logs.withMessage(t, "exchange rate batch target failed"))
}

func TestResolveRates_ReportsSourceAndError(t *testing.T) {
	f := newRateFixture(currency.FallbackTable{"SAR": 1, "EGP": 12.69})
	f.source.tables["SAR"] = map[string]float64{"EGP": 13.1}

	results := f.svc.ResolveRates(context.Background(), "sar", []string{"egp", "sar", "XXX"})

	assert.Equal(t, RateSourceAPI, results["EGP"].Source)
	assert.Equal(t, RateSourceIdentity, results["SAR"].Source)
	assert.Equal(t, 1.0, *results["SAR"].Rate)
	assert.Nil(t, results["XXX"].Rate)
	assert.ErrorIs(t, results["XXX"].Err, currency.ErrNoFallbackAvailable)
}

func TestConvert(t *testing.T) {
	f := newRateFixture(nil)
	f.source.tables["SAR"] = map[string]float64{"EGP": 12.69}

	got, err := f.svc.Convert(context.Background(), decimal.NewFromInt(100), "SAR", "EGP")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1269").Equal(got), got.String())

	got, err = f.svc.Convert(context.Background(), decimal.RequireFromString("10.555"), "SAR", "SAR")
	require.NoError(t, err)
	assert.Equal(t, "10.56", got.StringFixed(2))
}

func TestClearCache(t *testing.T) {
	f := newRateFixture(nil)
	f.source.tables["SAR"] = map[string]float64{"EGP": 13.1, "USD": 0.27}
	f.source.tables["USD"] = map[string]float64{"EUR": 0.92}
	ctx := context.Background()

	for _, p := range [][2]string{{"SAR", "EGP"}, {"SAR", "USD"}, {"USD", "EUR"}} {
		_, err := f.svc.GetRate(ctx, p[0], p[1])
		require.NoError(t, err)
	}
	require.NoError(t, f.cache.Cache.Set(ctx, "course_progress:c:s", 1, time.Hour))
	assert.Equal(t, 4, f.cache.Len())

	require.NoError(t, f.svc.ClearCache(ctx, currency.Pair{From: "sar", To: "egp"}))
	assert.Equal(t, 3, f.cache.Len())

	require.NoError(t, f.svc.ClearCache(ctx))
	assert.Equal(t, 1, f.cache.Len(), "only non-rate entries survive")
}

func TestClearCache_RateCacheFailureIsLogged(t *testing.T) {
	f := newRateFixture(nil)
	f.cache.failDeletes(true)
	ctx := context.Background()

	require.NoError(t, f.svc.ClearCache(ctx, currency.Pair{From: "SAR", To: "EGP"}))
	require.NoError(t, f.svc.ClearCache(ctx))

	assert.Len(t, f.logs.withMessage(t, "exchange rate cache delete failed"), 1)
	assert.Len(t, f.logs.withMessage(t, "exchange rate cache clear failed"), 1)
}

func TestClearCache_InvalidPairIsReturned(t *testing.T) {
	f := newRateFixture(nil)

	err := f.svc.ClearCache(context.Background(), currency.Pair{From: "", To: "EGP"})
	assert.ErrorIs(t, err, currency.ErrInvalidCode)
	assert.True(t, shared.IsInvalid(err))
}
