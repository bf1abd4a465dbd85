package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alem-hub/academy-core/internal/application/service"
	"github.com/alem-hub/academy-core/pkg/logger"
)

// RateResolver resolves a batch of rates from one base currency.
type RateResolver interface {
	ResolveRates(ctx context.Context, base string, targets []string) map[string]service.RateResult
}

// RefreshExchangeRatesJob keeps the rate cache warm for the currencies the
// academy bills in, so request paths rarely wait on the rate API.
type RefreshExchangeRatesJob struct {
	rates   RateResolver
	base    string
	targets []string
	log     *slog.Logger
}

// NewRefreshExchangeRatesJob creates a warm-up job for base against targets.
func NewRefreshExchangeRatesJob(rates RateResolver, base string, targets []string, log *slog.Logger) *RefreshExchangeRatesJob {
	return &RefreshExchangeRatesJob{
		rates:   rates,
		base:    strings.ToUpper(strings.TrimSpace(base)),
		targets: targets,
		log:     logger.OrDefault(log).With(logger.Component("refresh_exchange_rates")),
	}
}

// Name returns the job name.
func (j *RefreshExchangeRatesJob) Name() string {
	return "refresh_exchange_rates"
}

// Description returns a human-readable description.
func (j *RefreshExchangeRatesJob) Description() string {
	return fmt.Sprintf("Warms exchange rates %s -> %s", j.base, strings.Join(j.targets, ","))
}

// Run resolves every target once. It fails only when no target resolved.
func (j *RefreshExchangeRatesJob) Run(ctx context.Context) error {
	if j.base == "" || len(j.targets) == 0 {
		return nil
	}

	results := j.rates.ResolveRates(ctx, j.base, j.targets)

	bySource := make(map[string]int)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		bySource[r.Source]++
	}

	attrs := []any{
		slog.String("base", j.base),
		slog.Int("targets", len(results)),
		slog.Int("failed", failed),
	}
	for source, n := range bySource {
		attrs = append(attrs, slog.Int("source_"+source, n))
	}
	j.log.Info("exchange rates refreshed", attrs...)

	if len(results) > 0 && failed == len(results) {
		return fmt.Errorf("no exchange rate resolved for base %s", j.base)
	}
	return nil
}
