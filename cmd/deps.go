package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/medsearch/internal/config"
	"github.com/sells-group/medsearch/internal/resilience"
	"github.com/sells-group/medsearch/internal/store"
	"github.com/sells-group/medsearch/internal/view"
	"github.com/sells-group/medsearch/pkg/cappsule"
)

// initStore opens and migrates the configured snapshot store. It returns
// nil when the driver is "none".
func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch sc.Driver {
	case "none", "":
		return nil, nil
	case "sqlite":
		dsn := sc.DatabaseURL
		if dsn == "" {
			dsn = "medsearch.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, sc.DatabaseURL, poolConfig(sc))
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// poolConfig maps the store settings onto postgres pool tuning.
func poolConfig(sc config.StoreConfig) *store.PoolConfig {
	return &store.PoolConfig{MaxConns: sc.MaxConns, MinConns: sc.MinConns}
}

// newSearchClient builds the upstream client from the search config.
func newSearchClient(sc config.SearchConfig) cappsule.Client {
	retry := resilience.FromAttempts(sc.MaxAttempts)
	retry.OnRetry = resilience.RetryLogger("cappsule", "search")

	opts := []cappsule.Option{
		cappsule.WithBaseURL(sc.BaseURL),
		cappsule.WithPharmacyIDs(sc.PharmacyIDs...),
		cappsule.WithTimeout(sc.Timeout()),
		cappsule.WithRateLimit(sc.RateLimitPerSec, 1),
		cappsule.WithRetry(retry),
	}
	if sc.BreakerThreshold > 0 {
		breaker := resilience.NewBreaker(sc.BreakerThreshold, time.Duration(sc.BreakerCooldownSecs)*time.Second,
			func(from, to resilience.BreakerState) {
				zap.L().Warn("search upstream breaker changed state",
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			})
		opts = append(opts, cappsule.WithBreaker(breaker))
	}
	return cappsule.NewClient(opts...)
}

func newPriceFormatter(dc config.DisplayConfig) *view.PriceFormatter {
	return view.NewPriceFormatter(dc.CurrencySymbol, dc.Locale)
}
