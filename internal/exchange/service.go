package exchange

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"ledger/internal/db"
	"ledger/internal/models"
	"ledger/internal/money"
	"ledger/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ErrRateUnavailable means no trustworthy rate could be obtained. Callers
// must not substitute a rate of 1.
var ErrRateUnavailable = errors.New("rate unavailable")

type CurrencyDirectory interface {
	Get(ctx context.Context, code string) (models.Currency, error)
	GetDefault(ctx context.Context) (models.Currency, error)
	List(ctx context.Context, activeOnly bool) ([]models.Currency, error)
	SetRate(ctx context.Context, tx store.Execer, code string, rate decimal.Decimal) (bool, error)
}

type WalletRepricer interface {
	RepriceBase(ctx context.Context, tx store.Execer, currency string, rate decimal.Decimal) (int64, error)
}

type Service struct {
	source       Source
	cache        *Cache
	txRunner     db.TxRunner
	currencies   CurrencyDirectory
	wallets      WalletRepricer
	baseFallback string
}

func NewService(source Source, cache *Cache, txRunner db.TxRunner, currencies CurrencyDirectory, wallets WalletRepricer, baseFallback string) *Service {
	return &Service{
		source:       source,
		cache:        cache,
		txRunner:     txRunner,
		currencies:   currencies,
		wallets:      wallets,
		baseFallback: strings.ToUpper(baseFallback),
	}
}

// Rate returns units of to per one from. The pair endpoint is tried first and
// the bulk table for from second; every pair of a bulk answer is cached.
func (s *Service) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if rate, ok := s.cache.Get(from, to); ok {
		return rate, nil
	}
	rate, err := s.source.Pair(ctx, from, to)
	if err == nil {
		s.cache.Set(from, to, rate)
		return rate, nil
	}
	log.Printf("pair rate %s/%s failed, trying bulk: %v", from, to, err)
	rates, err := s.source.Bulk(ctx, from)
	if err != nil {
		log.Printf("bulk rates for %s failed: %v", from, err)
		return decimal.Zero, ErrRateUnavailable
	}
	s.cacheTable(from, rates)
	rate, ok := rates[to]
	if !ok {
		return decimal.Zero, ErrRateUnavailable
	}
	return rate, nil
}

// Convert moves a minor amount between currencies with half-up rounding and
// reports the rate used.
func (s *Service) Convert(ctx context.Context, amountMinor int64, from, to string) (int64, decimal.Decimal, error) {
	rate, err := s.Rate(ctx, from, to)
	if err != nil {
		return 0, decimal.Zero, err
	}
	return money.ConvertMinor(amountMinor, rate), rate, nil
}

// BaseCurrency is the default currency of the directory, or the configured
// fallback when none is marked default.
func (s *Service) BaseCurrency(ctx context.Context) (string, error) {
	def, err := s.currencies.GetDefault(ctx)
	if errors.Is(err, sql.ErrNoRows) && s.baseFallback != "" {
		return s.baseFallback, nil
	}
	if err != nil {
		return "", err
	}
	return def.Code, nil
}

// ToBase prices an amount in the base currency from the stored directory
// rate, without touching the network.
func (s *Service) ToBase(ctx context.Context, amountMinor int64, currency string) (int64, error) {
	cur, err := s.currencies.Get(ctx, strings.ToUpper(currency))
	if err != nil {
		return 0, err
	}
	return BaseAmount(amountMinor, cur)
}

// FromBase prices a base amount in currency from the stored directory rate.
func (s *Service) FromBase(ctx context.Context, baseMinor int64, currency string) (int64, error) {
	cur, err := s.currencies.Get(ctx, strings.ToUpper(currency))
	if err != nil {
		return 0, err
	}
	if cur.IsDefault {
		return baseMinor, nil
	}
	if !cur.RateToBase.Valid || !cur.RateToBase.Decimal.IsPositive() {
		return 0, ErrRateUnavailable
	}
	return money.ConvertMinor(baseMinor, cur.RateToBase.Decimal), nil
}

// BaseAmount divides by the currency's rate to base. A currency that was
// never priced has no base value.
func BaseAmount(amountMinor int64, cur models.Currency) (int64, error) {
	if cur.IsDefault {
		return amountMinor, nil
	}
	if !cur.RateToBase.Valid {
		return 0, ErrRateUnavailable
	}
	base, err := money.DivideMinor(amountMinor, cur.RateToBase.Decimal)
	if err != nil {
		return 0, ErrRateUnavailable
	}
	return base, nil
}

// RefreshAll reprices every active currency against the base from one bulk
// quote. Only changed rates are written and wallets in those currencies get
// their base mirror recomputed. The base itself is pinned to 1.
func (s *Service) RefreshAll(ctx context.Context) (int, error) {
	base, err := s.BaseCurrency(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolve base currency: %w", err)
	}
	rates, err := s.source.Bulk(ctx, base)
	if err != nil {
		log.Printf("refresh rates for %s failed: %v", base, err)
		return 0, ErrRateUnavailable
	}
	active, err := s.currencies.List(ctx, true)
	if err != nil {
		return 0, err
	}
	updated := 0
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		updated = 0
		for _, cur := range active {
			rate := decimal.NewFromInt(1)
			if cur.Code != base {
				quoted, ok := rates[cur.Code]
				if !ok {
					log.Printf("no rate for %s in %s table", cur.Code, base)
					continue
				}
				rate = quoted
			}
			changed, err := s.currencies.SetRate(ctx, tx, cur.Code, rate)
			if err != nil {
				return fmt.Errorf("set rate %s: %w", cur.Code, err)
			}
			if !changed {
				continue
			}
			updated++
			if _, err := s.wallets.RepriceBase(ctx, tx, cur.Code, rate); err != nil {
				return fmt.Errorf("reprice wallets in %s: %w", cur.Code, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.cacheTable(base, rates)
	log.Printf("refreshed rates against %s: %d updated", base, updated)
	return updated, nil
}

// cacheTable stores every pair a bulk table implies: base to each quoted
// currency and the cross rate between any two of them.
func (s *Service) cacheTable(base string, rates map[string]decimal.Decimal) {
	perBase := make(map[string]decimal.Decimal, len(rates)+1)
	for code, rate := range rates {
		perBase[code] = rate
	}
	perBase[base] = decimal.NewFromInt(1)
	for from, fromRate := range perBase {
		for to, toRate := range perBase {
			if from == to {
				continue
			}
			cross, err := money.CrossRate(fromRate, toRate)
			if err != nil {
				continue
			}
			s.cache.Set(from, to, cross)
		}
	}
}
