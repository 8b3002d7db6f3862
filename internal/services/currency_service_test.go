package services

import (
	"context"
	"errors"
	"testing"

	"ledger/internal/exchange"
	"ledger/internal/models"

	"github.com/shopspring/decimal"
)

func TestCurrencyCreateDefaultsFromISO(t *testing.T) {
	f := newFixture(t)
	cur, err := f.currencies.Create(context.Background(), OwnerActor(testOwner), CurrencyInput{Code: "gbp"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cur.Code != "GBP" || cur.Name != "GBP" || cur.Symbol != "£" || !cur.IsActive || cur.RateToBase.Valid {
		t.Fatalf("unexpected currency: %#v", cur)
	}
	if _, err := f.currencies.Create(context.Background(), OwnerActor(testOwner), CurrencyInput{Code: "GBP"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
}

func TestCurrencyDeleteProtection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := OwnerActor(testOwner)
	f.wallet(t, "RWF", 0)

	if err := f.currencies.Delete(ctx, actor, "USD"); !errors.Is(err, ErrDefaultCurrency) {
		t.Fatalf("expected default currency error, got %v", err)
	}
	if err := f.currencies.Delete(ctx, actor, "RWF"); !errors.Is(err, ErrCurrencyInUse) {
		t.Fatalf("expected currency in use, got %v", err)
	}
	if err := f.currencies.Delete(ctx, actor, "EUR"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := f.state.currencies["EUR"]; ok {
		t.Fatal("EUR should be removed")
	}
}

func TestCurrencySetDefaultRefreshesRates(t *testing.T) {
	f := newFixture(t)
	refreshed := false
	f.currencies.rates = stubRates{refreshFn: func(context.Context) (int, error) {
		refreshed = true
		return 0, errors.New("provider down")
	}}

	cur, err := f.currencies.SetDefault(context.Background(), OwnerActor(testOwner), "eur")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cur.IsDefault || !cur.RateToBase.Decimal.Equal(decimal.NewFromInt(1)) || !refreshed {
		t.Fatalf("unexpected default: %#v", cur)
	}
	if f.state.currencies["USD"].IsDefault {
		t.Fatal("previous default must be cleared")
	}
}

func TestCurrencySetDefaultRepricesAndClearsStaleRates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := OwnerActor(testOwner)
	rwf := f.wallet(t, "RWF", 1690000)
	usd := f.wallet(t, "USD", 10000)
	if f.state.wallets[rwf.ID].BalanceBase != 1000 {
		t.Fatalf("unexpected base before switch: %d", f.state.wallets[rwf.ID].BalanceBase)
	}
	f.currencies.rates = stubRates{refreshFn: func(context.Context) (int, error) {
		return 0, errors.New("provider down")
	}}

	if _, err := f.currencies.SetDefault(ctx, actor, "RWF"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.state.wallets[rwf.ID].BalanceBase != 1690000 {
		t.Fatalf("wallets in the new base must be repriced, got %d", f.state.wallets[rwf.ID].BalanceBase)
	}
	if f.state.currencies["USD"].RateToBase.Valid || f.state.currencies["EUR"].RateToBase.Valid {
		t.Fatal("rates quoted against the old base must be cleared")
	}
	_, err := f.transactions.Create(ctx, actor, models.KindExpense, expenseInput(usd.ID, 100))
	if !errors.Is(err, exchange.ErrRateUnavailable) {
		t.Fatalf("expected rate unavailable, got %v", err)
	}

	again, err := f.currencies.SetDefault(ctx, actor, "RWF")
	if err != nil || !again.IsDefault {
		t.Fatalf("setting the current default again must be a no-op: %#v %v", again, err)
	}
}

func TestCurrencyUpdatePersistsRateAndReprices(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, "RWF", 1300000)
	rate := decimal.NewFromInt(1300)

	cur, err := f.currencies.Update(context.Background(), OwnerActor(testOwner), "RWF", CurrencyUpdate{Rate: &rate})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cur.RateToBase.Decimal.Equal(rate) || !f.state.currencies["RWF"].RateToBase.Decimal.Equal(rate) {
		t.Fatalf("rate not stored: %#v", f.state.currencies["RWF"])
	}
	if f.state.wallets[w.ID].BalanceBase != 1000 {
		t.Fatalf("expected repriced base 10.00, got %d", f.state.wallets[w.ID].BalanceBase)
	}
}

func TestCurrencyCannotDeactivateDefault(t *testing.T) {
	f := newFixture(t)
	inactive := false
	_, err := f.currencies.Update(context.Background(), OwnerActor(testOwner), "USD", CurrencyUpdate{IsActive: &inactive})
	if !errors.Is(err, ErrDefaultCurrency) {
		t.Fatalf("expected default currency error, got %v", err)
	}
}

func TestLiveRate(t *testing.T) {
	f := newFixture(t)
	quote, err := f.currencies.LiveRate(context.Background(), "usd", "rwf", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Converted.String() != "16900.00" || !quote.Rate.Equal(decimal.NewFromInt(1690)) {
		t.Fatalf("unexpected quote: %#v", quote)
	}
	var verr *ValidationError
	if _, err := f.currencies.LiveRate(context.Background(), "usd", "r", 1000); !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
