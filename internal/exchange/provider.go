package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"ledger/internal/config"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
)

// Source quotes exchange rates. Pair returns units of to per one from; Bulk
// returns units of every known currency per one base.
type Source interface {
	Pair(ctx context.Context, from, to string) (decimal.Decimal, error)
	Bulk(ctx context.Context, base string) (map[string]decimal.Decimal, error)
}

// HTTPProvider reads rates out of any JSON API described by URL templates and
// JSONPath expressions.
type HTTPProvider struct {
	cfg    config.RateProviderConfig
	client *http.Client
}

func NewHTTPProvider(cfg config.RateProviderConfig) *HTTPProvider {
	return &HTTPProvider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (p *HTTPProvider) Pair(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if p.cfg.PairURL == "" {
		return decimal.Zero, fmt.Errorf("pair endpoint not configured")
	}
	jobj, err := p.get(ctx, p.expand(p.cfg.PairURL, from, to))
	if err != nil {
		return decimal.Zero, err
	}
	jval, err := first(jsonpath.Get(p.cfg.RatePath, jobj))
	if err != nil {
		return decimal.Zero, fmt.Errorf("extract %q: %w", p.cfg.RatePath, err)
	}
	return toRate(jval)
}

func (p *HTTPProvider) Bulk(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	if p.cfg.BulkURL == "" {
		return nil, fmt.Errorf("bulk endpoint not configured")
	}
	jobj, err := p.get(ctx, p.expand(p.cfg.BulkURL, base, ""))
	if err != nil {
		return nil, err
	}
	jval, err := first(jsonpath.Get(p.cfg.RatesPath, jobj))
	if err != nil {
		return nil, fmt.Errorf("extract %q: %w", p.cfg.RatesPath, err)
	}
	table, ok := jval.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("extract %q: not an object but %T", p.cfg.RatesPath, jval)
	}
	rates := make(map[string]decimal.Decimal, len(table))
	for code, raw := range table {
		rate, err := toRate(raw)
		if err != nil {
			continue
		}
		rates[strings.ToUpper(code)] = rate
	}
	return rates, nil
}

func (p *HTTPProvider) expand(template, from, to string) string {
	return strings.NewReplacer("{key}", p.cfg.APIKey, "{from}", from, "{to}", to).Replace(template)
}

// get fetches addr, decodes it and applies the optional success check.
func (p *HTTPProvider) get(ctx context.Context, addr string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cannot http GET %v%v: %v", req.URL.Host, req.URL.Path, resp.Status)
	}
	var jobj any
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&jobj); err != nil {
		return nil, fmt.Errorf("decode rate response: %w", err)
	}
	if p.cfg.ResultPath != "" {
		result, err := first(jsonpath.Get(p.cfg.ResultPath, jobj))
		if err != nil {
			return nil, fmt.Errorf("extract %q: %w", p.cfg.ResultPath, err)
		}
		if fmt.Sprint(result) != p.cfg.ResultOK {
			return nil, fmt.Errorf("provider reported %v", result)
		}
	}
	return jobj, nil
}

// first unwraps single-element results, since jsonpath may answer a scalar
// query with a list of one.
func first(jval any, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if jlist, ok := jval.([]any); ok {
		if len(jlist) == 0 {
			return nil, fmt.Errorf("no match")
		}
		return jlist[0], nil
	}
	return jval, nil
}

func toRate(jval any) (decimal.Decimal, error) {
	var rate decimal.Decimal
	var err error
	switch v := jval.(type) {
	case json.Number:
		rate, err = decimal.NewFromString(v.String())
	case float64:
		rate = decimal.NewFromFloat(v)
	case string:
		rate, err = decimal.NewFromString(v)
	default:
		return decimal.Zero, fmt.Errorf("rate is %T, not a number", jval)
	}
	if err != nil {
		return decimal.Zero, err
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("rate %s is not positive", rate)
	}
	return rate, nil
}
