package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/xopay/notify-service/internal/domain"
)

const privatBankURL = "https://api.privatbank.ua/p24api/pubinfo?json&exchange&coursid=5"

// PrivatBank reads the public p24api exchange listing. It emits UAH pairs
// for EUR, USD and RUB: the direct rate is the bank's buy price, the inverse
// is 1/sale. The API still reports the rouble as RUR, which is aliased to
// RUB.
type PrivatBank struct {
	hc  *http.Client
	url string
	lg  zerolog.Logger
}

func NewPrivatBank(hc *http.Client, lg zerolog.Logger) *PrivatBank {
	if hc == nil {
		hc = defaultHTTPClient()
	}
	return newPrivatBank(hc, privatBankURL, lg)
}

func newPrivatBank(hc *http.Client, url string, lg zerolog.Logger) *PrivatBank {
	return &PrivatBank{hc: hc, url: url, lg: lg}
}

func (p *PrivatBank) Name() string { return "privatbank" }

type privatQuote struct {
	Ccy     string `json:"ccy"`
	BaseCcy string `json:"base_ccy"`
	Buy     string `json:"buy"`
	Sale    string `json:"sale"`
}

func (p *PrivatBank) Load(ctx context.Context) ([]domain.RateEntry, error) {
	p.lg.Debug().Str("url", p.url).Msg("loading privatbank rates")

	body, err := fetch(ctx, p.hc, p.Name(), p.url)
	if err != nil {
		return nil, err
	}

	var quotes []privatQuote
	if err := json.Unmarshal(body, &quotes); err != nil {
		return nil, &ParseError{Source: p.Name(), Err: err}
	}

	byCcy := make(map[domain.CurrencyCode]privatQuote, len(quotes))
	for _, q := range quotes {
		if q.BaseCcy != string(domain.CurrencyUAH) {
			continue
		}
		ccy := domain.CurrencyCode(q.Ccy)
		if ccy == "RUR" {
			ccy = domain.CurrencyRUB
		}
		byCcy[ccy] = q
	}

	entries := make([]domain.RateEntry, 0, 6)
	for _, ccy := range []domain.CurrencyCode{domain.CurrencyEUR, domain.CurrencyUSD, domain.CurrencyRUB} {
		quote, ok := byCcy[ccy]
		if !ok {
			return nil, &ParseError{Source: p.Name(), Err: fmt.Errorf("currency %s missing from listing", ccy)}
		}
		buy, err := parseDecimal(quote.Buy)
		if err != nil {
			return nil, &ParseError{Source: p.Name(), Err: fmt.Errorf("bad buy rate for %s: %w", ccy, err)}
		}
		entries = append(entries, domain.RateEntry{From: ccy, To: domain.CurrencyUAH, Rate: buy})
	}
	for _, ccy := range []domain.CurrencyCode{domain.CurrencyEUR, domain.CurrencyUSD, domain.CurrencyRUB} {
		sale, err := parseDecimal(byCcy[ccy].Sale)
		if err != nil {
			return nil, &ParseError{Source: p.Name(), Err: fmt.Errorf("bad sale rate for %s: %w", ccy, err)}
		}
		if sale.IsZero() {
			return nil, &ParseError{Source: p.Name(), Err: fmt.Errorf("zero sale rate for %s", ccy)}
		}
		entries = append(entries, domain.RateEntry{From: domain.CurrencyUAH, To: ccy, Rate: domain.InverseRate(sale)})
	}
	return entries, nil
}
