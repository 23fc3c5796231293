package rates

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/xopay/notify-service/internal/domain"
)

const alfaBankURL = "https://alfabank.ru/_/rss/_currency.html"

// AlfaBank scrapes the bank's RSS rate feed. The feed items carry an HTML
// rate table in CDATA; the noncash buy/sell cells for EUR and USD give the
// RUB pairs. Cell ids are the Russian labels the page has used for years.
type AlfaBank struct {
	hc  *http.Client
	url string
	lg  zerolog.Logger
}

func NewAlfaBank(hc *http.Client, lg zerolog.Logger) *AlfaBank {
	if hc == nil {
		hc = defaultHTTPClient()
	}
	return newAlfaBank(hc, alfaBankURL, lg)
}

func newAlfaBank(hc *http.Client, url string, lg zerolog.Logger) *AlfaBank {
	return &AlfaBank{hc: hc, url: url, lg: lg}
}

func (a *AlfaBank) Name() string { return "alfabank" }

func (a *AlfaBank) Load(ctx context.Context) ([]domain.RateEntry, error) {
	a.lg.Debug().Str("url", a.url).Msg("loading alfabank rates")

	body, err := fetch(ctx, a.hc, a.Name(), a.url)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{Source: a.Name(), Err: fmt.Errorf("feed: %w", err)}
	}

	var table strings.Builder
	for _, item := range feed.Items {
		table.WriteString(item.Description)
		table.WriteString(item.Content)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(table.String()))
	if err != nil {
		return nil, &ParseError{Source: a.Name(), Err: err}
	}

	eurBuy, err := a.cell(doc, "ЕвроnoncashBuy")
	if err != nil {
		return nil, err
	}
	usdBuy, err := a.cell(doc, "Доллар СШАnoncashBuy")
	if err != nil {
		return nil, err
	}
	eurSell, err := a.cell(doc, "ЕвроnoncashSell")
	if err != nil {
		return nil, err
	}
	usdSell, err := a.cell(doc, "Доллар СШАnoncashSell")
	if err != nil {
		return nil, err
	}
	if eurSell.IsZero() || usdSell.IsZero() {
		return nil, &ParseError{Source: a.Name(), Err: fmt.Errorf("zero sell rate in table")}
	}

	return []domain.RateEntry{
		{From: domain.CurrencyEUR, To: domain.CurrencyRUB, Rate: eurBuy},
		{From: domain.CurrencyUSD, To: domain.CurrencyRUB, Rate: usdBuy},
		{From: domain.CurrencyRUB, To: domain.CurrencyEUR, Rate: domain.InverseRate(eurSell)},
		{From: domain.CurrencyRUB, To: domain.CurrencyUSD, Rate: domain.InverseRate(usdSell)},
	}, nil
}

func (a *AlfaBank) cell(doc *goquery.Document, id string) (decimal.Decimal, error) {
	sel := doc.Find(fmt.Sprintf("td[id=%q]", id))
	if sel.Length() == 0 {
		return decimal.Decimal{}, &ParseError{Source: a.Name(), Err: fmt.Errorf("cell %q not found in rate table", id)}
	}
	d, err := parseDecimal(sel.First().Text())
	if err != nil {
		return decimal.Decimal{}, &ParseError{Source: a.Name(), Err: fmt.Errorf("cell %q: %w", id, err)}
	}
	return d, nil
}
