package rates

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xopay/notify-service/internal/domain"
)

const alfaFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>currency</title>
    <link>https://alfabank.ru</link>
    <description>rates</description>
    <item>
      <title>rates</title>
      <description><![CDATA[
        <table>
          <tr><td id="ЕвроnoncashBuy">60,4950</td><td id="ЕвроnoncashSell">61,9050</td></tr>
          <tr><td id="Доллар СШАnoncashBuy">55,1000</td><td id="Доллар СШАnoncashSell">56,2000</td></tr>
        </table>
      ]]></description>
    </item>
  </channel>
</rss>`

func alfaFromFixture(t *testing.T, body string, status int) *AlfaBank {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return newAlfaBank(srv.Client(), srv.URL, zerolog.New(io.Discard))
}

func TestAlfaBankLoad(t *testing.T) {
	a := alfaFromFixture(t, alfaFixture, http.StatusOK)

	entries, err := a.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, domain.CurrencyEUR, entries[0].From)
	assert.Equal(t, domain.CurrencyRUB, entries[0].To)
	assert.True(t, entries[0].Rate.Equal(decimal.RequireFromString("60.4950")))

	assert.Equal(t, domain.CurrencyUSD, entries[1].From)
	assert.True(t, entries[1].Rate.Equal(decimal.RequireFromString("55.1")))

	assert.Equal(t, domain.CurrencyRUB, entries[2].From)
	assert.Equal(t, domain.CurrencyEUR, entries[2].To)
	assert.Equal(t, "0.0161538", entries[2].Rate.String())

	assert.Equal(t, domain.CurrencyUSD, entries[3].To)
	assert.Equal(t, "0.0177936", entries[3].Rate.String())
}

func TestAlfaBankLoadErrorOnStatus(t *testing.T) {
	a := alfaFromFixture(t, "", http.StatusBadGateway)

	_, err := a.Load(context.Background())
	require.Error(t, err)

	var loadErr *LoadError
	assert.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "alfabank", loadErr.Source)
}

func TestAlfaBankParseErrorOnMissingCell(t *testing.T) {
	const missingUSD = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>currency</title>
    <item>
      <title>rates</title>
      <description><![CDATA[<table><tr><td id="ЕвроnoncashBuy">60,49</td></tr></table>]]></description>
    </item>
  </channel>
</rss>`
	a := alfaFromFixture(t, missingUSD, http.StatusOK)

	_, err := a.Load(context.Background())
	require.Error(t, err)

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestAlfaBankParseErrorOnBadFeed(t *testing.T) {
	a := alfaFromFixture(t, "definitely not a feed", http.StatusOK)

	_, err := a.Load(context.Background())
	require.Error(t, err)

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}
