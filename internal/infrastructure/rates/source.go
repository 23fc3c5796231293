package rates

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xopay/notify-service/internal/domain"
)

// Source yields normalized exchange rates from one provider.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]domain.RateEntry, error)
}

// LoadError marks fetch-side failures: transport errors and non-200 pages.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string { return fmt.Sprintf("%s: load: %v", e.Source, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// ParseError marks structural failures in an otherwise fetched document.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string { return fmt.Sprintf("%s: parse: %v", e.Source, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// fetch downloads a public page. The providers are external sites, so no
// auth token is attached.
func fetch(ctx context.Context, hc *http.Client, source, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &LoadError{Source: source, Err: fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	return body, nil
}

// parseDecimal accepts both dot and comma decimal separators; bank pages in
// this region publish either.
func parseDecimal(raw string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	return decimal.NewFromString(s)
}
