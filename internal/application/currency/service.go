package currency

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/xopay/notify-service/internal/domain"
	"github.com/xopay/notify-service/internal/infrastructure/rates"
	"github.com/xopay/notify-service/internal/metrics"
)

// ReportSubject is the subject line of every exchange-rate report mail.
const ReportSubject = "XOPAY: Exchange rates update."

// APIClient is the authenticated JSON client used to push rates upstream.
type APIClient interface {
	Request(ctx context.Context, method, rawURL string, body any, params url.Values) (map[string]any, error)
}

// Reporter notifies the administrators about refresh outcomes.
type Reporter interface {
	Report(ctx context.Context, subject, text string)
}

// Service runs one exchange-rate refresh cycle: load every source, push the
// combined rates to the admin API and mail a report either way.
type Service struct {
	sources  []rates.Source
	api      APIClient
	reporter Reporter
	adminURL string
	lg       zerolog.Logger

	now func() time.Time
}

func NewService(sources []rates.Source, api APIClient, reporter Reporter, adminBaseURL string, lg zerolog.Logger) *Service {
	return &Service{
		sources:  sources,
		api:      api,
		reporter: reporter,
		adminURL: adminBaseURL,
		lg:       lg.With().Str("component", "currency").Logger(),
		now:      time.Now,
	}
}

// Refresh performs one full cycle. It never returns an error; both failure
// modes end in an admin report instead.
func (s *Service) Refresh(ctx context.Context) {
	s.lg.Debug().Msg("currency refresh started")

	entries, err := s.collect(ctx)
	if err != nil {
		metrics.RecordCurrencyRefresh("load_error")
		s.lg.Error().Err(err).Msg("currency load failed")
		s.reporter.Report(ctx, ReportSubject, s.errorReport("Error load currency:\n"+err.Error()))
		return
	}

	body := map[string]any{"update": entries}
	if _, err := s.api.Request(ctx, http.MethodPost, s.adminURL+"/currency/update", body, nil); err != nil {
		metrics.RecordCurrencyRefresh("push_error")
		s.lg.Error().Err(err).Msg("currency push failed")
		s.reporter.Report(ctx, ReportSubject, s.errorReport("Error update currency.\nWrong response from Admin Service.\n"+err.Error()))
		return
	}

	metrics.RecordCurrencyRefresh("success")
	s.lg.Info().Int("rates", len(entries)).Msg("currency rates updated")
	s.reporter.Report(ctx, ReportSubject, s.successReport(entries))
}

// collect runs every source concurrently and concatenates the results in
// source order. Any single failure fails the whole collection.
func (s *Service) collect(ctx context.Context) ([]domain.RateEntry, error) {
	results := make([][]domain.RateEntry, len(s.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range s.sources {
		i, src := i, src // per-iteration copies; go directive is below 1.22
		g.Go(func() error {
			entries, err := src.Load(gctx)
			if err != nil {
				return err
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []domain.RateEntry
	for _, entries := range results {
		all = append(all, entries...)
	}
	return all, nil
}

func (s *Service) successReport(entries []domain.RateEntry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s/%s:\t %s", e.From, e.To, e.Rate))
	}
	return fmt.Sprintf("Exchange rates was successfully updated.\n\n%s\n\nCommit time (UTC): %s",
		strings.Join(lines, "\n"), s.timestamp())
}

func (s *Service) errorReport(description string) string {
	return fmt.Sprintf("Failed to upgrade the exchange rate!\n\nProblem description:\n%s\n\nCommit time (UTC): %s",
		description, s.timestamp())
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format("2006-01-02 15:04:05")
}
