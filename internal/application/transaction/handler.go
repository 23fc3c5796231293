package transaction

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/xopay/notify-service/internal/metrics"
)

// ReportSubject is the subject line of payment-update failure mails.
const ReportSubject = "XOPAY: Payment update error."

const maxRetries = 5

type APIClient interface {
	Request(ctx context.Context, method, rawURL string, body any, params url.Values) (map[string]any, error)
}

type Reporter interface {
	Report(ctx context.Context, subject, text string)
}

// Handler pushes payment status changes from the transaction queue to the
// client API. The first attempt happens inline; on failure the message is
// already acked, so up to five more attempts run as a background task with
// exponentially growing sleeps. The admins get one mail after the first
// failure and one more if every attempt burned out.
type Handler struct {
	api       APIClient
	reporter  Reporter
	queue     string
	clientURL string
	lg        zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) bool
	now   func() time.Time
	wg    sync.WaitGroup
}

func NewHandler(api APIClient, reporter Reporter, queue, clientBaseURL string, lg zerolog.Logger) *Handler {
	return &Handler{
		api:       api,
		reporter:  reporter,
		queue:     queue,
		clientURL: clientBaseURL,
		lg:        lg.With().Str("component", "transaction_handler").Logger(),
		sleep:     sleepOrDone,
		now:       time.Now,
	}
}

func (h *Handler) Queue() string { return h.queue }

// Wait blocks until all background retry tasks have finished.
func (h *Handler) Wait() { h.wg.Wait() }

func (h *Handler) Handle(ctx context.Context, msg map[string]any) error {
	payID, _ := msg["id"].(string)
	status, _ := msg["status"].(string)
	if payID == "" || status == "" {
		metrics.RecordMessageDropped(h.queue, "bad_schema")
		return fmt.Errorf("missing required fields in transaction message %v, skip notify", msg)
	}

	var redirect any
	if v, ok := msg["redirect_url"].(string); ok {
		redirect = v
	}

	reqURL := h.clientURL + "/payment/" + payID
	body := map[string]any{"status": status, "redirect_url": redirect}

	h.lg.Info().Str("payment_id", payID).Str("status", status).Msg("update payment status")

	if _, err := h.api.Request(ctx, http.MethodPut, reqURL, body, nil); err != nil {
		h.lg.Error().Err(err).Str("payment_id", payID).Msg("payment update failed, retrying in the background")
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.retryLoop(ctx, payID, reqURL, body, err)
		}()
		return nil
	}

	h.lg.Info().Str("payment_id", payID).Str("status", status).Msg("payment updated successfully")
	return nil
}

// retryLoop reports the initial failure, then walks the 2^k sleep ladder.
// Retry k sleeps 2, 4, 8, 16 and 32 seconds before its attempt. The ladder
// aborts between sleeps when ctx is canceled.
func (h *Handler) retryLoop(ctx context.Context, payID, reqURL string, body map[string]any, firstErr error) {
	h.reporter.Report(ctx, ReportSubject, h.firstFailureText(payID, firstErr))

	errs := []string{firstErr.Error()}
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if !h.sleep(ctx, time.Duration(1<<attempt)*time.Second) {
			h.lg.Warn().Str("payment_id", payID).Msg("payment retry canceled on shutdown")
			return
		}

		metrics.RecordPaymentRetry()
		h.lg.Info().Str("payment_id", payID).
			Int("attempt", attempt+1).Int("max", maxRetries+1).
			Msg("update payment status")

		if _, err := h.api.Request(ctx, http.MethodPut, reqURL, body, nil); err != nil {
			errs = append(errs, err.Error())
			h.lg.Error().Err(err).Str("payment_id", payID).
				Int("attempt", attempt+1).Int("max", maxRetries+1).
				Msg("payment update failed, retry after timeout")
			continue
		}

		h.lg.Info().Str("payment_id", payID).Msg("payment updated successfully")
		return
	}

	h.lg.Error().Str("payment_id", payID).Msg("payment not updated, all attempts failed")
	h.reporter.Report(ctx, ReportSubject, h.finalFailureText(payID, errs))
}

func (h *Handler) firstFailureText(payID string, err error) string {
	return fmt.Sprintf("Error update payment %s status!\n\nProblem description:\n%s\n\nUpdate will be retried in the background.\n\nTime (UTC): %s",
		payID, err, h.timestamp())
}

func (h *Handler) finalFailureText(payID string, errs []string) string {
	var b strings.Builder
	for i, e := range errs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, e)
	}
	return fmt.Sprintf("Payment %s NOT UPDATED after %d attempts!\n\nAttempt errors:\n%s\nTime (UTC): %s",
		payID, len(errs), b.String(), h.timestamp())
}

func (h *Handler) timestamp() string {
	return h.now().UTC().Format("2006-01-02 15:04:05")
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
