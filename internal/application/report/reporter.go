package report

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/xopay/notify-service/internal/infrastructure/email"
)

// EmailFetcher resolves an address-list endpoint into plain addresses.
type EmailFetcher interface {
	Emails(ctx context.Context, rawURL string) ([]string, error)
}

// MailSender delivers one message best effort.
type MailSender interface {
	Send(ctx context.Context, msg email.Message)
}

// Reporter mails operational notices to the platform administrators. It is
// fire and forget end to end: a failed address lookup drops the report with
// a warning and failed deliveries are already swallowed by the mail layer,
// so callers never see an error from here.
type Reporter struct {
	api     EmailFetcher
	mail    MailSender
	baseURL string
	lg      zerolog.Logger
}

func NewReporter(api EmailFetcher, mail MailSender, adminBaseURL string, lg zerolog.Logger) *Reporter {
	return &Reporter{
		api:     api,
		mail:    mail,
		baseURL: adminBaseURL,
		lg:      lg.With().Str("component", "admin_reporter").Logger(),
	}
}

// Report sends subject and text to every administrator in parallel and
// returns once all delivery attempts have finished.
func (r *Reporter) Report(ctx context.Context, subject, text string) {
	emails, err := r.api.Emails(ctx, r.baseURL+"/admins_emails")
	if err != nil {
		r.lg.Warn().Err(err).Str("subject", subject).Msg("report dropped: admin emails unavailable")
		return
	}

	var wg sync.WaitGroup
	for _, to := range emails {
		wg.Add(1)
		go func(to string) {
			defer wg.Done()
			r.mail.Send(ctx, email.Message{To: to, Subject: subject, Text: text})
		}(to)
	}
	wg.Wait()
}
