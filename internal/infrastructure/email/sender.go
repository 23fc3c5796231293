package email

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"github.com/xopay/notify-service/internal/metrics"
	"github.com/xopay/notify-service/internal/pkg/workerpool"
)

// Message is one outbound plain-text mail.
type Message struct {
	From    string // default sender when empty
	To      string
	Subject string
	Text    string
}

type Config struct {
	Host          string
	Port          int
	Username      string
	Password      string
	DefaultSender string
	Workers       int
}

// Sender performs blocking SMTP sessions on a small fixed pool so that at
// most Workers sessions run at once. Email is best-effort: transport
// failures are logged and swallowed, there is no internal retry.
type Sender struct {
	lg   zerolog.Logger
	pool *workerpool.Pool

	host string
	port int
	user string
	pass string
	from string
}

func NewSender(cfg Config, lg zerolog.Logger) *Sender {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Sender{
		lg:   lg,
		pool: workerpool.New(workers),
		host: cfg.Host,
		port: cfg.Port,
		user: cfg.Username,
		pass: cfg.Password,
		from: cfg.DefaultSender,
	}
}

// Send queues the mail on the pool and waits for that delivery attempt to
// finish. Callers wanting fan-out run Send in their own goroutines; the
// pool still bounds how many SMTP sessions are open.
func (s *Sender) Send(ctx context.Context, msg Message) {
	accepted := s.pool.Do(func() {
		if err := s.deliver(ctx, msg); err != nil {
			metrics.RecordEmailFailed()
			s.lg.Error().Err(err).Str("to", msg.To).Str("subject", msg.Subject).Msg("mail send failed")
			return
		}
		metrics.RecordEmailSent()
		s.lg.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("mail sent")
	})
	if !accepted {
		s.lg.Warn().Str("to", msg.To).Str("subject", msg.Subject).Msg("mail dropped: sender stopped")
	}
}

// Stop drains queued deliveries and shuts the pool down.
func (s *Sender) Stop() {
	s.pool.Stop()
}

func (s *Sender) deliver(ctx context.Context, msg Message) error {
	m, err := buildMsg(msg, s.from)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(s.port),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}
	if s.user != "" {
		opts = append(opts, mail.WithSMTPAuth(mail.SMTPAuthLogin), mail.WithUsername(s.user), mail.WithPassword(s.pass))
	}

	c, err := mail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client init: %w", err)
	}
	return c.DialAndSendWithContext(ctx, m)
}

func buildMsg(msg Message, defaultFrom string) (*mail.Msg, error) {
	from := msg.From
	if from == "" {
		from = defaultFrom
	}

	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", from, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid to address %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	return m, nil
}
