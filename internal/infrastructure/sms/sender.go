package sms

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/xopay/notify-service/internal/metrics"
	"github.com/xopay/notify-service/internal/pkg/workerpool"
)

// maxLen is the single-part GSM budget the gateway accepts.
const maxLen = 127

// Message is one outbound SMS.
type Message struct {
	Phone string // international format; "+" is prepended when missing
	Text  string
}

// Sender shares the mail sender's pool shape. Delivery itself is a stub
// until a gateway contract is signed; normalization and the length guard are
// live so queue producers get real feedback in the logs.
type Sender struct {
	lg   zerolog.Logger
	pool *workerpool.Pool
}

func NewSender(workers int, lg zerolog.Logger) *Sender {
	if workers <= 0 {
		workers = 4
	}
	return &Sender{
		lg:   lg,
		pool: workerpool.New(workers),
	}
}

// Send normalizes and queues one SMS. Messages of maxLen or more characters
// are dropped with an error; there is no internal retry.
func (s *Sender) Send(ctx context.Context, msg Message) {
	if utf8.RuneCountInString(msg.Text) >= maxLen {
		metrics.RecordSMSDropped()
		s.lg.Error().Str("phone", msg.Phone).Int("length", utf8.RuneCountInString(msg.Text)).
			Msg("sms message too long, not sent")
		return
	}

	phone := msg.Phone
	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}

	accepted := s.pool.Do(func() {
		s.deliver(ctx, phone, msg.Text)
	})
	if !accepted {
		s.lg.Warn().Str("phone", phone).Msg("sms dropped: sender stopped")
	}
}

func (s *Sender) Stop() {
	s.pool.Stop()
}

func (s *Sender) deliver(_ context.Context, phone, text string) {
	s.lg.Warn().Str("phone", phone).Int("length", utf8.RuneCountInString(text)).
		Msg("sms delivery not implemented, message discarded")
}
