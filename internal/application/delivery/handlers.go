package delivery

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/xopay/notify-service/internal/infrastructure/email"
	"github.com/xopay/notify-service/internal/infrastructure/sms"
	"github.com/xopay/notify-service/internal/metrics"
)

type EmailSender interface {
	Send(ctx context.Context, msg email.Message)
}

type SMSSender interface {
	Send(ctx context.Context, msg sms.Message)
}

// EmailHandler forwards email queue payloads to the mail sender. Validation
// is strict: the payload key set must be exactly email_to, subject and text,
// all strings. Anything else is dropped.
type EmailHandler struct {
	sender EmailSender
	queue  string
	lg     zerolog.Logger
}

func NewEmailHandler(sender EmailSender, queue string, lg zerolog.Logger) *EmailHandler {
	return &EmailHandler{
		sender: sender,
		queue:  queue,
		lg:     lg.With().Str("component", "email_handler").Logger(),
	}
}

func (h *EmailHandler) Queue() string { return h.queue }

func (h *EmailHandler) Handle(ctx context.Context, msg map[string]any) error {
	fields, ok := stringFields(msg, "email_to", "subject", "text")
	if !ok {
		metrics.RecordMessageDropped(h.queue, "bad_schema")
		return fmt.Errorf("wrong fields in email queue request %v, skip notify", msg)
	}

	h.sender.Send(ctx, email.Message{
		To:      fields["email_to"],
		Subject: fields["subject"],
		Text:    fields["text"],
	})
	return nil
}

// SMSHandler is the sms queue twin of EmailHandler with the key set
// phone and text.
type SMSHandler struct {
	sender SMSSender
	queue  string
	lg     zerolog.Logger
}

func NewSMSHandler(sender SMSSender, queue string, lg zerolog.Logger) *SMSHandler {
	return &SMSHandler{
		sender: sender,
		queue:  queue,
		lg:     lg.With().Str("component", "sms_handler").Logger(),
	}
}

func (h *SMSHandler) Queue() string { return h.queue }

func (h *SMSHandler) Handle(ctx context.Context, msg map[string]any) error {
	fields, ok := stringFields(msg, "phone", "text")
	if !ok {
		metrics.RecordMessageDropped(h.queue, "bad_schema")
		return fmt.Errorf("wrong fields in sms queue request %v, skip notify", msg)
	}

	h.sender.Send(ctx, sms.Message{Phone: fields["phone"], Text: fields["text"]})
	return nil
}

// stringFields checks that msg holds exactly the wanted keys with string
// values and returns them. Extra keys, missing keys and non-string values
// all fail the check.
func stringFields(msg map[string]any, want ...string) (map[string]string, bool) {
	if len(msg) != len(want) {
		return nil, false
	}
	out := make(map[string]string, len(want))
	for _, k := range want {
		v, present := msg[k]
		if !present {
			return nil, false
		}
		s, isString := v.(string)
		if !isString {
			return nil, false
		}
		out[k] = s
	}
	return out, true
}
