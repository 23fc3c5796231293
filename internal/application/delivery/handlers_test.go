package delivery

import (
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xopay/notify-service/internal/infrastructure/email"
	"github.com/xopay/notify-service/internal/infrastructure/sms"
)

type fakeEmailSender struct {
	sent []email.Message
}

func (f *fakeEmailSender) Send(ctx context.Context, msg email.Message) {
	f.sent = append(f.sent, msg)
}

type fakeSMSSender struct {
	sent []sms.Message
}

func (f *fakeSMSSender) Send(ctx context.Context, msg sms.Message) {
	f.sent = append(f.sent, msg)
}

func TestEmailHandlerForwardsValidPayload(t *testing.T) {
	sender := &fakeEmailSender{}
	h := NewEmailHandler(sender, "notify_email", zerolog.New(io.Discard))

	err := h.Handle(context.Background(), map[string]any{
		"email_to": "dev@xopay.test",
		"subject":  "hello",
		"text":     "body",
	})

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, email.Message{To: "dev@xopay.test", Subject: "hello", Text: "body"}, sender.sent[0])
}

func TestEmailHandlerRejectsWrongKeySets(t *testing.T) {
	cases := map[string]map[string]any{
		"missing key": {"email_to": "a@b.c", "subject": "s"},
		"extra key":   {"email_to": "a@b.c", "subject": "s", "text": "t", "cc": "x@y.z"},
		"renamed key": {"to": "a@b.c", "subject": "s", "text": "t"},
		"non-string":  {"email_to": "a@b.c", "subject": "s", "text": 42},
		"empty":       {},
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			sender := &fakeEmailSender{}
			h := NewEmailHandler(sender, "notify_email", zerolog.New(io.Discard))

			err := h.Handle(context.Background(), payload)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "skip notify")
			assert.Empty(t, sender.sent)
		})
	}
}

func TestSMSHandlerForwardsValidPayload(t *testing.T) {
	sender := &fakeSMSSender{}
	h := NewSMSHandler(sender, "notify_sms", zerolog.New(io.Discard))

	err := h.Handle(context.Background(), map[string]any{"phone": "37120000000", "text": "ping"})

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, sms.Message{Phone: "37120000000", Text: "ping"}, sender.sent[0])
}

func TestSMSHandlerRejectsWrongKeySets(t *testing.T) {
	cases := map[string]map[string]any{
		"missing text": {"phone": "371"},
		"extra key":    {"phone": "371", "text": "t", "priority": "high"},
		"non-string":   {"phone": 371.0, "text": "t"},
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			sender := &fakeSMSSender{}
			h := NewSMSHandler(sender, "notify_sms", zerolog.New(io.Discard))

			err := h.Handle(context.Background(), payload)
			require.Error(t, err)
			assert.Empty(t, sender.sent)
		})
	}
}

func TestQueueNamesComeFromConfiguration(t *testing.T) {
	eh := NewEmailHandler(&fakeEmailSender{}, "custom_email_queue", zerolog.New(io.Discard))
	sh := NewSMSHandler(&fakeSMSSender{}, "custom_sms_queue", zerolog.New(io.Discard))

	assert.Equal(t, "custom_email_queue", eh.Queue())
	assert.Equal(t, "custom_sms_queue", sh.Queue())
}
