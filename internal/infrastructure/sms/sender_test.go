package sms

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newCapturedSender() (*Sender, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewSender(2, zerolog.New(&buf)), &buf
}

func TestSendNormalizesPhone(t *testing.T) {
	s, buf := newCapturedSender()
	defer s.Stop()

	s.Send(context.Background(), Message{Phone: "380501234567", Text: "hello"})

	assert.Contains(t, buf.String(), `"+380501234567"`)
}

func TestSendKeepsExistingPlus(t *testing.T) {
	s, buf := newCapturedSender()
	defer s.Stop()

	s.Send(context.Background(), Message{Phone: "+380501234567", Text: "hello"})

	assert.Contains(t, buf.String(), `"+380501234567"`)
	assert.NotContains(t, buf.String(), "++380501234567")
}

func TestSendDropsLongMessages(t *testing.T) {
	s, buf := newCapturedSender()
	defer s.Stop()

	s.Send(context.Background(), Message{Phone: "+1", Text: strings.Repeat("a", 127)})

	assert.Contains(t, buf.String(), "too long")
	assert.NotContains(t, buf.String(), "not implemented")
}

func TestSendAcceptsBoundaryLength(t *testing.T) {
	s, buf := newCapturedSender()
	defer s.Stop()

	s.Send(context.Background(), Message{Phone: "+1", Text: strings.Repeat("a", 126)})

	assert.NotContains(t, buf.String(), "too long")
	assert.Contains(t, buf.String(), "not implemented")
}
