package email

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMsgUsesDefaultSender(t *testing.T) {
	m, err := buildMsg(Message{To: "a@x.io", Subject: "s", Text: "t"}, "noreply@xopay.com")
	require.NoError(t, err)
	require.NotNil(t, m)
}

func TestBuildMsgRejectsBadAddresses(t *testing.T) {
	_, err := buildMsg(Message{To: "not-an-address", Subject: "s"}, "noreply@xopay.com")
	assert.Error(t, err)

	_, err = buildMsg(Message{To: "a@x.io"}, "")
	assert.Error(t, err)
}

func TestSendSwallowsTransportFailure(t *testing.T) {
	s := NewSender(Config{
		Host:          "127.0.0.1",
		Port:          1, // nothing listens here
		DefaultSender: "noreply@xopay.com",
		Workers:       2,
	}, zerolog.New(io.Discard))
	defer s.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Must return without error and without panicking.
	s.Send(ctx, Message{To: "a@x.io", Subject: "s", Text: "t"})
}

func TestSendBoundsConcurrentSessions(t *testing.T) {
	s := NewSender(Config{
		Host:          "127.0.0.1",
		Port:          1,
		DefaultSender: "noreply@xopay.com",
		Workers:       2,
	}, zerolog.New(io.Discard))
	defer s.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Send(ctx, Message{To: "a@x.io", Subject: "s", Text: "t"})
		}()
	}
	wg.Wait()
}

func TestSendAfterStopDoesNotBlock(t *testing.T) {
	s := NewSender(Config{Host: "127.0.0.1", Port: 1, DefaultSender: "noreply@xopay.com"}, zerolog.New(io.Discard))
	s.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Send(context.Background(), Message{To: "a@x.io"})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send blocked after Stop")
	}
}
