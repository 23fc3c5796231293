package notify

import (
	"context"

	"github.com/xopay/notify-service/internal/domain"
	"github.com/xopay/notify-service/internal/infrastructure/email"
)

// RuleStore is the persistent home of notify rules. Delete reports a
// not_found domain error for ids that are already gone.
type RuleStore interface {
	List(ctx context.Context) ([]domain.NotifyRule, error)
	Delete(ctx context.Context, id string) error
}

// AddressClient resolves an admin API email-list endpoint into addresses.
type AddressClient interface {
	Emails(ctx context.Context, rawURL string) ([]string, error)
}

// EmailSender delivers one message and returns when the attempt finished.
type EmailSender interface {
	Send(ctx context.Context, msg email.Message)
}

// SubscriberCache memoizes resolved subscriber strings. Implementations
// bound staleness with a TTL. A nil cache disables memoization.
type SubscriberCache interface {
	Get(ctx context.Context, key string) ([]string, bool)
	Set(ctx context.Context, key string, emails []string)
}
