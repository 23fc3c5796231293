package notify

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/rs/zerolog"

	"github.com/xopay/notify-service/internal/domain"
	"github.com/xopay/notify-service/internal/infrastructure/email"
	"github.com/xopay/notify-service/internal/metrics"
)

// Config carries the engine's queue binding and the admin API base URL used
// for subscriber resolution.
type Config struct {
	Queue        string
	AdminBaseURL string
}

// Engine owns the in-memory rule cache and runs the per-event pipeline:
// render every rule against the event, match the rendered case against the
// rule's regex, then fan notifications out to the resolved subscribers.
// Broken rules are quarantined on sight: dropped from the cache and deleted
// from the store so they never fire again.
type Engine struct {
	store RuleStore
	api   AddressClient
	mail  EmailSender
	cache SubscriberCache

	queue    string
	adminURL string
	lg       zerolog.Logger
	renderer *renderer

	mu    sync.RWMutex
	rules map[string]domain.NotifyRule

	regexMu  sync.Mutex
	compiled map[string]*regexp.Regexp
}

func NewEngine(cfg Config, store RuleStore, api AddressClient, mail EmailSender, cache SubscriberCache, lg zerolog.Logger) *Engine {
	return &Engine{
		store:    store,
		api:      api,
		mail:     mail,
		cache:    cache,
		queue:    cfg.Queue,
		adminURL: cfg.AdminBaseURL,
		lg:       lg.With().Str("component", "notify_engine").Logger(),
		renderer: newRenderer(),
		rules:    make(map[string]domain.NotifyRule),
		compiled: make(map[string]*regexp.Regexp),
	}
}

func (e *Engine) Queue() string { return e.queue }

// Reload replaces the rule cache with the store's current contents. Readers
// observe either the old or the new snapshot, never a mix.
func (e *Engine) Reload(ctx context.Context) error {
	rules, err := e.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load notify rules: %w", err)
	}

	next := make(map[string]domain.NotifyRule, len(rules))
	for _, r := range rules {
		next[r.ID] = r
	}

	e.mu.Lock()
	e.rules = next
	e.mu.Unlock()

	e.lg.Info().Int("rules", len(rules)).Msg("notify rules loaded")
	return nil
}

// RuleCount reports the cached rule count.
func (e *Engine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// Handle processes one event from the request queue: matched rules dispatch
// concurrently and Handle returns after every send attempt completed.
func (e *Engine) Handle(ctx context.Context, msg map[string]any) error {
	nodes := e.matchedNodes(ctx, msg)
	if len(nodes) == 0 {
		e.lg.Debug().Msg("no notification rules matched")
		return nil
	}

	var wg sync.WaitGroup
	for _, node := range nodes {
		wg.Add(1)
		go func(node domain.RenderedNode) {
			defer wg.Done()
			e.dispatch(ctx, node)
		}(node)
	}
	wg.Wait()
	return nil
}

// matchedNodes renders every cached rule against the event and keeps the
// nodes whose case matches their regex. Render and compile failures
// quarantine the offending rule; a recursive subscriber URL in the rendered
// case only skips the node.
func (e *Engine) matchedNodes(ctx context.Context, values map[string]any) []domain.RenderedNode {
	var out []domain.RenderedNode
	for _, rule := range e.snapshot() {
		node, err := e.renderRule(rule, values)
		if err != nil {
			e.lg.Warn().Err(err).Str("rule", rule.Name).Msg("rule template render error")
			e.quarantine(ctx, rule)
			continue
		}

		re, err := e.compiledRegex(rule.CaseRegex)
		if err != nil {
			e.lg.Warn().Err(err).Str("rule", rule.Name).Msg("rule case regex error")
			e.quarantine(ctx, rule)
			continue
		}

		if recursiveURLs.MatchString(node.Case) {
			e.lg.Warn().Str("rule", rule.Name).Str("case", node.Case).
				Msg("recursive subscriber url in rendered case, node skipped")
			continue
		}

		if re.MatchString(node.Case) {
			out = append(out, node)
		}
	}
	return out
}

func (e *Engine) snapshot() []domain.NotifyRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.NotifyRule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r)
	}
	return out
}

func (e *Engine) renderRule(rule domain.NotifyRule, values map[string]any) (domain.RenderedNode, error) {
	node := domain.RenderedNode{ID: rule.ID, Name: rule.Name, CaseRegex: rule.CaseRegex}

	var err error
	if node.Case, err = e.renderer.render(rule.CaseTemplate, values); err != nil {
		return node, fmt.Errorf("case template: %w", err)
	}
	if node.Header, err = e.renderer.render(rule.HeaderTemplate, values); err != nil {
		return node, fmt.Errorf("header template: %w", err)
	}
	if node.Body, err = e.renderer.render(rule.BodyTemplate, values); err != nil {
		return node, fmt.Errorf("body template: %w", err)
	}
	if node.Subscribers, err = e.renderer.render(rule.SubscribersTemplate, values); err != nil {
		return node, fmt.Errorf("subscribers template: %w", err)
	}
	return node, nil
}

// compiledRegex compiles and memoizes a case regex. The stored source is
// anchored at the start of the rendered case, trailing content does not
// defeat a match unless the source says so.
func (e *Engine) compiledRegex(source string) (*regexp.Regexp, error) {
	e.regexMu.Lock()
	defer e.regexMu.Unlock()

	if re, ok := e.compiled[source]; ok {
		return re, nil
	}
	re, err := regexp.Compile("^(?:" + source + ")")
	if err != nil {
		return nil, err
	}
	e.compiled[source] = re
	return re, nil
}

// quarantine drops a broken rule from the cache, its regex from the memo
// map and the row from the store. Racing with an admin-side delete is fine,
// a row that is already gone is not an error here.
func (e *Engine) quarantine(ctx context.Context, rule domain.NotifyRule) {
	e.lg.Warn().Str("rule_id", rule.ID).Str("rule", rule.Name).Msg("remove bad notify rule")
	metrics.RecordRuleQuarantined()

	e.mu.Lock()
	delete(e.rules, rule.ID)
	e.mu.Unlock()

	e.regexMu.Lock()
	delete(e.compiled, rule.CaseRegex)
	e.regexMu.Unlock()

	if err := e.store.Delete(ctx, rule.ID); err != nil && !domain.IsNotFound(err) {
		e.lg.Error().Err(err).Str("rule_id", rule.ID).Msg("remove rule from store failed")
	}
}

// dispatch resolves one node's subscribers and mails all of them, returning
// after every delivery attempt finished.
func (e *Engine) dispatch(ctx context.Context, node domain.RenderedNode) {
	emails := e.resolveSubscribers(ctx, node.Subscribers)
	if len(emails) == 0 {
		e.lg.Warn().Str("rule", node.Name).Str("subscribers", node.Subscribers).
			Msg("no emails resolved for notification")
		return
	}

	e.lg.Info().Str("rule", node.Name).Int("recipients", len(emails)).Msg("send notification")
	metrics.RecordNotificationDispatched()

	var wg sync.WaitGroup
	for _, to := range emails {
		wg.Add(1)
		go func(to string) {
			defer wg.Done()
			e.mail.Send(ctx, email.Message{To: to, Subject: node.Header, Text: node.Body})
		}(to)
	}
	wg.Wait()
}
