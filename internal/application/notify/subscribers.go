package notify

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var (
	emailRegex   = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
	patternRegex = regexp.MustCompile(`^(group|user|store_merchants|store_managers):[\w-]+$`)

	// recursiveURLs spots subscriber-resolution paths inside a rendered case
	// string. A template expanding to one of these could drive the resolver
	// into itself, so such nodes are never matched.
	recursiveURLs = regexp.MustCompile(
		`/emails/groups/[\w-]+|/emails/users/[\w-]+|/emails/stores/[\w-]+/merchants|/emails/stores/[\w-]+/managers`)
)

// patternURL maps a subscriber specifier kind and id to its admin API path.
func patternURL(kind, id string) string {
	switch kind {
	case "group":
		return "/emails/groups/" + id
	case "user":
		return "/emails/users/" + id
	case "store_merchants":
		return "/emails/stores/" + id + "/merchants"
	case "store_managers":
		return "/emails/stores/" + id + "/managers"
	}
	return ""
}

// resolveSubscribers turns a rendered subscribers string into a deduplicated,
// sorted email list. Tokens are comma separated; a token is either a literal
// email or a kind:id specifier resolved over the admin API. Unrecognized
// tokens are discarded and resolution failures only cost their own token.
func (e *Engine) resolveSubscribers(ctx context.Context, subscribers string) []string {
	if e.cache != nil {
		if emails, ok := e.cache.Get(ctx, subscribers); ok {
			return emails
		}
	}

	tokens := make(map[string]struct{})
	for _, token := range strings.Split(subscribers, ",") {
		if token = strings.TrimSpace(token); token != "" {
			tokens[token] = struct{}{}
		}
	}

	found := make(map[string]struct{})
	var urls []string
	for token := range tokens {
		switch {
		case emailRegex.MatchString(token):
			found[token] = struct{}{}
		case patternRegex.MatchString(token):
			kind, id, _ := strings.Cut(token, ":")
			urls = append(urls, e.adminURL+patternURL(kind, id))
		default:
			e.lg.Debug().Str("token", token).Msg("subscriber token ignored")
		}
	}

	if len(urls) > 0 {
		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		for _, u := range urls {
			wg.Add(1)
			go func(u string) {
				defer wg.Done()
				emails, err := e.api.Emails(ctx, u)
				if err != nil {
					e.lg.Warn().Err(err).Str("url", u).Msg("request subscriber emails failed")
					return
				}
				mu.Lock()
				for _, em := range emails {
					found[em] = struct{}{}
				}
				mu.Unlock()
			}(u)
		}
		wg.Wait()
	}

	out := make([]string, 0, len(found))
	for em := range found {
		out = append(out, em)
	}
	sort.Strings(out)

	if e.cache != nil {
		e.cache.Set(ctx, subscribers, out)
	}
	return out
}
