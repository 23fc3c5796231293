package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NotifyRule is a persisted template bundle describing when and how to
// notify. Template fields use {{ expr }} placeholders rendered against the
// incoming event payload; CaseRegex is a regular expression source stored
// verbatim and compiled lazily by the engine.
type NotifyRule struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	CaseRegex           string    `json:"case_regex"`
	CaseTemplate        string    `json:"case_template"`
	HeaderTemplate      string    `json:"header_template"`
	BodyTemplate        string    `json:"body_template"`
	SubscribersTemplate string    `json:"subscribers_template"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// NewNotifyRule assigns a fresh UUID and timestamps. Field validation is the
// transport layer's job; the constructor only normalizes whitespace.
func NewNotifyRule(name, caseRegex, caseTpl, headerTpl, bodyTpl, subscribersTpl string, now time.Time) *NotifyRule {
	return &NotifyRule{
		ID:                  uuid.NewString(),
		Name:                strings.TrimSpace(name),
		CaseRegex:           caseRegex,
		CaseTemplate:        caseTpl,
		HeaderTemplate:      headerTpl,
		BodyTemplate:        bodyTpl,
		SubscribersTemplate: subscribersTpl,
		CreatedAt:           now.UTC(),
		UpdatedAt:           now.UTC(),
	}
}

// RenderedNode is a rule after its templates were applied to one event.
// It lives for the duration of a single event dispatch.
type RenderedNode struct {
	ID          string
	Name        string
	CaseRegex   string
	Case        string
	Header      string
	Body        string
	Subscribers string
}
