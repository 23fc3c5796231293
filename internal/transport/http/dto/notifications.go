package dto

import (
	"time"

	"github.com/xopay/notify-service/internal/domain"
)

// RuleResp is the stable API shape of one notify rule.
type RuleResp struct {
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

type ListResp struct {
	Notifications []RuleResp `json:"notifications"`
}

type CreateRuleReq struct {
	Name                string `json:"name" validate:"required,min=4,max=50"`
	CaseRegex           string `json:"case_regex" validate:"required,min=2,max=255"`
	CaseTemplate        string `json:"case_template" validate:"required,min=2,max=255"`
	HeaderTemplate      string `json:"header_template" validate:"required,min=2,max=255"`
	BodyTemplate        string `json:"body_template" validate:"required,min=2,max=255"`
	SubscribersTemplate string `json:"subscribers_template" validate:"required,min=2,max=255"`
}

// UpdateRuleReq is a partial update: absent fields keep their stored value.
type UpdateRuleReq struct {
	Name                *string `json:"name" validate:"omitempty,min=4,max=50"`
	CaseRegex           *string `json:"case_regex" validate:"omitempty,min=2,max=255"`
	CaseTemplate        *string `json:"case_template" validate:"omitempty,min=2,max=255"`
	HeaderTemplate      *string `json:"header_template" validate:"omitempty,min=2,max=255"`
	BodyTemplate        *string `json:"body_template" validate:"omitempty,min=2,max=255"`
	SubscribersTemplate *string `json:"subscribers_template" validate:"omitempty,min=2,max=255"`
}

func ToRuleResp(n *domain.NotifyRule) RuleResp {
	return RuleResp{
		ID:                  n.ID,
		Name:                n.Name,
		CaseRegex:           n.CaseRegex,
		CaseTemplate:        n.CaseTemplate,
		HeaderTemplate:      n.HeaderTemplate,
		BodyTemplate:        n.BodyTemplate,
		SubscribersTemplate: n.SubscribersTemplate,
		CreatedAt:           n.CreatedAt,
		UpdatedAt:           n.UpdatedAt,
	}
}
