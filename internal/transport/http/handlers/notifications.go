package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/xopay/notify-service/internal/domain"
	"github.com/xopay/notify-service/internal/transport/http/dto"
	"github.com/xopay/notify-service/internal/transport/http/middleware"
	"github.com/xopay/notify-service/internal/transport/http/response"
	"github.com/xopay/notify-service/internal/transport/http/validate"
)

// RuleStore is the persistence surface the admin API needs.
type RuleStore interface {
	Create(ctx context.Context, n *domain.NotifyRule) error
	GetByID(ctx context.Context, id string) (*domain.NotifyRule, error)
	List(ctx context.Context) ([]domain.NotifyRule, error)
	Update(ctx context.Context, n *domain.NotifyRule) error
	Delete(ctx context.Context, id string) error
}

// Reloader refreshes the notify engine's rule cache after a mutation.
type Reloader interface {
	Reload(ctx context.Context) error
}

type RulesHandler struct {
	store  RuleStore
	engine Reloader
	lg     zerolog.Logger
	now    func() time.Time
}

func NewRulesHandler(store RuleStore, engine Reloader, lg zerolog.Logger) *RulesHandler {
	return &RulesHandler{
		store:  store,
		engine: engine,
		lg:     lg.With().Str("component", "admin_api").Logger(),
		now:    time.Now,
	}
}

func (h *RulesHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.List(r.Context())
	if err != nil {
		response.Err(w, err)
		return
	}

	out := make([]dto.RuleResp, 0, len(items))
	for i := range items {
		out = append(out, dto.ToRuleResp(&items[i]))
	}
	response.JSON(w, http.StatusOK, dto.ListResp{Notifications: out})
}

func (h *RulesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateRuleReq
	if err := validate.DecodeJSON(r, &req); err != nil {
		response.Err(w, domain.ErrValidation("wrong request body"))
		return
	}
	if err := validate.Struct(req); err != nil {
		response.Err(w, err)
		return
	}

	rule := domain.NewNotifyRule(
		req.Name, req.CaseRegex, req.CaseTemplate,
		req.HeaderTemplate, req.BodyTemplate, req.SubscribersTemplate,
		h.now(),
	)
	if err := h.store.Create(r.Context(), rule); err != nil {
		response.Err(w, err)
		return
	}
	if err := h.engine.Reload(r.Context()); err != nil {
		response.Err(w, err)
		return
	}

	h.lg.Info().Str("rule_id", rule.ID).Str("user", middleware.UserID(r)).Msg("notify rule created")
	response.JSON(w, http.StatusCreated, dto.ToRuleResp(rule))
}

func (h *RulesHandler) Get(w http.ResponseWriter, r *http.Request) {
	rule, err := h.store.GetByID(r.Context(), chi.URLParam(r, "notify_id"))
	if err != nil {
		response.Err(w, err)
		return
	}
	response.JSON(w, http.StatusOK, dto.ToRuleResp(rule))
}

func (h *RulesHandler) Update(w http.ResponseWriter, r *http.Request) {
	rule, err := h.store.GetByID(r.Context(), chi.URLParam(r, "notify_id"))
	if err != nil {
		response.Err(w, err)
		return
	}

	var req dto.UpdateRuleReq
	if err := validate.DecodeJSON(r, &req); err != nil {
		response.Err(w, domain.ErrValidation("wrong request body"))
		return
	}
	if err := validate.Struct(req); err != nil {
		response.Err(w, err)
		return
	}

	// Writes and cache reloads only happen when a field actually changed.
	if apply(rule, req) {
		rule.UpdatedAt = h.now().UTC()
		if err := h.store.Update(r.Context(), rule); err != nil {
			response.Err(w, err)
			return
		}
		if err := h.engine.Reload(r.Context()); err != nil {
			response.Err(w, err)
			return
		}
		h.lg.Info().Str("rule_id", rule.ID).Str("user", middleware.UserID(r)).Msg("notify rule updated")
	}

	response.JSON(w, http.StatusOK, dto.ToRuleResp(rule))
}

func (h *RulesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "notify_id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		response.Err(w, err)
		return
	}
	if err := h.engine.Reload(r.Context()); err != nil {
		response.Err(w, err)
		return
	}

	h.lg.Info().Str("rule_id", id).Str("user", middleware.UserID(r)).Msg("notify rule deleted")
	response.JSON(w, http.StatusOK, struct{}{})
}

func apply(n *domain.NotifyRule, req dto.UpdateRuleReq) bool {
	changed := false
	set := func(dst, src *string) {
		if src != nil && *src != *dst {
			*dst = *src
			changed = true
		}
	}
	set(&n.Name, req.Name)
	set(&n.CaseRegex, req.CaseRegex)
	set(&n.CaseTemplate, req.CaseTemplate)
	set(&n.HeaderTemplate, req.HeaderTemplate)
	set(&n.BodyTemplate, req.BodyTemplate)
	set(&n.SubscribersTemplate, req.SubscribersTemplate)
	return changed
}
