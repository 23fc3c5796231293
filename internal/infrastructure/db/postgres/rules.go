package postgres

import (
	"context"
	"database/sql"

	"github.com/xopay/notify-service/internal/domain"
)

// Repo stores notify rules in the notification_rules table.
type Repo struct {
	db *sql.DB
}

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Create(ctx context.Context, n *domain.NotifyRule) error {
	_, err := r.db.ExecContext(ctx, insertRuleSQL,
		n.ID, n.Name, n.CaseRegex, n.CaseTemplate, n.HeaderTemplate,
		n.BodyTemplate, n.SubscribersTemplate, n.CreatedAt, n.UpdatedAt,
	)
	return err
}

func (r *Repo) GetByID(ctx context.Context, id string) (*domain.NotifyRule, error) {
	row := r.db.QueryRowContext(ctx, getRuleSQL, id)

	var n domain.NotifyRule
	err := row.Scan(
		&n.ID, &n.Name, &n.CaseRegex, &n.CaseTemplate, &n.HeaderTemplate,
		&n.BodyTemplate, &n.SubscribersTemplate, &n.CreatedAt, &n.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound("notification not found")
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *Repo) List(ctx context.Context) ([]domain.NotifyRule, error) {
	rows, err := r.db.QueryContext(ctx, listRulesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.NotifyRule
	for rows.Next() {
		var n domain.NotifyRule
		if err := rows.Scan(
			&n.ID, &n.Name, &n.CaseRegex, &n.CaseTemplate, &n.HeaderTemplate,
			&n.BodyTemplate, &n.SubscribersTemplate, &n.CreatedAt, &n.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Update(ctx context.Context, n *domain.NotifyRule) error {
	res, err := r.db.ExecContext(ctx, updateRuleSQL,
		n.ID,
		n.Name, n.CaseRegex, n.CaseTemplate, n.HeaderTemplate,
		n.BodyTemplate, n.SubscribersTemplate, n.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Delete removes one rule. A missing id maps to domain.ErrNotFound so the
// engine's quarantine path and the admin DELETE endpoint can both tell
// "already gone" from a real failure.
func (r *Repo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deleteRuleSQL, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound("notification not found")
	}
	return nil
}
