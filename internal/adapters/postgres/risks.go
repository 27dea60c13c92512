package postgres

import (
	"context"

	"github.com/PsiTechC/apex/internal/domain"
)

func (db *DB) CreateRisk(ctx context.Context, r domain.RiskEntry) (domain.RiskEntry, error) {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO risk_entries (risk_type, control_id, description, category, risk_date, owner, status)
		VALUES ($1,$2,$3,$4,$5,$6,'risk')
		RETURNING id, risk_type, control_id, description, category, risk_date, owner, status, created_at`,
		r.RiskType, r.ControlID, r.Description, r.Category, r.Date, r.Owner)
	var out domain.RiskEntry
	err := row.Scan(&out.ID, &out.RiskType, &out.ControlID, &out.Description,
		&out.Category, &out.Date, &out.Owner, &out.Status, &out.CreatedAt)
	return out, err
}

func (db *DB) ListRisks(ctx context.Context) ([]domain.RiskEntry, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, risk_type, control_id, description, category, risk_date, owner, status, created_at
		FROM risk_entries ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.RiskEntry
	for rows.Next() {
		var r domain.RiskEntry
		if err := rows.Scan(&r.ID, &r.RiskType, &r.ControlID, &r.Description,
			&r.Category, &r.Date, &r.Owner, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
