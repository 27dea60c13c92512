package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/PsiTechC/apex/internal/domain"
	"github.com/PsiTechC/apex/internal/ports"
)

const controlColumns = `id, control_id, financial_year, goal, function, description,
	guidance, sample_evidence, standard, guideline, frequency, begin_end,
	re_mii, re_qualified, re_mid_sized, re_small_sized, re_self_cert,
	control_status, created_at, updated_at`

func scanControl(row pgx.Row) (domain.Control, error) {
	var c domain.Control
	err := row.Scan(&c.ID, &c.ControlID, &c.FinancialYear, &c.Goal, &c.Function,
		&c.Description, &c.Guidance, &c.SampleEvidence, &c.Standard, &c.Guideline,
		&c.Frequency, &c.BeginEnd,
		&c.Applicability.MII, &c.Applicability.Qualified, &c.Applicability.MidSized,
		&c.Applicability.SmallSized, &c.Applicability.SelfCert,
		&c.ControlStatus, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// tierColumn maps a tier to its applicability-flag column. Callers must
// have validated the tier; the returned name is interpolated into SQL.
func tierColumn(t domain.OrgTier) string {
	switch t {
	case domain.TierMII:
		return "re_mii"
	case domain.TierQualified:
		return "re_qualified"
	case domain.TierMidSized:
		return "re_mid_sized"
	case domain.TierSmallSized:
		return "re_small_sized"
	default:
		return "re_self_cert"
	}
}

func (db *DB) CreateControl(ctx context.Context, c domain.Control) (domain.Control, error) {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO controls (control_id, financial_year, goal, function, description,
			guidance, sample_evidence, standard, guideline, frequency, begin_end,
			re_mii, re_qualified, re_mid_sized, re_small_sized, re_self_cert, control_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING `+controlColumns,
		c.ControlID, c.FinancialYear, c.Goal, c.Function, c.Description,
		c.Guidance, c.SampleEvidence, c.Standard, c.Guideline, c.Frequency, c.BeginEnd,
		c.Applicability.MII, c.Applicability.Qualified, c.Applicability.MidSized,
		c.Applicability.SmallSized, c.Applicability.SelfCert, c.ControlStatus)
	out, err := scanControl(row)
	if isUniqueViolation(err) {
		return domain.Control{}, domain.Conflictf("control %s already exists for %s", c.ControlID, c.FinancialYear)
	}
	return out, err
}

func (db *DB) ListControls(ctx context.Context, f ports.ControlFilter) ([]domain.Control, error) {
	q := `SELECT ` + controlColumns + ` FROM controls WHERE 1=1`
	args := []any{}
	if f.FinancialYear != "" {
		args = append(args, f.FinancialYear)
		q += fmt.Sprintf(" AND financial_year = $%d", len(args))
	}
	if f.Tier != "" {
		q += fmt.Sprintf(" AND upper(%s) = 'YES'", tierColumn(f.Tier))
	}
	q += " ORDER BY control_id"
	rows, err := db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Control
	for rows.Next() {
		c, err := scanControl(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (db *DB) CountByTier(ctx context.Context, tier domain.OrgTier) (int, error) {
	var n int
	err := db.Pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT count(*) FROM controls WHERE upper(%s) = 'YES'`, tierColumn(tier)),
	).Scan(&n)
	return n, err
}

func (db *DB) GoalCountsByTier(ctx context.Context, tier domain.OrgTier) (map[string]int, error) {
	rows, err := db.Pool.Query(ctx, fmt.Sprintf(`
		SELECT upper(trim(goal)), count(*) FROM controls
		WHERE upper(%s) = 'YES' AND goal <> ''
		GROUP BY upper(trim(goal))`, tierColumn(tier)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var goal string
		var n int
		if err := rows.Scan(&goal, &n); err != nil {
			return nil, err
		}
		out[goal] = n
	}
	return out, rows.Err()
}

// isUniqueViolation reports a Postgres 23505 unique-constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
