package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/PsiTechC/apex/internal/domain"
)

const userColumns = `id, email, password_hash, role, company_name, organization_type, status, created_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CompanyName,
		&u.OrganizationType, &u.Status, &u.CreatedAt)
	return u, err
}

func (db *DB) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, role, company_name, organization_type, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING `+userColumns,
		strings.ToLower(u.Email), u.PasswordHash, u.Role, u.CompanyName, u.OrganizationType, u.Status)
	out, err := scanUser(row)
	if isUniqueViolation(err) {
		return domain.User{}, domain.Conflictf("user %s already exists", u.Email)
	}
	return out, err
}

func (db *DB) GetByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(email))
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, err
	}
	return u, true, nil
}

func (db *DB) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (db *DB) UpdateUserStatus(ctx context.Context, email string, status domain.AccessStatus) error {
	tag, err := db.Pool.Exec(ctx, `UPDATE users SET status = $2 WHERE email = $1`,
		strings.ToLower(email), status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (db *DB) DeleteUser(ctx context.Context, email string) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM users WHERE email = $1`, strings.ToLower(email))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (db *DB) AddMember(ctx context.Context, cisoEmail, memberEmail string) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO ciso_members (ciso_email, member_email) VALUES ($1,$2)
		ON CONFLICT DO NOTHING`,
		strings.ToLower(cisoEmail), strings.ToLower(memberEmail))
	return err
}

func (db *DB) Members(ctx context.Context, cisoEmail string) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT member_email FROM ciso_members WHERE ciso_email = $1 ORDER BY member_email`,
		strings.ToLower(cisoEmail))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (db *DB) RemoveMember(ctx context.Context, memberEmail string) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM ciso_members WHERE member_email = $1`,
		strings.ToLower(memberEmail))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
