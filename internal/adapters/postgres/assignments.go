package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/PsiTechC/apex/internal/domain"
	"github.com/PsiTechC/apex/internal/ports"
)

const assignmentColumns = `id, owner, control_id, goal, function, description, guidance,
	evidence_name, frequency, status, version, created_at, updated_at`

func scanAssignment(row pgx.Row) (domain.Assignment, error) {
	var a domain.Assignment
	err := row.Scan(&a.ID, &a.Owner, &a.ControlID, &a.Goal, &a.Function,
		&a.Description, &a.Guidance, &a.EvidenceName, &a.Frequency,
		&a.Status, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (db *DB) loadFiles(ctx context.Context, a *domain.Assignment) error {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, file_name, url, status, comment, uploaded_at
		FROM evidence_files WHERE assignment_id = $1
		ORDER BY uploaded_at, id`, a.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var f domain.EvidenceFile
		if err := rows.Scan(&f.ID, &f.FileName, &f.URL, &f.Status, &f.Comment, &f.UploadedAt); err != nil {
			return err
		}
		a.Files = append(a.Files, f)
	}
	return rows.Err()
}

func (db *DB) CreateAssignment(ctx context.Context, a domain.Assignment) (domain.Assignment, error) {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO assignments (owner, control_id, goal, function, description, guidance,
			evidence_name, frequency, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING `+assignmentColumns,
		a.Owner, a.ControlID, a.Goal, a.Function, a.Description, a.Guidance,
		a.EvidenceName, a.Frequency, a.Status)
	out, err := scanAssignment(row)
	if isUniqueViolation(err) {
		return domain.Assignment{}, domain.Conflictf("evidence %q already assigned for control %s", a.EvidenceName, a.ControlID)
	}
	return out, err
}

func (db *DB) GetAssignment(ctx context.Context, id string) (domain.Assignment, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Assignment{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Assignment{}, err
	}
	err = db.loadFiles(ctx, &a)
	return a, err
}

func (db *DB) FindByControlEvidence(ctx context.Context, controlID, evidenceName string) (domain.Assignment, bool, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT `+assignmentColumns+` FROM assignments
		WHERE control_id = $1 AND evidence_name = $2`, controlID, evidenceName)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Assignment{}, false, nil
	}
	if err != nil {
		return domain.Assignment{}, false, err
	}
	if err := db.loadFiles(ctx, &a); err != nil {
		return domain.Assignment{}, false, err
	}
	return a, true, nil
}

func (db *DB) FindByFileURL(ctx context.Context, url string) (domain.Assignment, bool, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT `+assignmentColumns+` FROM assignments a
		WHERE EXISTS (SELECT 1 FROM evidence_files f WHERE f.assignment_id = a.id AND f.url = $1)`, url)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Assignment{}, false, nil
	}
	if err != nil {
		return domain.Assignment{}, false, err
	}
	if err := db.loadFiles(ctx, &a); err != nil {
		return domain.Assignment{}, false, err
	}
	return a, true, nil
}

func (db *DB) ListAssignments(ctx context.Context, f ports.AssignmentFilter) ([]domain.Assignment, error) {
	q := `SELECT ` + assignmentColumns + ` FROM assignments WHERE 1=1`
	args := []any{}
	if len(f.Owners) > 0 {
		args = append(args, f.Owners)
		q += fmt.Sprintf(" AND owner = ANY($%d)", len(args))
	}
	if len(f.Statuses) > 0 {
		ss := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			ss[i] = string(s)
		}
		args = append(args, ss)
		q += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	if f.ControlID != "" {
		args = append(args, f.ControlID)
		q += fmt.Sprintf(" AND control_id = $%d", len(args))
	}
	q += " ORDER BY control_id, evidence_name"
	rows, err := db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := db.loadFiles(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (db *DB) CountByStatus(ctx context.Context, owners []string) (map[domain.AssignmentStatus]int, error) {
	q := `SELECT status, count(*) FROM assignments WHERE status <> 'risk'`
	args := []any{}
	if len(owners) > 0 {
		args = append(args, owners)
		q += " AND owner = ANY($1)"
	}
	q += " GROUP BY status"
	rows, err := db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[domain.AssignmentStatus]int{}
	for rows.Next() {
		var s domain.AssignmentStatus
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[s] = n
	}
	return out, rows.Err()
}

func (db *DB) UpdateOwnerFrequency(ctx context.Context, id, owner string, freq domain.Frequency) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE assignments SET owner = $2, frequency = $3, updated_at = now()
		WHERE id = $1`, id, owner, freq)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (db *DB) AddFile(ctx context.Context, assignmentID string, f domain.EvidenceFile) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO evidence_files (assignment_id, file_name, url, status, comment, uploaded_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		assignmentID, f.FileName, f.URL, f.Status, f.Comment, f.UploadedAt)
	if isUniqueViolation(err) {
		return domain.Conflictf("file %q already uploaded", f.FileName)
	}
	return err
}

func (db *DB) RefreshFile(ctx context.Context, assignmentID, fileName, url string, uploadedAt time.Time) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE evidence_files
		SET url = $3, status = 'pending', comment = '', uploaded_at = $4
		WHERE assignment_id = $1 AND file_name = $2`,
		assignmentID, fileName, url, uploadedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (db *DB) SetFileStatus(ctx context.Context, url string, status domain.FileStatus, comment string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE evidence_files SET status = $2, comment = $3 WHERE url = $1`,
		url, status, comment)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetStatus writes a derived status under the optimistic version check.
// A false return means another writer got there first; the caller
// re-reads and re-derives.
func (db *DB) SetStatus(ctx context.Context, id string, version int64, status domain.AssignmentStatus) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE assignments SET status = $3, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2`, id, version, status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (db *DB) DeleteByOwner(ctx context.Context, owner string) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM assignments WHERE owner = $1`, owner)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
