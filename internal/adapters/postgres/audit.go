package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/PsiTechC/apex/internal/domain"
)

func (db *DB) EnsureTrail(ctx context.Context, ciso, controlID string) (string, error) {
	var id string
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO audit_trails (ciso, control_id)
		VALUES ($1, $2)
		ON CONFLICT (ciso, control_id) DO UPDATE SET control_id = EXCLUDED.control_id
		RETURNING id`, ciso, controlID).Scan(&id)
	return id, err
}

func scanAuditEvidence(row pgx.Row) (domain.AuditEvidence, error) {
	var ev domain.AuditEvidence
	err := row.Scan(&ev.ID, &ev.EvidenceName, &ev.Frequency, &ev.Owner,
		&ev.AssignedDate, &ev.RiskStatus, &ev.RiskComment, &ev.RiskAt)
	return ev, err
}

const auditEvidenceColumns = `id, evidence_name, frequency, owner, assigned_date,
	risk_status, risk_comment, risk_at`

func (db *DB) GetEvidence(ctx context.Context, trailID, evidenceName string) (domain.AuditEvidence, bool, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT `+auditEvidenceColumns+` FROM audit_evidences
		WHERE trail_id = $1 AND evidence_name = $2`, trailID, evidenceName)
	ev, err := scanAuditEvidence(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AuditEvidence{}, false, nil
	}
	if err != nil {
		return domain.AuditEvidence{}, false, err
	}
	if err := db.loadEvidenceHistory(ctx, &ev); err != nil {
		return domain.AuditEvidence{}, false, err
	}
	return ev, true, nil
}

func (db *DB) FindEvidenceByControl(ctx context.Context, controlID, evidenceName string) (domain.AuditEvidence, bool, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT e.id, e.evidence_name, e.frequency, e.owner, e.assigned_date,
			e.risk_status, e.risk_comment, e.risk_at
		FROM audit_evidences e
		JOIN audit_trails t ON t.id = e.trail_id
		WHERE t.control_id = $1 AND e.evidence_name = $2`, controlID, evidenceName)
	ev, err := scanAuditEvidence(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AuditEvidence{}, false, nil
	}
	if err != nil {
		return domain.AuditEvidence{}, false, err
	}
	if err := db.loadEvidenceHistory(ctx, &ev); err != nil {
		return domain.AuditEvidence{}, false, err
	}
	return ev, true, nil
}

func (db *DB) AddEvidence(ctx context.Context, trailID string, ev domain.AuditEvidence) (domain.AuditEvidence, error) {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO audit_evidences (trail_id, evidence_name, frequency, owner, assigned_date)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING `+auditEvidenceColumns,
		trailID, ev.EvidenceName, ev.Frequency, ev.Owner, ev.AssignedDate)
	return scanAuditEvidence(row)
}

func (db *DB) AppendChange(ctx context.Context, auditEvidenceID string, ch domain.ChangeRecord) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO audit_changes (audit_evidence_id, field, old_value, new_value, changed_at)
		VALUES ($1,$2,$3,$4,$5)`,
		auditEvidenceID, ch.Field, ch.OldValue, ch.NewValue, ch.ChangedAt)
	return err
}

func (db *DB) AddUpload(ctx context.Context, auditEvidenceID string, up domain.UploadRecord) (domain.UploadRecord, error) {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO audit_uploads (audit_evidence_id, period, file_name, url, uploaded_by, uploaded_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, audit_evidence_id, period, file_name, url, uploaded_by, uploaded_at`,
		auditEvidenceID, up.Period, up.FileName, up.URL, up.UploadedBy, up.UploadedAt)
	return scanUpload(row)
}

func scanUpload(row pgx.Row) (domain.UploadRecord, error) {
	var up domain.UploadRecord
	err := row.Scan(&up.ID, &up.AuditEvidenceID, &up.Period, &up.FileName,
		&up.URL, &up.UploadedBy, &up.UploadedAt)
	return up, err
}

func (db *DB) FindUpload(ctx context.Context, auditEvidenceID, fileName, uploadedBy string) (domain.UploadRecord, bool, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT id, audit_evidence_id, period, file_name, url, uploaded_by, uploaded_at
		FROM audit_uploads
		WHERE audit_evidence_id = $1 AND file_name = $2 AND uploaded_by = $3`,
		auditEvidenceID, fileName, uploadedBy)
	up, err := scanUpload(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UploadRecord{}, false, nil
	}
	if err != nil {
		return domain.UploadRecord{}, false, err
	}
	return up, true, nil
}

func (db *DB) FindUploadByURL(ctx context.Context, url string) (domain.UploadRecord, bool, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT u.id, u.audit_evidence_id, u.period, u.file_name, u.url, u.uploaded_by, u.uploaded_at
		FROM audit_uploads u
		WHERE u.url = $1
		   OR EXISTS (SELECT 1 FROM audit_reuploads r WHERE r.upload_id = u.id AND r.url = $1)`, url)
	up, err := scanUpload(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UploadRecord{}, false, nil
	}
	if err != nil {
		return domain.UploadRecord{}, false, err
	}
	return up, true, nil
}

func (db *DB) AppendReupload(ctx context.Context, uploadID string, r domain.ReuploadRecord) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO audit_reuploads (upload_id, url, uploaded_at) VALUES ($1,$2,$3)`,
		uploadID, r.URL, r.UploadedAt)
	return err
}

func (db *DB) AppendReview(ctx context.Context, uploadID string, rv domain.ReviewRecord) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO audit_reviews (upload_id, action, comment, reviewed_at) VALUES ($1,$2,$3,$4)`,
		uploadID, rv.Action, rv.Comment, rv.ReviewedAt)
	return err
}

func (db *DB) MarkRisk(ctx context.Context, auditEvidenceID, comment string, at time.Time) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE audit_evidences SET risk_status = 'risk', risk_comment = $2, risk_at = $3
		WHERE id = $1`, auditEvidenceID, comment, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (db *DB) Trail(ctx context.Context, ciso, controlID string) (domain.AuditTrail, error) {
	var t domain.AuditTrail
	err := db.Pool.QueryRow(ctx, `
		SELECT id, ciso, control_id, created_at FROM audit_trails
		WHERE ciso = $1 AND control_id = $2`, ciso, controlID).
		Scan(&t.ID, &t.CISO, &t.ControlID, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AuditTrail{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.AuditTrail{}, err
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT `+auditEvidenceColumns+` FROM audit_evidences
		WHERE trail_id = $1 ORDER BY assigned_date, id`, t.ID)
	if err != nil {
		return domain.AuditTrail{}, err
	}
	defer rows.Close()
	for rows.Next() {
		ev, err := scanAuditEvidence(rows)
		if err != nil {
			return domain.AuditTrail{}, err
		}
		t.Evidences = append(t.Evidences, ev)
	}
	if err := rows.Err(); err != nil {
		return domain.AuditTrail{}, err
	}
	for i := range t.Evidences {
		if err := db.loadEvidenceHistory(ctx, &t.Evidences[i]); err != nil {
			return domain.AuditTrail{}, err
		}
	}
	return t, nil
}

// loadEvidenceHistory fills the ordered change, upload, reupload and
// review records of an evidence node.
func (db *DB) loadEvidenceHistory(ctx context.Context, ev *domain.AuditEvidence) error {
	rows, err := db.Pool.Query(ctx, `
		SELECT field, old_value, new_value, changed_at FROM audit_changes
		WHERE audit_evidence_id = $1 ORDER BY id`, ev.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var ch domain.ChangeRecord
		if err := rows.Scan(&ch.Field, &ch.OldValue, &ch.NewValue, &ch.ChangedAt); err != nil {
			rows.Close()
			return err
		}
		ev.Changes = append(ev.Changes, ch)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	urows, err := db.Pool.Query(ctx, `
		SELECT id, audit_evidence_id, period, file_name, url, uploaded_by, uploaded_at
		FROM audit_uploads WHERE audit_evidence_id = $1 ORDER BY uploaded_at, id`, ev.ID)
	if err != nil {
		return err
	}
	for urows.Next() {
		up, err := scanUpload(urows)
		if err != nil {
			urows.Close()
			return err
		}
		ev.Uploads = append(ev.Uploads, up)
	}
	urows.Close()
	if err := urows.Err(); err != nil {
		return err
	}

	for i := range ev.Uploads {
		up := &ev.Uploads[i]
		rrows, err := db.Pool.Query(ctx, `
			SELECT url, uploaded_at FROM audit_reuploads WHERE upload_id = $1 ORDER BY id`, up.ID)
		if err != nil {
			return err
		}
		for rrows.Next() {
			var r domain.ReuploadRecord
			if err := rrows.Scan(&r.URL, &r.UploadedAt); err != nil {
				rrows.Close()
				return err
			}
			up.Reuploads = append(up.Reuploads, r)
		}
		rrows.Close()
		if err := rrows.Err(); err != nil {
			return err
		}

		vrows, err := db.Pool.Query(ctx, `
			SELECT action, comment, reviewed_at FROM audit_reviews WHERE upload_id = $1 ORDER BY id`, up.ID)
		if err != nil {
			return err
		}
		for vrows.Next() {
			var rv domain.ReviewRecord
			if err := vrows.Scan(&rv.Action, &rv.Comment, &rv.ReviewedAt); err != nil {
				vrows.Close()
				return err
			}
			up.Reviews = append(up.Reviews, rv)
		}
		vrows.Close()
		if err := vrows.Err(); err != nil {
			return err
		}
	}
	return nil
}
