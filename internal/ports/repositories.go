package ports

import (
	"context"
	"time"

	"github.com/PsiTechC/apex/internal/domain"
)

// ControlFilter narrows a control catalog listing.
type ControlFilter struct {
	FinancialYear string
	Tier          domain.OrgTier // when set, only controls flagged YES for the tier
}

// ControlRepository stores the control catalog.
type ControlRepository interface {
	CreateControl(ctx context.Context, c domain.Control) (domain.Control, error)
	ListControls(ctx context.Context, f ControlFilter) ([]domain.Control, error)
	CountByTier(ctx context.Context, tier domain.OrgTier) (int, error)
	GoalCountsByTier(ctx context.Context, tier domain.OrgTier) (map[string]int, error)
}

// AssignmentFilter narrows an assignment listing.
type AssignmentFilter struct {
	Owners    []string
	Statuses  []domain.AssignmentStatus
	ControlID string
}

// AssignmentRepository stores evidence assignments and their files.
type AssignmentRepository interface {
	CreateAssignment(ctx context.Context, a domain.Assignment) (domain.Assignment, error)
	GetAssignment(ctx context.Context, id string) (domain.Assignment, error)
	FindByControlEvidence(ctx context.Context, controlID, evidenceName string) (domain.Assignment, bool, error)
	FindByFileURL(ctx context.Context, url string) (domain.Assignment, bool, error)
	ListAssignments(ctx context.Context, f AssignmentFilter) ([]domain.Assignment, error)
	CountByStatus(ctx context.Context, owners []string) (map[domain.AssignmentStatus]int, error)

	UpdateOwnerFrequency(ctx context.Context, id, owner string, freq domain.Frequency) error
	AddFile(ctx context.Context, assignmentID string, f domain.EvidenceFile) error
	// RefreshFile resets an existing file for a re-upload: new url, new
	// uploaded-at, status back to pending, reviewer comment cleared.
	RefreshFile(ctx context.Context, assignmentID, fileName, url string, uploadedAt time.Time) error
	SetFileStatus(ctx context.Context, url string, status domain.FileStatus, comment string) error
	// SetStatus persists a derived status under an optimistic version
	// check; it reports false when the version has moved.
	SetStatus(ctx context.Context, id string, version int64, status domain.AssignmentStatus) (bool, error)
	DeleteByOwner(ctx context.Context, owner string) (int64, error)
}

// AuditRepository stores the append-only audit trail.
type AuditRepository interface {
	// EnsureTrail returns the trail id for (ciso, controlID), creating
	// the trail on first use.
	EnsureTrail(ctx context.Context, ciso, controlID string) (string, error)
	GetEvidence(ctx context.Context, trailID, evidenceName string) (domain.AuditEvidence, bool, error)
	// FindEvidenceByControl looks an evidence node up without knowing the
	// ciso, as the upload path does.
	FindEvidenceByControl(ctx context.Context, controlID, evidenceName string) (domain.AuditEvidence, bool, error)
	AddEvidence(ctx context.Context, trailID string, ev domain.AuditEvidence) (domain.AuditEvidence, error)
	AppendChange(ctx context.Context, auditEvidenceID string, ch domain.ChangeRecord) error

	AddUpload(ctx context.Context, auditEvidenceID string, up domain.UploadRecord) (domain.UploadRecord, error)
	FindUpload(ctx context.Context, auditEvidenceID, fileName, uploadedBy string) (domain.UploadRecord, bool, error)
	// FindUploadByURL matches the original url as well as any re-upload url.
	FindUploadByURL(ctx context.Context, url string) (domain.UploadRecord, bool, error)
	AppendReupload(ctx context.Context, uploadID string, r domain.ReuploadRecord) error
	AppendReview(ctx context.Context, uploadID string, rv domain.ReviewRecord) error
	MarkRisk(ctx context.Context, auditEvidenceID, comment string, at time.Time) error

	Trail(ctx context.Context, ciso, controlID string) (domain.AuditTrail, error)
}

// UserRepository stores accounts and the ciso -> member mapping.
type UserRepository interface {
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, bool, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUserStatus(ctx context.Context, email string, status domain.AccessStatus) error
	DeleteUser(ctx context.Context, email string) (int64, error)

	AddMember(ctx context.Context, cisoEmail, memberEmail string) error
	Members(ctx context.Context, cisoEmail string) ([]string, error)
	RemoveMember(ctx context.Context, memberEmail string) (int64, error)
}

// RiskRepository stores manual risk-register entries.
type RiskRepository interface {
	CreateRisk(ctx context.Context, r domain.RiskEntry) (domain.RiskEntry, error)
	ListRisks(ctx context.Context) ([]domain.RiskEntry, error)
}
