package evidence

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PsiTechC/apex/internal/domain"
	"github.com/PsiTechC/apex/internal/ports"
)

// statusRetries bounds the optimistic re-derive loop on version races.
const statusRetries = 5

// FileInput is one file of an Upload request, content base64 encoded.
type FileInput struct {
	FileName string
	Base64   string
}

// UploadResult reports what an Upload call did per file.
type UploadResult struct {
	Uploaded   []string
	Reuploaded []string
}

// ReviewResult reports how many files a Review call touched.
type ReviewResult struct {
	Reviewed int
}

// Service handles evidence file uploads and reviewer decisions.
type Service struct {
	assignments ports.AssignmentRepository
	audit       ports.AuditRepository
	risks       ports.RiskRepository
	blobs       ports.BlobStore
	log         *slog.Logger
	now         func() time.Time
}

func New(assignments ports.AssignmentRepository, audit ports.AuditRepository, risks ports.RiskRepository, blobs ports.BlobStore, log *slog.Logger) *Service {
	return &Service{
		assignments: assignments,
		audit:       audit,
		risks:       risks,
		blobs:       blobs,
		log:         log,
		now:         time.Now,
	}
}

// Upload stores a batch of evidence files for one owner. Each file name
// carries the control id, evidence name and period; a name seen before
// on the assignment is treated as a re-upload, which resets the file to
// pending and appends to the reupload history.
func (s *Service) Upload(ctx context.Context, owner string, files []FileInput) (UploadResult, error) {
	owner = strings.ToLower(strings.TrimSpace(owner))
	if owner == "" {
		return UploadResult{}, domain.Validationf("missing owner email")
	}
	if len(files) == 0 {
		return UploadResult{}, domain.Validationf("no files to upload")
	}

	var res UploadResult
	for _, in := range files {
		reupload, err := s.uploadOne(ctx, owner, in)
		if err != nil {
			return res, fmt.Errorf("file %s: %w", in.FileName, err)
		}
		if reupload {
			res.Reuploaded = append(res.Reuploaded, in.FileName)
		} else {
			res.Uploaded = append(res.Uploaded, in.FileName)
		}
	}
	return res, nil
}

func (s *Service) uploadOne(ctx context.Context, owner string, in FileInput) (reupload bool, err error) {
	parsed, err := domain.ParseFileName(in.FileName)
	if err != nil {
		return false, err
	}
	data, err := base64.StdEncoding.DecodeString(in.Base64)
	if err != nil {
		return false, domain.Validationf("content is not valid base64")
	}
	if len(data) == 0 {
		return false, domain.Validationf("content is empty")
	}

	asg, found, err := s.assignments.FindByControlEvidence(ctx, parsed.ControlID, parsed.EvidenceName)
	if err != nil {
		return false, err
	}
	if !found {
		return false, domain.ErrNotFound
	}
	if asg.Owner != owner {
		return false, domain.Validationf("evidence %s of %s is not assigned to %s", parsed.EvidenceName, parsed.ControlID, owner)
	}
	if err := domain.ValidatePeriod(asg.Frequency, parsed.Period); err != nil {
		return false, err
	}
	if err := domain.CheckSequentialGate(asg.Frequency, parsed.Period, asg.Files); err != nil {
		return false, err
	}

	key := fmt.Sprintf("%s/%s/%s", owner, uuid.NewString(), in.FileName)
	url, err := s.blobs.Put(ctx, key, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false, fmt.Errorf("store blob: %w", err)
	}
	now := s.now()

	for _, f := range asg.Files {
		if f.FileName == in.FileName {
			reupload = true
			break
		}
	}
	if reupload {
		if err := s.assignments.RefreshFile(ctx, asg.ID, in.FileName, url, now); err != nil {
			return true, err
		}
	} else {
		err := s.assignments.AddFile(ctx, asg.ID, domain.EvidenceFile{
			FileName:   in.FileName,
			URL:        url,
			Status:     domain.FilePending,
			UploadedAt: now,
		})
		if err != nil {
			return false, err
		}
	}

	if err := s.recordUpload(ctx, parsed, owner, in.FileName, url, now, reupload); err != nil {
		return reupload, err
	}
	if err := s.rederiveStatus(ctx, asg.ID); err != nil {
		return reupload, err
	}
	s.log.Info("evidence uploaded",
		"owner", owner, "controlId", parsed.ControlID,
		"evidence", parsed.EvidenceName, "period", parsed.Period, "reupload", reupload)
	return reupload, nil
}

// recordUpload mirrors the upload into the audit trail. The trail node
// is looked up by control and evidence name; an upload record for the
// same file name becomes a reupload entry, anything else a fresh record.
func (s *Service) recordUpload(ctx context.Context, parsed domain.ParsedFileName, owner, fileName, url string, now time.Time, reupload bool) error {
	ev, found, err := s.audit.FindEvidenceByControl(ctx, parsed.ControlID, parsed.EvidenceName)
	if err != nil {
		return err
	}
	if !found {
		// No trail yet for this control. Nothing to append to.
		s.log.Warn("upload without audit trail", "controlId", parsed.ControlID, "evidence", parsed.EvidenceName)
		return nil
	}
	if reupload {
		up, found, err := s.audit.FindUpload(ctx, ev.ID, fileName, owner)
		if err != nil {
			return err
		}
		if found {
			return s.audit.AppendReupload(ctx, up.ID, domain.ReuploadRecord{URL: url, UploadedAt: now})
		}
	}
	_, err = s.audit.AddUpload(ctx, ev.ID, domain.UploadRecord{
		Period:     parsed.Period,
		FileName:   fileName,
		URL:        url,
		UploadedBy: owner,
		UploadedAt: now,
	})
	return err
}

// rederiveStatus recomputes and persists the assignment status from its
// file set under the optimistic version check, retrying on races. A
// risk assignment is left alone.
func (s *Service) rederiveStatus(ctx context.Context, assignmentID string) error {
	for i := 0; i < statusRetries; i++ {
		asg, err := s.assignments.GetAssignment(ctx, assignmentID)
		if err != nil {
			return err
		}
		if asg.Status == domain.StatusRisk {
			return nil
		}
		next := domain.DeriveStatus(asg.Files)
		if next == asg.Status {
			return nil
		}
		ok, err := s.assignments.SetStatus(ctx, asg.ID, asg.Version, next)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return domain.Conflictf("assignment %s is being updated concurrently", assignmentID)
}

// Review applies a reviewer decision to a set of uploaded files,
// identified by their urls. Approve and reject re-derive the parent
// status; risk overrides it on the whole assignment and is sticky.
func (s *Service) Review(ctx context.Context, reviewer, action, comment string, fileURLs []string) (ReviewResult, error) {
	action = strings.ToLower(strings.TrimSpace(action))
	switch action {
	case "approved", "rejected", "risk":
	default:
		return ReviewResult{}, domain.Validationf("action must be approved, rejected or risk")
	}
	if action == "rejected" && strings.TrimSpace(comment) == "" {
		return ReviewResult{}, domain.Validationf("a rejection requires a comment")
	}
	if len(fileURLs) == 0 {
		return ReviewResult{}, domain.Validationf("no files to review")
	}

	var res ReviewResult
	for _, url := range fileURLs {
		var err error
		if action == "risk" {
			err = s.markRisk(ctx, url, comment)
		} else {
			err = s.reviewOne(ctx, url, action, comment)
		}
		if err != nil {
			return res, fmt.Errorf("file %s: %w", url, err)
		}
		res.Reviewed++
	}
	s.log.Info("evidence reviewed", "reviewer", reviewer, "action", action, "files", res.Reviewed)
	return res, nil
}

func (s *Service) reviewOne(ctx context.Context, url, action, comment string) error {
	asg, found, err := s.assignments.FindByFileURL(ctx, url)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrNotFound
	}

	status := domain.FileApproved
	stored := ""
	if action == "rejected" {
		status = domain.FileRejected
		stored = comment
	}
	if err := s.assignments.SetFileStatus(ctx, url, status, stored); err != nil {
		return err
	}

	if up, found, err := s.audit.FindUploadByURL(ctx, url); err != nil {
		return err
	} else if found {
		err := s.audit.AppendReview(ctx, up.ID, domain.ReviewRecord{
			Action: action, Comment: stored, ReviewedAt: s.now(),
		})
		if err != nil {
			return err
		}
	}
	return s.rederiveStatus(ctx, asg.ID)
}

// markRisk flags the whole assignment behind the file as a risk and
// records it in the audit trail and the risk register.
func (s *Service) markRisk(ctx context.Context, url, comment string) error {
	asg, found, err := s.assignments.FindByFileURL(ctx, url)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrNotFound
	}
	now := s.now()

	for i := 0; ; i++ {
		if asg.Status == domain.StatusRisk {
			break
		}
		ok, err := s.assignments.SetStatus(ctx, asg.ID, asg.Version, domain.StatusRisk)
		if err != nil {
			return err
		}
		if ok {
			break
		}
		if i == statusRetries {
			return domain.Conflictf("assignment %s is being updated concurrently", asg.ID)
		}
		if asg, err = s.assignments.GetAssignment(ctx, asg.ID); err != nil {
			return err
		}
	}

	if up, found, err := s.audit.FindUploadByURL(ctx, url); err != nil {
		return err
	} else if found {
		if err := s.audit.MarkRisk(ctx, up.AuditEvidenceID, comment, now); err != nil {
			return err
		}
	}

	_, err = s.risks.CreateRisk(ctx, domain.RiskEntry{
		RiskType:    "control",
		ControlID:   asg.ControlID,
		Description: comment,
		Category:    asg.EvidenceName,
		Date:        now.Format("2006-01-02"),
		Owner:       asg.Owner,
		Status:      "risk",
	})
	return err
}

// AddRisk records a manual risk-register entry.
func (s *Service) AddRisk(ctx context.Context, r domain.RiskEntry) (domain.RiskEntry, error) {
	r.RiskType = strings.ToLower(strings.TrimSpace(r.RiskType))
	if r.RiskType != "control" && r.RiskType != "other" {
		return domain.RiskEntry{}, domain.Validationf("riskType must be control or other")
	}
	if r.RiskType == "control" && strings.TrimSpace(r.ControlID) == "" {
		return domain.RiskEntry{}, domain.Validationf("a control risk needs a controlId")
	}
	if strings.TrimSpace(r.Description) == "" {
		return domain.RiskEntry{}, domain.Validationf("missing description")
	}
	if r.Date == "" {
		r.Date = s.now().Format("2006-01-02")
	}
	r.Owner = strings.ToLower(strings.TrimSpace(r.Owner))
	r.Status = "risk"
	return s.risks.CreateRisk(ctx, r)
}

// ListRisks returns the register: manual entries plus every assignment
// currently flagged as risk.
func (s *Service) ListRisks(ctx context.Context) ([]domain.RiskEntry, error) {
	entries, err := s.risks.ListRisks(ctx)
	if err != nil {
		return nil, err
	}
	flagged, err := s.assignments.ListAssignments(ctx, ports.AssignmentFilter{
		Statuses: []domain.AssignmentStatus{domain.StatusRisk},
	})
	if err != nil {
		return nil, err
	}
	for _, a := range flagged {
		entries = append(entries, domain.RiskEntry{
			ID:          a.ID,
			RiskType:    "control",
			ControlID:   a.ControlID,
			Description: a.Description,
			Category:    a.EvidenceName,
			Owner:       a.Owner,
			Status:      string(domain.StatusRisk),
			CreatedAt:   a.UpdatedAt,
		})
	}
	return entries, nil
}
