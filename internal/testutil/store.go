package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PsiTechC/apex/internal/domain"
	"github.com/PsiTechC/apex/internal/ports"
)

// Store is an in-memory implementation of every repository port. It
// mirrors the postgres adapter's semantics closely enough for service
// tests: unique keys, optimistic versioning and ordered audit history.
// Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	counter int

	controls    []domain.Control
	assignments map[string]*domain.Assignment
	trails      []*domain.AuditTrail
	users       map[string]*domain.User
	members     map[string][]string
	risks       []domain.RiskEntry
	jobs        []*mailJob
}

type mailJob struct {
	id     string
	mail   ports.Mail
	status string // queued, sending, sent, failed
	reason string
}

func NewStore() *Store {
	return &Store{
		assignments: make(map[string]*domain.Assignment),
		users:       make(map[string]*domain.User),
		members:     make(map[string][]string),
	}
}

func (s *Store) nextID() string {
	s.counter++
	return fmt.Sprintf("id-%d", s.counter)
}

// --- ControlRepository ---

func (s *Store) CreateControl(_ context.Context, c domain.Control) (domain.Control, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, have := range s.controls {
		if have.ControlID == c.ControlID && have.FinancialYear == c.FinancialYear {
			return domain.Control{}, domain.Conflictf("control %s already exists for %s", c.ControlID, c.FinancialYear)
		}
	}
	c.ID = s.nextID()
	c.CreatedAt = time.Now()
	s.controls = append(s.controls, c)
	return c, nil
}

func (s *Store) ListControls(_ context.Context, f ports.ControlFilter) ([]domain.Control, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Control
	for _, c := range s.controls {
		if f.FinancialYear != "" && c.FinancialYear != f.FinancialYear {
			continue
		}
		if f.Tier != "" && !c.Applicability.AppliesTo(f.Tier) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) CountByTier(_ context.Context, tier domain.OrgTier) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.controls {
		if c.Applicability.AppliesTo(tier) {
			n++
		}
	}
	return n, nil
}

func (s *Store) GoalCountsByTier(_ context.Context, tier domain.OrgTier) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int)
	for _, c := range s.controls {
		if c.Applicability.AppliesTo(tier) {
			out[c.Goal]++
		}
	}
	return out, nil
}

// --- AssignmentRepository ---

func (s *Store) CreateAssignment(_ context.Context, a domain.Assignment) (domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, have := range s.assignments {
		if have.ControlID == a.ControlID && have.EvidenceName == a.EvidenceName {
			return domain.Assignment{}, domain.Conflictf("assignment for %s/%s already exists", a.ControlID, a.EvidenceName)
		}
	}
	a.ID = s.nextID()
	a.Version = 1
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	s.assignments[a.ID] = &a
	return a, nil
}

func (s *Store) GetAssignment(_ context.Context, id string) (domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return domain.Assignment{}, domain.ErrNotFound
	}
	return cloneAssignment(a), nil
}

func (s *Store) FindByControlEvidence(_ context.Context, controlID, evidenceName string) (domain.Assignment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.ControlID == controlID && a.EvidenceName == evidenceName {
			return cloneAssignment(a), true, nil
		}
	}
	return domain.Assignment{}, false, nil
}

func (s *Store) FindByFileURL(_ context.Context, url string) (domain.Assignment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		for _, f := range a.Files {
			if f.URL == url {
				return cloneAssignment(a), true, nil
			}
		}
	}
	return domain.Assignment{}, false, nil
}

func (s *Store) ListAssignments(_ context.Context, f ports.AssignmentFilter) ([]domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Assignment
	for _, a := range s.assignments {
		if len(f.Owners) > 0 && !containsString(f.Owners, a.Owner) {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, a.Status) {
			continue
		}
		if f.ControlID != "" && a.ControlID != f.ControlID {
			continue
		}
		out = append(out, cloneAssignment(a))
	}
	return out, nil
}

func (s *Store) CountByStatus(_ context.Context, owners []string) (map[domain.AssignmentStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.AssignmentStatus]int)
	for _, a := range s.assignments {
		if len(owners) > 0 && !containsString(owners, a.Owner) {
			continue
		}
		if a.Status == domain.StatusRisk {
			continue
		}
		out[a.Status]++
	}
	return out, nil
}

func (s *Store) UpdateOwnerFrequency(_ context.Context, id, owner string, freq domain.Frequency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Owner = owner
	a.Frequency = freq
	a.UpdatedAt = time.Now()
	return nil
}

func (s *Store) AddFile(_ context.Context, assignmentID string, f domain.EvidenceFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[assignmentID]
	if !ok {
		return domain.ErrNotFound
	}
	for _, have := range a.Files {
		if have.FileName == f.FileName {
			return domain.Conflictf("file %s already exists", f.FileName)
		}
	}
	f.ID = s.nextID()
	a.Files = append(a.Files, f)
	return nil
}

func (s *Store) RefreshFile(_ context.Context, assignmentID, fileName, url string, uploadedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[assignmentID]
	if !ok {
		return domain.ErrNotFound
	}
	for i := range a.Files {
		if a.Files[i].FileName == fileName {
			a.Files[i].URL = url
			a.Files[i].Status = domain.FilePending
			a.Files[i].Comment = ""
			a.Files[i].UploadedAt = uploadedAt
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *Store) SetFileStatus(_ context.Context, url string, status domain.FileStatus, comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		for i := range a.Files {
			if a.Files[i].URL == url {
				a.Files[i].Status = status
				a.Files[i].Comment = comment
				return nil
			}
		}
	}
	return domain.ErrNotFound
}

func (s *Store) SetStatus(_ context.Context, id string, version int64, status domain.AssignmentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if a.Version != version {
		return false, nil
	}
	a.Status = status
	a.Version++
	a.UpdatedAt = time.Now()
	return true, nil
}

func (s *Store) DeleteByOwner(_ context.Context, owner string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, a := range s.assignments {
		if a.Owner == owner {
			delete(s.assignments, id)
			n++
		}
	}
	return n, nil
}

// --- AuditRepository ---

func (s *Store) EnsureTrail(_ context.Context, ciso, controlID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.trails {
		if t.CISO == ciso && t.ControlID == controlID {
			return t.ID, nil
		}
	}
	t := &domain.AuditTrail{ID: s.nextID(), CISO: ciso, ControlID: controlID, CreatedAt: time.Now()}
	s.trails = append(s.trails, t)
	return t.ID, nil
}

func (s *Store) trailByID(id string) *domain.AuditTrail {
	for _, t := range s.trails {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (s *Store) evidenceByID(id string) *domain.AuditEvidence {
	for _, t := range s.trails {
		for i := range t.Evidences {
			if t.Evidences[i].ID == id {
				return &t.Evidences[i]
			}
		}
	}
	return nil
}

func (s *Store) uploadByID(id string) *domain.UploadRecord {
	for _, t := range s.trails {
		for i := range t.Evidences {
			for j := range t.Evidences[i].Uploads {
				if t.Evidences[i].Uploads[j].ID == id {
					return &t.Evidences[i].Uploads[j]
				}
			}
		}
	}
	return nil
}

func (s *Store) GetEvidence(_ context.Context, trailID, evidenceName string) (domain.AuditEvidence, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.trailByID(trailID)
	if t == nil {
		return domain.AuditEvidence{}, false, nil
	}
	for _, ev := range t.Evidences {
		if ev.EvidenceName == evidenceName {
			return ev, true, nil
		}
	}
	return domain.AuditEvidence{}, false, nil
}

func (s *Store) FindEvidenceByControl(_ context.Context, controlID, evidenceName string) (domain.AuditEvidence, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.trails {
		if t.ControlID != controlID {
			continue
		}
		for _, ev := range t.Evidences {
			if ev.EvidenceName == evidenceName {
				return ev, true, nil
			}
		}
	}
	return domain.AuditEvidence{}, false, nil
}

func (s *Store) AddEvidence(_ context.Context, trailID string, ev domain.AuditEvidence) (domain.AuditEvidence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.trailByID(trailID)
	if t == nil {
		return domain.AuditEvidence{}, domain.ErrNotFound
	}
	ev.ID = s.nextID()
	t.Evidences = append(t.Evidences, ev)
	return ev, nil
}

func (s *Store) AppendChange(_ context.Context, auditEvidenceID string, ch domain.ChangeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := s.evidenceByID(auditEvidenceID)
	if ev == nil {
		return domain.ErrNotFound
	}
	ev.Changes = append(ev.Changes, ch)
	return nil
}

func (s *Store) AddUpload(_ context.Context, auditEvidenceID string, up domain.UploadRecord) (domain.UploadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := s.evidenceByID(auditEvidenceID)
	if ev == nil {
		return domain.UploadRecord{}, domain.ErrNotFound
	}
	up.ID = s.nextID()
	up.AuditEvidenceID = auditEvidenceID
	ev.Uploads = append(ev.Uploads, up)
	return up, nil
}

func (s *Store) FindUpload(_ context.Context, auditEvidenceID, fileName, uploadedBy string) (domain.UploadRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := s.evidenceByID(auditEvidenceID)
	if ev == nil {
		return domain.UploadRecord{}, false, nil
	}
	for _, up := range ev.Uploads {
		if up.FileName == fileName && up.UploadedBy == uploadedBy {
			return up, true, nil
		}
	}
	return domain.UploadRecord{}, false, nil
}

func (s *Store) FindUploadByURL(_ context.Context, url string) (domain.UploadRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.trails {
		for _, ev := range t.Evidences {
			for _, up := range ev.Uploads {
				if up.URL == url {
					return up, true, nil
				}
				for _, ru := range up.Reuploads {
					if ru.URL == url {
						return up, true, nil
					}
				}
			}
		}
	}
	return domain.UploadRecord{}, false, nil
}

func (s *Store) AppendReupload(_ context.Context, uploadID string, r domain.ReuploadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	up := s.uploadByID(uploadID)
	if up == nil {
		return domain.ErrNotFound
	}
	up.Reuploads = append(up.Reuploads, r)
	return nil
}

func (s *Store) AppendReview(_ context.Context, uploadID string, rv domain.ReviewRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	up := s.uploadByID(uploadID)
	if up == nil {
		return domain.ErrNotFound
	}
	up.Reviews = append(up.Reviews, rv)
	return nil
}

func (s *Store) MarkRisk(_ context.Context, auditEvidenceID, comment string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := s.evidenceByID(auditEvidenceID)
	if ev == nil {
		return domain.ErrNotFound
	}
	ev.RiskStatus = "risk"
	ev.RiskComment = comment
	ev.RiskAt = &at
	return nil
}

func (s *Store) Trail(_ context.Context, ciso, controlID string) (domain.AuditTrail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.trails {
		if t.CISO == ciso && t.ControlID == controlID {
			return *t, nil
		}
	}
	return domain.AuditTrail{}, domain.ErrNotFound
}

// --- UserRepository ---

func (s *Store) CreateUser(_ context.Context, u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, ok := s.users[key]; ok {
		return domain.User{}, domain.Conflictf("user %s already exists", u.Email)
	}
	u.ID = s.nextID()
	u.Email = key
	u.CreatedAt = time.Now()
	s.users[key] = &u
	return u, nil
}

func (s *Store) GetByEmail(_ context.Context, email string) (domain.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return domain.User{}, false, nil
	}
	return *u, true, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out, nil
}

func (s *Store) UpdateUserStatus(_ context.Context, email string, status domain.AccessStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return domain.ErrNotFound
	}
	u.Status = status
	return nil
}

func (s *Store) DeleteUser(_ context.Context, email string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	if _, ok := s.users[key]; !ok {
		return 0, nil
	}
	delete(s.users, key)
	return 1, nil
}

func (s *Store) AddMember(_ context.Context, cisoEmail, memberEmail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members[cisoEmail] {
		if m == memberEmail {
			return nil
		}
	}
	s.members[cisoEmail] = append(s.members[cisoEmail], memberEmail)
	return nil
}

func (s *Store) Members(_ context.Context, cisoEmail string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.members[cisoEmail]...), nil
}

func (s *Store) RemoveMember(_ context.Context, memberEmail string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for ciso, list := range s.members {
		kept := list[:0]
		for _, m := range list {
			if m == memberEmail {
				n++
				continue
			}
			kept = append(kept, m)
		}
		s.members[ciso] = kept
	}
	return n, nil
}

// --- RiskRepository ---

func (s *Store) CreateRisk(_ context.Context, r domain.RiskEntry) (domain.RiskEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.nextID()
	r.CreatedAt = time.Now()
	s.risks = append(s.risks, r)
	return r, nil
}

func (s *Store) ListRisks(_ context.Context) ([]domain.RiskEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.RiskEntry(nil), s.risks...), nil
}

// --- MailJobRepository ---

func (s *Store) Enqueue(_ context.Context, m ports.Mail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &mailJob{id: s.nextID(), mail: m, status: "queued"})
	return nil
}

func (s *Store) ClaimNext(_ context.Context) (ports.MailJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.status == "queued" {
			j.status = "sending"
			return ports.MailJob{ID: j.id, Mail: j.mail}, true, nil
		}
	}
	return ports.MailJob{}, false, nil
}

func (s *Store) MarkSent(_ context.Context, jobID string) error {
	return s.resolveJob(jobID, "sent", "")
}

func (s *Store) MarkFailed(_ context.Context, jobID, reason string) error {
	return s.resolveJob(jobID, "failed", reason)
}

func (s *Store) resolveJob(jobID, status, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.id == jobID {
			j.status = status
			j.reason = reason
			return nil
		}
	}
	return domain.ErrNotFound
}

// QueuedMail returns every enqueued message in order, regardless of
// delivery state. Test helper.
func (s *Store) QueuedMail() []ports.Mail {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.Mail, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.mail)
	}
	return out
}

func cloneAssignment(a *domain.Assignment) domain.Assignment {
	out := *a
	out.Files = append([]domain.EvidenceFile(nil), a.Files...)
	return out
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsStatus(list []domain.AssignmentStatus, v domain.AssignmentStatus) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
