package assignments

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/PsiTechC/apex/internal/domain"
	"github.com/PsiTechC/apex/internal/ports"
)

// EvidenceInput is one evidence line of an Assign batch.
type EvidenceInput struct {
	Owner        string
	ControlID    string
	Goal         string
	Function     string
	Description  string
	Guidance     string
	EvidenceName string
	Frequency    domain.Frequency
}

// Result summarizes one Assign call.
type Result struct {
	Created int
	Updated int
}

// Service owns the assignment ledger and its audit change history.
type Service struct {
	assignments ports.AssignmentRepository
	audit       ports.AuditRepository
	log         *slog.Logger
	now         func() time.Time
}

func New(assignments ports.AssignmentRepository, audit ports.AuditRepository, log *slog.Logger) *Service {
	return &Service{assignments: assignments, audit: audit, log: log, now: time.Now}
}

// Assign distributes a batch of evidence requirements to owners. A
// requirement not seen before becomes a new pending assignment; an
// existing one is updated in place when its owner or frequency changed,
// with each change appended to the audit trail.
func (s *Service) Assign(ctx context.Context, ciso string, batch []EvidenceInput) (Result, error) {
	ciso = strings.ToLower(strings.TrimSpace(ciso))
	if ciso == "" {
		return Result{}, domain.Validationf("missing ciso email")
	}
	if len(batch) == 0 {
		return Result{}, domain.Validationf("no evidences to assign")
	}

	var res Result
	now := s.now()
	for i, in := range batch {
		in.Owner = strings.ToLower(strings.TrimSpace(in.Owner))
		in.ControlID = strings.TrimSpace(in.ControlID)
		in.EvidenceName = strings.TrimSpace(in.EvidenceName)
		switch {
		case in.Owner == "":
			return res, domain.Validationf("evidence %d: missing owner", i)
		case in.ControlID == "":
			return res, domain.Validationf("evidence %d: missing controlId", i)
		case in.EvidenceName == "":
			return res, domain.Validationf("evidence %d: missing evidenceName", i)
		}
		if !domain.ValidFrequency(in.Frequency) {
			return res, domain.Validationf("evidence %d: invalid frequency %q", i, in.Frequency)
		}

		trailID, err := s.audit.EnsureTrail(ctx, ciso, in.ControlID)
		if err != nil {
			return res, err
		}

		existing, found, err := s.assignments.FindByControlEvidence(ctx, in.ControlID, in.EvidenceName)
		if err != nil {
			return res, err
		}
		if !found {
			if err := s.create(ctx, trailID, in, now); err != nil {
				return res, err
			}
			res.Created++
			continue
		}
		changed, err := s.update(ctx, trailID, existing, in, now)
		if err != nil {
			return res, err
		}
		if changed {
			res.Updated++
		}
	}
	return res, nil
}

func (s *Service) create(ctx context.Context, trailID string, in EvidenceInput, now time.Time) error {
	_, err := s.assignments.CreateAssignment(ctx, domain.Assignment{
		Owner:        in.Owner,
		ControlID:    in.ControlID,
		Goal:         in.Goal,
		Function:     in.Function,
		Description:  in.Description,
		Guidance:     in.Guidance,
		EvidenceName: in.EvidenceName,
		Frequency:    in.Frequency,
		Status:       domain.StatusPending,
	})
	if err != nil {
		return err
	}
	_, err = s.audit.AddEvidence(ctx, trailID, domain.AuditEvidence{
		EvidenceName: in.EvidenceName,
		Frequency:    in.Frequency,
		Owner:        in.Owner,
		AssignedDate: now,
	})
	return err
}

// update compares against the latest recorded values on the audit side,
// so a no-op reassignment produces no change records.
func (s *Service) update(ctx context.Context, trailID string, cur domain.Assignment, in EvidenceInput, now time.Time) (bool, error) {
	ev, found, err := s.audit.GetEvidence(ctx, trailID, in.EvidenceName)
	if err != nil {
		return false, err
	}
	if !found {
		// Assignment predates the trail (different ciso). Seed the node.
		ev, err = s.audit.AddEvidence(ctx, trailID, domain.AuditEvidence{
			EvidenceName: in.EvidenceName,
			Frequency:    cur.Frequency,
			Owner:        cur.Owner,
			AssignedDate: now,
		})
		if err != nil {
			return false, err
		}
	}

	prevOwner := ev.CurrentOwner()
	prevFreq := ev.CurrentFrequency()
	ownerChanged := in.Owner != prevOwner
	freqChanged := in.Frequency != prevFreq
	if !ownerChanged && !freqChanged {
		return false, nil
	}

	if err := s.assignments.UpdateOwnerFrequency(ctx, cur.ID, in.Owner, in.Frequency); err != nil {
		return false, err
	}
	if ownerChanged {
		err := s.audit.AppendChange(ctx, ev.ID, domain.ChangeRecord{
			Field: "owner", OldValue: prevOwner, NewValue: in.Owner, ChangedAt: now,
		})
		if err != nil {
			return false, err
		}
		s.log.Info("assignment owner changed",
			"controlId", cur.ControlID, "evidence", in.EvidenceName,
			"from", prevOwner, "to", in.Owner)
	}
	if freqChanged {
		err := s.audit.AppendChange(ctx, ev.ID, domain.ChangeRecord{
			Field: "frequency", OldValue: string(prevFreq), NewValue: string(in.Frequency), ChangedAt: now,
		})
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

// ListAssignments returns assignments narrowed by owner set and/or
// status set.
func (s *Service) ListAssignments(ctx context.Context, owners []string, statuses []domain.AssignmentStatus) ([]domain.Assignment, error) {
	for _, st := range statuses {
		if !domain.ValidStatus(st) {
			return nil, domain.Validationf("invalid status %q", st)
		}
	}
	lowered := make([]string, 0, len(owners))
	for _, o := range owners {
		if o = strings.ToLower(strings.TrimSpace(o)); o != "" {
			lowered = append(lowered, o)
		}
	}
	return s.assignments.ListAssignments(ctx, ports.AssignmentFilter{Owners: lowered, Statuses: statuses})
}

// GetTrail fetches the audit trail for one control under one ciso.
func (s *Service) GetTrail(ctx context.Context, ciso, controlID string) (domain.AuditTrail, error) {
	ciso = strings.ToLower(strings.TrimSpace(ciso))
	if ciso == "" || strings.TrimSpace(controlID) == "" {
		return domain.AuditTrail{}, domain.Validationf("ciso and controlId are required")
	}
	return s.audit.Trail(ctx, ciso, strings.TrimSpace(controlID))
}
