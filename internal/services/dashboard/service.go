package dashboard

import (
	"context"
	"sort"
	"strings"

	"github.com/PsiTechC/apex/internal/domain"
	"github.com/PsiTechC/apex/internal/ports"
)

// Overview is the aggregated read model behind the dashboard endpoint.
type Overview struct {
	Counts         map[domain.AssignmentStatus]int
	Total          int
	PendingByOwner []OwnerPending
	Tier           *TierBreakdown
}

// OwnerPending lists one owner's still-pending assignments.
type OwnerPending struct {
	Owner       string
	Assignments []domain.Assignment
}

// TierBreakdown is the applicable-control view for one organization tier.
type TierBreakdown struct {
	Tier   domain.OrgTier
	Total  int
	ByGoal map[string]int
}

// Service builds read-only projections over assignments and controls.
type Service struct {
	assignments ports.AssignmentRepository
	controls    ports.ControlRepository
}

func New(assignments ports.AssignmentRepository, controls ports.ControlRepository) *Service {
	return &Service{assignments: assignments, controls: controls}
}

// Build assembles the dashboard: status counts over the four active
// states (optionally scoped to a set of owners), the pending list
// grouped by owner, and, when a tier is given, the applicable control
// totals per goal.
func (s *Service) Build(ctx context.Context, owners []string, tier domain.OrgTier) (Overview, error) {
	scoped := make([]string, 0, len(owners))
	for _, o := range owners {
		if o = strings.ToLower(strings.TrimSpace(o)); o != "" {
			scoped = append(scoped, o)
		}
	}

	counts, err := s.assignments.CountByStatus(ctx, scoped)
	if err != nil {
		return Overview{}, err
	}
	ov := Overview{Counts: make(map[domain.AssignmentStatus]int, len(domain.ActiveStatuses))}
	for _, st := range domain.ActiveStatuses {
		ov.Counts[st] = counts[st]
		ov.Total += counts[st]
	}

	pending, err := s.assignments.ListAssignments(ctx, ports.AssignmentFilter{
		Owners:   scoped,
		Statuses: []domain.AssignmentStatus{domain.StatusPending},
	})
	if err != nil {
		return Overview{}, err
	}
	byOwner := make(map[string][]domain.Assignment)
	for _, a := range pending {
		byOwner[a.Owner] = append(byOwner[a.Owner], a)
	}
	names := make([]string, 0, len(byOwner))
	for o := range byOwner {
		names = append(names, o)
	}
	sort.Strings(names)
	for _, o := range names {
		ov.PendingByOwner = append(ov.PendingByOwner, OwnerPending{Owner: o, Assignments: byOwner[o]})
	}

	if tier != "" {
		if !domain.ValidTier(tier) {
			return Overview{}, domain.Validationf("invalid organization type %q", tier)
		}
		total, err := s.controls.CountByTier(ctx, tier)
		if err != nil {
			return Overview{}, err
		}
		goals, err := s.controls.GoalCountsByTier(ctx, tier)
		if err != nil {
			return Overview{}, err
		}
		byGoal := make(map[string]int, len(domain.Goals))
		for _, g := range domain.Goals {
			byGoal[g] = goals[g]
		}
		ov.Tier = &TierBreakdown{Tier: tier, Total: total, ByGoal: byGoal}
	}
	return ov, nil
}
