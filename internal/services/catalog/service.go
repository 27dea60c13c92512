package catalog

import (
	"context"
	"strings"

	"github.com/PsiTechC/apex/internal/domain"
	"github.com/PsiTechC/apex/internal/ports"
)

// Service maintains the control catalog.
type Service struct {
	controls ports.ControlRepository
}

func New(controls ports.ControlRepository) *Service {
	return &Service{controls: controls}
}

var yesNo = map[string]bool{"YES": true, "NO": true}

// AddControl validates and stores a new control definition. Duplicate
// (control id, financial year) pairs are rejected with a conflict.
func (s *Service) AddControl(ctx context.Context, c domain.Control) (domain.Control, error) {
	c.ControlID = strings.TrimSpace(c.ControlID)
	c.FinancialYear = strings.TrimSpace(c.FinancialYear)
	c.Goal = strings.ToUpper(strings.TrimSpace(c.Goal))
	c.Function = strings.ToUpper(strings.TrimSpace(c.Function))

	switch {
	case c.ControlID == "":
		return domain.Control{}, domain.Validationf("missing required field: controlId")
	case c.FinancialYear == "":
		return domain.Control{}, domain.Validationf("missing required field: financialYear")
	case c.Goal == "":
		return domain.Control{}, domain.Validationf("missing required field: goal")
	case c.Function == "":
		return domain.Control{}, domain.Validationf("missing required field: function")
	case strings.TrimSpace(c.Description) == "":
		return domain.Control{}, domain.Validationf("missing required field: description")
	}
	if !contains(domain.Goals, c.Goal) {
		return domain.Control{}, domain.Validationf("unknown goal %q", c.Goal)
	}
	if !contains(domain.Functions, c.Function) {
		return domain.Control{}, domain.Validationf("unknown function %q", c.Function)
	}

	c.BeginEnd = strings.ToUpper(strings.TrimSpace(c.BeginEnd))
	if c.BeginEnd == "" {
		c.BeginEnd = "B"
	}
	if c.BeginEnd != "B" && c.BeginEnd != "E" {
		return domain.Control{}, domain.Validationf("beginning/end indicator must be 'B' or 'E'")
	}

	flags := []*string{
		&c.Applicability.MII, &c.Applicability.Qualified, &c.Applicability.MidSized,
		&c.Applicability.SmallSized, &c.Applicability.SelfCert,
	}
	for _, f := range flags {
		*f = strings.ToUpper(strings.TrimSpace(*f))
		if *f == "" {
			*f = "NO"
		}
		if !yesNo[*f] {
			return domain.Control{}, domain.Validationf("applicability flags must be YES or NO")
		}
	}

	if c.ControlStatus == "" {
		c.ControlStatus = "A"
	}
	return s.controls.CreateControl(ctx, c)
}

// ListControls returns catalog entries, optionally narrowed to a
// financial year and an organization tier's applicable set.
func (s *Service) ListControls(ctx context.Context, year string, tier domain.OrgTier) ([]domain.Control, error) {
	if tier != "" && !domain.ValidTier(tier) {
		return nil, domain.Validationf("invalid organization type %q", tier)
	}
	return s.controls.ListControls(ctx, ports.ControlFilter{FinancialYear: year, Tier: tier})
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
