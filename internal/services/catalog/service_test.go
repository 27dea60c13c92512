package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PsiTechC/apex/internal/domain"
	"github.com/PsiTechC/apex/internal/services/catalog"
	"github.com/PsiTechC/apex/internal/testutil"
)

func validControl() domain.Control {
	return domain.Control{
		ControlID:     "C001",
		FinancialYear: "2025-26",
		Goal:          "anticipate",
		Function:      "identify",
		Description:   "Maintain an asset inventory",
		Frequency:     "Quarterly",
		Applicability: domain.Applicability{MII: "yes", Qualified: "YES"},
	}
}

func TestAddControl(t *testing.T) {
	ctx := context.Background()
	svc := catalog.New(testutil.NewStore())

	c, err := svc.AddControl(ctx, validControl())
	require.NoError(t, err)
	assert.Equal(t, "ANTICIPATE", c.Goal)
	assert.Equal(t, "IDENTIFY", c.Function)
	assert.Equal(t, "B", c.BeginEnd, "indicator defaults to B")
	assert.Equal(t, "YES", c.Applicability.MII)
	assert.Equal(t, "NO", c.Applicability.SelfCert, "blank flags default to NO")

	_, err = svc.AddControl(ctx, validControl())
	assert.True(t, domain.IsConflict(err), "duplicate (controlId, financialYear)")
}

func TestAddControlValidation(t *testing.T) {
	ctx := context.Background()
	svc := catalog.New(testutil.NewStore())

	cases := []struct {
		name   string
		mutate func(*domain.Control)
	}{
		{"missing controlId", func(c *domain.Control) { c.ControlID = " " }},
		{"missing year", func(c *domain.Control) { c.FinancialYear = "" }},
		{"missing description", func(c *domain.Control) { c.Description = "" }},
		{"unknown goal", func(c *domain.Control) { c.Goal = "DOMINATE" }},
		{"unknown function", func(c *domain.Control) { c.Function = "GUESS" }},
		{"bad indicator", func(c *domain.Control) { c.BeginEnd = "X" }},
		{"bad flag", func(c *domain.Control) { c.Applicability.MII = "MAYBE" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validControl()
			tc.mutate(&c)
			_, err := svc.AddControl(ctx, c)
			assert.True(t, domain.IsValidation(err))
		})
	}
}

func TestListControlsByTier(t *testing.T) {
	ctx := context.Background()
	svc := catalog.New(testutil.NewStore())

	a := validControl()
	_, err := svc.AddControl(ctx, a)
	require.NoError(t, err)

	b := validControl()
	b.ControlID = "C002"
	b.Applicability = domain.Applicability{SelfCert: "YES"}
	_, err = svc.AddControl(ctx, b)
	require.NoError(t, err)

	list, err := svc.ListControls(ctx, "2025-26", domain.TierMII)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "C001", list[0].ControlID)

	_, err = svc.ListControls(ctx, "", "RE_BOGUS")
	assert.True(t, domain.IsValidation(err))
}
