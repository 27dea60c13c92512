package assignments_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PsiTechC/apex/internal/domain"
	"github.com/PsiTechC/apex/internal/services/assignments"
	"github.com/PsiTechC/apex/internal/testutil"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestAssignCreatesPending(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	svc := assignments.New(store, store, testLog)

	res, err := svc.Assign(ctx, "ciso@corp.test", []assignments.EvidenceInput{
		{Owner: "a@corp.test", ControlID: "C001", EvidenceName: "Policy", Frequency: domain.FreqYearly},
		{Owner: "b@corp.test", ControlID: "C001", EvidenceName: "Minutes", Frequency: domain.FreqQuarterly},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 0, res.Updated)

	list, err := svc.ListAssignments(ctx, nil, []domain.AssignmentStatus{domain.StatusPending})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	trail, err := store.Trail(ctx, "ciso@corp.test", "C001")
	require.NoError(t, err)
	assert.Len(t, trail.Evidences, 2)
}

func TestReassignRecordsChanges(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	svc := assignments.New(store, store, testLog)

	batch := []assignments.EvidenceInput{
		{Owner: "a@corp.test", ControlID: "C002", EvidenceName: "Report", Frequency: domain.FreqQuarterly},
	}
	_, err := svc.Assign(ctx, "ciso@corp.test", batch)
	require.NoError(t, err)

	// Same owner and frequency again: no update, no change records.
	res, err := svc.Assign(ctx, "ciso@corp.test", batch)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 0, res.Updated)

	// New owner and frequency: one update with two ordered change records.
	batch[0].Owner = "b@corp.test"
	batch[0].Frequency = domain.FreqMonthly
	res, err = svc.Assign(ctx, "ciso@corp.test", batch)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	trail, err := store.Trail(ctx, "ciso@corp.test", "C002")
	require.NoError(t, err)
	require.Len(t, trail.Evidences, 1)
	ev := trail.Evidences[0]
	require.Len(t, ev.Changes, 2)
	assert.Equal(t, "owner", ev.Changes[0].Field)
	assert.Equal(t, "a@corp.test", ev.Changes[0].OldValue)
	assert.Equal(t, "b@corp.test", ev.Changes[0].NewValue)
	assert.Equal(t, "frequency", ev.Changes[1].Field)
	assert.Equal(t, string(domain.FreqQuarterly), ev.Changes[1].OldValue)
	assert.Equal(t, string(domain.FreqMonthly), ev.Changes[1].NewValue)

	// Change detection compares against the latest recorded value, so
	// reassigning back to the original owner records another change.
	batch[0].Owner = "a@corp.test"
	_, err = svc.Assign(ctx, "ciso@corp.test", batch)
	require.NoError(t, err)
	trail, err = store.Trail(ctx, "ciso@corp.test", "C002")
	require.NoError(t, err)
	require.Len(t, trail.Evidences[0].Changes, 3)
	assert.Equal(t, "b@corp.test", trail.Evidences[0].Changes[2].OldValue)
	assert.Equal(t, "a@corp.test", trail.Evidences[0].Changes[2].NewValue)

	asg, found, err := store.FindByControlEvidence(ctx, "C002", "Report")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "a@corp.test", asg.Owner)
	assert.Equal(t, domain.FreqMonthly, asg.Frequency)
}

func TestAssignValidation(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	svc := assignments.New(store, store, testLog)

	_, err := svc.Assign(ctx, "", []assignments.EvidenceInput{{Owner: "a@x.test", ControlID: "C1", EvidenceName: "E", Frequency: domain.FreqYearly}})
	assert.True(t, domain.IsValidation(err))

	_, err = svc.Assign(ctx, "ciso@x.test", nil)
	assert.True(t, domain.IsValidation(err))

	_, err = svc.Assign(ctx, "ciso@x.test", []assignments.EvidenceInput{{Owner: "a@x.test", ControlID: "C1", EvidenceName: "E", Frequency: "Weekly"}})
	assert.True(t, domain.IsValidation(err))
}

func TestListAssignmentsFilters(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	svc := assignments.New(store, store, testLog)

	_, err := svc.Assign(ctx, "ciso@corp.test", []assignments.EvidenceInput{
		{Owner: "a@corp.test", ControlID: "C003", EvidenceName: "One", Frequency: domain.FreqYearly},
		{Owner: "b@corp.test", ControlID: "C003", EvidenceName: "Two", Frequency: domain.FreqYearly},
	})
	require.NoError(t, err)

	list, err := svc.ListAssignments(ctx, []string{"A@corp.test"}, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a@corp.test", list[0].Owner)

	_, err = svc.ListAssignments(ctx, nil, []domain.AssignmentStatus{"bogus"})
	assert.True(t, domain.IsValidation(err))
}
