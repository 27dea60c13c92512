package evidence_test

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PsiTechC/apex/internal/adapters/storage"
	"github.com/PsiTechC/apex/internal/domain"
	"github.com/PsiTechC/apex/internal/services/assignments"
	"github.com/PsiTechC/apex/internal/services/evidence"
	"github.com/PsiTechC/apex/internal/testutil"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func pdf(t *testing.T) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 test"))
}

func setup(t *testing.T) (*testutil.Store, *evidence.Service) {
	t.Helper()
	store := testutil.NewStore()
	svc := evidence.New(store, store, store, storage.NewMemoryStore(), testLog)
	return store, svc
}

func assign(t *testing.T, store *testutil.Store, owner, controlID, name string, freq domain.Frequency) {
	t.Helper()
	asgSvc := assignments.New(store, store, testLog)
	_, err := asgSvc.Assign(context.Background(), "ciso@corp.test", []assignments.EvidenceInput{{
		Owner: owner, ControlID: controlID, EvidenceName: name, Frequency: freq,
	}})
	require.NoError(t, err)
}

func fileURL(t *testing.T, store *testutil.Store, controlID, name, fileName string) string {
	t.Helper()
	asg, found, err := store.FindByControlEvidence(context.Background(), controlID, name)
	require.NoError(t, err)
	require.True(t, found)
	for _, f := range asg.Files {
		if f.FileName == fileName {
			return f.URL
		}
	}
	t.Fatalf("file %s not found on assignment", fileName)
	return ""
}

func currentStatus(t *testing.T, store *testutil.Store, controlID, name string) domain.AssignmentStatus {
	t.Helper()
	asg, found, err := store.FindByControlEvidence(context.Background(), controlID, name)
	require.NoError(t, err)
	require.True(t, found)
	return asg.Status
}

func TestQuarterlyLifecycle(t *testing.T) {
	ctx := context.Background()
	store, svc := setup(t)
	assign(t, store, "owner@corp.test", "C010", "NetworkDiagram", domain.FreqQuarterly)
	assert.Equal(t, domain.StatusPending, currentStatus(t, store, "C010", "NetworkDiagram"))

	// Q1 upload moves the assignment to pending-approval.
	res, err := svc.Upload(ctx, "owner@corp.test", []evidence.FileInput{
		{FileName: "C010_NetworkDiagram_Q1.pdf", Base64: pdf(t)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"C010_NetworkDiagram_Q1.pdf"}, res.Uploaded)
	assert.Equal(t, domain.StatusPendingApproval, currentStatus(t, store, "C010", "NetworkDiagram"))

	// Q2 is gated until Q1 is approved.
	_, err = svc.Upload(ctx, "owner@corp.test", []evidence.FileInput{
		{FileName: "C010_NetworkDiagram_Q2.pdf", Base64: pdf(t)},
	})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	q1 := fileURL(t, store, "C010", "NetworkDiagram", "C010_NetworkDiagram_Q1.pdf")
	_, err = svc.Review(ctx, "ciso@corp.test", "approved", "", []string{q1})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, currentStatus(t, store, "C010", "NetworkDiagram"))

	// Q2 now passes the gate.
	_, err = svc.Upload(ctx, "owner@corp.test", []evidence.FileInput{
		{FileName: "C010_NetworkDiagram_Q2.pdf", Base64: pdf(t)},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingApproval, currentStatus(t, store, "C010", "NetworkDiagram"))

	// Rejection stores the comment and drops to partially-approved.
	q2 := fileURL(t, store, "C010", "NetworkDiagram", "C010_NetworkDiagram_Q2.pdf")
	_, err = svc.Review(ctx, "ciso@corp.test", "rejected", "diagram is outdated", []string{q2})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPartiallyApproved, currentStatus(t, store, "C010", "NetworkDiagram"))

	// Re-upload resets the file to pending and clears the comment.
	res, err = svc.Upload(ctx, "owner@corp.test", []evidence.FileInput{
		{FileName: "C010_NetworkDiagram_Q2.pdf", Base64: pdf(t)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"C010_NetworkDiagram_Q2.pdf"}, res.Reuploaded)
	assert.Equal(t, domain.StatusPendingApproval, currentStatus(t, store, "C010", "NetworkDiagram"))

	asg, _, err := store.FindByControlEvidence(ctx, "C010", "NetworkDiagram")
	require.NoError(t, err)
	for _, f := range asg.Files {
		if f.FileName == "C010_NetworkDiagram_Q2.pdf" {
			assert.Equal(t, domain.FilePending, f.Status)
			assert.Empty(t, f.Comment)
		}
	}

	// Approving the refreshed Q2 completes the assignment.
	q2 = fileURL(t, store, "C010", "NetworkDiagram", "C010_NetworkDiagram_Q2.pdf")
	_, err = svc.Review(ctx, "ciso@corp.test", "approved", "", []string{q2})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, currentStatus(t, store, "C010", "NetworkDiagram"))
}

func TestReuploadSkipsSequentialGate(t *testing.T) {
	ctx := context.Background()
	store, svc := setup(t)
	assign(t, store, "owner@corp.test", "C011", "Firewalls", domain.FreqQuarterly)

	_, err := svc.Upload(ctx, "owner@corp.test", []evidence.FileInput{
		{FileName: "C011_Firewalls_Q1.pdf", Base64: pdf(t)},
	})
	require.NoError(t, err)
	q1 := fileURL(t, store, "C011", "Firewalls", "C011_Firewalls_Q1.pdf")
	_, err = svc.Review(ctx, "ciso@corp.test", "approved", "", []string{q1})
	require.NoError(t, err)
	_, err = svc.Upload(ctx, "owner@corp.test", []evidence.FileInput{
		{FileName: "C011_Firewalls_Q2.pdf", Base64: pdf(t)},
	})
	require.NoError(t, err)

	// Re-uploading Q1 drops it back to pending.
	_, err = svc.Upload(ctx, "owner@corp.test", []evidence.FileInput{
		{FileName: "C011_Firewalls_Q1.pdf", Base64: pdf(t)},
	})
	require.NoError(t, err)

	// Q2 already has a file, so its re-upload is not gated on Q1.
	res, err := svc.Upload(ctx, "owner@corp.test", []evidence.FileInput{
		{FileName: "C011_Firewalls_Q2.pdf", Base64: pdf(t)},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"C011_Firewalls_Q2.pdf"}, res.Reuploaded)

	// A fresh Q3 is still gated.
	_, err = svc.Upload(ctx, "owner@corp.test", []evidence.FileInput{
		{FileName: "C011_Firewalls_Q3.pdf", Base64: pdf(t)},
	})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestReuploadHistoryAppendOnly(t *testing.T) {
	ctx := context.Background()
	store, svc := setup(t)
	assign(t, store, "owner@corp.test", "C020", "AccessReview", domain.FreqYearly)

	_, err := svc.Upload(ctx, "owner@corp.test", []evidence.FileInput{
		{FileName: "C020_AccessReview.pdf", Base64: pdf(t)},
	})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = svc.Upload(ctx, "owner@corp.test", []evidence.FileInput{
			{FileName: "C020_AccessReview.pdf", Base64: pdf(t)},
		})
		require.NoError(t, err)
	}

	trail, err := store.Trail(ctx, "ciso@corp.test", "C020")
	require.NoError(t, err)
	require.Len(t, trail.Evidences, 1)
	require.Len(t, trail.Evidences[0].Uploads, 1)
	assert.Len(t, trail.Evidences[0].Uploads[0].Reuploads, 2)
}

func TestUploadValidation(t *testing.T) {
	ctx := context.Background()
	store, svc := setup(t)
	assign(t, store, "owner@corp.test", "C030", "Backups", domain.FreqQuarterly)

	cases := []struct {
		name string
		in   evidence.FileInput
	}{
		{"unknown assignment", evidence.FileInput{FileName: "C999_Nothing_Q1.pdf", Base64: pdf(t)}},
		{"wrong period kind", evidence.FileInput{FileName: "C030_Backups_Month2.pdf", Base64: pdf(t)}},
		{"bad base64", evidence.FileInput{FileName: "C030_Backups_Q1.pdf", Base64: "%%%"}},
		{"malformed name", evidence.FileInput{FileName: "nounderscore.pdf", Base64: pdf(t)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, "owner@corp.test", []evidence.FileInput{tc.in})
			require.Error(t, err)
		})
	}

	// Upload by someone other than the assigned owner is refused.
	_, err := svc.Upload(ctx, "intruder@corp.test", []evidence.FileInput{
		{FileName: "C030_Backups_Q1.pdf", Base64: pdf(t)},
	})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestRiskIsSticky(t *testing.T) {
	ctx := context.Background()
	store, svc := setup(t)
	assign(t, store, "owner@corp.test", "C040", "IncidentLog", domain.FreqYearly)

	_, err := svc.Upload(ctx, "owner@corp.test", []evidence.FileInput{
		{FileName: "C040_IncidentLog.pdf", Base64: pdf(t)},
	})
	require.NoError(t, err)
	url := fileURL(t, store, "C040", "IncidentLog", "C040_IncidentLog.pdf")

	_, err = svc.Review(ctx, "ciso@corp.test", "risk", "control cannot be met this year", []string{url})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRisk, currentStatus(t, store, "C040", "IncidentLog"))

	// The audit trail carries the risk annotation.
	trail, err := store.Trail(ctx, "ciso@corp.test", "C040")
	require.NoError(t, err)
	require.Len(t, trail.Evidences, 1)
	assert.Equal(t, "risk", trail.Evidences[0].RiskStatus)
	assert.Equal(t, "control cannot be met this year", trail.Evidences[0].RiskComment)

	// A later file approval does not lift the risk flag.
	_, err = svc.Review(ctx, "ciso@corp.test", "approved", "", []string{url})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRisk, currentStatus(t, store, "C040", "IncidentLog"))

	// The register lists the flagged assignment.
	risks, err := svc.ListRisks(ctx)
	require.NoError(t, err)
	var controls []string
	for _, r := range risks {
		controls = append(controls, r.ControlID)
	}
	assert.Contains(t, controls, "C040")
}

func TestReviewValidation(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()

	_, err := svc.Review(ctx, "ciso@corp.test", "maybe", "", []string{"memory://x"})
	assert.True(t, domain.IsValidation(err))

	_, err = svc.Review(ctx, "ciso@corp.test", "rejected", "", []string{"memory://x"})
	assert.True(t, domain.IsValidation(err))

	_, err = svc.Review(ctx, "ciso@corp.test", "approved", "", nil)
	assert.True(t, domain.IsValidation(err))
}

func TestAddRisk(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()

	entry, err := svc.AddRisk(ctx, domain.RiskEntry{
		RiskType:    "other",
		Description: "vendor contract lapse",
		Owner:       "CISO@corp.test",
	})
	require.NoError(t, err)
	assert.Equal(t, "risk", entry.Status)
	assert.Equal(t, "ciso@corp.test", entry.Owner)
	assert.NotEmpty(t, entry.Date)

	_, err = svc.AddRisk(ctx, domain.RiskEntry{RiskType: "control", Description: "x"})
	assert.True(t, domain.IsValidation(err), "control risk without controlId")

	_, err = svc.AddRisk(ctx, domain.RiskEntry{RiskType: "weird", Description: "x"})
	assert.True(t, domain.IsValidation(err))
}
