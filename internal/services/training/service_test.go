package training_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PsiTechC/apex/internal/domain"
	"github.com/PsiTechC/apex/internal/services/training"
	"github.com/PsiTechC/apex/internal/testutil"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestBroadcast(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	svc := training.New(store, "https://apex.example.test/training", testLog)

	csv := "name,email\nAlice,alice@corp.test\nBob,bob@corp.test\nAlice again,ALICE@corp.test\nno address here\n"
	res, err := svc.Broadcast(ctx, csv)
	require.NoError(t, err)
	assert.NotEmpty(t, res.TestID)
	assert.Len(t, res.Queued, 2, "duplicates collapse to one invitation")
	assert.Empty(t, res.Skipped)

	queued := store.QueuedMail()
	require.Len(t, queued, 2)
	assert.Contains(t, queued[0].Text, "email=alice%40corp.test")
	assert.Contains(t, queued[0].Text, "testId="+res.TestID)
	assert.Equal(t, "Security Awareness Training Invitation", queued[0].Subject)
}

func TestBroadcastNoRecipients(t *testing.T) {
	svc := training.New(testutil.NewStore(), "https://apex.example.test/training", testLog)
	_, err := svc.Broadcast(context.Background(), "just,a,header,row")
	assert.True(t, domain.IsValidation(err))
}
