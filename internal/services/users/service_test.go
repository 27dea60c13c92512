package users_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/PsiTechC/apex/internal/domain"
	"github.com/PsiTechC/apex/internal/services/users"
	"github.com/PsiTechC/apex/internal/testutil"
)

var testLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func newService(store *testutil.Store) *users.Service {
	return users.New(store, store, store, "https://apex.example.test", testLog)
}

func TestCreateCISO(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	svc := newService(store)

	u, err := svc.CreateCISO(ctx, "Chief@Corp.Test", "Corp Ltd", domain.TierQualified)
	require.NoError(t, err)
	assert.Equal(t, "chief@corp.test", u.Email)
	assert.Equal(t, domain.RoleCISO, u.Role)
	assert.Equal(t, domain.AccessGranted, u.Status)
	assert.NotEmpty(t, u.PasswordHash)
	_, err = bcrypt.Cost([]byte(u.PasswordHash))
	assert.NoError(t, err, "password hash must be bcrypt")

	queued := store.QueuedMail()
	require.Len(t, queued, 1)
	assert.Equal(t, "chief@corp.test", queued[0].To)
	assert.Contains(t, queued[0].Text, "Temporary password:")

	// Duplicate email conflicts.
	_, err = svc.CreateCISO(ctx, "chief@corp.test", "Corp Ltd", domain.TierQualified)
	assert.True(t, domain.IsConflict(err))

	// Unknown tier is refused.
	_, err = svc.CreateCISO(ctx, "other@corp.test", "Corp Ltd", "RE_UNKNOWN")
	assert.True(t, domain.IsValidation(err))
}

func TestCreateMember(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	svc := newService(store)

	_, err := svc.CreateCISO(ctx, "chief@corp.test", "Corp Ltd", domain.TierMII)
	require.NoError(t, err)

	m, err := svc.CreateMember(ctx, "chief@corp.test", "owner@corp.test", domain.RoleOwner)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, m.Role)
	assert.Equal(t, "Corp Ltd", m.CompanyName)
	assert.Equal(t, domain.TierMII, m.OrganizationType)

	members, err := svc.ListMembers(ctx, "chief@corp.test")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "owner@corp.test", members[0].Email)

	// Unknown ciso is a 404, admin role is not a valid member role.
	_, err = svc.CreateMember(ctx, "ghost@corp.test", "x@corp.test", domain.RoleOwner)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.CreateMember(ctx, "chief@corp.test", "x@corp.test", domain.RoleAdmin)
	assert.True(t, domain.IsValidation(err))
}

func TestUpdateAccess(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	svc := newService(store)

	_, err := svc.CreateCISO(ctx, "chief@corp.test", "Corp Ltd", domain.TierMII)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateAccess(ctx, "chief@corp.test", domain.AccessRestricted))
	u, found, err := store.GetByEmail(ctx, "chief@corp.test")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.AccessRestricted, u.Status)

	assert.ErrorIs(t, svc.UpdateAccess(ctx, "ghost@corp.test", domain.AccessGranted), domain.ErrNotFound)
	assert.True(t, domain.IsValidation(svc.UpdateAccess(ctx, "chief@corp.test", "banned")))
}

func TestDeleteMember(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	svc := newService(store)

	_, err := svc.CreateCISO(ctx, "chief@corp.test", "Corp Ltd", domain.TierMII)
	require.NoError(t, err)
	_, err = svc.CreateMember(ctx, "chief@corp.test", "owner@corp.test", domain.RoleOwner)
	require.NoError(t, err)
	_, err = store.CreateAssignment(ctx, domain.Assignment{
		Owner: "owner@corp.test", ControlID: "C1", EvidenceName: "E", Status: domain.StatusPending,
	})
	require.NoError(t, err)

	// Another ciso cannot delete a member that is not mapped to them.
	_, err = svc.CreateCISO(ctx, "other@corp.test", "Other Ltd", domain.TierMII)
	require.NoError(t, err)
	_, err = svc.DeleteMember(ctx, "other@corp.test", "owner@corp.test")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, found, err := store.GetByEmail(ctx, "owner@corp.test")
	require.NoError(t, err)
	assert.True(t, found, "member must survive a foreign ciso's delete")

	res, err := svc.DeleteMember(ctx, "chief@corp.test", "owner@corp.test")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Users)
	assert.Equal(t, int64(1), res.Assignments)
	assert.Equal(t, int64(1), res.Memberships)

	_, err = svc.DeleteMember(ctx, "chief@corp.test", "owner@corp.test")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
