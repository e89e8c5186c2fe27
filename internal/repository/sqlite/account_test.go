package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/integration-dashboard/internal/apperror"
	"github.com/sakif/integration-dashboard/internal/model"
)

func linkGitHub(t *testing.T, db *DB, userID, token string) *model.ExternalAccount {
	t.Helper()
	acct := &model.ExternalAccount{
		UserID:         userID,
		Provider:       model.ProviderGitHub,
		ProviderUserID: "583231",
		Login:          "octocat",
		AccessToken:    token,
		Scopes:         "read:user,notifications",
	}
	require.NoError(t, db.Accounts().Link(context.Background(), acct))
	return acct
}

func TestAccountLink_CreatesRow(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, 1, "octocat")

	acct := linkGitHub(t, db, user.ID, "enc-token-1")

	assert.NotEmpty(t, acct.ID)
	assert.Equal(t, "enc-token-1", acct.AccessToken)
	assert.False(t, acct.CreatedAt.IsZero())
}

func TestAccountLink_RelinkReplacesToken(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, 1, "octocat")

	first := linkGitHub(t, db, user.ID, "enc-token-1")
	second := linkGitHub(t, db, user.ID, "enc-token-2")

	assert.Equal(t, first.ID, second.ID, "re-linking must keep the row")

	got, err := db.Accounts().Get(context.Background(), user.ID, model.ProviderGitHub)
	require.NoError(t, err)
	assert.Equal(t, "enc-token-2", got.AccessToken)

	all, err := db.Accounts().ListByUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAccountListByUser_Empty(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, 1, "octocat")

	all, err := db.Accounts().ListByUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestAccountUnlink(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, 1, "octocat")
	linkGitHub(t, db, user.ID, "enc-token-1")

	require.NoError(t, db.Accounts().Unlink(context.Background(), user.ID, model.ProviderGitHub))

	_, err := db.Accounts().Get(context.Background(), user.ID, model.ProviderGitHub)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	// The user survives the unlink.
	_, err = db.Users().GetUserByID(context.Background(), user.ID)
	assert.NoError(t, err)
}

func TestAccountUnlink_NotLinked(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, 1, "octocat")

	err := db.Accounts().Unlink(context.Background(), user.ID, model.ProviderGitHub)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
