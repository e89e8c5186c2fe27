package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/integration-dashboard/internal/model"
)

func TestChunkReplaceForUser(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, 1, "octocat")
	ctx := context.Background()

	first := []*model.SyncChunk{
		{Kind: model.ChunkRepositories, Seq: 0, Items: 2, Payload: []byte(`[{"id":1},{"id":2}]`)},
		{Kind: model.ChunkNotifications, Seq: 0, Items: 1, Payload: []byte(`[{"id":"n1"}]`)},
	}
	require.NoError(t, db.Chunks().ReplaceForUser(ctx, user.ID, first))

	got, err := db.Chunks().ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.ChunkNotifications, got[0].Kind)
	assert.Equal(t, model.ChunkRepositories, got[1].Kind)
	assert.JSONEq(t, `[{"id":1},{"id":2}]`, string(got[1].Payload))

	// A second sync replaces, never appends.
	second := []*model.SyncChunk{
		{Kind: model.ChunkRepositories, Seq: 0, Items: 1, Payload: []byte(`[{"id":3}]`)},
	}
	require.NoError(t, db.Chunks().ReplaceForUser(ctx, user.ID, second))

	got, err = db.Chunks().ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Items)
	assert.Equal(t, user.ID, got[0].UserID)
}

func TestChunkDeleteForUser(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, 1, "alice")
	bob := createTestUser(t, db, 2, "bob")
	ctx := context.Background()

	chunk := func() []*model.SyncChunk {
		return []*model.SyncChunk{{Kind: model.ChunkRepositories, Items: 1, Payload: []byte(`[]`)}}
	}
	require.NoError(t, db.Chunks().ReplaceForUser(ctx, alice.ID, chunk()))
	require.NoError(t, db.Chunks().ReplaceForUser(ctx, bob.ID, chunk()))

	require.NoError(t, db.Chunks().DeleteForUser(ctx, alice.ID))

	got, err := db.Chunks().ListByUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = db.Chunks().ListByUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
