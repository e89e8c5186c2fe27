package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/integration-dashboard/internal/model"
	"github.com/sakif/integration-dashboard/internal/repository"
)

var _ repository.SyncChunkRepository = (*ChunkStore)(nil)

// ChunkStore reads and writes the github_sync_chunks table.
type ChunkStore struct {
	conn *sql.DB
}

// ReplaceForUser swaps the user's previous sync output for chunks in one
// transaction, so readers never see a half-written sync.
func (s *ChunkStore) ReplaceForUser(ctx context.Context, userID string, chunks []*model.SyncChunk) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning sync transaction: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM github_sync_chunks WHERE user_id = ?`, userID,
	); err != nil {
		return fmt.Errorf("sqlite: clearing chunks for user %s: %w", userID, err)
	}

	now := time.Now()
	for _, c := range chunks {
		c.ID = xid.New().String()
		c.UserID = userID
		c.SyncedAt = now

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO github_sync_chunks (id, user_id, kind, seq, items, payload, synced_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.UserID, c.Kind, c.Seq, c.Items, c.Payload, c.SyncedAt,
		); err != nil {
			return fmt.Errorf("sqlite: inserting %s chunk %d: %w", c.Kind, c.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing sync: %w", err)
	}
	return nil
}

// ListByUser returns the user's chunks ordered by kind then sequence.
func (s *ChunkStore) ListByUser(ctx context.Context, userID string) ([]model.SyncChunk, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, user_id, kind, seq, items, payload, synced_at
		 FROM github_sync_chunks
		 WHERE user_id = ?
		 ORDER BY kind, seq`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing chunks for user %s: %w", userID, err)
	}
	defer rows.Close()

	chunks := []model.SyncChunk{}
	for rows.Next() {
		var c model.SyncChunk
		if err := rows.Scan(&c.ID, &c.UserID, &c.Kind, &c.Seq, &c.Items, &c.Payload, &c.SyncedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning chunk row: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating chunks: %w", err)
	}

	return chunks, nil
}

// DeleteForUser removes every stored chunk of the user. Deleting nothing is not an error.
func (s *ChunkStore) DeleteForUser(ctx context.Context, userID string) error {
	if _, err := s.conn.ExecContext(ctx,
		`DELETE FROM github_sync_chunks WHERE user_id = ?`, userID,
	); err != nil {
		return fmt.Errorf("sqlite: deleting chunks for user %s: %w", userID, err)
	}
	return nil
}
