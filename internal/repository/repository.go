// Package repository declares the storage interfaces the services depend on.
// The sqlite subpackage implements them.
package repository

import (
	"context"

	"github.com/sakif/integration-dashboard/internal/model"
)

type UserRepository interface {
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// ExternalAccountRepository stores linked provider accounts.
// Get and Unlink return apperror.ErrNotFound when no link exists.
type ExternalAccountRepository interface {
	Link(ctx context.Context, account *model.ExternalAccount) error
	ListByUser(ctx context.Context, userID string) ([]model.ExternalAccount, error)
	Get(ctx context.Context, userID, provider string) (*model.ExternalAccount, error)
	Unlink(ctx context.Context, userID, provider string) error
}

// SyncChunkRepository stores the batches written by a GitHub sync.
type SyncChunkRepository interface {
	// ReplaceForUser atomically drops the user's previous chunks and stores chunks.
	ReplaceForUser(ctx context.Context, userID string, chunks []*model.SyncChunk) error
	ListByUser(ctx context.Context, userID string) ([]model.SyncChunk, error)
	DeleteForUser(ctx context.Context, userID string) error
}
