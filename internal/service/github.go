package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/integration-dashboard/internal/apperror"
	"github.com/sakif/integration-dashboard/internal/auth"
	"github.com/sakif/integration-dashboard/internal/githubapi"
	"github.com/sakif/integration-dashboard/internal/model"
	"github.com/sakif/integration-dashboard/internal/repository"
)

// Item limits of the dashboard payload and of a sync.
const (
	DataRepoLimit         = 30
	DataNotificationLimit = 50
	SyncRepoLimit         = 1000
	SyncNotificationLimit = 1000
)

// ClientFactory builds a GitHub client for one decrypted access token.
type ClientFactory func(ctx context.Context, accessToken string) (githubapi.API, error)

// NewClientFactory returns a ClientFactory backed by go-github at apiURL.
func NewClientFactory(apiURL string) ClientFactory {
	return func(ctx context.Context, accessToken string) (githubapi.API, error) {
		return githubapi.NewClient(ctx, accessToken, apiURL)
	}
}

// GitHubService implements the three /api/github operations for a signed-in user.
type GitHubService struct {
	accounts  repository.ExternalAccountRepository
	chunks    repository.SyncChunkRepository
	cipher    *auth.TokenCipher
	newClient ClientFactory
	chunkSize int
	logger    *slog.Logger
}

func NewGitHubService(
	accounts repository.ExternalAccountRepository,
	chunks repository.SyncChunkRepository,
	cipher *auth.TokenCipher,
	newClient ClientFactory,
	chunkSize int,
	logger *slog.Logger,
) *GitHubService {
	if chunkSize <= 0 {
		chunkSize = 50
	}
	return &GitHubService{
		accounts:  accounts,
		chunks:    chunks,
		cipher:    cipher,
		newClient: newClient,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// client returns a GitHub client for the user's linked account, or
// apperror.ErrNotConnected when there is none.
func (s *GitHubService) client(ctx context.Context, userID string) (githubapi.API, error) {
	account, err := s.accounts.Get(ctx, userID, model.ProviderGitHub)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotConnected(model.ProviderGitHub)
		}
		return nil, fmt.Errorf("service/github: loading account of %s: %w", userID, err)
	}

	token, err := s.cipher.Decrypt(account.AccessToken)
	if err != nil {
		s.logger.Error("stored GitHub token unreadable",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Unauthorized("Stored GitHub credentials are invalid, reconnect your account")
	}

	client, err := s.newClient(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("service/github: creating client: %w", err)
	}
	return client, nil
}

// Data returns the dashboard payload: profile, recently updated repositories
// and unread notifications.
func (s *GitHubService) Data(ctx context.Context, userID string) (*model.GitHubData, error) {
	client, err := s.client(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile, err := client.Profile(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/github: profile: %w", err)
	}

	repos, err := client.Repositories(ctx, DataRepoLimit)
	if err != nil {
		return nil, fmt.Errorf("service/github: repositories: %w", err)
	}

	notifications, err := client.Notifications(ctx, DataNotificationLimit)
	if err != nil {
		return nil, fmt.Errorf("service/github: notifications: %w", err)
	}

	// Empty lists encode as [] rather than null.
	if repos == nil {
		repos = []model.Repository{}
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}

	return &model.GitHubData{
		User:          profile,
		Repos:         repos,
		Notifications: notifications,
	}, nil
}

// Sync snapshots the user's repositories and notifications into chunks of at
// most chunkSize items each, replacing the previous snapshot. The result
// counts the chunks written.
func (s *GitHubService) Sync(ctx context.Context, userID string) (*model.SyncResult, error) {
	client, err := s.client(ctx, userID)
	if err != nil {
		return nil, err
	}

	repos, err := client.Repositories(ctx, SyncRepoLimit)
	if err != nil {
		return nil, fmt.Errorf("service/github: syncing repositories: %w", err)
	}

	notifications, err := client.Notifications(ctx, SyncNotificationLimit)
	if err != nil {
		return nil, fmt.Errorf("service/github: syncing notifications: %w", err)
	}

	repoChunks, err := chunk(model.ChunkRepositories, repos, s.chunkSize)
	if err != nil {
		return nil, err
	}
	notificationChunks, err := chunk(model.ChunkNotifications, notifications, s.chunkSize)
	if err != nil {
		return nil, err
	}
	all := append(repoChunks, notificationChunks...)

	if err := s.chunks.ReplaceForUser(ctx, userID, all); err != nil {
		return nil, fmt.Errorf("service/github: storing sync: %w", err)
	}

	s.logger.Info("github sync completed",
		slog.String("userID", userID),
		slog.Int("repositories", len(repos)),
		slog.Int("notifications", len(notifications)),
		slog.Int("chunks", len(all)),
	)

	return &model.SyncResult{Chunks: len(all)}, nil
}

// chunk splits items into batches of size. No items, no chunks.
func chunk[T any](kind string, items []T, size int) ([]*model.SyncChunk, error) {
	var out []*model.SyncChunk
	for seq, start := 0, 0; start < len(items); seq, start = seq+1, start+size {
		end := min(start+size, len(items))

		payload, err := json.Marshal(items[start:end])
		if err != nil {
			return nil, fmt.Errorf("service/github: encoding %s chunk %d: %w", kind, seq, err)
		}

		out = append(out, &model.SyncChunk{
			Kind:    kind,
			Seq:     seq,
			Items:   end - start,
			Payload: payload,
		})
	}
	return out, nil
}

// Disconnect unlinks the GitHub account and drops its synced data. The user
// stays signed in.
func (s *GitHubService) Disconnect(ctx context.Context, userID string) error {
	if err := s.accounts.Unlink(ctx, userID, model.ProviderGitHub); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotConnected(model.ProviderGitHub)
		}
		return fmt.Errorf("service/github: unlinking %s: %w", userID, err)
	}

	if err := s.chunks.DeleteForUser(ctx, userID); err != nil {
		return fmt.Errorf("service/github: dropping synced data of %s: %w", userID, err)
	}

	s.logger.Info("github account disconnected", slog.String("userID", userID))
	return nil
}
