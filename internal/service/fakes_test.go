package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/integration-dashboard/internal/apperror"
	"github.com/sakif/integration-dashboard/internal/auth"
	"github.com/sakif/integration-dashboard/internal/githubapi"
	"github.com/sakif/integration-dashboard/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository.
type fakeUserRepo struct {
	users  map[string]*model.User // keyed by internal ID
	byGHID map[int64]*model.User  // keyed by GitHub ID (for Upsert)
	nextID int
	// set to a non-nil error to simulate a database failure
	upsertErr  error
	getByIDErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:  make(map[string]*model.User),
		byGHID: make(map[int64]*model.User),
		nextID: 1,
	}
}

func (f *fakeUserRepo) Upsert(ctx context.Context, user *model.User) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if existing, ok := f.byGHID[user.GitHubID]; ok {
		existing.Login = user.Login
		existing.Email = user.Email
		existing.AvatarURL = user.AvatarURL
		*user = *existing
		return nil
	}

	user.ID = fmt.Sprintf("user-%d", f.nextID)
	f.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.users[user.ID] = &copied
	f.byGHID[user.GitHubID] = &copied
	return nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if f.getByIDErr != nil {
		return nil, f.getByIDErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return u, nil
}

// fakeAccountRepo is an in-memory repository.ExternalAccountRepository keyed
// on userID + provider.
type fakeAccountRepo struct {
	accounts map[string]*model.ExternalAccount
	linkErr  error
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[string]*model.ExternalAccount)}
}

func accountKey(userID, provider string) string { return userID + "/" + provider }

func (f *fakeAccountRepo) Link(ctx context.Context, a *model.ExternalAccount) error {
	if f.linkErr != nil {
		return f.linkErr
	}
	copied := *a
	f.accounts[accountKey(a.UserID, a.Provider)] = &copied
	return nil
}

func (f *fakeAccountRepo) ListByUser(ctx context.Context, userID string) ([]model.ExternalAccount, error) {
	var out []model.ExternalAccount
	for _, a := range f.accounts {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) Get(ctx context.Context, userID, provider string) (*model.ExternalAccount, error) {
	a, ok := f.accounts[accountKey(userID, provider)]
	if !ok {
		return nil, apperror.NotFound("external account", provider)
	}
	return a, nil
}

func (f *fakeAccountRepo) Unlink(ctx context.Context, userID, provider string) error {
	key := accountKey(userID, provider)
	if _, ok := f.accounts[key]; !ok {
		return apperror.NotFound("external account", provider)
	}
	delete(f.accounts, key)
	return nil
}

// fakeChunkRepo is an in-memory repository.SyncChunkRepository.
type fakeChunkRepo struct {
	mu      sync.Mutex
	chunks  map[string][]*model.SyncChunk
	deleted []string
}

func newFakeChunkRepo() *fakeChunkRepo {
	return &fakeChunkRepo{chunks: make(map[string][]*model.SyncChunk)}
}

func (f *fakeChunkRepo) ReplaceForUser(ctx context.Context, userID string, chunks []*model.SyncChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks[userID] = chunks
	return nil
}

func (f *fakeChunkRepo) ListByUser(ctx context.Context, userID string) ([]model.SyncChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.SyncChunk
	for _, c := range f.chunks[userID] {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeChunkRepo) DeleteForUser(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.chunks, userID)
	f.deleted = append(f.deleted, userID)
	return nil
}

// fakeGitHub is a canned githubapi.API. It records the limits it was asked for.
type fakeGitHub struct {
	profile       *model.Profile
	repos         []model.Repository
	notifications []model.Notification
	err           error

	repoLimits []int
}

func (f *fakeGitHub) Profile(ctx context.Context) (*model.Profile, error) {
	return f.profile, f.err
}

func (f *fakeGitHub) Repositories(ctx context.Context, limit int) ([]model.Repository, error) {
	f.repoLimits = append(f.repoLimits, limit)
	if f.err != nil {
		return nil, f.err
	}
	return f.repos[:min(limit, len(f.repos))], nil
}

func (f *fakeGitHub) Notifications(ctx context.Context, limit int) ([]model.Notification, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.notifications[:min(limit, len(f.notifications))], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCipher(t *testing.T) *auth.TokenCipher {
	t.Helper()
	c, err := auth.NewTokenCipher(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32))))
	if err != nil {
		t.Fatalf("NewTokenCipher: %v", err)
	}
	return c
}

// staticFactory hands out gh for any token and records the tokens it saw.
func staticFactory(gh githubapi.API, seen *[]string) ClientFactory {
	return func(ctx context.Context, accessToken string) (githubapi.API, error) {
		if seen != nil {
			*seen = append(*seen, accessToken)
		}
		if gh == nil {
			return nil, errors.New("no client")
		}
		return gh, nil
	}
}
