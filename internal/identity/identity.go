// Package identity answers "who is looking at this page, and which external
// accounts have they linked?".
//
// Pages depend only on the Provider interface, never on storage or on the
// session cookie, so tests hand them a fixed provider.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/integration-dashboard/internal/apperror"
	"github.com/sakif/integration-dashboard/internal/model"
	"github.com/sakif/integration-dashboard/internal/repository"
)

// Provider is the identity capability a page is given.
//
// IsReady is false while the identity is still unknown; pages render their
// loading state until it flips. CurrentUser may be nil only when not ready.
type Provider interface {
	IsReady() bool
	CurrentUser() *CurrentUser
}

// CurrentUser is the signed-in user plus their linked external accounts.
type CurrentUser struct {
	User             model.User
	ExternalAccounts []model.ExternalAccount
}

// HasLinked reports whether an external account for provider is linked.
func (u *CurrentUser) HasLinked(provider string) bool {
	if u == nil {
		return false
	}
	for _, a := range u.ExternalAccounts {
		if a.Provider == provider {
			return true
		}
	}
	return false
}

// Snapshot is an immutable Provider.
type Snapshot struct {
	ready bool
	user  *CurrentUser
}

func (s *Snapshot) IsReady() bool             { return s.ready }
func (s *Snapshot) CurrentUser() *CurrentUser { return s.user }

// Ready returns a provider that already knows user.
func Ready(user *CurrentUser) *Snapshot {
	return &Snapshot{ready: true, user: user}
}

// Pending returns a provider that has not resolved the identity yet.
func Pending() *Snapshot {
	return &Snapshot{}
}

// ErrUnknownUser means the session names a user that is not in storage.
// The identity is resolved, and it is nobody.
var ErrUnknownUser = errors.New("identity: unknown user")

// DefaultResolveTimeout bounds the storage lookups of Resolve.
const DefaultResolveTimeout = 2 * time.Second

// Resolver builds a Provider for a signed-in user from storage.
type Resolver struct {
	users    repository.UserRepository
	accounts repository.ExternalAccountRepository
	timeout  time.Duration
	logger   *slog.Logger
}

func NewResolver(users repository.UserRepository, accounts repository.ExternalAccountRepository, timeout time.Duration, logger *slog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	return &Resolver{
		users:    users,
		accounts: accounts,
		timeout:  timeout,
		logger:   logger,
	}
}

// Resolve builds the identity of userID.
//
// Storage failures and timeouts are not errors: the result is Pending(), and
// the page shows its loading state (and polls) instead of an error panel.
// The only error is ErrUnknownUser, which no amount of polling fixes.
func (r *Resolver) Resolve(ctx context.Context, userID string) (Provider, error) {
	user, err := r.load(ctx, userID)
	switch {
	case errors.Is(err, ErrUnknownUser):
		r.logger.Warn("session names an unknown user", slog.String("userID", userID))
		return nil, err
	case err != nil:
		r.logger.Warn("identity not resolved",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return Pending(), nil
	}
	return Ready(user), nil
}

func (r *Resolver) load(ctx context.Context, userID string) (*CurrentUser, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	user, err := r.users.GetUserByID(ctx, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("identity: loading user %s: %w", userID, err)
	}

	accounts, err := r.accounts.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("identity: listing accounts of %s: %w", userID, err)
	}

	return &CurrentUser{User: *user, ExternalAccounts: accounts}, nil
}
