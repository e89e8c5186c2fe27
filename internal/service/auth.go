// Package service holds the business logic behind the HTTP handlers.
//
// AuthService turns a completed GitHub OAuth exchange into a signed-in user
// with a linked GitHub account:
//
//	AuthHandler (HTTP) → AuthService → UserRepository, ExternalAccountRepository
//	                                 ↘ TokenService (JWT), TokenCipher
//
// Services never touch HTTP: no cookies, no redirects, no status codes.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/sakif/integration-dashboard/internal/auth"
	"github.com/sakif/integration-dashboard/internal/model"
	"github.com/sakif/integration-dashboard/internal/repository"
)

// AuthService handles sign-in and account linking.
type AuthService struct {
	users    repository.UserRepository
	accounts repository.ExternalAccountRepository
	tokens   *auth.TokenService
	cipher   *auth.TokenCipher
	logger   *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	accounts repository.ExternalAccountRepository,
	tokens *auth.TokenService,
	cipher *auth.TokenCipher,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		accounts: accounts,
		tokens:   tokens,
		cipher:   cipher,
		logger:   logger,
	}
}

// AuthResult bundles the user and the issued JWT so the handler can set the
// cookie and redirect in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// LoginOrRegisterGitHub handles the OAuth callback:
//
//  1. upsert the user keyed on the GitHub ID
//  2. link (or relink) the GitHub account, storing the access token encrypted
//  3. issue the session JWT
//
// Signing in again after a disconnect relinks the account; that is the
// "connect" path of the dashboard.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser, token *oauth2.Token) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("service/auth: GitHub access token must not be empty")
	}

	user := &model.User{
		GitHubID:  ghUser.ID,
		Login:     ghUser.Login,
		Email:     ghUser.Email,
		AvatarURL: ghUser.AvatarURL,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	sealed, err := s.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("service/auth: encrypting GitHub token: %w", err)
	}

	account := &model.ExternalAccount{
		UserID:         user.ID,
		Provider:       model.ProviderGitHub,
		ProviderUserID: fmt.Sprintf("%d", ghUser.ID),
		Login:          ghUser.Login,
		AccessToken:    sealed,
		Scopes:         auth.GrantedScopes(token),
	}
	if err := s.accounts.Link(ctx, account); err != nil {
		return nil, fmt.Errorf("service/auth: linking GitHub account for %s: %w", user.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", user.Login),
		slog.String("scopes", account.Scopes),
	)

	sessionToken, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: sessionToken}, nil
}

// GetUserByID backs /api/me.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

// ValidateToken returns the user ID a session JWT was issued for.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return userID, nil
}
