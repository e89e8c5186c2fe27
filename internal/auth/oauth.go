package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// DefaultGitHubAPIURL is the public GitHub REST API root.
const DefaultGitHubAPIURL = "https://api.github.com/"

// GitHubUser is the portion of the GitHub /user API response we care about.
type GitHubUser struct {
	ID        int64  `json:"id"`         // GitHub numeric user ID, stable for the account lifetime
	Login     string `json:"login"`      // GitHub username, e.g. "sakif"
	Email     string `json:"email"`      // Primary email (empty if hidden in GitHub settings)
	AvatarURL string `json:"avatar_url"` // Profile picture URL
}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization Code flow.
//
// The code-for-token exchange happens server-to-server with the client
// secret; the access token never reaches the browser. It is handed to the
// auth service, which stores it encrypted on the linked account.
type GitHubProvider struct {
	config *oauth2.Config
	apiURL string
}

// Scopes requested on sign-in. "notifications" and "repo" back the dashboard
// feed and the repository list of /api/github/data.
var Scopes = []string{"read:user", "user:email", "notifications", "repo"}

// NewGitHubProvider creates a GitHubProvider with the given credentials.
//
// callbackURL must match the "Authorization callback URL" of the OAuth App.
// apiURL is the REST root used for the /user lookup; empty means DefaultGitHubAPIURL.
func NewGitHubProvider(clientID, clientSecret, callbackURL, apiURL string) *GitHubProvider {
	if apiURL == "" {
		apiURL = DefaultGitHubAPIURL
	}
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       Scopes,
			Endpoint:     github.Endpoint,
		},
		apiURL: strings.TrimSuffix(apiURL, "/") + "/",
	}
}

// AuthURL returns the URL to redirect the user to for authorization.
// state is the CSRF value the callback compares against the session.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for an access token and the profile
// of the GitHub user who granted it.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, *oauth2.Token, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	ghUser, err := p.fetchUser(ctx, oauthToken)
	if err != nil {
		return nil, nil, err
	}

	return ghUser, oauthToken, nil
}

// fetchUser calls GET /user with the token attached by the oauth2 client.
func (p *GitHubProvider) fetchUser(ctx context.Context, token *oauth2.Token) (*GitHubUser, error) {
	client := p.config.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"user", nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building GitHub /user request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var ghUser GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&ghUser); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}

	if ghUser.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	return &ghUser, nil
}

// GrantedScopes reads the comma separated "scope" field GitHub returns with the token.
func GrantedScopes(token *oauth2.Token) string {
	if token == nil {
		return ""
	}
	if s, ok := token.Extra("scope").(string); ok {
		return s
	}
	return ""
}
