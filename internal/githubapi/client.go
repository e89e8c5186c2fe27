// Package githubapi reads the linked account's data from the GitHub REST API.
//
// It is the only package that imports go-github. Everything it returns is
// already converted to the internal/model types of the /api/github contract,
// and every error is an *apperror.AppError (see errors.go).
package githubapi

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/sakif/integration-dashboard/internal/model"
)

// maxPerPage is GitHub's page size ceiling.
const maxPerPage = 100

// API is what the GitHub service needs from GitHub. Tests substitute a fake.
type API interface {
	Profile(ctx context.Context) (*model.Profile, error)
	// Repositories lists the user's repositories, most recently updated first,
	// following pagination until limit items were collected.
	Repositories(ctx context.Context, limit int) ([]model.Repository, error)
	// Notifications lists unread notifications, newest first, up to limit.
	Notifications(ctx context.Context, limit int) ([]model.Notification, error)
}

// Client implements API with go-github.
type Client struct {
	gh *github.Client
}

var _ API = (*Client)(nil)

// NewClient returns a client that authenticates every call with accessToken.
// baseURL is the REST root; empty means https://api.github.com/.
func NewClient(ctx context.Context, accessToken, baseURL string) (*Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	gh := github.NewClient(oauth2.NewClient(ctx, ts))

	if baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("githubapi: parsing base URL %q: %w", baseURL, err)
		}
		gh.BaseURL = u
	}

	return &Client{gh: gh}, nil
}

// Profile returns the authenticated user.
func (c *Client) Profile(ctx context.Context) (*model.Profile, error) {
	u, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return nil, wrapError(err, "profile")
	}
	return convertUser(u), nil
}

func (c *Client) Repositories(ctx context.Context, limit int) ([]model.Repository, error) {
	opts := &github.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: pageSize(limit)},
	}

	repos := []model.Repository{}
	for {
		page, resp, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			return nil, wrapError(err, "repositories")
		}
		for _, r := range page {
			repos = append(repos, convertRepository(r))
			if len(repos) == limit {
				return repos, nil
			}
		}
		if resp.NextPage == 0 {
			return repos, nil
		}
		opts.Page = resp.NextPage
	}
}

func (c *Client) Notifications(ctx context.Context, limit int) ([]model.Notification, error) {
	opts := &github.NotificationListOptions{
		ListOptions: github.ListOptions{PerPage: pageSize(limit)},
	}

	notifications := []model.Notification{}
	for {
		page, resp, err := c.gh.Activity.ListNotifications(ctx, opts)
		if err != nil {
			return nil, wrapError(err, "notifications")
		}
		for _, n := range page {
			notifications = append(notifications, convertNotification(n))
			if len(notifications) == limit {
				return notifications, nil
			}
		}
		if resp.NextPage == 0 {
			return notifications, nil
		}
		opts.Page = resp.NextPage
	}
}

func pageSize(limit int) int {
	if limit <= 0 || limit > maxPerPage {
		return maxPerPage
	}
	return limit
}

func convertUser(u *github.User) *model.Profile {
	return &model.Profile{
		Login:       u.GetLogin(),
		Name:        u.Name,
		AvatarURL:   u.GetAvatarURL(),
		Bio:         u.Bio,
		PublicRepos: u.GetPublicRepos(),
	}
}

func convertRepository(r *github.Repository) model.Repository {
	return model.Repository{
		ID:              r.GetID(),
		Name:            r.GetName(),
		FullName:        r.GetFullName(),
		Description:     r.Description,
		StargazersCount: r.GetStargazersCount(),
		ForksCount:      r.GetForksCount(),
		UpdatedAt:       r.GetUpdatedAt().Time,
		HTMLURL:         r.GetHTMLURL(),
	}
}

func convertNotification(n *github.Notification) model.Notification {
	return model.Notification{
		ID:         n.GetID(),
		Repository: model.NotificationRepository{FullName: n.GetRepository().GetFullName()},
		Subject: model.NotificationSubject{
			Title: n.GetSubject().GetTitle(),
			URL:   n.GetSubject().URL,
		},
		Reason:    n.GetReason(),
		UpdatedAt: n.GetUpdatedAt().Time,
	}
}
