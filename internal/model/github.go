package model

import "time"

// The types below are the JSON contract of the /api/github/* endpoints.
// Field names follow GitHub's REST payloads so the backend can pass values
// through unchanged and the dashboard can decode them without a mapping layer.

// Profile is the summary of the linked GitHub account.
type Profile struct {
	Login       string  `json:"login"`
	Name        *string `json:"name"`
	AvatarURL   string  `json:"avatar_url"`
	Bio         *string `json:"bio"`
	PublicRepos int     `json:"public_repos"`
}

// Repository is one entry of the repository list, in backend order.
type Repository struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	FullName        string    `json:"full_name"`
	Description     *string   `json:"description"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	UpdatedAt       time.Time `json:"updated_at"`
	HTMLURL         string    `json:"html_url"`
}

// NotificationRepository is the repository a notification belongs to.
type NotificationRepository struct {
	FullName string `json:"full_name"`
}

// NotificationSubject is what the notification is about. URL is an API URL
// (https://api.github.com/repos/...) and may be null, e.g. for check suites.
type NotificationSubject struct {
	Title string  `json:"title"`
	URL   *string `json:"url"`
}

// Notification is one item of the notification feed, in backend order.
type Notification struct {
	ID         string                 `json:"id"`
	Repository NotificationRepository `json:"repository"`
	Subject    NotificationSubject    `json:"subject"`
	Reason     string                 `json:"reason"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// GitHubData is the body of GET /api/github/data.
type GitHubData struct {
	User          *Profile       `json:"user"`
	Repos         []Repository   `json:"repos"`
	Notifications []Notification `json:"notifications"`
}

// SyncResult is the body of POST /api/github/sync.
type SyncResult struct {
	Chunks int `json:"chunks"`
}

// Sync chunk kinds.
const (
	ChunkRepositories  = "repositories"
	ChunkNotifications = "notifications"
)

// SyncChunk is one batch of synced items persisted by the backend.
// Payload is the JSON array of the items in the batch.
type SyncChunk struct {
	ID       string    `json:"id"       db:"id"`
	UserID   string    `json:"userId"   db:"user_id"`
	Kind     string    `json:"kind"     db:"kind"`
	Seq      int       `json:"seq"      db:"seq"`
	Items    int       `json:"items"    db:"items"`
	Payload  []byte    `json:"-"        db:"payload"`
	SyncedAt time.Time `json:"syncedAt" db:"synced_at"`
}
