package dashboard

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sakif/integration-dashboard/internal/model"
)

// Navigation targets.
const (
	PagePath         = "/integrations/github"
	IntegrationsPath = "/integrations"
	ConnectURL       = "/sign-in?redirect=" + PagePath
)

// UnknownErrorMessage replaces errors that carry no backend message, such as
// a refused connection or an undecodable body.
const UnknownErrorMessage = "An unknown error occurred"

// ViewState is the one view the page renders.
type ViewState string

const (
	StateLoading      ViewState = "loading"
	StateNotConnected ViewState = "not_connected"
	StateError        ViewState = "error"
	StateConnected    ViewState = "connected"
)

// ErrorState is the page's single active error.
type ErrorState struct {
	Message string
	Details any
}

// DetailsDump renders Details as YAML for the error panel, e.g. "retryAfter: 30".
// Empty when there are no details.
func (e *ErrorState) DetailsDump() string {
	if e == nil || e.Details == nil {
		return ""
	}
	out, err := yaml.Marshal(e.Details)
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(string(out), "\n")
}

// ToastKind selects the toast styling.
type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
	ToastInfo    ToastKind = "info"
)

// Toast is a transient notification shown on top of whatever view is active.
type Toast struct {
	Kind ToastKind
	Text string
}

// NotificationView is a notification plus its outbound link (empty when the
// subject has no URL).
type NotificationView struct {
	model.Notification
	Link string
}

// View is everything a template needs to render the page.
type View struct {
	State         ViewState
	Profile       *model.Profile
	Repos         []model.Repository
	Notifications []NotificationView
	Error         *ErrorState
	Toasts        []Toast
	SyncBusy      bool
	ConnectURL    string
}

// RewriteSubjectURL turns an API subject URL into the matching web URL:
// https://api.github.com/repos/acme/widget/issues/3 → https://github.com/acme/widget/issues/3.
func RewriteSubjectURL(u string) string {
	return strings.Replace(u, "api.github.com/repos", "github.com", 1)
}

func notificationViews(items []model.Notification) []NotificationView {
	views := make([]NotificationView, 0, len(items))
	for _, n := range items {
		v := NotificationView{Notification: n}
		if n.Subject.URL != nil && *n.Subject.URL != "" {
			v.Link = RewriteSubjectURL(*n.Subject.URL)
		}
		views = append(views, v)
	}
	return views
}
