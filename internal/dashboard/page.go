// Package dashboard holds the GitHub integration page: what it fetches, the
// two actions it dispatches, and which of its four views is active.
//
// A Page lives as long as one HTTP request. The handler creates it, calls
// Mount and/or an action, reads View, renders, and closes it:
//
//	page := dashboard.NewPage(r.Context(), opts)
//	defer page.Close()
//	page.Mount()
//	render(page.View())
//
// Responses that settle after Close are dropped instead of being applied.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sakif/integration-dashboard/internal/identity"
	"github.com/sakif/integration-dashboard/internal/model"
)

type errorSource int

const (
	sourceFetch errorSource = iota + 1
	sourceSync
	sourceDisconnect
)

// Options are the collaborators of a Page.
type Options struct {
	Identity identity.Provider
	Backend  Backend
	// SyncGuard and DisconnectGuard are shared across the user's requests.
	// Nil means a fresh guard private to this page.
	SyncGuard       *Guard
	DisconnectGuard *Guard
	Logger          *slog.Logger
}

// Page is the state of one rendering of the integration page.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc

	identity        identity.Provider
	backend         Backend
	syncGuard       *Guard
	disconnectGuard *Guard
	logger          *slog.Logger

	mu            sync.Mutex
	mounted       bool
	loading       bool
	data          *model.GitHubData
	err           *ErrorState
	errSource     errorSource
	errDuringLoad bool
	toasts        []Toast
}

// NewPage starts the page lifetime; it ends when parent is done or Close is called.
func NewPage(parent context.Context, opts Options) *Page {
	ctx, cancel := context.WithCancel(parent)

	if opts.SyncGuard == nil {
		opts.SyncGuard = &Guard{}
	}
	if opts.DisconnectGuard == nil {
		opts.DisconnectGuard = &Guard{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Page{
		ctx:             ctx,
		cancel:          cancel,
		identity:        opts.Identity,
		backend:         opts.Backend,
		syncGuard:       opts.SyncGuard,
		disconnectGuard: opts.DisconnectGuard,
		logger:          opts.Logger,
		loading:         true,
	}
}

// Close ends the page lifetime and cancels in-flight backend calls.
func (p *Page) Close() {
	p.cancel()
}

// linked reports whether the identity is resolved and has GitHub linked.
func (p *Page) linked() bool {
	return p.identity.IsReady() && p.identity.CurrentUser().HasLinked(model.ProviderGitHub)
}

// Mount runs the initial data fetch. Only the first call does anything.
//
// Identity not ready: nothing happens, the page stays loading.
// Not linked: no request; loading ends on the connect prompt.
// Linked: one FetchData, whose outcome becomes data or the error state.
func (p *Page) Mount() {
	p.mu.Lock()
	if p.mounted {
		p.mu.Unlock()
		return
	}
	p.mounted = true
	p.mu.Unlock()

	if !p.identity.IsReady() {
		return
	}

	if !p.linked() {
		p.mu.Lock()
		p.loading = false
		p.mu.Unlock()
		return
	}

	data, err := p.backend.FetchData(p.ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx.Err() != nil {
		return
	}
	p.loading = false

	if err != nil {
		p.setError(err, sourceFetch)
		return
	}
	p.data = data
}

// Sync asks the backend to sync. A second Sync while one is in flight (in
// this page or another request of the same user) is refused with an info toast.
func (p *Page) Sync() {
	if !p.linked() {
		p.addToast(ToastError, "Connect your GitHub account before syncing")
		return
	}

	if !p.syncGuard.TryAcquire() {
		p.addToast(ToastInfo, "A sync is already in progress")
		return
	}
	defer p.syncGuard.Release()

	res, err := p.backend.Sync(p.ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx.Err() != nil {
		return
	}

	if err != nil {
		state := p.setError(err, sourceSync)
		p.toasts = append(p.toasts, Toast{Kind: ToastError, Text: "Sync failed: " + state.Message})
		return
	}

	chunks := 0
	if res != nil {
		chunks = res.Chunks
	}
	p.logger.Info("github sync finished", slog.Int("chunks", chunks))
	p.toasts = append(p.toasts, Toast{
		Kind: ToastSuccess,
		Text: fmt.Sprintf("GitHub data synced: %d chunks processed", chunks),
	})
}

// Disconnect asks the backend to unlink GitHub. On success it returns the
// path to navigate to (a full redirect, dropping this page); on failure the
// page switches to its error view and ok is false.
func (p *Page) Disconnect() (redirect string, ok bool) {
	if !p.disconnectGuard.TryAcquire() {
		p.addToast(ToastInfo, "Disconnect is already in progress")
		return "", false
	}
	defer p.disconnectGuard.Release()

	err := p.backend.Disconnect(p.ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx.Err() != nil {
		return "", false
	}

	if err != nil {
		p.setError(err, sourceDisconnect)
		return "", false
	}
	return IntegrationsPath, true
}

// setError records err as the active error. Callers hold p.mu.
//
// A disconnect failure is what the user last asked about, so a later fetch or
// sync failure on the same page does not replace it.
func (p *Page) setError(err error, source errorSource) *ErrorState {
	state := errorState(err)
	if p.err != nil && p.errSource == sourceDisconnect && source != sourceDisconnect {
		p.logger.Warn("github integration request failed after disconnect error", slog.String("error", err.Error()))
		return p.err
	}
	if state.Message == UnknownErrorMessage {
		p.logger.Error("github integration request failed", slog.String("error", err.Error()))
	} else {
		p.logger.Warn("github integration request rejected", slog.String("error", err.Error()))
	}

	p.err = state
	p.errSource = source
	p.errDuringLoad = p.loading
	return state
}

func (p *Page) addToast(kind ToastKind, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toasts = append(p.toasts, Toast{Kind: kind, Text: text})
}

// View selects the active view. Exactly one state is returned:
//
//	identity not ready                   → loading
//	GitHub not linked                    → not connected
//	fetch or disconnect failed, or sync
//	failed while still loading           → error
//	fetch not settled                    → loading
//	otherwise                            → connected
//
// A sync failure after the data arrived keeps the dashboard and only toasts.
func (p *Page) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := View{
		Toasts:     append([]Toast(nil), p.toasts...),
		SyncBusy:   p.syncGuard.Busy(),
		ConnectURL: ConnectURL,
	}

	switch {
	case !p.identity.IsReady():
		v.State = StateLoading
	case !p.identity.CurrentUser().HasLinked(model.ProviderGitHub):
		v.State = StateNotConnected
	case p.err != nil && (p.errSource != sourceSync || p.errDuringLoad):
		v.State = StateError
		v.Error = p.err
	case p.loading:
		v.State = StateLoading
	default:
		v.State = StateConnected
		if p.data != nil {
			v.Profile = p.data.User
			v.Repos = p.data.Repos
			v.Notifications = notificationViews(p.data.Notifications)
		}
	}

	return v
}

// errorState maps any failure to what the error panel shows.
func errorState(err error) *ErrorState {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &ErrorState{Message: apiErr.Message, Details: apiErr.Details}
	}
	return &ErrorState{Message: UnknownErrorMessage}
}
