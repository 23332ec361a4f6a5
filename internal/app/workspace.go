package app

import (
	"context"
	"log/slog"
	"sync"

	"flashnotes/internal/cache"
	"flashnotes/internal/domain"
)

// Authenticator is the sign-in collaborator. OnAuthChange delivers nil once
// the operator is signed out.
type Authenticator interface {
	SignIn(ctx context.Context, token string) (domain.User, error)
	SignOut(ctx context.Context) error
	OnAuthChange(fn func(*domain.User)) (unsubscribe func())
}

// Workspace tracks who is signed in and owns the cache lifecycle that goes
// with it. Operations take the owner id explicitly; Owner is the lookup.
type Workspace struct {
	auth   Authenticator
	cache  *cache.Cache
	logger *slog.Logger

	mu          sync.RWMutex
	owner       string
	unsubscribe func()
}

func NewWorkspace(a Authenticator, c *cache.Cache, logger *slog.Logger) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Workspace{auth: a, cache: c, logger: logger}
	w.unsubscribe = a.OnAuthChange(w.onAuthChange)
	return w
}

// Owner returns the id of the signed-in operator.
func (w *Workspace) Owner() (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.owner, w.owner != ""
}

func (w *Workspace) SignIn(ctx context.Context, token string) (domain.User, error) {
	return w.auth.SignIn(ctx, token)
}

// SignOut ends the session and drops the local cache wholesale.
func (w *Workspace) SignOut(ctx context.Context) error {
	if err := w.auth.SignOut(ctx); err != nil {
		return domain.Fail(domain.CodeSignOut, "sign out", err)
	}
	if err := w.cache.Clear(ctx); err != nil {
		return domain.Fail(domain.CodeSignOut, "sign out", err)
	}
	return nil
}

func (w *Workspace) Close() {
	if w.unsubscribe != nil {
		w.unsubscribe()
	}
}

func (w *Workspace) onAuthChange(user *domain.User) {
	w.mu.Lock()
	prev := w.owner
	w.owner = ""
	if user != nil {
		w.owner = user.ID
	}
	next := w.owner
	w.mu.Unlock()

	// Another operator's notes must not leak into this one's cache.
	if prev != "" && next != "" && prev != next {
		if err := w.cache.Clear(context.Background()); err != nil {
			w.logger.Warn("clear cache on user switch failed", "error", err)
		}
	}
	if prev != next {
		w.logger.Info("auth changed", "owner", next)
	}
}
