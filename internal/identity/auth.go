package identity

import (
	"context"
	"errors"
	"sort"
	"sync"

	"storefront-backend-go/internal/models"
)

// ErrNotSignedIn is returned by operations that need a current user.
var ErrNotSignedIn = errors.New("no user is signed in")

// AuthStateObserver receives the signed-in identity, or nil after sign-out. ctx belongs to
// the call that caused the change.
type AuthStateObserver func(ctx context.Context, user *models.UserIdentity)

// Auth is the per-session auth state. It starts unresolved: nothing is emitted until Resolve,
// a sign-in or a sign-out settles who the user is. After that every change emits one
// notification to each observer, synchronously and in emission order.
type Auth struct {
	provider Provider

	mu       sync.RWMutex
	current  *models.UserIdentity
	resolved bool

	// emitMu serialises deliveries so two state changes are never observed interleaved.
	emitMu    sync.Mutex
	nextID    int
	observers map[int]AuthStateObserver
	obsMu     sync.Mutex
}

// NewAuth creates a signed-out session state on top of provider.
func NewAuth(provider Provider) *Auth {
	return &Auth{provider: provider, observers: make(map[int]AuthStateObserver)}
}

// Provider exposes the underlying stateless provider.
func (a *Auth) Provider() Provider { return a.provider }

// CurrentUser returns a copy of the signed-in identity, or nil.
func (a *Auth) CurrentUser() *models.UserIdentity {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current.Clone()
}

// OnAuthStateChanged registers fn and, once the state is resolved, immediately delivers it.
// The returned function unregisters fn. Observers must not sign in or out from inside the
// callback; deliveries are serialised and that would deadlock.
func (a *Auth) OnAuthStateChanged(ctx context.Context, fn AuthStateObserver) func() {
	a.emitMu.Lock()
	a.obsMu.Lock()
	id := a.nextID
	a.nextID++
	a.observers[id] = fn
	a.obsMu.Unlock()
	if a.Resolved() {
		fn(ctx, a.CurrentUser())
	}
	a.emitMu.Unlock()

	return func() {
		a.obsMu.Lock()
		delete(a.observers, id)
		a.obsMu.Unlock()
	}
}

// SignInWithPassword signs in and emits the new state.
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*models.UserIdentity, error) {
	user, err := a.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	a.SetCurrentUser(ctx, user)
	return user.Clone(), nil
}

// SignInWithIdP signs in with a federated credential and emits the new state.
func (a *Auth) SignInWithIdP(ctx context.Context, cred models.FederatedCredential) (*models.UserIdentity, error) {
	user, err := a.provider.SignInWithIdP(ctx, cred)
	if err != nil {
		return nil, err
	}
	a.SetCurrentUser(ctx, user)
	return user.Clone(), nil
}

// Resolved reports whether the initial state has been settled.
func (a *Auth) Resolved() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.resolved
}

// Resolve settles the initial state. A non-empty idToken restores the session it belongs to;
// an empty or rejected token resolves to signed out. Either way one notification is emitted.
// A sign-in or sign-out that settles the state while the token is being looked up wins: Resolve
// then emits nothing and returns the current user.
func (a *Auth) Resolve(ctx context.Context, idToken string) (*models.UserIdentity, error) {
	if a.Resolved() {
		return a.CurrentUser(), nil
	}
	if idToken == "" {
		a.settle(ctx, nil)
		return a.CurrentUser(), nil
	}
	user, err := a.provider.LookupSession(ctx, idToken)
	if err != nil {
		if !a.settle(ctx, nil) {
			return a.CurrentUser(), nil
		}
		return nil, err
	}
	a.settle(ctx, user)
	return a.CurrentUser(), nil
}

// settle adopts user, or nil for signed out, only if nothing has resolved the state yet.
func (a *Auth) settle(ctx context.Context, user *models.UserIdentity) bool {
	a.mu.Lock()
	if a.resolved {
		a.mu.Unlock()
		return false
	}
	a.current = user.Clone()
	a.resolved = true
	a.mu.Unlock()
	a.emit(ctx)
	return true
}

// SetCurrentUser adopts user as the signed-in identity and emits it. Registration uses this
// once the profile document exists, so the first notification already finds it.
func (a *Auth) SetCurrentUser(ctx context.Context, user *models.UserIdentity) {
	a.mu.Lock()
	a.current = user.Clone()
	a.resolved = true
	a.mu.Unlock()
	a.emit(ctx)
}

// SignOut clears the signed-in identity and emits nil. Signing out twice emits twice.
func (a *Auth) SignOut(ctx context.Context) {
	a.mu.Lock()
	a.current = nil
	a.resolved = true
	a.mu.Unlock()
	a.emit(ctx)
}

// Reauthenticate checks password against the current user's account and refreshes the
// session credentials, satisfying the provider's recent-login requirement.
func (a *Auth) Reauthenticate(ctx context.Context, password string) error {
	user := a.CurrentUser()
	if user == nil {
		return ErrNotSignedIn
	}
	fresh, err := a.provider.SignInWithPassword(ctx, user.Email, password)
	if err != nil {
		return err
	}
	if fresh.UID != user.UID {
		return &Error{Code: CodeUserNotFound, Op: "Reauthentication"}
	}
	a.replaceCredentials(fresh)
	return nil
}

// UpdateProfile edits the provider-side profile. Like the provider SDK, it does not emit.
func (a *Auth) UpdateProfile(ctx context.Context, upd models.IdentityUpdate) (*models.UserIdentity, error) {
	user := a.CurrentUser()
	if user == nil {
		return nil, ErrNotSignedIn
	}
	updated, err := a.provider.UpdateProfile(ctx, user, upd)
	if err != nil {
		return nil, err
	}
	a.replaceCredentials(updated)
	return updated.Clone(), nil
}

// UpdatePassword changes the current user's password.
func (a *Auth) UpdatePassword(ctx context.Context, newPassword string) error {
	user := a.CurrentUser()
	if user == nil {
		return ErrNotSignedIn
	}
	updated, err := a.provider.UpdatePassword(ctx, user, newPassword)
	if err != nil {
		return err
	}
	a.replaceCredentials(updated)
	return nil
}

// SendEmailVerification asks the provider to mail a verification link to the current user.
func (a *Auth) SendEmailVerification(ctx context.Context) error {
	user := a.CurrentUser()
	if user == nil {
		return ErrNotSignedIn
	}
	return a.provider.SendEmailVerification(ctx, user)
}

// replaceCredentials swaps in fresher data for the same account without emitting.
func (a *Auth) replaceCredentials(user *models.UserIdentity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil && a.current.UID == user.UID {
		a.current = user.Clone()
	}
}

func (a *Auth) emit(ctx context.Context) {
	a.emitMu.Lock()
	defer a.emitMu.Unlock()

	state := a.CurrentUser()
	a.obsMu.Lock()
	ids := make([]int, 0, len(a.observers))
	for id := range a.observers {
		ids = append(ids, id)
	}
	a.obsMu.Unlock()
	sort.Ints(ids)

	for _, id := range ids {
		a.obsMu.Lock()
		fn, ok := a.observers[id]
		a.obsMu.Unlock()
		if ok {
			fn(ctx, state.Clone())
		}
	}
}
