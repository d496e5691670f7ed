// Package session tracks the signed-in identity on the client side.
//
// The session is a read-only projection of what the identity provider says:
// the identity field is ONLY ever assigned by the provider's session feed,
// never directly by SignIn/SignOut. Assigning it directly would race the
// feed — a sign-in's own feed notification could arrive before or after the
// call returned, and the two sources could disagree. With a single source
// of truth there is nothing to disagree about.
package session

import (
	"context"
	"fmt"
	"sync"
)

// Identity is the session's view of the signed-in user. Nil means signed out.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
	AvatarURL   string
}

// Provider is the narrow slice of the identity provider the session needs.
// The production implementation is api.Client; tests inject a fake.
type Provider interface {
	// SubscribeSession registers a callback for session changes. The
	// provider calls it once with the current identity (possibly nil) as
	// soon as the initial resolution finishes, then on every change.
	// The returned func cancels the registration.
	SubscribeSession(fn func(*Identity)) (cancel func())
	SignIn(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	// UpdateDisplayName changes the profile and returns the confirmed
	// identity as stored by the provider.
	UpdateDisplayName(ctx context.Context, name string) (*Identity, error)
}

// ErrNotAuthenticated is returned by operations that need a live identity.
var ErrNotAuthenticated = fmt.Errorf("session: not authenticated")

// Session holds the current identity and a resolving flag.
//
// Resolving starts true and becomes false permanently after the first feed
// notification — "is there a stored session?" takes a round-trip to answer,
// and the UI shows a spinner rather than a flash of the login form.
type Session struct {
	mu        sync.Mutex
	identity  *Identity
	resolving bool

	provider Provider
	cancel   func()
	onChange func()
}

// New creates a Session subscribed to the provider's feed. Callers must
// Close it to release the subscription.
//
// onChange is invoked (outside the lock) after every state change; the TUI
// uses it to trigger a repaint. Pass nil if you only poll.
func New(provider Provider, onChange func()) *Session {
	s := &Session{
		provider:  provider,
		resolving: true,
		onChange:  onChange,
	}

	s.cancel = provider.SubscribeSession(func(id *Identity) {
		s.mu.Lock()
		s.identity = id
		s.resolving = false
		s.mu.Unlock()
		s.notify()
	})

	return s
}

// Close releases the feed subscription. Safe to call more than once.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Identity returns a copy of the current identity, or nil when signed out
// or still resolving. A copy, so a caller holding the result across a
// rename never observes a half-updated record.
func (s *Session) Identity() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// Resolving reports whether the initial session check is still in flight.
func (s *Session) Resolving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolving
}

// SignIn authenticates with the provider. On success the new identity
// arrives via the feed; this method does not set it.
func (s *Session) SignIn(ctx context.Context, email, password string) error {
	if err := s.provider.SignIn(ctx, email, password); err != nil {
		return fmt.Errorf("session: sign in: %w", err)
	}
	return nil
}

// SignOut ends the provider session. The identity becomes nil via the feed.
func (s *Session) SignOut(ctx context.Context) error {
	if err := s.provider.SignOut(ctx); err != nil {
		return fmt.Errorf("session: sign out: %w", err)
	}
	return nil
}

// UpdateDisplayName asks the provider to change the profile name. The local
// identity reflects the change only after the provider confirms — the
// returned record is the provider's, not an assumption that our input took
// effect.
func (s *Session) UpdateDisplayName(ctx context.Context, name string) error {
	s.mu.Lock()
	signedIn := s.identity != nil
	s.mu.Unlock()
	if !signedIn {
		return ErrNotAuthenticated
	}

	confirmed, err := s.provider.UpdateDisplayName(ctx, name)
	if err != nil {
		return fmt.Errorf("session: update display name: %w", err)
	}

	// Swap in a fresh record rather than writing through the old pointer:
	// previously returned identities stay frozen at the state they were
	// read in.
	s.mu.Lock()
	if s.identity != nil && confirmed != nil {
		id := *s.identity
		id.DisplayName = confirmed.DisplayName
		s.identity = &id
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Session) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}
