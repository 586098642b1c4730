package shared

import (
	"context"

	"parkwise/internal/domain/slot"
	"parkwise/internal/domain/user"
	"parkwise/internal/pkg/errs"
)

// Identity provider failures
var (
	ErrInvalidCredentials = errs.New("invalid credentials")
	ErrEmailTaken         = errs.New("email already registered")
	ErrInvalidIDToken     = errs.New("invalid federated id token")
)

// SlotStore is the backing store for slot documents. Missing documents are reported
// as infra.KindNotFound repository errors.
type SlotStore interface {
	ListOrdered(ctx context.Context) ([]*slot.Slot, error)
	FindByID(ctx context.Context, id slot.ID) (*slot.Slot, error)
	FindByHolder(ctx context.Context, email string) ([]*slot.Slot, error)
	// Apply writes the change to a single document without any precondition.
	Apply(ctx context.Context, id slot.ID, change slot.Change) error
}

// SlotFeed delivers the full id-ordered slot list whenever any slot changes.
// Watch blocks until ctx is done (returning nil) or the feed breaks.
type SlotFeed interface {
	Watch(ctx context.Context, emit func([]*slot.Slot)) error
}

type UserStore interface {
	FindByEmail(ctx context.Context, email user.Email) (*user.Account, error)
	Create(ctx context.Context, account *user.Account) error
}

// Notifier delivers a templated message. The returned status mirrors the transport
// status code; only 200 counts as delivered.
type Notifier interface {
	Deliver(ctx context.Context, recipient string, params map[string]string) (int, error)
}

// CodeGenerator turns a payload into the URL of a scannable code image.
type CodeGenerator interface {
	URL(payload string) string
}

type IdentityEventKind string

const (
	IdentitySignedIn  IdentityEventKind = "signed_in"
	IdentitySignedOut IdentityEventKind = "signed_out"
)

type IdentityEvent struct {
	Kind     IdentityEventKind
	Identity user.Identity
}

type IdentityProvider interface {
	Register(ctx context.Context, email, password string) (user.Identity, error)
	SignInWithPassword(ctx context.Context, email, password string) (user.Identity, error)
	SignInWithFederated(ctx context.Context, idToken string) (user.Identity, error)
	SignOut(ctx context.Context, identity user.Identity) error
	// OnIdentityChange registers fn for sign-in/sign-out events and returns its unsubscribe func.
	OnIdentityChange(fn func(IdentityEvent)) func()
}
