package identity

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"parkwise/internal/domain/user"
	"parkwise/internal/infra"
	"parkwise/internal/pkg/config"
	"parkwise/internal/pkg/errs"
	"parkwise/internal/pkg/jwt"
	"parkwise/internal/pkg/password"
	"parkwise/internal/usecase/shared"
)

// Provider authenticates against the local user store. Federated sign-in accepts an
// HS256 ID token from the configured issuer and registers unknown emails on first use.
type Provider struct {
	users     shared.UserStore
	hasher    *password.Hasher
	federated config.FederatedConfig
	logger    *slog.Logger

	mu        sync.RWMutex
	nextID    int
	listeners map[int]func(shared.IdentityEvent)
}

var _ shared.IdentityProvider = (*Provider)(nil)

func NewProvider(users shared.UserStore, hasher *password.Hasher, cfg config.Config, logger *slog.Logger) *Provider {
	if hasher == nil {
		hasher = password.NewHasher()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		users:     users,
		hasher:    hasher,
		federated: cfg.Federated,
		logger:    logger,
		listeners: make(map[int]func(shared.IdentityEvent)),
	}
}

func (p *Provider) Register(ctx context.Context, email, pass string) (user.Identity, error) {
	credentials, err := user.NewCredentials(email, pass)
	if err != nil {
		return user.Identity{}, errs.Mark(err, shared.ErrInvalidCredentials)
	}

	hash, err := p.hasher.Hash(credentials.Password().Value())
	if err != nil {
		return user.Identity{}, errs.Wrap(err, "failed to hash password")
	}

	account := user.NewAccount(credentials.Email(), hash, user.ProviderPassword)
	if err := p.users.Create(ctx, account); err != nil {
		if infra.IsKind(err, infra.KindDuplicateKey) {
			return user.Identity{}, shared.ErrEmailTaken
		}
		return user.Identity{}, err
	}

	identity := account.Identity()
	p.emit(shared.IdentityEvent{Kind: shared.IdentitySignedIn, Identity: identity})
	return identity, nil
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, pass string) (user.Identity, error) {
	addr, err := user.NewEmail(email)
	if err != nil {
		return user.Identity{}, shared.ErrInvalidCredentials
	}

	account, err := p.users.FindByEmail(ctx, addr)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return user.Identity{}, shared.ErrInvalidCredentials
		}
		return user.Identity{}, err
	}
	if !account.HasPassword() {
		return user.Identity{}, shared.ErrInvalidCredentials
	}

	if err := p.hasher.Compare(account.PasswordHash(), pass); err != nil {
		if errors.Is(err, password.ErrComparisonFailed) || errors.Is(err, password.ErrInvalidPassword) {
			return user.Identity{}, shared.ErrInvalidCredentials
		}
		return user.Identity{}, errs.Wrap(err, "failed to compare password")
	}

	identity := account.Identity()
	p.emit(shared.IdentityEvent{Kind: shared.IdentitySignedIn, Identity: identity})
	return identity, nil
}

func (p *Provider) SignInWithFederated(ctx context.Context, idToken string) (user.Identity, error) {
	if p.federated.Secret == "" {
		return user.Identity{}, errs.Mark(errs.New("federated sign-in is not configured"), shared.ErrInvalidIDToken)
	}

	var opts []jwt.ParserOption
	if p.federated.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.federated.Issuer))
	}
	claims, err := jwt.ParseHS256(idToken, []byte(p.federated.Secret), opts...)
	if err != nil {
		return user.Identity{}, errs.Mark(err, shared.ErrInvalidIDToken)
	}

	addr, err := user.NewEmail(claims.Email)
	if err != nil {
		return user.Identity{}, errs.Mark(err, shared.ErrInvalidIDToken)
	}

	account, err := p.users.FindByEmail(ctx, addr)
	switch {
	case err == nil:
	case infra.IsKind(err, infra.KindNotFound):
		account = user.NewAccount(addr, "", user.ProviderFederated)
		if err := p.users.Create(ctx, account); err != nil && !infra.IsKind(err, infra.KindDuplicateKey) {
			return user.Identity{}, err
		}
		p.logger.Info("registered federated account", "email", addr.Value())
	default:
		return user.Identity{}, err
	}

	identity := account.Identity()
	p.emit(shared.IdentityEvent{Kind: shared.IdentitySignedIn, Identity: identity})
	return identity, nil
}

func (p *Provider) SignOut(_ context.Context, identity user.Identity) error {
	if identity.IsAnonymous() {
		return nil
	}
	p.emit(shared.IdentityEvent{Kind: shared.IdentitySignedOut, Identity: identity})
	return nil
}

func (p *Provider) OnIdentityChange(fn func(shared.IdentityEvent)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	p.listeners[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *Provider) emit(ev shared.IdentityEvent) {
	p.mu.RLock()
	fns := make([]func(shared.IdentityEvent), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
