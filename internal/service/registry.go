package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"user-ledger/internal/domain"
)

const (
	// BootstrapUsername names the protected account created by Bootstrap.
	BootstrapUsername = "admin"
	// DefaultBootstrapPassword is the bootstrap account password unless overridden.
	DefaultBootstrapPassword = "Adm1n!pass"
)

// Registry maps usernames to users. It is not safe for concurrent use;
// hosts serving overlapping requests must serialize access themselves.
type Registry struct {
	users             map[string]*domain.User
	bootstrapPassword string
}

// Option configures a Registry.
type Option func(*Registry)

// WithBootstrapPassword sets the password Bootstrap gives the admin account.
func WithBootstrapPassword(password string) Option {
	return func(r *Registry) {
		if password != "" {
			r.bootstrapPassword = password
		}
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		users:             make(map[string]*domain.User),
		bootstrapPassword: DefaultBootstrapPassword,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewRegistryFromUsers builds a registry from restored users. Duplicate
// usernames are rejected.
func NewRegistryFromUsers(users []*domain.User, opts ...Option) (*Registry, error) {
	r := NewRegistry(opts...)
	for _, u := range users {
		if _, exists := r.users[u.Username()]; exists {
			return nil, fmt.Errorf("%w: %q", domain.ErrUsernameTaken, u.Username())
		}
		r.users[u.Username()] = u
	}
	return r, nil
}

// Register validates the username, password policy and opening balance, then
// adds a new user.
func (r *Registry) Register(username, password string, initialBalance decimal.Decimal) (*domain.User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrInvalidUsername)
	}
	if _, exists := r.users[username]; exists {
		return nil, fmt.Errorf("%w: %q", domain.ErrUsernameTaken, username)
	}
	if err := domain.ValidatePassword(password); err != nil {
		return nil, err
	}
	if initialBalance.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}

	user, err := domain.NewUser(username, password, initialBalance)
	if err != nil {
		return nil, err
	}
	r.users[username] = user
	return user, nil
}

// Remove deletes a user. The bootstrap account cannot be removed.
func (r *Registry) Remove(username string) error {
	if username == BootstrapUsername {
		return fmt.Errorf("%w: %q", domain.ErrProtectedAccount, username)
	}
	if _, exists := r.users[username]; !exists {
		return fmt.Errorf("%w: %q", domain.ErrNotFound, username)
	}
	delete(r.users, username)
	return nil
}

// Bootstrap clears the registry and inserts the default admin account with a
// zero balance and no items.
func (r *Registry) Bootstrap() error {
	admin, err := domain.NewUser(BootstrapUsername, r.bootstrapPassword, decimal.Zero)
	if err != nil {
		return fmt.Errorf("create bootstrap account: %w", err)
	}
	r.users = map[string]*domain.User{BootstrapUsername: admin}
	return nil
}

// Authenticate returns the user when password matches.
func (r *Registry) Authenticate(username, password string) (*domain.User, error) {
	user, err := r.Get(username)
	if err != nil {
		return nil, err
	}
	if !user.CheckPassword(password) {
		return nil, domain.ErrAuthFailed
	}
	return user, nil
}

// ResetPassword replaces a user's credential after checking the password policy.
func (r *Registry) ResetPassword(username, password string) error {
	user, err := r.Get(username)
	if err != nil {
		return err
	}
	if err := domain.ValidatePassword(password); err != nil {
		return err
	}
	return user.ResetPassword(password)
}

func (r *Registry) Get(username string) (*domain.User, error) {
	user, ok := r.users[username]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrNotFound, username)
	}
	return user, nil
}

// Users returns every user ordered by username.
func (r *Registry) Users() []*domain.User {
	users := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Username() < users[j].Username()
	})
	return users
}

func (r *Registry) Len() int {
	return len(r.users)
}
