package domain

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"user-ledger/internal/credential"
)

// User is a registered identity holding a credential, a balance and items.
// Identity, salt and digest are fixed at construction; only ResetPassword
// replaces the credential.
type User struct {
	Ledger

	id       uuid.UUID
	username string
	salt     []byte
	digest   []byte
	items    []Item
}

// NewUser creates a user with a fresh id and salt. Username and balance are
// validated here; the password policy is enforced by the registry.
func NewUser(username, password string, balance decimal.Decimal) (*User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidUsername)
	}
	if balance.IsNegative() || !amountInRange(balance) {
		return nil, ErrInvalidAmount
	}

	salt, err := credential.NewSalt()
	if err != nil {
		return nil, err
	}

	return &User{
		Ledger:   NewLedger(balance),
		id:       uuid.New(),
		username: username,
		salt:     salt,
		digest:   credential.ComputeDigest(salt, password),
	}, nil
}

// RestoreUser rebuilds a user from stored fields, reusing salt and digest as
// they are. The balance may be negative.
func RestoreUser(id uuid.UUID, username string, salt, digest []byte, balance decimal.Decimal, items []Item) (*User, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("restore user %q: id is required", username)
	}
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("restore user %s: %w: username is required", id, ErrInvalidUsername)
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("restore user %q: salt is empty", username)
	}
	if len(digest) != credential.DigestSize {
		return nil, fmt.Errorf("restore user %q: digest has %d bytes, want %d", username, len(digest), credential.DigestSize)
	}
	if !amountInRange(balance) {
		return nil, fmt.Errorf("restore user %q: %w: balance is out of range", username, ErrInvalidAmount)
	}
	for _, item := range items {
		if _, err := NewItem(item.Name, item.Price); err != nil {
			return nil, fmt.Errorf("restore user %q: %w", username, err)
		}
	}

	return &User{
		Ledger:   NewLedger(balance),
		id:       id,
		username: username,
		salt:     bytes.Clone(salt),
		digest:   bytes.Clone(digest),
		items:    append([]Item(nil), items...),
	}, nil
}

func (u *User) ID() uuid.UUID {
	return u.id
}

func (u *User) Username() string {
	return u.username
}

// Salt returns a copy of the user's salt.
func (u *User) Salt() []byte {
	return bytes.Clone(u.salt)
}

// PasswordDigest returns a copy of the stored digest.
func (u *User) PasswordDigest() []byte {
	return bytes.Clone(u.digest)
}

// CheckPassword reports whether candidate matches the stored credential.
func (u *User) CheckPassword(candidate string) bool {
	return credential.Verify(u.salt, u.digest, candidate)
}

// ResetPassword draws a new salt and stores the digest of password.
func (u *User) ResetPassword(password string) error {
	salt, err := credential.NewSalt()
	if err != nil {
		return err
	}
	u.salt = salt
	u.digest = credential.ComputeDigest(salt, password)
	return nil
}

// Items returns a copy of the user's items in insertion order.
func (u *User) Items() []Item {
	return append([]Item(nil), u.items...)
}

// AddItem appends a new item.
func (u *User) AddItem(name string, price decimal.Decimal) error {
	item, err := NewItem(name, price)
	if err != nil {
		return err
	}
	u.items = append(u.items, item)
	return nil
}

// HasItem reports whether an item equal to item is owned.
func (u *User) HasItem(item Item) bool {
	return u.indexOf(item) >= 0
}

// RemoveItem drops the first item equal to item. It reports whether an item
// was removed; a missing item leaves the collection unchanged.
func (u *User) RemoveItem(item Item) bool {
	i := u.indexOf(item)
	if i < 0 {
		return false
	}
	u.items = append(u.items[:i], u.items[i+1:]...)
	return true
}

func (u *User) indexOf(item Item) int {
	for i := range u.items {
		if u.items[i].Equal(item) {
			return i
		}
	}
	return -1
}
