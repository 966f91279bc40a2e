// Package document keeps the registry as a single JSON document.
package document

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"user-ledger/internal/domain"
	"user-ledger/internal/repository"
	"user-ledger/internal/storage"
)

// userRecord is the on-disk shape of a user. Every field is required, so
// pointers tell a missing field apart from a zero value.
type userRecord struct {
	ID             *string       `json:"id"`
	Username       *string       `json:"username"`
	Salt           *string       `json:"salt"`
	PasswordDigest *string       `json:"password_digest"`
	Balance        *number       `json:"balance"`
	Items          *[]itemRecord `json:"items"`
}

type itemRecord struct {
	Name  *string `json:"name"`
	Price *number `json:"price"`
}

// number is an unquoted JSON number kept as its literal text.
type number string

func (n number) MarshalJSON() ([]byte, error) {
	return []byte(n), nil
}

func (n *number) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || (data[0] != '-' && (data[0] < '0' || data[0] > '9')) {
		return fmt.Errorf("expected a JSON number, got %s", data)
	}
	*n = number(data)
	return nil
}

func (n number) decimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return decimal.Decimal{}, err
	}
	if exp := d.Exponent(); exp > domain.MaxAmountExponent || exp < -domain.MaxAmountExponent {
		return decimal.Decimal{}, fmt.Errorf("%s is out of range", n)
	}
	return d, nil
}

// UserStore reads and writes the whole registry as one object in a storage.Service.
type UserStore struct {
	blobs  storage.Service
	key    string
	logger logrus.FieldLogger
}

func NewUserStore(blobs storage.Service, key string, logger logrus.FieldLogger) *UserStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &UserStore{blobs: blobs, key: key, logger: logger}
}

var _ repository.UserStore = (*UserStore)(nil)

func (s *UserStore) Load(ctx context.Context) ([]*domain.User, error) {
	data, err := s.blobs.Read(ctx, s.key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %w", repository.ErrStoreNotFound, err)
		}
		return nil, fmt.Errorf("read document: %w", err)
	}

	users, err := decodeUsers(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", repository.ErrStoreCorrupt, s.key, err)
	}
	if len(users) == 0 {
		return nil, repository.ErrStoreNotFound
	}
	return users, nil
}

// Save overwrites the document with a fresh snapshot of users.
func (s *UserStore) Save(ctx context.Context, users []*domain.User) error {
	data, err := encodeUsers(users)
	if err != nil {
		return fmt.Errorf("%w: encode document: %w", repository.ErrStoreWrite, err)
	}
	if err := s.blobs.Write(ctx, s.key, data); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrStoreWrite, err)
	}
	s.logger.WithField("users", len(users)).Debug("document snapshot saved")
	return nil
}

func (s *UserStore) Close() error {
	return nil
}

func encodeUsers(users []*domain.User) ([]byte, error) {
	sorted := append([]*domain.User(nil), users...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Username() < sorted[j].Username()
	})

	records := make([]userRecord, 0, len(sorted))
	for _, u := range sorted {
		items := make([]itemRecord, 0, len(u.Items()))
		for _, it := range u.Items() {
			items = append(items, itemRecord{
				Name:  ptr(it.Name),
				Price: ptr(number(it.Price.String())),
			})
		}
		records = append(records, userRecord{
			ID:             ptr(u.ID().String()),
			Username:       ptr(u.Username()),
			Salt:           ptr(base64.StdEncoding.EncodeToString(u.Salt())),
			PasswordDigest: ptr(base64.StdEncoding.EncodeToString(u.PasswordDigest())),
			Balance:        ptr(number(u.Balance().String())),
			Items:          &items,
		})
	}
	return json.MarshalIndent(records, "", "  ")
}

func decodeUsers(data []byte) ([]*domain.User, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var records []userRecord
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("parse document: trailing data")
	}

	users := make([]*domain.User, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		user, err := rec.toUser()
		if err != nil {
			return nil, fmt.Errorf("user #%d: %w", i, err)
		}
		if _, dup := seen[user.Username()]; dup {
			return nil, fmt.Errorf("user #%d: duplicate username %q", i, user.Username())
		}
		seen[user.Username()] = struct{}{}
		users = append(users, user)
	}
	return users, nil
}

func (r userRecord) toUser() (*domain.User, error) {
	switch {
	case r.ID == nil:
		return nil, missingField("id")
	case r.Username == nil:
		return nil, missingField("username")
	case r.Salt == nil:
		return nil, missingField("salt")
	case r.PasswordDigest == nil:
		return nil, missingField("password_digest")
	case r.Balance == nil:
		return nil, missingField("balance")
	case r.Items == nil:
		return nil, missingField("items")
	}

	id, err := uuid.Parse(*r.ID)
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(*r.Salt)
	if err != nil {
		return nil, fmt.Errorf("salt: %w", err)
	}
	digest, err := base64.StdEncoding.DecodeString(*r.PasswordDigest)
	if err != nil {
		return nil, fmt.Errorf("password_digest: %w", err)
	}
	balance, err := r.Balance.decimal()
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}

	items := make([]domain.Item, 0, len(*r.Items))
	for j, it := range *r.Items {
		if it.Name == nil {
			return nil, fmt.Errorf("item #%d: %w", j, missingField("name"))
		}
		if it.Price == nil {
			return nil, fmt.Errorf("item #%d: %w", j, missingField("price"))
		}
		price, err := it.Price.decimal()
		if err != nil {
			return nil, fmt.Errorf("item #%d price: %w", j, err)
		}
		items = append(items, domain.Item{Name: *it.Name, Price: price})
	}

	return domain.RestoreUser(id, *r.Username, salt, digest, balance, items)
}

func missingField(name string) error {
	return fmt.Errorf("missing required field %q", name)
}

func ptr[T any](v T) *T {
	return &v
}
