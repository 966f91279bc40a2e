package relational

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"user-ledger/internal/domain"
	"user-ledger/internal/repository"
)

const selectUsersWithItems = `
SELECT u.id, u.username, u.salt, u.password_digest, u.balance,
	i.name AS item_name, i.price AS item_price
FROM users u
LEFT OUTER JOIN items i ON i.user_id = u.id
ORDER BY u.username ASC, i.position ASC`

// UserStore keeps the registry in a users/items table pair.
type UserStore struct {
	db      *sqlx.DB
	dialect dialect
	setup   string
	logger  logrus.FieldLogger
}

func newUserStore(db *sqlx.DB, d dialect, setup string, logger logrus.FieldLogger) *UserStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &UserStore{db: db, dialect: d, setup: setup, logger: logger}
}

var _ repository.UserStore = (*UserStore)(nil)

// userItemRow is one row of the users/items outer join. Item columns are
// null for a user without items.
type userItemRow struct {
	ID             string              `db:"id"`
	Username       string              `db:"username"`
	Salt           []byte              `db:"salt"`
	PasswordDigest []byte              `db:"password_digest"`
	Balance        decimal.Decimal     `db:"balance"`
	ItemName       sql.NullString      `db:"item_name"`
	ItemPrice      decimal.NullDecimal `db:"item_price"`
}

func (s *UserStore) init(ctx context.Context) error {
	if s.setup != "" {
		if _, err := s.db.ExecContext(ctx, s.setup); err != nil {
			return fmt.Errorf("prepare connection: %w", err)
		}
	}
	return s.migrate(ctx)
}

func (s *UserStore) Load(ctx context.Context) ([]*domain.User, error) {
	if err := s.init(ctx); err != nil {
		return nil, s.readFailure("init schema", err)
	}

	rows, err := s.db.QueryxContext(ctx, selectUsersWithItems)
	if err != nil {
		return nil, s.readFailure("query users", err)
	}
	defer rows.Close()

	var (
		users   []*domain.User
		current *userItemRow
		items   []domain.Item
	)
	flush := func() error {
		if current == nil {
			return nil
		}
		user, err := restoreUser(current, items)
		if err != nil {
			return err
		}
		users = append(users, user)
		return nil
	}

	for rows.Next() {
		var row userItemRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("%w: scan user row: %w", repository.ErrStoreCorrupt, err)
		}
		if current == nil || row.ID != current.ID {
			if err := flush(); err != nil {
				return nil, err
			}
			current = &row
			items = nil
		}
		if row.ItemName.Valid {
			if !row.ItemPrice.Valid {
				return nil, fmt.Errorf("%w: item %q of user %q has no price", repository.ErrStoreCorrupt, row.ItemName.String, row.Username)
			}
			items = append(items, domain.Item{Name: row.ItemName.String, Price: row.ItemPrice.Decimal})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate users: %w", repository.ErrStoreCorrupt, err)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	if len(users) == 0 {
		return nil, repository.ErrStoreNotFound
	}
	return users, nil
}

// readFailure classifies an error reading the schema. An unreadable sqlite
// file is corrupt; a postgres failure is most likely the server and is
// returned unclassified so the caller does not overwrite the data.
func (s *UserStore) readFailure(what string, err error) error {
	if s.dialect == dialectSQLite {
		return fmt.Errorf("%w: %s: %w", repository.ErrStoreCorrupt, what, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func restoreUser(row *userItemRow, items []domain.Item) (*domain.User, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: user %q id: %w", repository.ErrStoreCorrupt, row.Username, err)
	}
	user, err := domain.RestoreUser(id, row.Username, row.Salt, row.PasswordDigest, row.Balance, items)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", repository.ErrStoreCorrupt, err)
	}
	return user, nil
}

// Save deletes every stored row and inserts users in one transaction.
func (s *UserStore) Save(ctx context.Context, users []*domain.User) error {
	if err := s.init(ctx); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrStoreWrite, err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", repository.ErrStoreWrite, err)
	}
	defer tx.Rollback() // safe no-op on commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("%w: delete items: %w", repository.ErrStoreWrite, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return fmt.Errorf("%w: delete users: %w", repository.ErrStoreWrite, err)
	}

	insertUser := tx.Rebind(`
INSERT INTO users (id, username, salt, password_digest, balance)
VALUES (?, ?, ?, ?, ?)`)
	insertItem := tx.Rebind(`
INSERT INTO items (user_id, position, name, price)
VALUES (?, ?, ?, ?)`)

	for _, user := range users {
		if _, err := tx.ExecContext(ctx, insertUser,
			user.ID().String(),
			user.Username(),
			user.Salt(),
			user.PasswordDigest(),
			user.Balance().String(),
		); err != nil {
			return fmt.Errorf("%w: insert user %q: %w", repository.ErrStoreWrite, user.Username(), err)
		}

		for pos, item := range user.Items() {
			if _, err := tx.ExecContext(ctx, insertItem,
				user.ID().String(),
				pos,
				item.Name,
				item.Price.String(),
			); err != nil {
				return fmt.Errorf("%w: insert item %q: %w", repository.ErrStoreWrite, item.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx: %w", repository.ErrStoreWrite, err)
	}
	s.logger.WithField("users", len(users)).Debug("relational snapshot saved")
	return nil
}

func (s *UserStore) Close() error {
	return s.db.Close()
}
