package login

import (
	"context"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the durable user repository. It is a superset of UserStore so
// the credential layer can run against either this or MemoryStore.
type Users interface {
	repository.Repository[*User]

	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error)

	Register(ctx context.Context, record *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
	GetOrRegister(ctx context.Context, record *User) (*User, error)
	GetOrRegisterTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)

	SetStatus(ctx context.Context, username string, status UserStatus) (*User, error)
	SetStatusTx(ctx context.Context, tx bun.IDB, username string, status UserStatus) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users     = (*users)(nil)
	_ UserStore = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByUsername(ctx context.Context, username string) (*User, error) {
	return a.GetByUsernameTx(ctx, a.db, username)
}

func (a *users) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error) {
	record := &User{}

	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.username = ?", normalizeUsername(username)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) || strings.Contains(err.Error(), "no rows") {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	return record, nil
}

func (a *users) Register(ctx context.Context, record *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, record)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	if record == nil || strings.TrimSpace(record.Username) == "" {
		return nil, ErrNoEmptyString
	}

	record.Username = normalizeUsername(record.Username)

	if _, err := a.GetByUsernameTx(ctx, tx, record.Username); err == nil {
		return nil, ErrDuplicateIdentity
	} else if !isNotFoundError(err) {
		return nil, err
	}

	prepareUserDefaults(record)

	created, err := a.Repository.CreateTx(ctx, tx, record)
	if err != nil {
		// lost a race with a concurrent registration
		if isUniqueViolation(err) {
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}

	return created, nil
}

func (a *users) GetOrRegister(ctx context.Context, record *User) (*User, error) {
	return a.GetOrRegisterTx(ctx, a.db, record)
}

func (a *users) GetOrRegisterTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	user, err := a.GetByUsernameTx(ctx, tx, record.Username)
	if err == nil {
		return user, nil
	}

	if !isNotFoundError(err) {
		return nil, err
	}

	return a.RegisterTx(ctx, tx, record)
}

func (a *users) SetStatus(ctx context.Context, username string, status UserStatus) (*User, error) {
	return a.SetStatusTx(ctx, a.db, username, status)
}

func (a *users) SetStatusTx(ctx context.Context, tx bun.IDB, username string, status UserStatus) (*User, error) {
	user, err := a.GetByUsernameTx(ctx, tx, username)
	if err != nil {
		return nil, err
	}

	record := &User{
		ID:     user.ID,
		Status: status,
	}

	return a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(user.ID.String()))
}
