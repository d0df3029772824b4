package service

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/bookswap/internal/errs"
	"github.com/and161185/bookswap/internal/repository"
)

// Directory resolves user ids to display names.
type Directory interface {
	// DisplayName returns the user's name, or "" for unknown users.
	DisplayName(ctx context.Context, userID uuid.UUID) (string, error)
}

// UserDirectory implements Directory over the user repository.
type UserDirectory struct {
	users repository.UserRepository
}

// NewUserDirectory constructs a Directory backed by users.
func NewUserDirectory(users repository.UserRepository) *UserDirectory {
	return &UserDirectory{users: users}
}

// DisplayName returns the username of userID; unknown users resolve to an empty name.
func (d *UserDirectory) DisplayName(ctx context.Context, userID uuid.UUID) (string, error) {
	u, err := d.users.GetByID(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

// names memoises lookups for the duration of one operation.
type names struct {
	dir  Directory
	seen map[uuid.UUID]string
}

func newNames(dir Directory) *names {
	return &names{dir: dir, seen: map[uuid.UUID]string{}}
}

func (n *names) resolve(ctx context.Context, id uuid.UUID) (string, error) {
	if name, ok := n.seen[id]; ok {
		return name, nil
	}
	name, err := n.dir.DisplayName(ctx, id)
	if err != nil {
		return "", err
	}
	n.seen[id] = name
	return name, nil
}
