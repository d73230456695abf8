package directory

import (
	"context"
	"errors"
)

var ErrProfileNotFound = errors.New("profile not found")

type Repository interface {
	GetByID(ctx context.Context, id string) (*Profile, error)
	// GetByIDs resolves a batch; unknown ids are simply absent from the
	// result, not an error.
	GetByIDs(ctx context.Context, ids []string) (map[string]*Profile, error)
}
