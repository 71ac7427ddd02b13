package user

import (
	"context"

	id "tracker/pkg/domain"
)

// Store reads user directory records. An unknown key is (nil, nil).
type Store interface {
	Find(ctx context.Context, key id.UserKey) (*User, error)
	FindMany(ctx context.Context, keys []id.UserKey) (map[id.UserKey]*User, error)
}
