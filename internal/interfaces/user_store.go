package interfaces

import (
	"context"

	"github.com/sheikh-saqib/p2p-balance-ledger/internal/models"
)

type UserStore interface {
	CreateUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, id string) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	UpdateUser(ctx context.Context, id string, update models.UserUpdate) error
	DeleteUser(ctx context.Context, id string) error
	// SearchUsers matches filter case-insensitively against first and last name.
	SearchUsers(ctx context.Context, filter string) ([]models.User, error)
}
