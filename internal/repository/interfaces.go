package repository

import "context"
import "github.com/devyljin/jintranet-back/internal/models"

type UserRepository interface {
	Create(ctx context.Context, username, name, surname, role, passwordHash string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, string /*passwordHash*/, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// CrossRepository is insert-only: creation-audit records are never mutated
// or removed by this system.
type CrossRepository interface {
	Create(ctx context.Context, userID, code string) (*models.Cross, error)
	ListCodesByUser(ctx context.Context, userID string) ([]string, error)
}

type ChannelRepository interface {
	ListRoots(ctx context.Context) ([]models.ChatChannel, error)
	Get(ctx context.Context, id string) (*models.ChatChannel, error)
	Create(ctx context.Context, ch *models.ChatChannel) error
	Delete(ctx context.Context, id string) error
	AddMessage(ctx context.Context, channelID, content string) (*models.ChatMessage, error)
}
