package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/sahayata/sahayata-api/internal/models"
)

// UserRepository reads the user directory used for sender enrichment.
type UserRepository interface {
	Get(ctx context.Context, id uint) (models.User, error)
	Summaries(ctx context.Context, ids []uint) (map[uint]models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a GORM-backed user directory.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Get(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) Summaries(ctx context.Context, ids []uint) (map[uint]models.User, error) {
	out := make(map[uint]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}

	for _, user := range users {
		out[user.ID] = user
	}
	return out, nil
}
