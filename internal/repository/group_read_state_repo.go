package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sahayata/sahayata-api/internal/models"
)

// GroupReadStateRepository keeps the per-user read cursor for group chat.
type GroupReadStateRepository interface {
	Upsert(ctx context.Context, groupID, userID uint, at time.Time) error
	Get(ctx context.Context, groupID, userID uint) (models.GroupReadState, error)
}

type groupReadStateRepository struct {
	db *gorm.DB
}

// NewGroupReadStateRepository constructs a GORM-backed read-state store.
func NewGroupReadStateRepository(db *gorm.DB) GroupReadStateRepository {
	return &groupReadStateRepository{db: db}
}

// Upsert moves the cursor in one atomic statement, racing markRead calls
// simply overwrite each other with near-identical timestamps.
func (r *groupReadStateRepository) Upsert(ctx context.Context, groupID, userID uint, at time.Time) error {
	state := models.GroupReadState{GroupID: groupID, UserID: userID, LastReadAt: at}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"last_read_at": at, "updated_at": at}),
		}).
		Create(&state).Error
}

func (r *groupReadStateRepository) Get(ctx context.Context, groupID, userID uint) (models.GroupReadState, error) {
	var state models.GroupReadState
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&state).Error
	if err != nil {
		return models.GroupReadState{}, err
	}
	return state, nil
}
