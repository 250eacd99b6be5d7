package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sahayata/sahayata-api/internal/models"
)

// GroupFilter narrows the group listing.
type GroupFilter struct {
	Query      string
	Category   string
	OnlyJoined *uint
	Limit      int
}

// GroupRepository persists topic groups, their membership and pledge sets.
type GroupRepository interface {
	Create(ctx context.Context, group *models.Group) error
	Get(ctx context.Context, id uint) (models.Group, error)
	List(ctx context.Context, filter GroupFilter) ([]models.Group, error)
	Recommended(ctx context.Context, userID uint, limit int) ([]models.Group, error)
	IsMember(ctx context.Context, groupID, userID uint) (bool, error)
	AddMember(ctx context.Context, groupID, userID uint) error
	RemoveMember(ctx context.Context, groupID, userID uint) error
	AddPledge(ctx context.Context, groupID, userID uint) error
	RemovePledge(ctx context.Context, groupID, userID uint) error
	UpdateMeta(ctx context.Context, id uint, updates map[string]interface{}) error
	TouchLastMessage(ctx context.Context, id uint, at time.Time) error
}

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository constructs a GORM-backed group store.
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

// Create stores the group and enrolls the creator as its first member.
func (r *groupRepository) Create(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return err
		}
		member := models.GroupMember{GroupID: group.ID, UserID: group.CreatedByID}
		return tx.Create(&member).Error
	})
}

func (r *groupRepository) Get(ctx context.Context, id uint) (models.Group, error) {
	var group models.Group
	err := r.db.WithContext(ctx).
		Preload("Members").
		Preload("Pledges").
		First(&group, id).Error
	if err != nil {
		return models.Group{}, err
	}
	return group, nil
}

func (r *groupRepository) List(ctx context.Context, filter GroupFilter) ([]models.Group, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	query := r.db.WithContext(ctx).Model(&models.Group{})

	if search := strings.TrimSpace(filter.Query); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(category) LIKE ?",
			pattern, pattern, pattern,
		)
	}
	if filter.Category != "" && filter.Category != "All" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.OnlyJoined != nil {
		query = query.Where(
			"EXISTS (SELECT 1 FROM group_members gm WHERE gm.group_id = groups.id AND gm.user_id = ?)",
			*filter.OnlyJoined,
		)
	}

	var groups []models.Group
	err := query.
		Preload("Members").
		Preload("Pledges").
		Order("created_at DESC").
		Limit(limit).
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// Recommended lists recent open groups the user has not joined yet.
func (r *groupRepository) Recommended(ctx context.Context, userID uint, limit int) ([]models.Group, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	var groups []models.Group
	err := r.db.WithContext(ctx).
		Where("status = ?", models.GroupStatusOpen).
		Where("NOT EXISTS (SELECT 1 FROM group_members gm WHERE gm.group_id = groups.id AND gm.user_id = ?)", userID).
		Preload("Members").
		Order("created_at DESC").
		Limit(limit).
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *groupRepository) IsMember(ctx context.Context, groupID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *groupRepository) AddMember(ctx context.Context, groupID, userID uint) error {
	member := models.GroupMember{GroupID: groupID, UserID: userID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&member).Error
}

func (r *groupRepository) RemoveMember(ctx context.Context, groupID, userID uint) error {
	return r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&models.GroupMember{}).Error
}

func (r *groupRepository) AddPledge(ctx context.Context, groupID, userID uint) error {
	pledge := models.GroupPledge{GroupID: groupID, UserID: userID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&pledge).Error
}

func (r *groupRepository) RemovePledge(ctx context.Context, groupID, userID uint) error {
	return r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&models.GroupPledge{}).Error
}

func (r *groupRepository) UpdateMeta(ctx context.Context, id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.Group{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *groupRepository) TouchLastMessage(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Group{}).
		Where("id = ?", id).
		UpdateColumn("last_message_at", at).Error
}
