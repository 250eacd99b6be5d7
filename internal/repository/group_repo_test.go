package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sahayata/sahayata-api/internal/models"
)

func groupTestDB(t *testing.T) *gorm.DB {
	return setupMessagingTestDB(t,
		&models.Group{},
		&models.GroupMember{},
		&models.GroupPledge{},
		&models.GroupMessage{},
		&models.GroupReadState{},
	)
}

func TestGroupCreateEnrollsCreator(t *testing.T) {
	db := groupTestDB(t)
	repo := NewGroupRepository(db)

	group := models.Group{Name: "Water supply", Category: "Utilities", Status: models.GroupStatusOpen, CreatedByID: 9}
	require.NoError(t, repo.Create(context.Background(), &group))
	require.NotZero(t, group.ID)

	member, err := repo.IsMember(context.Background(), group.ID, 9)
	require.NoError(t, err)
	require.True(t, member)
}

func TestGroupAddMemberIsIdempotent(t *testing.T) {
	db := groupTestDB(t)
	repo := NewGroupRepository(db)

	group := models.Group{Name: "Tutoring", Status: models.GroupStatusOpen, CreatedByID: 1}
	require.NoError(t, repo.Create(context.Background(), &group))

	require.NoError(t, repo.AddMember(context.Background(), group.ID, 2))
	require.NoError(t, repo.AddMember(context.Background(), group.ID, 2))

	var members int64
	require.NoError(t, db.Model(&models.GroupMember{}).Where("group_id = ?", group.ID).Count(&members).Error)
	require.Equal(t, int64(2), members)

	require.NoError(t, repo.RemoveMember(context.Background(), group.ID, 2))
	member, err := repo.IsMember(context.Background(), group.ID, 2)
	require.NoError(t, err)
	require.False(t, member)
}

func TestGroupListFiltersSearchCategoryAndMembership(t *testing.T) {
	db := groupTestDB(t)
	repo := NewGroupRepository(db)

	food := models.Group{Name: "Food drive", Category: "Relief", Status: models.GroupStatusOpen, CreatedByID: 1}
	repair := models.Group{Name: "Roof repair", Category: "Housing", Status: models.GroupStatusOpen, CreatedByID: 2}
	require.NoError(t, repo.Create(context.Background(), &food))
	require.NoError(t, repo.Create(context.Background(), &repair))

	bySearch, err := repo.List(context.Background(), GroupFilter{Query: "roof"})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)
	require.Equal(t, repair.ID, bySearch[0].ID)

	byCategory, err := repo.List(context.Background(), GroupFilter{Category: "Relief"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	require.Equal(t, food.ID, byCategory[0].ID)

	viewer := uint(1)
	joined, err := repo.List(context.Background(), GroupFilter{OnlyJoined: &viewer})
	require.NoError(t, err)
	require.Len(t, joined, 1)
	require.Equal(t, food.ID, joined[0].ID)
}

func TestGroupRecommendedExcludesJoinedAndClosed(t *testing.T) {
	db := groupTestDB(t)
	repo := NewGroupRepository(db)

	joined := models.Group{Name: "Joined", Status: models.GroupStatusOpen, CreatedByID: 5}
	open := models.Group{Name: "Open", Status: models.GroupStatusOpen, CreatedByID: 2}
	resolved := models.Group{Name: "Resolved", Status: models.GroupStatusResolved, CreatedByID: 2}
	require.NoError(t, repo.Create(context.Background(), &joined))
	require.NoError(t, repo.Create(context.Background(), &open))
	require.NoError(t, repo.Create(context.Background(), &resolved))

	recommended, err := repo.Recommended(context.Background(), 5, 10)
	require.NoError(t, err)
	require.Len(t, recommended, 1)
	require.Equal(t, open.ID, recommended[0].ID)
}

func TestGroupUpdateMetaReportsMissingGroup(t *testing.T) {
	db := groupTestDB(t)
	repo := NewGroupRepository(db)

	err := repo.UpdateMeta(context.Background(), 404, map[string]interface{}{"status": models.GroupStatusResolved})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestGroupMessageClientIDDuplicateSurfacesAsDuplicatedKey(t *testing.T) {
	db := groupTestDB(t)
	groups := NewGroupRepository(db)
	messages := NewGroupMessageRepository(db)

	group := models.Group{Name: "Dedupe", Status: models.GroupStatusOpen, CreatedByID: 1}
	require.NoError(t, groups.Create(context.Background(), &group))

	clientID := "retry-abc"
	first := models.GroupMessage{GroupID: group.ID, SenderID: 1, Text: "original", ClientID: &clientID}
	require.NoError(t, messages.Create(context.Background(), &first))

	duplicate := models.GroupMessage{GroupID: group.ID, SenderID: 1, Text: "retry", ClientID: &clientID}
	err := messages.Create(context.Background(), &duplicate)
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	existing, err := messages.FindByClientID(context.Background(), group.ID, clientID)
	require.NoError(t, err)
	require.Equal(t, first.ID, existing.ID)
	require.Equal(t, "original", existing.Text)

	// The same client id in another group is a different send.
	other := models.Group{Name: "Other", Status: models.GroupStatusOpen, CreatedByID: 1}
	require.NoError(t, groups.Create(context.Background(), &other))
	elsewhere := models.GroupMessage{GroupID: other.ID, SenderID: 1, Text: "fresh", ClientID: &clientID}
	require.NoError(t, messages.Create(context.Background(), &elsewhere))
}

func TestGroupMessageCountAfterUsesStrictCursor(t *testing.T) {
	db := groupTestDB(t)
	groups := NewGroupRepository(db)
	messages := NewGroupMessageRepository(db)

	group := models.Group{Name: "Cursor", Status: models.GroupStatusOpen, CreatedByID: 1}
	require.NoError(t, groups.Create(context.Background(), &group))

	base := time.Now().Add(-time.Hour).UTC()
	for i := 0; i < 3; i++ {
		message := models.GroupMessage{GroupID: group.ID, SenderID: 1, Text: "m", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, messages.Create(context.Background(), &message))
	}

	all, err := messages.CountAfter(context.Background(), group.ID, time.Unix(0, 0).UTC())
	require.NoError(t, err)
	require.Equal(t, int64(3), all)

	afterSecond, err := messages.CountAfter(context.Background(), group.ID, base.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, int64(1), afterSecond)
}

func TestGroupReadStateUpsertMovesCursor(t *testing.T) {
	db := groupTestDB(t)
	repo := NewGroupReadStateRepository(db)

	first := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, repo.Upsert(context.Background(), 3, 7, first))

	state, err := repo.Get(context.Background(), 3, 7)
	require.NoError(t, err)
	require.WithinDuration(t, first, state.LastReadAt, time.Second)

	later := first.Add(30 * time.Minute)
	require.NoError(t, repo.Upsert(context.Background(), 3, 7, later))

	state, err = repo.Get(context.Background(), 3, 7)
	require.NoError(t, err)
	require.WithinDuration(t, later, state.LastReadAt, time.Second)

	var rows int64
	require.NoError(t, db.Model(&models.GroupReadState{}).Count(&rows).Error)
	require.Equal(t, int64(1), rows)
}
