package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sahayata/sahayata-api/internal/models"
)

func setupMessagingTestDB(t *testing.T, entities ...interface{}) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(entities...))
	return db
}

func messagingTestDB(t *testing.T) *gorm.DB {
	return setupMessagingTestDB(t,
		&models.Conversation{},
		&models.Message{},
		&models.MessageReaction{},
		&models.MessageRead{},
		&models.MessageHide{},
	)
}

func TestConversationGetOrCreateIsIdempotent(t *testing.T) {
	db := messagingTestDB(t)
	repo := NewConversationRepository(db)

	first, err := repo.GetOrCreate(context.Background(), 7, 3)
	require.NoError(t, err)
	require.Equal(t, uint(3), first.UserAID)
	require.Equal(t, uint(7), first.UserBID)
	require.Equal(t, "3:7", first.ParticipantsKey)

	// Same pair from the other side resolves to the same row.
	second, err := repo.GetOrCreate(context.Background(), 3, 7)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var total int64
	require.NoError(t, db.Model(&models.Conversation{}).Count(&total).Error)
	require.Equal(t, int64(1), total)
}

func TestMessageCreateRecordsSenderReadAndBumpsConversation(t *testing.T) {
	db := messagingTestDB(t)
	conversations := NewConversationRepository(db)
	messages := NewMessageRepository(db)

	conversation, err := conversations.GetOrCreate(context.Background(), 1, 2)
	require.NoError(t, err)

	message := models.Message{ConversationID: &conversation.ID, SenderID: 1, Text: "hello"}
	require.NoError(t, messages.Create(context.Background(), &message))
	require.NotZero(t, message.ID)

	stored, err := messages.Get(context.Background(), message.ID)
	require.NoError(t, err)
	require.Len(t, stored.Reads, 1)
	require.Equal(t, uint(1), stored.Reads[0].UserID)

	// The sender never counts their own message as unread; the recipient does.
	senderUnread, err := conversations.UnreadCount(context.Background(), conversation.ID, 1)
	require.NoError(t, err)
	require.Zero(t, senderUnread)

	recipientUnread, err := conversations.UnreadCount(context.Background(), conversation.ID, 2)
	require.NoError(t, err)
	require.Equal(t, int64(1), recipientUnread)
}

func TestMarkConversationReadCountsOnlyNewReceipts(t *testing.T) {
	db := messagingTestDB(t)
	conversations := NewConversationRepository(db)
	messages := NewMessageRepository(db)

	conversation, err := conversations.GetOrCreate(context.Background(), 1, 2)
	require.NoError(t, err)

	for _, text := range []string{"one", "two", "three"} {
		message := models.Message{ConversationID: &conversation.ID, SenderID: 1, Text: text}
		require.NoError(t, messages.Create(context.Background(), &message))
	}

	updated, err := messages.MarkConversationRead(context.Background(), conversation.ID, 2)
	require.NoError(t, err)
	require.Equal(t, int64(3), updated)

	// A second pass finds nothing left to acknowledge.
	updated, err = messages.MarkConversationRead(context.Background(), conversation.ID, 2)
	require.NoError(t, err)
	require.Zero(t, updated)

	unread, err := conversations.UnreadCount(context.Background(), conversation.ID, 2)
	require.NoError(t, err)
	require.Zero(t, unread)
}

func TestMarkConversationReadSkipsHiddenAndWipedMessages(t *testing.T) {
	db := messagingTestDB(t)
	conversations := NewConversationRepository(db)
	messages := NewMessageRepository(db)

	conversation, err := conversations.GetOrCreate(context.Background(), 1, 2)
	require.NoError(t, err)

	visible := models.Message{ConversationID: &conversation.ID, SenderID: 1, Text: "keep"}
	hidden := models.Message{ConversationID: &conversation.ID, SenderID: 1, Text: "hidden"}
	wiped := models.Message{ConversationID: &conversation.ID, SenderID: 1, Text: "gone"}
	for _, message := range []*models.Message{&visible, &hidden, &wiped} {
		require.NoError(t, messages.Create(context.Background(), message))
	}

	require.NoError(t, messages.Hide(context.Background(), hidden.ID, 2))
	require.NoError(t, messages.Wipe(context.Background(), wiped.ID))

	updated, err := messages.MarkConversationRead(context.Background(), conversation.ID, 2)
	require.NoError(t, err)
	require.Equal(t, int64(1), updated)
}

func TestToggleReactionAddsThenRemoves(t *testing.T) {
	db := messagingTestDB(t)
	conversations := NewConversationRepository(db)
	messages := NewMessageRepository(db)

	conversation, err := conversations.GetOrCreate(context.Background(), 1, 2)
	require.NoError(t, err)

	message := models.Message{ConversationID: &conversation.ID, SenderID: 1, Text: "hello"}
	require.NoError(t, messages.Create(context.Background(), &message))

	added, err := messages.ToggleReaction(context.Background(), message.ID, 2, "👍")
	require.NoError(t, err)
	require.True(t, added)

	// A different emoji from the same user coexists.
	added, err = messages.ToggleReaction(context.Background(), message.ID, 2, "❤️")
	require.NoError(t, err)
	require.True(t, added)

	added, err = messages.ToggleReaction(context.Background(), message.ID, 2, "👍")
	require.NoError(t, err)
	require.False(t, added)

	reactions, err := messages.ListReactions(context.Background(), message.ID)
	require.NoError(t, err)
	require.Len(t, reactions, 1)
	require.Equal(t, "❤️", reactions[0].Emoji)
}

func TestListPageFiltersViewerHides(t *testing.T) {
	db := messagingTestDB(t)
	messages := NewMessageRepository(db)

	postID := uint(11)
	first := models.Message{PostID: &postID, SenderID: 1, Text: "first"}
	second := models.Message{PostID: &postID, SenderID: 2, Text: "second"}
	require.NoError(t, messages.Create(context.Background(), &first))
	require.NoError(t, messages.Create(context.Background(), &second))

	require.NoError(t, messages.Hide(context.Background(), first.ID, 2))

	forViewer, err := messages.ListByPost(context.Background(), postID, 2, 1, 50)
	require.NoError(t, err)
	require.Len(t, forViewer, 1)
	require.Equal(t, second.ID, forViewer[0].ID)

	forOthers, err := messages.ListByPost(context.Background(), postID, 1, 1, 50)
	require.NoError(t, err)
	require.Len(t, forOthers, 2)
	require.Equal(t, first.ID, forOthers[0].ID, "page should come back in chronological order")
}

func TestWipeIsIdempotentAndKeepsRow(t *testing.T) {
	db := messagingTestDB(t)
	messages := NewMessageRepository(db)

	postID := uint(4)
	message := models.Message{PostID: &postID, SenderID: 1, Text: "secret"}
	require.NoError(t, messages.Create(context.Background(), &message))

	require.NoError(t, messages.Wipe(context.Background(), message.ID))
	require.NoError(t, messages.Wipe(context.Background(), message.ID))

	stored, err := messages.Get(context.Background(), message.ID)
	require.NoError(t, err)
	require.True(t, stored.DeletedForEveryone)
	require.Empty(t, stored.Text)
}

func TestHideAllInPostCoversExistingMessagesOnce(t *testing.T) {
	db := messagingTestDB(t)
	messages := NewMessageRepository(db)

	postID := uint(9)
	for _, text := range []string{"a", "b"} {
		message := models.Message{PostID: &postID, SenderID: 1, Text: text}
		require.NoError(t, messages.Create(context.Background(), &message))
	}

	require.NoError(t, messages.HideAllInPost(context.Background(), postID, 5))
	require.NoError(t, messages.HideAllInPost(context.Background(), postID, 5))

	var hides int64
	require.NoError(t, db.Model(&models.MessageHide{}).Where("user_id = ?", 5).Count(&hides).Error)
	require.Equal(t, int64(2), hides)

	page, err := messages.ListByPost(context.Background(), postID, 5, 1, 50)
	require.NoError(t, err)
	require.Empty(t, page)
}
