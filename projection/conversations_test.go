package projection

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/xtzs123/uniapp-backend/domain"
	apperrors "github.com/xtzs123/uniapp-backend/errors"
	"github.com/xtzs123/uniapp-backend/repositories"
)

func newProjector(t *testing.T) *Projector {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewProjector(repositories.NewConversationRepository(db), slog.Default())
}

func Test_Private_Conversation_Id_Is_Order_Independent(t *testing.T) {
	req := require.New(t)
	projector := newProjector(t)
	now := time.Now()

	first, err := projector.GetOrCreatePrivateConversation(7, 3, now)
	req.NoError(err)
	second, err := projector.GetOrCreatePrivateConversation(3, 7, now)
	req.NoError(err)
	req.Equal("conversation_3_7", first)
	req.Equal(first, second)

	rows, err := projector.ListParticipants(first)
	req.NoError(err)
	req.Len(rows, 2)
}

func Test_Unread_Lifecycle(t *testing.T) {
	req := require.New(t)
	projector := newProjector(t)
	now := time.Now()

	conversationID, err := projector.GetOrCreatePrivateConversation(1, 2, now)
	req.NoError(err)
	req.NoError(projector.UpdateLastMessage(conversationID, "hello", 1, now))
	req.NoError(projector.UpdateLastMessage(conversationID, "again", 1, now.Add(time.Second)))

	inbox, err := projector.List(2)
	req.NoError(err)
	req.Len(inbox, 1)
	req.Equal(2, inbox[0].UnreadCount)
	req.Equal("again", inbox[0].LastMessage)

	req.NoError(projector.MarkRead(2, conversationID))
	inbox, err = projector.List(2)
	req.NoError(err)
	req.Zero(inbox[0].UnreadCount)

	// The sender's row never accumulated unread.
	senderInbox, err := projector.List(1)
	req.NoError(err)
	req.Zero(senderInbox[0].UnreadCount)
}

func Test_SetTop_Unknown_Conversation(t *testing.T) {
	projector := newProjector(t)
	err := projector.SetTop(1, "conversation_1_2", true)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func Test_Group_Membership_Rows(t *testing.T) {
	req := require.New(t)
	projector := newProjector(t)
	now := time.Now()

	req.NoError(projector.CreateGroupConversation(5, "gophers", []int64{1}, now))
	req.NoError(projector.AddUserToGroupConversation(5, 2, "gophers", now))
	// Joining twice leaves a single row.
	req.NoError(projector.AddUserToGroupConversation(5, 2, "gophers", now))

	rows, err := projector.ListParticipants(domain.GroupConversationID(5))
	req.NoError(err)
	req.ElementsMatch([]int64{1, 2}, lo.Map(rows, func(r domain.Conversation, _ int) int64 { return r.UserID }))
	for _, row := range rows {
		req.Equal(2, row.MemberCount)
	}

	req.NoError(projector.RemoveUserFromGroupConversation(5, 2))
	rows, err = projector.ListParticipants(domain.GroupConversationID(5))
	req.NoError(err)
	req.Len(rows, 1)
	req.Equal(1, rows[0].MemberCount)

	// Removing an absent member is a no-op.
	req.NoError(projector.RemoveUserFromGroupConversation(5, 2))
}

func Test_DeleteGroupConversation_Clears_All_Rows(t *testing.T) {
	req := require.New(t)
	projector := newProjector(t)
	now := time.Now()

	req.NoError(projector.CreateGroupConversation(9, "ephemeral", []int64{1, 2, 3}, now))
	req.NoError(projector.DeleteGroupConversation(9))

	rows, err := projector.ListParticipants(domain.GroupConversationID(9))
	req.NoError(err)
	req.Empty(rows)

	inbox, err := projector.List(2)
	req.NoError(err)
	req.Empty(inbox)
}
