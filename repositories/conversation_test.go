package repositories

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/xtzs123/uniapp-backend/domain"
	apperrors "github.com/xtzs123/uniapp-backend/errors"
)

func privatePair(a, b int64) [2]domain.Conversation {
	conversationID := domain.PrivateConversationID(a, b)
	row := func(owner, target int64) domain.Conversation {
		return domain.Conversation{
			UserID:         owner,
			ConversationID: conversationID,
			Type:           domain.ConversationPrivate,
			TargetID:       fmt.Sprintf("%d", target),
			Name:           "peer",
		}
	}
	return [2]domain.Conversation{row(a, b), row(b, a)}
}

func Test_CreatePairIfAbsent_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))

	created, err := repository.CreatePairIfAbsent(privatePair(1, 2))
	req.NoError(err)
	req.True(created)

	// Second contact between the same pair must not rewrite the rows.
	req.NoError(repository.SetTop(1, domain.PrivateConversationID(1, 2), true))
	created, err = repository.CreatePairIfAbsent(privatePair(2, 1))
	req.NoError(err)
	req.False(created)

	row, err := repository.Get(1, domain.PrivateConversationID(1, 2))
	req.NoError(err)
	req.True(row.IsTop)

	rows, err := repository.ListByConversation(domain.PrivateConversationID(1, 2))
	req.NoError(err)
	req.Len(rows, 2)
}

func Test_Racing_First_Contacts_Create_Exactly_One_Pair(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))
	pair := privatePair(1, 2)
	conversationID := pair[0].ConversationID

	const racers = 16
	var created atomic.Int32
	errs := make(chan error, racers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := repository.CreatePairIfAbsent(pair)
			if ok {
				created.Add(1)
			}
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	for i := 0; i < racers; i++ {
		req.NoError(<-errs)
	}

	req.EqualValues(1, created.Load())
	rows, err := repository.ListByConversation(conversationID)
	req.NoError(err)
	req.Len(rows, 2)

	req.NoError(repository.UpdateLastMessage(conversationID, "hi", 1, time.Now()))
	row, err := repository.Get(2, conversationID)
	req.NoError(err)
	req.Equal(1, row.UnreadCount)
}

func Test_Late_First_Contact_Cannot_Overwrite_Bumped_Rows(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewConversationRepository(db)
	pair := privatePair(1, 2)
	conversationID := pair[0].ConversationID

	// A competing first contact checks for the pair before the winner
	// commits: both Gets register the absent keys as reads.
	late := db.NewTransaction(true)
	defer late.Discard()
	for _, row := range pair {
		_, err := late.Get(conversationKey(row.UserID, row.ConversationID))
		req.Equal(badger.ErrKeyNotFound, err)
	}

	// The winner creates the pair and a first message bumps it.
	created, err := repository.CreatePairIfAbsent(pair)
	req.NoError(err)
	req.True(created)
	req.NoError(repository.UpdateLastMessage(conversationID, "hi", 1, time.Now()))

	// The late writer now commits its blank pair; it must be rejected,
	// not clobber the bumped rows.
	for _, row := range pair {
		req.NoError(putConversation(late, row))
	}
	req.ErrorIs(late.Commit(), badger.ErrConflict)

	row, err := repository.Get(2, conversationID)
	req.NoError(err)
	req.Equal(1, row.UnreadCount)
	req.Equal("hi", row.LastMessage)
}

func Test_UpdateLastMessage_Bumps_Unread_Except_Sender(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))
	conversationID := domain.PrivateConversationID(1, 2)

	_, err := repository.CreatePairIfAbsent(privatePair(1, 2))
	req.NoError(err)

	at := time.Now().UTC()
	req.NoError(repository.UpdateLastMessage(conversationID, "hello", 1, at))

	senderRow, err := repository.Get(1, conversationID)
	req.NoError(err)
	req.Zero(senderRow.UnreadCount)
	req.Equal("hello", senderRow.LastMessage)

	receiverRow, err := repository.Get(2, conversationID)
	req.NoError(err)
	req.Equal(1, receiverRow.UnreadCount)
	req.Equal(at, receiverRow.LastMessageTime)

	req.NoError(repository.MarkRead(2, conversationID))
	receiverRow, err = repository.Get(2, conversationID)
	req.NoError(err)
	req.Zero(receiverRow.UnreadCount)
}

func Test_UpdateLastMessage_Unknown_Conversation(t *testing.T) {
	repository := NewConversationRepository(openTestDB(t))
	err := repository.UpdateLastMessage("conversation_8_9", "hi", 8, time.Now())
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func Test_ListByUser_Orders_Pinned_Then_Recent(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))
	base := time.Now().UTC()

	rows := []domain.Conversation{
		{UserID: 1, ConversationID: "conversation_1_2", Type: domain.ConversationPrivate, LastMessageTime: base.Add(3 * time.Minute)},
		{UserID: 1, ConversationID: "conversation_1_3", Type: domain.ConversationPrivate, LastMessageTime: base.Add(1 * time.Minute), IsTop: true},
		{UserID: 1, ConversationID: "group_1", Type: domain.ConversationGroup, LastMessageTime: base.Add(2 * time.Minute)},
	}
	for _, row := range rows {
		req.NoError(repository.Upsert(row))
	}

	listed, err := repository.ListByUser(1)
	req.NoError(err)
	req.Equal(
		[]string{"conversation_1_3", "conversation_1_2", "group_1"},
		lo.Map(listed, func(r domain.Conversation, _ int) string { return r.ConversationID }),
	)
}

func Test_Delete_Removes_Row_And_Index(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))
	conversationID := domain.PrivateConversationID(1, 2)

	_, err := repository.CreatePairIfAbsent(privatePair(1, 2))
	req.NoError(err)

	req.NoError(repository.Delete(1, conversationID))
	_, err = repository.Get(1, conversationID)
	req.ErrorIs(err, apperrors.ErrNotFound)

	// The other participant keeps their row.
	rows, err := repository.ListByConversation(conversationID)
	req.NoError(err)
	req.Len(rows, 1)
	req.Equal(int64(2), rows[0].UserID)

	req.ErrorIs(repository.Delete(1, conversationID), apperrors.ErrNotFound)
}

func Test_RecountMembers_Tracks_Remaining_Rows(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))
	conversationID := domain.GroupConversationID(7)

	for _, userID := range []int64{1, 2, 3} {
		req.NoError(repository.Upsert(domain.Conversation{
			UserID:         userID,
			ConversationID: conversationID,
			Type:           domain.ConversationGroup,
		}))
	}

	count, err := repository.RecountMembers(conversationID)
	req.NoError(err)
	req.Equal(3, count)

	req.NoError(repository.Delete(3, conversationID))
	count, err = repository.RecountMembers(conversationID)
	req.NoError(err)
	req.Equal(2, count)

	row, err := repository.Get(1, conversationID)
	req.NoError(err)
	req.Equal(2, row.MemberCount)
}
