package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
)

func directConv(id, a, b, state string) models.Conversation {
	now := time.Now().UTC()
	return models.Conversation{
		ID:           id,
		Kind:         models.KindDirect,
		Participants: []string{a, b},
		RequestState: state,
		Requester:    a,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestCreateConversationDirectPairIsUnique(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	require.NoError(t, s.CreateConversation(ctx, directConv("c1", "alice", "bob", models.StatePending)))
	// Same unordered pair, reversed order. The first row wins.
	require.NoError(t, s.CreateConversation(ctx, directConv("c2", "bob", "alice", models.StatePending)))

	found, err := s.FindDirectConversation(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, "c1", found.ID)

	_, err = s.GetConversation(ctx, "c2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRequestStateConditional(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.CreateConversation(ctx, directConv("c1", "alice", "bob", models.StatePending)))

	moved, err := s.UpdateRequestState(ctx, "c1", []string{models.StatePending}, models.StateAccepted, "")
	require.NoError(t, err)
	assert.True(t, moved)

	// A second accept finds no pending row.
	moved, err = s.UpdateRequestState(ctx, "c1", []string{models.StatePending}, models.StateAccepted, "")
	require.NoError(t, err)
	assert.False(t, moved)

	conv, err := s.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.StateAccepted, conv.RequestState)
}

func groupConv(id string, participants ...string) models.Conversation {
	now := time.Now().UTC()
	return models.Conversation{
		ID:           id,
		Kind:         models.KindGroup,
		Participants: participants,
		Name:         "g",
		Owner:        participants[0],
		AdminSet:     []string{participants[0]},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUpdateConversationVersionGuard(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.CreateConversation(ctx, groupConv("g1", "alice", "bob")))

	fresh, err := s.GetConversation(ctx, "g1")
	require.NoError(t, err)
	stale := fresh

	fresh.Name = "renamed"
	moved, err := s.UpdateConversation(ctx, fresh)
	require.NoError(t, err)
	assert.True(t, moved)

	// The second writer read the same version and must not clobber.
	stale.Name = "stale"
	moved, err = s.UpdateConversation(ctx, stale)
	require.NoError(t, err)
	assert.False(t, moved)

	got, err := s.GetConversation(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
}

func TestAddParticipantConditional(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.CreateConversation(ctx, groupConv("g1", "alice", "bob")))

	added, err := s.AddParticipant(ctx, "g1", "carol", 3)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.AddParticipant(ctx, "g1", "carol", 3)
	require.NoError(t, err)
	assert.False(t, added)

	added, err = s.AddParticipant(ctx, "g1", "dave", 3)
	require.NoError(t, err)
	assert.False(t, added)

	got, err := s.GetConversation(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, got.Participants)
}

func TestRemoveParticipantConditional(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	conv := groupConv("g1", "alice", "bob", "carol")
	conv.AdminSet = []string{"alice", "bob"}
	conv.PosterAllowlist = []string{"carol"}
	require.NoError(t, s.CreateConversation(ctx, conv))

	removed, err := s.RemoveParticipant(ctx, "g1", "alice", 2)
	require.NoError(t, err)
	assert.False(t, removed, "the owner never leaves")

	removed, err = s.RemoveParticipant(ctx, "g1", "ghost", 2)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = s.RemoveParticipant(ctx, "g1", "bob", 2)
	require.NoError(t, err)
	assert.True(t, removed)

	// Two participants left; the floor holds.
	removed, err = s.RemoveParticipant(ctx, "g1", "carol", 2)
	require.NoError(t, err)
	assert.False(t, removed)

	got, err := s.GetConversation(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "carol"}, got.Participants)
	assert.Equal(t, []string{"alice"}, got.AdminSet)
	assert.Equal(t, []string{"carol"}, got.PosterAllowlist)
}

func TestListConversationsRecencyOrder(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.CreateConversation(ctx, directConv("c1", "alice", "bob", models.StateAccepted)))
	require.NoError(t, s.CreateConversation(ctx, directConv("c2", "alice", "carol", models.StateAccepted)))
	require.NoError(t, s.TouchConversation(ctx, "c1"))

	convs, err := s.ListConversations(ctx, "alice", 10, 0)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "c1", convs[0].ID)

	convs, err = s.ListConversations(ctx, "bob", 10, 0)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "c1", convs[0].ID)
}

func TestAppendAndListMessagesNewestFirst(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.CreateConversation(ctx, directConv("c1", "alice", "bob", models.StateAccepted)))

	for _, id := range []string{"m1", "m2", "m3"} {
		msg := models.Message{ID: id, ConversationID: "c1", Sender: "alice", Body: id}
		require.NoError(t, s.AppendMessage(ctx, &msg))
		assert.Positive(t, msg.Seq)
	}

	msgs, err := s.ListMessages(ctx, "c1", 2, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m3", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)

	msgs, err = s.ListMessages(ctx, "c1", 2, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
}

func TestAppendMessageUnknownConversation(t *testing.T) {
	s := NewMemory()
	msg := models.Message{ID: "m1", ConversationID: "nope", Sender: "alice"}
	assert.ErrorIs(t, s.AppendMessage(context.Background(), &msg), ErrNotFound)
}

func TestAddDeliveredIdempotent(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.CreateConversation(ctx, directConv("c1", "alice", "bob", models.StateAccepted)))
	msg := models.Message{ID: "m1", ConversationID: "c1", Sender: "alice"}
	require.NoError(t, s.AppendMessage(ctx, &msg))

	changed, err := s.AddDelivered(ctx, "m1", "bob")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.AddDelivered(ctx, "m1", "bob")
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := s.GetMessage(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, got.DeliveredTo)
}

func TestMarkConversationReadSkipsSender(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.CreateConversation(ctx, directConv("c1", "alice", "bob", models.StateAccepted)))

	fromAlice := models.Message{ID: "m1", ConversationID: "c1", Sender: "alice", ReadBy: []string{"alice"}}
	fromBob := models.Message{ID: "m2", ConversationID: "c1", Sender: "bob", ReadBy: []string{"bob"}}
	require.NoError(t, s.AppendMessage(ctx, &fromAlice))
	require.NoError(t, s.AppendMessage(ctx, &fromBob))

	require.NoError(t, s.MarkConversationRead(ctx, "c1", "bob"))
	require.NoError(t, s.MarkConversationRead(ctx, "c1", "bob"))

	got, err := s.GetMessage(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, got.ReadBy)

	got, err = s.GetMessage(ctx, "m2")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, got.ReadBy)
}

func TestToggleReactionFlips(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.CreateConversation(ctx, directConv("c1", "alice", "bob", models.StateAccepted)))
	msg := models.Message{ID: "m1", ConversationID: "c1", Sender: "alice"}
	require.NoError(t, s.AppendMessage(ctx, &msg))

	added, err := s.ToggleReaction(ctx, "m1", "👍", "bob")
	require.NoError(t, err)
	assert.True(t, added)

	got, _ := s.GetMessage(ctx, "m1")
	assert.Equal(t, []string{"bob"}, got.Reactions["👍"])

	added, err = s.ToggleReaction(ctx, "m1", "👍", "bob")
	require.NoError(t, err)
	assert.False(t, added)

	got, _ = s.GetMessage(ctx, "m1")
	assert.NotContains(t, got.Reactions, "👍")
}

func TestBlockedIdentitiesBothDirections(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.AddBlock(ctx, "alice", "bob"))
	require.NoError(t, s.AddBlock(ctx, "carol", "alice"))

	ids, err := s.BlockedIdentities(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, ids)

	removed, err := s.RemoveBlock(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.RemoveBlock(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestPublicKeysCaseInsensitive(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, err := s.GetPublicKey(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetPublicKey(ctx, "Alice", "key-data"))
	key, err := s.GetPublicKey(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "key-data", key)
}

func TestPurgeConversations(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	require.NoError(t, s.CreateConversation(ctx, directConv("c1", "alice", "bob", models.StateAccepted)))
	msg := models.Message{ID: "m1", ConversationID: "c1", Sender: "alice"}
	require.NoError(t, s.AppendMessage(ctx, &msg))

	n, err := s.PurgeConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetConversation(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetMessage(ctx, "m1")
	assert.ErrorIs(t, err, ErrNotFound)
}
