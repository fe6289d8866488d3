package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/identity"
	"messaging-service/internal/models"
	"messaging-service/internal/movements"
	"messaging-service/internal/store"
)

type StoreMock struct {
	mock.Mock
}

func (m *StoreMock) CreateConversation(ctx context.Context, conv models.Conversation) error {
	args := m.Called(ctx, conv)
	return args.Error(0)
}

func (m *StoreMock) GetConversation(ctx context.Context, id string) (models.Conversation, error) {
	args := m.Called(ctx, id)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *StoreMock) FindDirectConversation(ctx context.Context, a, b string) (models.Conversation, error) {
	args := m.Called(ctx, a, b)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *StoreMock) ListConversations(ctx context.Context, identity string, limit, offset int) ([]models.Conversation, error) {
	args := m.Called(ctx, identity, limit, offset)
	var list []models.Conversation
	if val := args.Get(0); val != nil {
		list = val.([]models.Conversation)
	}
	return list, args.Error(1)
}

func (m *StoreMock) UpdateConversation(ctx context.Context, conv models.Conversation) (bool, error) {
	args := m.Called(ctx, conv)
	return args.Bool(0), args.Error(1)
}

func (m *StoreMock) AddParticipant(ctx context.Context, id, identity string, limit int) (bool, error) {
	args := m.Called(ctx, id, identity, limit)
	return args.Bool(0), args.Error(1)
}

func (m *StoreMock) RemoveParticipant(ctx context.Context, id, identity string, floor int) (bool, error) {
	args := m.Called(ctx, id, identity, floor)
	return args.Bool(0), args.Error(1)
}

func (m *StoreMock) UpdateRequestState(ctx context.Context, id string, from []string, to, blockedBy string) (bool, error) {
	args := m.Called(ctx, id, from, to, blockedBy)
	return args.Bool(0), args.Error(1)
}

func (m *StoreMock) TouchConversation(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *StoreMock) PurgeConversations(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *StoreMock) AppendMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *StoreMock) GetMessage(ctx context.Context, id string) (models.Message, error) {
	args := m.Called(ctx, id)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *StoreMock) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, limit, offset)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *StoreMock) AddDelivered(ctx context.Context, messageID, recipient string) (bool, error) {
	args := m.Called(ctx, messageID, recipient)
	return args.Bool(0), args.Error(1)
}

func (m *StoreMock) MarkConversationRead(ctx context.Context, conversationID, reader string) error {
	args := m.Called(ctx, conversationID, reader)
	return args.Error(0)
}

func (m *StoreMock) ToggleReaction(ctx context.Context, messageID, emoji, actor string) (bool, error) {
	args := m.Called(ctx, messageID, emoji, actor)
	return args.Bool(0), args.Error(1)
}

func (m *StoreMock) AddBlock(ctx context.Context, blocker, blocked string) error {
	args := m.Called(ctx, blocker, blocked)
	return args.Error(0)
}

func (m *StoreMock) RemoveBlock(ctx context.Context, blocker, blocked string) (bool, error) {
	args := m.Called(ctx, blocker, blocked)
	return args.Bool(0), args.Error(1)
}

func (m *StoreMock) HasBlock(ctx context.Context, blocker, blocked string) (bool, error) {
	args := m.Called(ctx, blocker, blocked)
	return args.Bool(0), args.Error(1)
}

func (m *StoreMock) BlockedIdentities(ctx context.Context, viewer string) ([]string, error) {
	args := m.Called(ctx, viewer)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

func (m *StoreMock) AddFollow(ctx context.Context, follower, followee string) error {
	args := m.Called(ctx, follower, followee)
	return args.Error(0)
}

func (m *StoreMock) Follows(ctx context.Context, follower, followee string) (bool, error) {
	args := m.Called(ctx, follower, followee)
	return args.Bool(0), args.Error(1)
}

func (m *StoreMock) SetPublicKey(ctx context.Context, identity, keyData string) error {
	args := m.Called(ctx, identity, keyData)
	return args.Error(0)
}

func (m *StoreMock) GetPublicKey(ctx context.Context, identity string) (string, error) {
	args := m.Called(ctx, identity)
	return args.String(0), args.Error(1)
}

type DirectoryMock struct {
	mock.Mock
}

func (m *DirectoryMock) MovementOwner(ctx context.Context, movementRef string) (string, error) {
	args := m.Called(ctx, movementRef)
	return args.String(0), args.Error(1)
}

func (m *DirectoryMock) ApprovedSubmitters(ctx context.Context, movementRef string) ([]string, error) {
	args := m.Called(ctx, movementRef)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

func (m *DirectoryMock) IsEligible(ctx context.Context, movementRef, identity string) (bool, error) {
	args := m.Called(ctx, movementRef, identity)
	return args.Bool(0), args.Error(1)
}

type VerifierMock struct {
	mock.Mock
}

func (m *VerifierMock) Verify(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

var _ store.Store = (*StoreMock)(nil)
var _ movements.Directory = (*DirectoryMock)(nil)
var _ identity.Verifier = (*VerifierMock)(nil)
