package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"messaging-service/internal/models"
)

// Memory is the ephemeral backend: process-local maps behind one RWMutex.
// Not safe for horizontal scale-out; state dies with the process.
type Memory struct {
	mu            sync.RWMutex
	conversations map[string]*models.Conversation
	directIndex   map[string]string
	messages      map[string]*models.Message
	byConv        map[string][]string
	blocks        map[string]map[string]time.Time
	follows       map[string]map[string]bool
	keys          map[string]string
	seq           int64
}

// NewMemory builds an empty memory store.
func NewMemory() *Memory {
	return &Memory{
		conversations: make(map[string]*models.Conversation),
		directIndex:   make(map[string]string),
		messages:      make(map[string]*models.Message),
		byConv:        make(map[string][]string),
		blocks:        make(map[string]map[string]time.Time),
		follows:       make(map[string]map[string]bool),
		keys:          make(map[string]string),
	}
}

var _ Store = (*Memory)(nil)

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func (s *Memory) CreateConversation(ctx context.Context, conv models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv.Kind == models.KindDirect {
		key := pairKey(conv.Participants[0], conv.Participants[1])
		if _, exists := s.directIndex[key]; exists {
			return nil
		}
		s.directIndex[key] = conv.ID
	}
	if conv.Version == 0 {
		conv.Version = 1
	}
	c := cloneConversation(&conv)
	s.conversations[conv.ID] = c
	return nil
}

func (s *Memory) GetConversation(ctx context.Context, id string) (models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return models.Conversation{}, ErrNotFound
	}
	return *cloneConversation(conv), nil
}

func (s *Memory) FindDirectConversation(ctx context.Context, a, b string) (models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.directIndex[pairKey(a, b)]
	if !ok {
		return models.Conversation{}, ErrNotFound
	}
	return *cloneConversation(s.conversations[id]), nil
}

func (s *Memory) ListConversations(ctx context.Context, identity string, limit, offset int) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []models.Conversation
	for _, conv := range s.conversations {
		if conv.HasParticipant(identity) {
			result = append(result, *cloneConversation(conv))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return page(result, limit, offset), nil
}

func (s *Memory) UpdateConversation(ctx context.Context, conv models.Conversation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.conversations[conv.ID]
	if !ok {
		return false, ErrNotFound
	}
	if cur.Version != conv.Version {
		return false, nil
	}
	conv.Version++
	conv.UpdatedAt = time.Now().UTC()
	s.conversations[conv.ID] = cloneConversation(&conv)
	return true, nil
}

func (s *Memory) AddParticipant(ctx context.Context, id, identity string, limit int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return false, ErrNotFound
	}
	if conv.HasParticipant(identity) || len(conv.Participants) >= limit {
		return false, nil
	}
	conv.Participants = append(conv.Participants, identity)
	conv.Version++
	conv.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *Memory) RemoveParticipant(ctx context.Context, id, identity string, floor int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return false, ErrNotFound
	}
	if !conv.HasParticipant(identity) || identity == conv.Owner || len(conv.Participants) <= floor {
		return false, nil
	}
	conv.Participants = without(conv.Participants, identity)
	conv.AdminSet = without(conv.AdminSet, identity)
	conv.PosterAllowlist = without(conv.PosterAllowlist, identity)
	conv.Version++
	conv.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *Memory) UpdateRequestState(ctx context.Context, id string, from []string, to, blockedBy string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return false, ErrNotFound
	}
	matched := false
	for _, f := range from {
		if conv.RequestState == f {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	conv.RequestState = to
	conv.BlockedBy = blockedBy
	conv.Version++
	conv.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *Memory) TouchConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Memory) PurgeConversations(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.conversations))
	s.conversations = make(map[string]*models.Conversation)
	s.directIndex = make(map[string]string)
	s.messages = make(map[string]*models.Message)
	s.byConv = make(map[string][]string)
	return n, nil
}

func (s *Memory) AppendMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[msg.ConversationID]; !ok {
		return ErrNotFound
	}
	s.seq++
	msg.Seq = s.seq
	s.messages[msg.ID] = cloneMessage(msg)
	s.byConv[msg.ConversationID] = append(s.byConv[msg.ConversationID], msg.ID)
	return nil
}

func (s *Memory) GetMessage(ctx context.Context, id string) (models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		return models.Message{}, ErrNotFound
	}
	return *cloneMessage(msg), nil
}

// ListMessages returns newest-first pages. Append order is authoritative;
// wall-clock ties never reorder entries.
func (s *Memory) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byConv[conversationID]
	result := make([]models.Message, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		result = append(result, *cloneMessage(s.messages[ids[i]]))
	}
	return page(result, limit, offset), nil
}

func (s *Memory) AddDelivered(ctx context.Context, messageID, recipient string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return false, ErrNotFound
	}
	if msg.DeliveredToContains(recipient) {
		return false, nil
	}
	msg.DeliveredTo = append(msg.DeliveredTo, recipient)
	return true, nil
}

func (s *Memory) MarkConversationRead(ctx context.Context, conversationID, reader string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.byConv[conversationID] {
		msg := s.messages[id]
		if msg.Sender == reader || msg.ReadByContains(reader) {
			continue
		}
		msg.ReadBy = append(msg.ReadBy, reader)
	}
	return nil
}

func (s *Memory) ToggleReaction(ctx context.Context, messageID, emoji, actor string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return false, ErrNotFound
	}
	if msg.Reactions == nil {
		msg.Reactions = make(map[string][]string)
	}
	actors := msg.Reactions[emoji]
	for i, a := range actors {
		if a == actor {
			actors = append(actors[:i], actors[i+1:]...)
			if len(actors) == 0 {
				delete(msg.Reactions, emoji)
			} else {
				msg.Reactions[emoji] = actors
			}
			return false, nil
		}
	}
	msg.Reactions[emoji] = append(actors, actor)
	return true, nil
}

func (s *Memory) AddBlock(ctx context.Context, blocker, blocked string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocks[blocker] == nil {
		s.blocks[blocker] = make(map[string]time.Time)
	}
	if _, ok := s.blocks[blocker][blocked]; !ok {
		s.blocks[blocker][blocked] = time.Now().UTC()
	}
	return nil
}

func (s *Memory) RemoveBlock(ctx context.Context, blocker, blocked string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blocks[blocker][blocked]; !ok {
		return false, nil
	}
	delete(s.blocks[blocker], blocked)
	return true, nil
}

func (s *Memory) HasBlock(ctx context.Context, blocker, blocked string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocks[blocker][blocked]
	return ok, nil
}

func (s *Memory) BlockedIdentities(ctx context.Context, viewer string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for blocked := range s.blocks[viewer] {
		seen[blocked] = true
	}
	for blocker, targets := range s.blocks {
		if _, ok := targets[viewer]; ok {
			seen[blocker] = true
		}
	}
	result := make([]string, 0, len(seen))
	for identity := range seen {
		result = append(result, identity)
	}
	sort.Strings(result)
	return result, nil
}

func (s *Memory) AddFollow(ctx context.Context, follower, followee string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.follows[follower] == nil {
		s.follows[follower] = make(map[string]bool)
	}
	s.follows[follower][followee] = true
	return nil
}

func (s *Memory) Follows(ctx context.Context, follower, followee string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.follows[follower][followee], nil
}

func (s *Memory) SetPublicKey(ctx context.Context, identity, keyData string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[strings.ToLower(identity)] = keyData
	return nil
}

func (s *Memory) GetPublicKey(ctx context.Context, identity string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[strings.ToLower(identity)]
	if !ok {
		return "", ErrNotFound
	}
	return key, nil
}

func without(set []string, v string) []string {
	out := set[:0]
	for _, s := range set {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func cloneConversation(c *models.Conversation) *models.Conversation {
	out := *c
	out.Participants = append([]string(nil), c.Participants...)
	out.AdminSet = append([]string(nil), c.AdminSet...)
	out.PosterAllowlist = append([]string(nil), c.PosterAllowlist...)
	return &out
}

func cloneMessage(m *models.Message) *models.Message {
	out := *m
	out.DeliveredTo = append([]string(nil), m.DeliveredTo...)
	out.ReadBy = append([]string(nil), m.ReadBy...)
	if m.Reactions != nil {
		out.Reactions = make(map[string][]string, len(m.Reactions))
		for emoji, actors := range m.Reactions {
			out.Reactions[emoji] = append([]string(nil), actors...)
		}
	}
	return &out
}
