package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

// Postgres is the durable backend. Every mutation is a single conditional
// statement so concurrent writers never lose updates to a read-modify-write
// round trip.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres wraps an sqlx connection.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

var _ Store = (*Postgres)(nil)

type conversationRow struct {
	ID              string         `db:"id"`
	Kind            string         `db:"kind"`
	Participants    pq.StringArray `db:"participants"`
	RequestState    sql.NullString `db:"request_state"`
	Requester       sql.NullString `db:"requester"`
	BlockedBy       sql.NullString `db:"blocked_by"`
	Encrypted       bool           `db:"encrypted"`
	Name            sql.NullString `db:"name"`
	AvatarRef       sql.NullString `db:"avatar_ref"`
	GroupType       sql.NullString `db:"group_type"`
	MovementRef     sql.NullString `db:"movement_ref"`
	Owner           sql.NullString `db:"owner"`
	AdminSet        pq.StringArray `db:"admin_set"`
	PosterAllowlist pq.StringArray `db:"poster_allowlist"`
	PostMode        sql.NullString `db:"post_mode"`
	Version         int64          `db:"version"`
	CreatedAt       sql.NullTime   `db:"created_at"`
	UpdatedAt       sql.NullTime   `db:"updated_at"`
}

func (r conversationRow) toModel() models.Conversation {
	conv := models.Conversation{
		ID:              r.ID,
		Kind:            r.Kind,
		Participants:    []string(r.Participants),
		RequestState:    r.RequestState.String,
		Requester:       r.Requester.String,
		BlockedBy:       r.BlockedBy.String,
		Encrypted:       r.Encrypted,
		Name:            r.Name.String,
		AvatarRef:       r.AvatarRef.String,
		GroupType:       r.GroupType.String,
		MovementRef:     r.MovementRef.String,
		Owner:           r.Owner.String,
		AdminSet:        []string(r.AdminSet),
		PosterAllowlist: []string(r.PosterAllowlist),
		PostMode:        r.PostMode.String,
		Version:         r.Version,
	}
	if r.CreatedAt.Valid {
		conv.CreatedAt = r.CreatedAt.Time
	}
	if r.UpdatedAt.Valid {
		conv.UpdatedAt = r.UpdatedAt.Time
	}
	return conv
}

const conversationColumns = `id, kind, participants, request_state, requester, blocked_by, encrypted,
    name, avatar_ref, group_type, movement_ref, owner, admin_set, poster_allowlist, post_mode,
    version, created_at, updated_at`

func directKey(a, b string) string {
	return pairKey(a, b)
}

func (s *Postgres) CreateConversation(ctx context.Context, conv models.Conversation) error {
	var key sql.NullString
	if conv.Kind == models.KindDirect {
		key = sql.NullString{String: directKey(conv.Participants[0], conv.Participants[1]), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO conversations
        (id, kind, participants, request_state, requester, blocked_by, encrypted,
         name, avatar_ref, group_type, movement_ref, owner, admin_set, poster_allowlist, post_mode,
         direct_key, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
        ON CONFLICT (direct_key) WHERE direct_key IS NOT NULL DO NOTHING`,
		conv.ID, conv.Kind, pq.StringArray(conv.Participants),
		nullable(conv.RequestState), nullable(conv.Requester), nullable(conv.BlockedBy), conv.Encrypted,
		nullable(conv.Name), nullable(conv.AvatarRef), nullable(conv.GroupType), nullable(conv.MovementRef),
		nullable(conv.Owner), pq.StringArray(conv.AdminSet), pq.StringArray(conv.PosterAllowlist),
		nullable(conv.PostMode), key, conv.CreatedAt, conv.UpdatedAt)
	return err
}

func (s *Postgres) GetConversation(ctx context.Context, id string) (models.Conversation, error) {
	var row conversationRow
	err := s.db.GetContext(ctx, &row, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrNotFound
	}
	if err != nil {
		return models.Conversation{}, err
	}
	return row.toModel(), nil
}

func (s *Postgres) FindDirectConversation(ctx context.Context, a, b string) (models.Conversation, error) {
	var row conversationRow
	err := s.db.GetContext(ctx, &row, `SELECT `+conversationColumns+` FROM conversations WHERE direct_key=$1`, directKey(a, b))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrNotFound
	}
	if err != nil {
		return models.Conversation{}, err
	}
	return row.toModel(), nil
}

func (s *Postgres) ListConversations(ctx context.Context, identity string, limit, offset int) ([]models.Conversation, error) {
	if limit <= 0 {
		limit = 1000
	}
	var rows []conversationRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+conversationColumns+` FROM conversations
        WHERE $1 = ANY(participants)
        ORDER BY updated_at DESC, id LIMIT $2 OFFSET $3`, identity, limit, offset)
	if err != nil {
		return nil, err
	}
	result := make([]models.Conversation, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toModel())
	}
	return result, nil
}

func (s *Postgres) UpdateConversation(ctx context.Context, conv models.Conversation) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE conversations SET
        name=$2, avatar_ref=$3, admin_set=$4, poster_allowlist=$5, post_mode=$6,
        version = version + 1, updated_at=NOW()
        WHERE id=$1 AND version=$7`,
		conv.ID, nullable(conv.Name), nullable(conv.AvatarRef),
		pq.StringArray(conv.AdminSet), pq.StringArray(conv.PosterAllowlist), nullable(conv.PostMode),
		conv.Version)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

func (s *Postgres) AddParticipant(ctx context.Context, id, identity string, limit int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE conversations
        SET participants = array_append(participants, $2),
            version = version + 1, updated_at = NOW()
        WHERE id=$1 AND NOT ($2 = ANY(participants)) AND cardinality(participants) < $3`,
		id, identity, limit)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

func (s *Postgres) RemoveParticipant(ctx context.Context, id, identity string, floor int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE conversations
        SET participants = array_remove(participants, $2),
            admin_set = array_remove(admin_set, $2),
            poster_allowlist = array_remove(poster_allowlist, $2),
            version = version + 1, updated_at = NOW()
        WHERE id=$1 AND $2 = ANY(participants) AND owner IS DISTINCT FROM $2
            AND cardinality(participants) > $3`,
		id, identity, floor)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

func (s *Postgres) UpdateRequestState(ctx context.Context, id string, from []string, to, blockedBy string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE conversations
        SET request_state=$2, blocked_by=$3, version = version + 1, updated_at=NOW()
        WHERE id=$1 AND request_state = ANY($4)`,
		id, to, nullable(blockedBy), pq.StringArray(from))
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

func (s *Postgres) TouchConversation(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE conversations SET updated_at=NOW() WHERE id=$1`, id)
	return err
}

func (s *Postgres) PurgeConversations(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Postgres) AppendMessage(ctx context.Context, msg *models.Message) error {
	err := s.db.QueryRowxContext(ctx, `INSERT INTO messages
        (id, conversation_id, sender, body, read_by, delivered_to, created_at)
        VALUES ($1,$2,$3,$4,$5,'{}',$6) RETURNING seq`,
		msg.ID, msg.ConversationID, msg.Sender, msg.Body, pq.StringArray(msg.ReadBy), msg.CreatedAt).
		Scan(&msg.Seq)
	return err
}

type messageRow struct {
	ID             string         `db:"id"`
	ConversationID string         `db:"conversation_id"`
	Sender         string         `db:"sender"`
	Body           string         `db:"body"`
	Seq            int64          `db:"seq"`
	CreatedAt      sql.NullTime   `db:"created_at"`
	DeliveredTo    pq.StringArray `db:"delivered_to"`
	ReadBy         pq.StringArray `db:"read_by"`
}

func (r messageRow) toModel() models.Message {
	msg := models.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Sender:         r.Sender,
		Body:           r.Body,
		Seq:            r.Seq,
		DeliveredTo:    []string(r.DeliveredTo),
		ReadBy:         []string(r.ReadBy),
	}
	if r.CreatedAt.Valid {
		msg.CreatedAt = r.CreatedAt.Time
	}
	return msg
}

const messageColumns = `id, conversation_id, sender, body, seq, created_at, delivered_to, read_by`

func (s *Postgres) GetMessage(ctx context.Context, id string) (models.Message, error) {
	var row messageRow
	err := s.db.GetContext(ctx, &row, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	msg := row.toModel()
	if err := s.attachReactions(ctx, []*models.Message{&msg}); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

func (s *Postgres) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 1000
	}
	var rows []messageRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+messageColumns+` FROM messages
        WHERE conversation_id=$1 ORDER BY seq DESC LIMIT $2 OFFSET $3`, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}
	result := make([]models.Message, 0, len(rows))
	refs := make([]*models.Message, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toModel())
	}
	for i := range result {
		refs = append(refs, &result[i])
	}
	if err := s.attachReactions(ctx, refs); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Postgres) attachReactions(ctx context.Context, msgs []*models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(msgs))
	byID := make(map[string]*models.Message, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
		byID[m.ID] = m
	}
	rows, err := s.db.QueryxContext(ctx, `SELECT message_id, emoji, identity FROM message_reactions
        WHERE message_id = ANY($1) ORDER BY created_at, identity`, pq.StringArray(ids))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var messageID, emoji, identity string
		if err := rows.Scan(&messageID, &emoji, &identity); err != nil {
			return err
		}
		msg := byID[messageID]
		if msg.Reactions == nil {
			msg.Reactions = make(map[string][]string)
		}
		msg.Reactions[emoji] = append(msg.Reactions[emoji], identity)
	}
	return rows.Err()
}

func (s *Postgres) AddDelivered(ctx context.Context, messageID, recipient string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET delivered_to = array_append(delivered_to, $2)
        WHERE id=$1 AND NOT ($2 = ANY(delivered_to))`, messageID, recipient)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

func (s *Postgres) MarkConversationRead(ctx context.Context, conversationID, reader string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE messages SET read_by = array_append(read_by, $2)
        WHERE conversation_id=$1 AND sender <> $2 AND NOT ($2 = ANY(read_by))`, conversationID, reader)
	return err
}

// ToggleReaction flips membership with a conditional delete-then-insert; each
// statement is atomic so concurrent toggles settle on one of the two states.
func (s *Postgres) ToggleReaction(ctx context.Context, messageID, emoji, actor string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM message_reactions
        WHERE message_id=$1 AND emoji=$2 AND identity=$3`, messageID, emoji, actor)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO message_reactions (message_id, emoji, identity)
        VALUES ($1,$2,$3) ON CONFLICT DO NOTHING`, messageID, emoji, actor)
	return true, err
}

func (s *Postgres) AddBlock(ctx context.Context, blocker, blocked string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO blocks (blocker, blocked)
        VALUES ($1,$2) ON CONFLICT DO NOTHING`, blocker, blocked)
	return err
}

func (s *Postgres) RemoveBlock(ctx context.Context, blocker, blocked string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blocks WHERE blocker=$1 AND blocked=$2`, blocker, blocked)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

func (s *Postgres) HasBlock(ctx context.Context, blocker, blocked string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM blocks WHERE blocker=$1 AND blocked=$2)`, blocker, blocked)
	return exists, err
}

func (s *Postgres) BlockedIdentities(ctx context.Context, viewer string) ([]string, error) {
	var result []string
	err := s.db.SelectContext(ctx, &result, `SELECT DISTINCT other FROM (
            SELECT blocked AS other FROM blocks WHERE blocker=$1
            UNION ALL
            SELECT blocker AS other FROM blocks WHERE blocked=$1
        ) edges ORDER BY other`, viewer)
	return result, err
}

func (s *Postgres) AddFollow(ctx context.Context, follower, followee string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO follows (follower, followee)
        VALUES ($1,$2) ON CONFLICT DO NOTHING`, follower, followee)
	return err
}

func (s *Postgres) Follows(ctx context.Context, follower, followee string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM follows WHERE follower=$1 AND followee=$2)`, follower, followee)
	return exists, err
}

func (s *Postgres) SetPublicKey(ctx context.Context, identity, keyData string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO public_keys (identity, key_data, updated_at)
        VALUES ($1,$2,NOW())
        ON CONFLICT (identity) DO UPDATE SET key_data = EXCLUDED.key_data, updated_at = NOW()`, identity, keyData)
	return err
}

func (s *Postgres) GetPublicKey(ctx context.Context, identity string) (string, error) {
	var key string
	err := s.db.GetContext(ctx, &key, `SELECT key_data FROM public_keys WHERE identity=$1`, identity)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return key, err
}

func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
