package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a single SQLite file. The database is the
// sole serialization point for fact writes; callers do not need their own
// locking.
type SQLiteStore struct {
	db     *sql.DB
	logger *log.Logger
}

// OpenSQLite opens (and if needed creates) the database at dbPath.
func OpenSQLite(dbPath string, logger *log.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger.With("component", "store")}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *SQLiteStore) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			channel TEXT NOT NULL,
			channel_user_id TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(channel, channel_user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			channel TEXT NOT NULL,
			chat_id TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT 'active',
			last_message_at TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(channel, chat_id)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			agent_type TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS memory_facts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			category TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			confidence REAL NOT NULL,
			weight REAL NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			needs_confirmation INTEGER NOT NULL DEFAULT 0,
			confirmed_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(user_id, category, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_facts_user ON memory_facts(user_id, category)`,
		`CREATE TABLE IF NOT EXISTS timers (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			run_at TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			payload TEXT NOT NULL DEFAULT '{}',
			attempts INTEGER NOT NULL DEFAULT 0,
			max_attempts INTEGER NOT NULL DEFAULT 3,
			last_error TEXT NOT NULL DEFAULT '',
			last_attempt_at TEXT,
			completed_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_timers_due ON timers(status, run_at)`,
		`CREATE TABLE IF NOT EXISTS handoffs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			urgency TEXT NOT NULL DEFAULT 'medium',
			context TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			assigned_to TEXT NOT NULL DEFAULT '',
			resolved_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_handoffs_status ON handoffs(status, created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

const timeLayout = time.RFC3339Nano

func now() time.Time { return time.Now().UTC() }

func encodeTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func decodeTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTimePtr(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	t := decodeTime(v.String)
	return &t
}

func encodeMeta(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func decodeMeta(raw string) map[string]any {
	m := map[string]any{}
	if raw == "" {
		return m
	}
	_ = json.Unmarshal([]byte(raw), &m)
	return m
}

func (s *SQLiteStore) EnsureUser(ctx context.Context, channel, channelUserID string) (User, error) {
	u, err := s.getUserByChannel(ctx, channel, channelUserID)
	if err == nil {
		return u, nil
	}
	if err != ErrNotFound {
		return User{}, err
	}

	u = User{
		ID:            uuid.NewString(),
		Channel:       channel,
		ChannelUserID: channelUserID,
		CreatedAt:     now(),
		UpdatedAt:     now(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, channel, channel_user_id, name, phone, created_at, updated_at)
		VALUES (?, ?, ?, '', '', ?, ?)
		ON CONFLICT(channel, channel_user_id) DO NOTHING
	`, u.ID, channel, channelUserID, encodeTime(u.CreatedAt), encodeTime(u.UpdatedAt))
	if err != nil {
		return User{}, fmt.Errorf("ensure user: %w", err)
	}
	// Re-read to cover the lost-race conflict path.
	return s.getUserByChannel(ctx, channel, channelUserID)
}

func (s *SQLiteStore) getUserByChannel(ctx context.Context, channel, channelUserID string) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, channel, channel_user_id, name, phone, created_at, updated_at
		FROM users WHERE channel = ? AND channel_user_id = ?
	`, channel, channelUserID)
	return scanUser(row)
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, channel, channel_user_id, name, phone, created_at, updated_at
		FROM users WHERE id = ?
	`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (User, error) {
	var u User
	var created, updated string
	err := row.Scan(&u.ID, &u.Channel, &u.ChannelUserID, &u.Name, &u.Phone, &created, &updated)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = decodeTime(created)
	u.UpdatedAt = decodeTime(updated)
	return u, nil
}

func (s *SQLiteStore) EnsureConversation(ctx context.Context, userID, channel, chatID string) (Conversation, error) {
	c, err := s.getConversationByChat(ctx, channel, chatID)
	if err == nil {
		return c, nil
	}
	if err != ErrNotFound {
		return Conversation{}, err
	}

	c = Conversation{
		ID:            uuid.NewString(),
		UserID:        userID,
		Channel:       channel,
		ChatID:        chatID,
		State:         ConversationActive,
		LastMessageAt: now(),
		CreatedAt:     now(),
		UpdatedAt:     now(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, channel, chat_id, state, last_message_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(channel, chat_id) DO NOTHING
	`, c.ID, userID, channel, chatID, c.State, encodeTime(c.LastMessageAt), encodeTime(c.CreatedAt), encodeTime(c.UpdatedAt))
	if err != nil {
		return Conversation{}, fmt.Errorf("ensure conversation: %w", err)
	}
	return s.getConversationByChat(ctx, channel, chatID)
}

func (s *SQLiteStore) getConversationByChat(ctx context.Context, channel, chatID string) (Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, channel, chat_id, state, last_message_at, created_at, updated_at
		FROM conversations WHERE channel = ? AND chat_id = ?
	`, channel, chatID)
	return scanConversation(row)
}

func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (Conversation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, channel, chat_id, state, last_message_at, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id)
	return scanConversation(row)
}

func scanConversation(row *sql.Row) (Conversation, error) {
	var c Conversation
	var lastMsg, created, updated string
	err := row.Scan(&c.ID, &c.UserID, &c.Channel, &c.ChatID, &c.State, &lastMsg, &created, &updated)
	if err == sql.ErrNoRows {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("scan conversation: %w", err)
	}
	c.LastMessageAt = decodeTime(lastMsg)
	c.CreatedAt = decodeTime(created)
	c.UpdatedAt = decodeTime(updated)
	return c, nil
}

func (s *SQLiteStore) SetConversationState(ctx context.Context, id string, state ConversationState) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET state = ?, updated_at = ? WHERE id = ?
	`, state, encodeTime(now()), id)
	if err != nil {
		return fmt.Errorf("set conversation state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) CreateMessage(ctx context.Context, msg Message) (Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, agent_type, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.AgentType, encodeMeta(msg.Metadata), encodeTime(msg.CreatedAt))
	if err != nil {
		return Message{}, fmt.Errorf("create message: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE conversations SET last_message_at = ?, updated_at = ? WHERE id = ?
	`, encodeTime(msg.CreatedAt), encodeTime(now()), msg.ConversationID)
	if err != nil {
		return Message{}, fmt.Errorf("touch conversation: %w", err)
	}
	return msg, nil
}

// RecentMessages returns up to limit messages, newest first.
func (s *SQLiteStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, agent_type, metadata, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	result := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		var meta, created string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.AgentType, &meta, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Metadata = decodeMeta(meta)
		m.CreatedAt = decodeTime(created)
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return result, nil
}

func (s *SQLiteStore) CreateFact(ctx context.Context, fact MemoryFact) (MemoryFact, error) {
	if fact.ID == "" {
		fact.ID = uuid.NewString()
	}
	fact.CreatedAt = now()
	fact.UpdatedAt = fact.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_facts (id, user_id, category, key, value, confidence, weight, source, needs_confirmation, confirmed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, fact.ID, fact.UserID, fact.Category, fact.Key, fact.Value, fact.Confidence, fact.Weight, fact.Source,
		boolToInt(fact.NeedsConfirmation), encodeTimePtr(fact.ConfirmedAt), encodeTime(fact.CreatedAt), encodeTime(fact.UpdatedAt))
	if err != nil {
		return MemoryFact{}, fmt.Errorf("create fact: %w", err)
	}
	return fact, nil
}

func (s *SQLiteStore) GetFact(ctx context.Context, userID, category, key string) (MemoryFact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, category, key, value, confidence, weight, source, needs_confirmation, confirmed_at, created_at, updated_at
		FROM memory_facts WHERE user_id = ? AND category = ? AND key = ?
	`, userID, category, key)
	return scanFact(row)
}

func (s *SQLiteStore) ListFacts(ctx context.Context, userID string) ([]MemoryFact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, category, key, value, confidence, weight, source, needs_confirmation, confirmed_at, created_at, updated_at
		FROM memory_facts WHERE user_id = ?
		ORDER BY category, key
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	defer rows.Close()

	facts := make([]MemoryFact, 0)
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}
	return facts, nil
}

func (s *SQLiteStore) UpdateFact(ctx context.Context, fact MemoryFact) (MemoryFact, error) {
	fact.UpdatedAt = now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE memory_facts
		SET value = ?, confidence = ?, weight = ?, source = ?, needs_confirmation = ?, confirmed_at = ?, updated_at = ?
		WHERE id = ?
	`, fact.Value, fact.Confidence, fact.Weight, fact.Source, boolToInt(fact.NeedsConfirmation),
		encodeTimePtr(fact.ConfirmedAt), encodeTime(fact.UpdatedAt), fact.ID)
	if err != nil {
		return MemoryFact{}, fmt.Errorf("update fact: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return MemoryFact{}, ErrNotFound
	}
	return fact, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFact(row rowScanner) (MemoryFact, error) {
	var f MemoryFact
	var needsConfirm int
	var confirmed sql.NullString
	var created, updated string
	err := row.Scan(&f.ID, &f.UserID, &f.Category, &f.Key, &f.Value, &f.Confidence, &f.Weight, &f.Source,
		&needsConfirm, &confirmed, &created, &updated)
	if err == sql.ErrNoRows {
		return MemoryFact{}, ErrNotFound
	}
	if err != nil {
		return MemoryFact{}, fmt.Errorf("scan fact: %w", err)
	}
	f.NeedsConfirmation = needsConfirm == 1
	f.ConfirmedAt = decodeTimePtr(confirmed)
	f.CreatedAt = decodeTime(created)
	f.UpdatedAt = decodeTime(updated)
	return f, nil
}

func (s *SQLiteStore) CreateTimer(ctx context.Context, timer Timer) (Timer, error) {
	if timer.ID == "" {
		timer.ID = uuid.NewString()
	}
	if timer.Status == "" {
		timer.Status = TimerPending
	}
	if timer.MaxAttempts <= 0 {
		timer.MaxAttempts = 3
	}
	timer.CreatedAt = now()
	timer.UpdatedAt = timer.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO timers (id, user_id, conversation_id, kind, run_at, status, payload, attempts, max_attempts, last_error, last_attempt_at, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, timer.ID, timer.UserID, timer.ConversationID, timer.Kind, encodeTime(timer.RunAt), timer.Status,
		encodeMeta(timer.Payload), timer.Attempts, timer.MaxAttempts, timer.LastError,
		encodeTimePtr(timer.LastAttemptAt), encodeTimePtr(timer.CompletedAt),
		encodeTime(timer.CreatedAt), encodeTime(timer.UpdatedAt))
	if err != nil {
		return Timer{}, fmt.Errorf("create timer: %w", err)
	}
	return timer, nil
}

// DueTimers returns pending timers with run_at <= now, oldest first.
func (s *SQLiteStore) DueTimers(ctx context.Context, nowAt time.Time, limit int) ([]Timer, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, conversation_id, kind, run_at, status, payload, attempts, max_attempts, last_error, last_attempt_at, completed_at, created_at, updated_at
		FROM timers
		WHERE status = ? AND run_at <= ?
		ORDER BY run_at ASC
		LIMIT ?
	`, TimerPending, encodeTime(nowAt), limit)
	if err != nil {
		return nil, fmt.Errorf("due timers: %w", err)
	}
	defer rows.Close()

	timers := make([]Timer, 0)
	for rows.Next() {
		var t Timer
		var runAt, payload, created, updated string
		var lastAttempt, completed sql.NullString
		if err := rows.Scan(&t.ID, &t.UserID, &t.ConversationID, &t.Kind, &runAt, &t.Status, &payload,
			&t.Attempts, &t.MaxAttempts, &t.LastError, &lastAttempt, &completed, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan timer: %w", err)
		}
		t.RunAt = decodeTime(runAt)
		t.Payload = decodeMeta(payload)
		t.LastAttemptAt = decodeTimePtr(lastAttempt)
		t.CompletedAt = decodeTimePtr(completed)
		t.CreatedAt = decodeTime(created)
		t.UpdatedAt = decodeTime(updated)
		timers = append(timers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timers: %w", err)
	}
	return timers, nil
}

func (s *SQLiteStore) UpdateTimer(ctx context.Context, timer Timer) (Timer, error) {
	timer.UpdatedAt = now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE timers
		SET run_at = ?, status = ?, payload = ?, attempts = ?, max_attempts = ?, last_error = ?, last_attempt_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`, encodeTime(timer.RunAt), timer.Status, encodeMeta(timer.Payload), timer.Attempts, timer.MaxAttempts,
		timer.LastError, encodeTimePtr(timer.LastAttemptAt), encodeTimePtr(timer.CompletedAt),
		encodeTime(timer.UpdatedAt), timer.ID)
	if err != nil {
		return Timer{}, fmt.Errorf("update timer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Timer{}, ErrNotFound
	}
	return timer, nil
}

func (s *SQLiteStore) CreateHandoff(ctx context.Context, h Handoff) (Handoff, error) {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.Status == "" {
		h.Status = HandoffPending
	}
	h.CreatedAt = now()
	h.UpdatedAt = h.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO handoffs (id, user_id, conversation_id, reason, urgency, context, status, assigned_to, resolved_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, h.ID, h.UserID, h.ConversationID, h.Reason, h.Urgency, h.Context, h.Status, h.AssignedTo,
		encodeTimePtr(h.ResolvedAt), encodeTime(h.CreatedAt), encodeTime(h.UpdatedAt))
	if err != nil {
		return Handoff{}, fmt.Errorf("create handoff: %w", err)
	}
	s.logger.Info("handoff recorded", "handoff_id", h.ID, "conversation_id", h.ConversationID, "urgency", h.Urgency)
	return h, nil
}

func (s *SQLiteStore) PendingHandoffs(ctx context.Context, limit int) ([]Handoff, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, conversation_id, reason, urgency, context, status, assigned_to, resolved_at, created_at, updated_at
		FROM handoffs
		WHERE status = ?
		ORDER BY created_at ASC
		LIMIT ?
	`, HandoffPending, limit)
	if err != nil {
		return nil, fmt.Errorf("pending handoffs: %w", err)
	}
	defer rows.Close()

	result := make([]Handoff, 0)
	for rows.Next() {
		var h Handoff
		var resolved sql.NullString
		var created, updated string
		if err := rows.Scan(&h.ID, &h.UserID, &h.ConversationID, &h.Reason, &h.Urgency, &h.Context,
			&h.Status, &h.AssignedTo, &resolved, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan handoff: %w", err)
		}
		h.ResolvedAt = decodeTimePtr(resolved)
		h.CreatedAt = decodeTime(created)
		h.UpdatedAt = decodeTime(updated)
		result = append(result, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate handoffs: %w", err)
	}
	return result, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	counts := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM users`, &st.Users},
		{`SELECT COUNT(*) FROM conversations`, &st.Conversations},
		{`SELECT COUNT(*) FROM messages`, &st.Messages},
		{`SELECT COUNT(*) FROM memory_facts`, &st.Facts},
		{`SELECT COUNT(*) FROM memory_facts WHERE needs_confirmation = 1`, &st.Unconfirmed},
		{`SELECT COUNT(*) FROM timers WHERE status = 'pending'`, &st.PendingTimers},
		{`SELECT COUNT(*) FROM handoffs WHERE status = 'pending'`, &st.PendingHandoffs},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return Stats{}, fmt.Errorf("stats: %w", err)
		}
	}
	return st, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
