package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	defaultMessageLimit = 50
	defaultListLimit    = 20
)

func (db *PgChurchRepository) CreateAccount(params CreateAccountParams) (User, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return User{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	res := tx.QueryRow(
		"INSERT INTO accounts (email, first_name, last_name, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, email, first_name, last_name, created_at, updated_at",
		params.EmailAddress,
		params.FirstName,
		params.LastName,
		params.PasswordHash,
		now,
		now,
	)

	var u User
	err = res.Scan(
		&u.Id,
		&u.EmailAddress,
		&u.FirstName,
		&u.LastName,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		err = mapError(err)
		return User{}, err
	}

	_, err = tx.Exec(
		"INSERT INTO user_roles (account_id, role, created_at) VALUES ($1, $2, $3)",
		u.Id,
		params.Role,
		now,
	)
	if err != nil {
		return User{}, err
	}

	if err = tx.Commit(); err != nil {
		return User{}, err
	}

	u.Role = params.Role
	return u, nil
}

func (db *PgChurchRepository) GetAccountById(id int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, email, first_name, last_name, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.EmailAddress,
		&user.FirstName,
		&user.LastName,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgChurchRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, email, first_name, last_name, password_hash, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.EmailAddress,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgChurchRepository) GetRole(accountId int) (string, error) {
	row := db.conn.QueryRow("SELECT role FROM user_roles WHERE account_id = $1 LIMIT 1", accountId)

	var role string
	err := row.Scan(&role)
	return role, err
}

func (db *PgChurchRepository) SetRole(accountId int, role string) error {
	_, err := db.conn.Exec(
		"INSERT INTO user_roles (account_id, role, created_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (account_id) DO UPDATE SET role = EXCLUDED.role",
		accountId,
		role,
		time.Now().UTC(),
	)

	return err
}

func (db *PgChurchRepository) ListAccountIdsByRole(role string) ([]int, error) {
	return db.queryIds("SELECT account_id FROM user_roles WHERE role = $1 ORDER BY account_id", role)
}

func (db *PgChurchRepository) ListAccountIds() ([]int, error) {
	return db.queryIds("SELECT id FROM accounts ORDER BY id")
}

func (db *PgChurchRepository) queryIds(query string, args ...any) ([]int, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (db *PgChurchRepository) CreateConversation(params CreateConversationParams) (Conversation, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Conversation{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRow(
		"INSERT INTO conversations (external_id, created_at) VALUES ($1, $2) RETURNING id, external_id, created_at",
		params.ExternalId,
		time.Now().UTC(),
	)

	var conv Conversation
	err = res.Scan(&conv.Id, &conv.ExternalId, &conv.CreatedAt)
	if err != nil {
		err = mapError(err)
		return Conversation{}, err
	}

	for _, accountId := range params.ParticipantIds {
		_, err = tx.Exec(
			"INSERT INTO conversation_participants (conversation_id, account_id) VALUES ($1, $2)",
			conv.Id,
			accountId,
		)
		if err != nil {
			return Conversation{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return Conversation{}, err
	}

	return conv, nil
}

func (db *PgChurchRepository) GetConversationByExternalId(externalId string) (Conversation, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, last_message_at, created_at FROM conversations WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var (
		conv          Conversation
		lastMessageAt sql.NullTime
	)
	err := row.Scan(&conv.Id, &conv.ExternalId, &lastMessageAt, &conv.CreatedAt)
	if lastMessageAt.Valid {
		conv.LastMessageAt = &lastMessageAt.Time
	}

	return conv, err
}

func (db *PgChurchRepository) ListConversations(accountId int) ([]Conversation, error) {
	query := `
		SELECT
				c.id,
				c.external_id,
				c.last_message_at,
				c.created_at,
				a.id,
				a.email,
				a.first_name,
				a.last_name
		FROM conversations c
		JOIN conversation_participants me ON me.conversation_id = c.id AND me.account_id = $1
		JOIN conversation_participants other ON other.conversation_id = c.id AND other.account_id <> $1
		JOIN accounts a ON a.id = other.account_id
		ORDER BY c.last_message_at DESC NULLS LAST, c.id DESC;
`

	rows, err := db.conn.Query(query, accountId)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	convs := make([]Conversation, 0)
	for rows.Next() {
		var (
			conv          Conversation
			lastMessageAt sql.NullTime
		)
		err := rows.Scan(
			&conv.Id,
			&conv.ExternalId,
			&lastMessageAt,
			&conv.CreatedAt,
			&conv.OtherParty.Id,
			&conv.OtherParty.EmailAddress,
			&conv.OtherParty.FirstName,
			&conv.OtherParty.LastName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if lastMessageAt.Valid {
			conv.LastMessageAt = &lastMessageAt.Time
		}
		convs = append(convs, conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return convs, nil
}

func (db *PgChurchRepository) GetParticipantIds(conversationId int) ([]int, error) {
	return db.queryIds(
		"SELECT account_id FROM conversation_participants WHERE conversation_id = $1 ORDER BY account_id",
		conversationId,
	)
}

func (db *PgChurchRepository) IsParticipant(conversationId, accountId int) bool {
	res := db.conn.QueryRow(
		"SELECT 1 FROM conversation_participants WHERE conversation_id = $1 AND account_id = $2 LIMIT 1",
		conversationId,
		accountId,
	)

	var one int
	return res.Scan(&one) == nil
}

func (db *PgChurchRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	res := tx.QueryRow(
		"INSERT INTO messages (conversation_id, sender_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, conversation_id, sender_id, content, created_at",
		params.ConversationId,
		params.SenderId,
		params.Content,
		now,
	)

	var msg Message
	err = res.Scan(&msg.Id, &msg.ConversationId, &msg.SenderId, &msg.Content, &msg.CreatedAt)
	if err != nil {
		return Message{}, err
	}

	_, err = tx.Exec("UPDATE conversations SET last_message_at = $1 WHERE id = $2", now, params.ConversationId)
	if err != nil {
		return Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return Message{}, err
	}

	return msg, nil
}

// GetMessages returns the newest messages of a conversation in ascending
// creation order.
func (db *PgChurchRepository) GetMessages(conversationId, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = defaultMessageLimit
	}

	rows, err := db.conn.Query(
		"SELECT id, conversation_id, sender_id, content, created_at, read_at FROM ("+
			"SELECT * FROM messages WHERE conversation_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2"+
			") recent ORDER BY created_at ASC, id ASC",
		conversationId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0, limit)
	for rows.Next() {
		var (
			msg    Message
			readAt sql.NullTime
		)
		if err := rows.Scan(&msg.Id, &msg.ConversationId, &msg.SenderId, &msg.Content, &msg.CreatedAt, &readAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if readAt.Valid {
			msg.ReadAt = &readAt.Time
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// MarkMessagesRead stamps read_at on every unread message the reader
// received. read_at is only ever set once.
func (db *PgChurchRepository) MarkMessagesRead(conversationId, readerId int) (int64, error) {
	res, err := db.conn.Exec(
		"UPDATE messages SET read_at = $1 WHERE conversation_id = $2 AND sender_id <> $3 AND read_at IS NULL",
		time.Now().UTC(),
		conversationId,
		readerId,
	)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (db *PgChurchRepository) CreatePrayerRequest(params CreatePrayerRequestParams) (PrayerRequest, error) {
	now := time.Now().UTC()
	res := db.conn.QueryRow(
		"INSERT INTO prayer_requests (account_id, title, body, status, created_at, updated_at) "+
			"VALUES ($1, $2, $3, 'open', $4, $5) RETURNING id, account_id, title, body, status, created_at, updated_at",
		params.AccountId,
		params.Title,
		params.Body,
		now,
		now,
	)

	var pr PrayerRequest
	err := res.Scan(&pr.Id, &pr.AccountId, &pr.Title, &pr.Body, &pr.Status, &pr.CreatedAt, &pr.UpdatedAt)
	return pr, err
}

func (db *PgChurchRepository) GetPrayerRequest(id int) (PrayerRequest, error) {
	row := db.conn.QueryRow(
		"SELECT id, account_id, title, body, status, created_at, updated_at FROM prayer_requests WHERE id = $1",
		id,
	)

	var pr PrayerRequest
	err := row.Scan(&pr.Id, &pr.AccountId, &pr.Title, &pr.Body, &pr.Status, &pr.CreatedAt, &pr.UpdatedAt)
	return pr, err
}

// ListPrayerRequests lists the requests of one account, or all requests when
// accountId is zero.
func (db *PgChurchRepository) ListPrayerRequests(accountId int) ([]PrayerRequest, error) {
	rows, err := db.conn.Query(
		"SELECT id, account_id, title, body, status, created_at, updated_at FROM prayer_requests "+
			"WHERE $1 = 0 OR account_id = $1 ORDER BY created_at DESC",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]PrayerRequest, 0)
	for rows.Next() {
		var pr PrayerRequest
		if err := rows.Scan(&pr.Id, &pr.AccountId, &pr.Title, &pr.Body, &pr.Status, &pr.CreatedAt, &pr.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		requests = append(requests, pr)
	}

	return requests, rows.Err()
}

func (db *PgChurchRepository) UpdatePrayerRequestStatus(id int, status string) (PrayerRequest, error) {
	res := db.conn.QueryRow(
		"UPDATE prayer_requests SET status = $2, updated_at = $3 WHERE id = $1 "+
			"RETURNING id, account_id, title, body, status, created_at, updated_at",
		id,
		status,
		time.Now().UTC(),
	)

	var pr PrayerRequest
	err := res.Scan(&pr.Id, &pr.AccountId, &pr.Title, &pr.Body, &pr.Status, &pr.CreatedAt, &pr.UpdatedAt)
	return pr, err
}

func (db *PgChurchRepository) CreateEvent(params CreateEventParams) (Event, error) {
	res := db.conn.QueryRow(
		"INSERT INTO events (external_id, title, description, location, starts_at, created_by, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) "+
			"RETURNING id, external_id, title, description, location, starts_at, created_by, created_at",
		params.ExternalId,
		params.Title,
		params.Description,
		params.Location,
		params.StartsAt.UTC(),
		params.CreatedBy,
		time.Now().UTC(),
	)

	var ev Event
	err := res.Scan(&ev.Id, &ev.ExternalId, &ev.Title, &ev.Description, &ev.Location, &ev.StartsAt, &ev.CreatedBy, &ev.CreatedAt)
	return ev, mapError(err)
}

func (db *PgChurchRepository) GetEventByExternalId(externalId string) (Event, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, title, description, location, starts_at, created_by, created_at "+
			"FROM events WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var ev Event
	err := row.Scan(&ev.Id, &ev.ExternalId, &ev.Title, &ev.Description, &ev.Location, &ev.StartsAt, &ev.CreatedBy, &ev.CreatedAt)
	return ev, err
}

func (db *PgChurchRepository) ListUpcomingEvents(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := db.conn.Query(
		"SELECT id, external_id, title, description, location, starts_at, created_by, created_at "+
			"FROM events WHERE starts_at >= $1 ORDER BY starts_at ASC LIMIT $2",
		time.Now().UTC(),
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.Id, &ev.ExternalId, &ev.Title, &ev.Description, &ev.Location, &ev.StartsAt, &ev.CreatedBy, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

func (db *PgChurchRepository) CreateAnnouncement(params CreateAnnouncementParams) (Announcement, error) {
	res := db.conn.QueryRow(
		"INSERT INTO announcements (title, body, created_by, created_at) VALUES ($1, $2, $3, $4) "+
			"RETURNING id, title, body, created_by, created_at",
		params.Title,
		params.Body,
		params.CreatedBy,
		time.Now().UTC(),
	)

	var a Announcement
	err := res.Scan(&a.Id, &a.Title, &a.Body, &a.CreatedBy, &a.CreatedAt)
	return a, err
}

func (db *PgChurchRepository) ListAnnouncements(limit int) ([]Announcement, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := db.conn.Query(
		"SELECT id, title, body, created_by, created_at FROM announcements ORDER BY created_at DESC LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	announcements := make([]Announcement, 0)
	for rows.Next() {
		var a Announcement
		if err := rows.Scan(&a.Id, &a.Title, &a.Body, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		announcements = append(announcements, a)
	}

	return announcements, rows.Err()
}

// SavePushToken registers a device token, moving it to the given account if
// it was registered before.
func (db *PgChurchRepository) SavePushToken(params SavePushTokenParams) (PushToken, error) {
	res := db.conn.QueryRow(
		"INSERT INTO push_tokens (id, account_id, token, device_info, created_at) VALUES ($1, $2, $3, $4, $5) "+
			"ON CONFLICT (token) DO UPDATE SET account_id = EXCLUDED.account_id, device_info = EXCLUDED.device_info "+
			"RETURNING id, account_id, token, device_info, created_at",
		params.Id,
		params.AccountId,
		params.Token,
		params.DeviceInfo,
		time.Now().UTC(),
	)

	var pt PushToken
	err := res.Scan(&pt.Id, &pt.AccountId, &pt.Token, &pt.DeviceInfo, &pt.CreatedAt)
	return pt, err
}

func (db *PgChurchRepository) ListPushTokens(accountId int) ([]PushToken, error) {
	rows, err := db.conn.Query(
		"SELECT id, account_id, token, device_info, created_at FROM push_tokens WHERE account_id = $1",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := make([]PushToken, 0)
	for rows.Next() {
		var pt PushToken
		if err := rows.Scan(&pt.Id, &pt.AccountId, &pt.Token, &pt.DeviceInfo, &pt.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		tokens = append(tokens, pt)
	}

	return tokens, rows.Err()
}

func (db *PgChurchRepository) DeletePushToken(token string) error {
	_, err := db.conn.Exec("DELETE FROM push_tokens WHERE token = $1", token)
	return err
}

// GetNotificationPreferences falls back to everything enabled when the
// account never saved preferences.
func (db *PgChurchRepository) GetNotificationPreferences(accountId int) (NotificationPreferences, error) {
	row := db.conn.QueryRow(
		"SELECT account_id, messages, prayer_requests, events, announcements "+
			"FROM notification_preferences WHERE account_id = $1",
		accountId,
	)

	var p NotificationPreferences
	err := row.Scan(&p.AccountId, &p.Messages, &p.PrayerRequests, &p.Events, &p.Announcements)
	if errors.Is(err, sql.ErrNoRows) {
		return NotificationPreferences{
			AccountId:      accountId,
			Messages:       true,
			PrayerRequests: true,
			Events:         true,
			Announcements:  true,
		}, nil
	}

	return p, err
}

func (db *PgChurchRepository) UpdateNotificationPreferences(p NotificationPreferences) error {
	_, err := db.conn.Exec(
		"INSERT INTO notification_preferences (account_id, messages, prayer_requests, events, announcements) "+
			"VALUES ($1, $2, $3, $4, $5) ON CONFLICT (account_id) DO UPDATE SET "+
			"messages = EXCLUDED.messages, prayer_requests = EXCLUDED.prayer_requests, "+
			"events = EXCLUDED.events, announcements = EXCLUDED.announcements",
		p.AccountId,
		p.Messages,
		p.PrayerRequests,
		p.Events,
		p.Announcements,
	)

	return err
}
